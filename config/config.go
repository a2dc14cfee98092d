package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/spotprice-go/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	// "sqlite" or "postgres", default: "sqlite"
	Driver *string `mapstructure:"driver"`
	// SQLite database file
	Path string
	// PostgreSQL connection string, used when driver is "postgres"
	DSN string `mapstructure:"dsn"`
	// How many days price records are kept before they get purged
	RetentionDays *int `mapstructure:"retention_days"`
	// How many days collection log entries are kept
	LogRetentionDays *int `mapstructure:"log_retention_days"`
	// How many days daily backup files are kept (SQLite only)
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDriver() string {
	if d.Driver == nil || *d.Driver == "" {
		return "sqlite"
	}
	return strings.ToLower(*d.Driver)
}

func (d AppConfigDatabase) GetRetentionDays() int {
	if d.RetentionDays == nil {
		return 365
	}
	return *d.RetentionDays
}

func (d AppConfigDatabase) GetLogRetentionDays() int {
	if d.LogRetentionDays == nil {
		return 90
	}
	return *d.LogRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 14
	}
	return *d.BackupRetentionDays
}

type AppConfigCollection struct {
	IntervalSeconds     *int    `mapstructure:"interval_seconds"`
	WindowBackHours     *int    `mapstructure:"window_back_hours"`
	WindowAheadHours    *int    `mapstructure:"window_ahead_hours"`
	InitialDelaySeconds *int    `mapstructure:"initial_delay_seconds"`
	Workers             int     `mapstructure:"workers"` // 0 means one worker per adapter
	DayAheadRunAt       *string `mapstructure:"day_ahead_run_at"`
	RetentionRunAt      *string `mapstructure:"retention_run_at"`
	HealthRunAt         *string `mapstructure:"health_run_at"`
	FetchTimeoutSeconds *int    `mapstructure:"fetch_timeout_seconds"` // one adapter's whole fetch
}

func (c AppConfigCollection) GetInterval() time.Duration {
	if c.IntervalSeconds == nil || *c.IntervalSeconds <= 0 {
		return 900 * time.Second
	}
	return time.Duration(*c.IntervalSeconds) * time.Second
}

func (c AppConfigCollection) GetWindowBack() time.Duration {
	if c.WindowBackHours == nil {
		return 2 * time.Hour
	}
	return time.Duration(*c.WindowBackHours) * time.Hour
}

func (c AppConfigCollection) GetWindowAhead() time.Duration {
	if c.WindowAheadHours == nil {
		return 48 * time.Hour
	}
	return time.Duration(*c.WindowAheadHours) * time.Hour
}

func (c AppConfigCollection) GetInitialDelay() time.Duration {
	if c.InitialDelaySeconds == nil {
		return 5 * time.Second
	}
	return time.Duration(*c.InitialDelaySeconds) * time.Second
}

func (c AppConfigCollection) GetFetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds == nil || *c.FetchTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(*c.FetchTimeoutSeconds) * time.Second
}

func (c AppConfigCollection) GetDayAheadRunAt() string {
	return orDefault(c.DayAheadRunAt, "5 * * * *")
}

func (c AppConfigCollection) GetRetentionRunAt() string {
	return orDefault(c.RetentionRunAt, "0 2 * * *")
}

func (c AppConfigCollection) GetHealthRunAt() string {
	return orDefault(c.HealthRunAt, "30 * * * *")
}

type AppConfigHttp struct {
	TimeoutSeconds    *int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond *float64 `mapstructure:"requests_per_second"`
}

func (h AppConfigHttp) GetTimeout() time.Duration {
	if h.TimeoutSeconds == nil || *h.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(*h.TimeoutSeconds) * time.Second
}

func (h AppConfigHttp) GetRequestsPerSecond() float64 {
	if h.RequestsPerSecond == nil || *h.RequestsPerSecond <= 0 {
		return 2
	}
	return *h.RequestsPerSecond
}

type AppConfigEntsoe struct {
	Enabled    *bool // default: enabled when an api key is set
	ApiKey     string  `mapstructure:"api_key"`
	BaseURL    *string `mapstructure:"base_url"`
	Domain     *string `mapstructure:"domain"`      // EIC bidding zone code
	MarketArea *string `mapstructure:"market_area"` // label stored on records
}

func (e AppConfigEntsoe) GetBaseURL() string {
	return orDefault(e.BaseURL, "https://web-api.tp.entsoe.eu/api")
}

func (e AppConfigEntsoe) GetDomain() string {
	return orDefault(e.Domain, "10Y1001A1001A83F")
}

func (e AppConfigEntsoe) GetMarketArea() string {
	return orDefault(e.MarketArea, "DE-LU")
}

type AppConfigAwattar struct {
	Enabled  *bool
	BaseURL  *string  `mapstructure:"base_url"`
	Taxes    *float64 `mapstructure:"taxes"`     // ct/kWh added to the wholesale price
	GridFees *float64 `mapstructure:"grid_fees"` // ct/kWh added to the wholesale price
}

func (a AppConfigAwattar) GetBaseURL() string {
	return orDefault(a.BaseURL, "https://api.awattar.de/v1/marketdata")
}

func (a AppConfigAwattar) GetTaxes() float64 {
	if a.Taxes == nil {
		return 0.64
	}
	return *a.Taxes
}

func (a AppConfigAwattar) GetGridFees() float64 {
	if a.GridFees == nil {
		return 7.5
	}
	return *a.GridFees
}

type AppConfigTibber struct {
	Enabled *bool // default: enabled when an api key is set
	ApiKey  string  `mapstructure:"api_key"`
	BaseURL *string `mapstructure:"base_url"`
}

func (t AppConfigTibber) GetBaseURL() string {
	return orDefault(t.BaseURL, "https://api.tibber.com/v1-beta/gql")
}

type AppConfigNordpool struct {
	Enabled bool
	BaseURL *string `mapstructure:"base_url"`
	Area    string  `mapstructure:"area"` // delivery area, e.g. "SE3", "DE-LU"
}

func (n AppConfigNordpool) GetBaseURL() string {
	return orDefault(n.BaseURL, "https://dataportal-api.nordpoolgroup.com/api/DayAheadPrices")
}

type AppConfigElprisetJustNu struct {
	Enabled bool
	BaseURL *string `mapstructure:"base_url"`
	Area    string  `mapstructure:"area"` // "SE1", "SE2", "SE3", "SE4"
}

func (e AppConfigElprisetJustNu) GetBaseURL() string {
	return orDefault(e.BaseURL, "https://www.elprisetjustnu.se/api/v1/prices")
}

type AppConfigProviders struct {
	Entsoe         AppConfigEntsoe         `mapstructure:"entsoe"`
	Awattar        AppConfigAwattar        `mapstructure:"awattar"`
	Tibber         AppConfigTibber         `mapstructure:"tibber"`
	Nordpool       AppConfigNordpool       `mapstructure:"nordpool"`
	ElprisetJustNu AppConfigElprisetJustNu `mapstructure:"elprisetjustnu"`
}

// Enabled maps provider names to their enabled flag. An ENTSO-E or Tibber
// adapter without an API key is never enabled.
func (p AppConfigProviders) Enabled() map[string]bool {
	return map[string]bool{
		"ENTSO-E":        isEnabled(p.Entsoe.Enabled) && p.Entsoe.ApiKey != "",
		"aWATTar":        isEnabled(p.Awattar.Enabled),
		"Tibber":         isEnabled(p.Tibber.Enabled) && p.Tibber.ApiKey != "",
		"Nordpool":       p.Nordpool.Enabled && p.Nordpool.Area != "",
		"elprisetjustnu": p.ElprisetJustNu.Enabled && p.ElprisetJustNu.Area != "",
	}
}

type AppConfigMqtt struct {
	Enabled     bool
	Broker      string  `mapstructure:"broker"` // e.g. "tcp://localhost:1883"
	ClientID    *string `mapstructure:"client_id"`
	Username    string  `mapstructure:"username"`
	Password    string  `mapstructure:"password"`
	TopicPrefix *string `mapstructure:"topic_prefix"`
}

func (m AppConfigMqtt) GetClientID() string {
	return orDefault(m.ClientID, "spotprice")
}

func (m AppConfigMqtt) GetTopicPrefix() string {
	return orDefault(m.TopicPrefix, "spotprice")
}

type AppConfigLogging struct {
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
	// Optional JSON log file
	File *string `mapstructure:"file"`
	// Min log level for the log file, default: "INFO"
	FileLevel *string `mapstructure:"file_level"`
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

func (l AppConfigLogging) GetFileLevel() slog.Level {
	return logging.LevelFromString(l.FileLevel)
}

type AppConfig struct {
	Api        AppConfigApi
	Database   AppConfigDatabase
	Collection AppConfigCollection `mapstructure:"collection"`
	Http       AppConfigHttp       `mapstructure:"http"`
	Providers  AppConfigProviders  `mapstructure:"providers"`
	Mqtt       AppConfigMqtt       `mapstructure:"mqtt"`
	Logging    AppConfigLogging    `mapstructure:"logging"`
	// Timezone for calendar days, default: UTC
	Timezone *string `mapstructure:"timezone"`
}

func (c AppConfig) GetTimezone() string {
	return orDefault(c.Timezone, "UTC")
}

func isEnabled(b *bool) bool {
	return b == nil || *b
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func Load(path string) (*AppConfig, error) {
	return load(viper.GetViper(), path)
}

func load(v *viper.Viper, path string) (*AppConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	return &c, nil
}

// Watch calls onChange with the re-read config every time the config file is written.
func Watch(logger *slog.Logger, onChange func(*AppConfig)) {
	watch(viper.GetViper(), logger, onChange)
}

func watch(v *viper.Viper, logger *slog.Logger, onChange func(*AppConfig)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Info("config file changed", slog.String("file", e.Name))
		c, err := unmarshal(v)
		if err != nil {
			logger.Error("config reload failed", slog.Any("error", err))
			return
		}
		onChange(c)
	})
	v.WatchConfig()
}
