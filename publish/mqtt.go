package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/query"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
)

const publishTimeout = 5 * time.Second

// CurrentPrices is the snapshot source, usually the query engine.
type CurrentPrices interface {
	Current(ctx context.Context) ([]query.CurrentPrice, error)
}

// Publisher pushes every provider's current price to an MQTT broker as
// retained messages, one topic per provider.
type Publisher struct {
	logger *slog.Logger
	client mqtt.Client
	prefix string
	prices CurrentPrices
}

func New(logger *slog.Logger, cnfg config.AppConfigMqtt, prices CurrentPrices) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cnfg.Broker)
	opts.SetClientID(cnfg.GetClientID())
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", cnfg.Broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLog := logger.With("module", "paho")
	mqtt.CRITICAL = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLog, slog.LevelWarn)

	return newPublisher(logger, mqtt.NewClient(opts), cnfg.GetTopicPrefix(), prices)
}

func newPublisher(logger *slog.Logger, client mqtt.Client, prefix string, prices CurrentPrices) *Publisher {
	return &Publisher{
		logger: logger,
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		prices: prices,
	}
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	token := p.client.Connect()
	if !token.WaitTimeout(10*time.Second) {
		// keeps retrying in the background
		p.logger.Warn("MQTT broker not reachable yet")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker: %w", err)
	}
	return nil
}

func (p *Publisher) Disconnect() {
	p.logger.Info("disconnecting MQTT client")
	p.client.Disconnect(250)
}

// PublishCurrent sends the current price of every provider. A failing
// provider does not stop the others, the first error is returned.
func (p *Publisher) PublishCurrent(ctx context.Context) error {
	prices, err := p.prices.Current(ctx)
	if err != nil {
		return fmt.Errorf("current prices: %w", err)
	}

	var firstErr error
	for _, price := range prices {
		if err := p.publish(price); err != nil {
			p.logger.Warn("publishing price failed", slog.String("provider", price.Provider), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.logger.Debug("current prices published", slog.Int("providers", len(prices)))
	return firstErr
}

func (p *Publisher) publish(price query.CurrentPrice) error {
	payload, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}

	topic := Topic(p.prefix, price.Provider)
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout when publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

var topicReplacer = strings.NewReplacer(" ", "_", "/", "_", "+", "", "#", "")

// Topic returns the topic a provider's current price is published on.
func Topic(prefix string, provider string) string {
	return fmt.Sprintf("%s/%s/current", prefix, strings.ToLower(topicReplacer.Replace(provider)))
}
