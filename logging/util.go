package logging

import (
	"log/slog"
	"strings"
)

// LevelFromString parses a level name such as "debug" or "WARN". Missing or
// unknown names yield INFO.
func LevelFromString(str *string) slog.Level {
	var level slog.Level
	if str == nil || level.UnmarshalText([]byte(strings.TrimSpace(*str))) != nil {
		return slog.LevelInfo
	}
	return level
}
