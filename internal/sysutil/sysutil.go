// Package sysutil holds the process-level helpers the groupbot commands
// share before configuration is loaded.
package sysutil

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// EnvSkipDotenv disables loading the dotenv file when truthy.
const EnvSkipDotenv = "GROUPBOT_SKIP_DOTENV"

// ParseLevel maps a LOG_LEVEL value to a zerolog level. Matching is
// case-insensitive and "warning" is accepted for warn. Blank, unknown and
// "disabled" values mean info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.Disabled || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel sets the global zerolog level from a LOG_LEVEL value and
// returns the level applied.
func SetLogLevel(s string) zerolog.Level {
	lvl := ParseLevel(s)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// IsTruthy reports whether v reads as true: 1, true, yes, y or on, in any
// case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// EnvTruthy reports whether the environment variable key is set to a truthy
// value.
func EnvTruthy(key string) bool { return IsTruthy(os.Getenv(key)) }

// FirstNonEmpty returns the first non-blank value, trimmed. The --settings
// flag is passed before SETTINGS_PATH so the flag wins.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
