package sysutil

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel_FromLogLevelEnv(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{" Debug ", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"WARNING", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := SetLogLevel(tc.in); got != tc.want {
			t.Fatalf("SetLogLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
		if g := zerolog.GlobalLevel(); g != tc.want {
			t.Fatalf("global level after %q = %v; want %v", tc.in, g, tc.want)
		}
	}
}

func TestEnvTruthy_SkipDotenv(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"TRUE":  true,
		" on ":  true,
		"y":     true,
		"":      false,
		"0":     false,
		"no":    false,
		"skip":  false,
		"false": false,
	}
	for v, want := range cases {
		t.Setenv(EnvSkipDotenv, v)
		if got := EnvTruthy(EnvSkipDotenv); got != want {
			t.Fatalf("%s=%q: EnvTruthy = %v; want %v", EnvSkipDotenv, v, got, want)
		}
	}
}

func TestEnvTruthy_Unset(t *testing.T) {
	if EnvTruthy("GROUPBOT_TEST_NEVER_SET") {
		t.Fatal("unset variable must read as false")
	}
}

func TestFirstNonEmpty_SettingsPrecedence(t *testing.T) {
	cases := []struct {
		name      string
		flag, env string
		want      string
	}{
		{"flag wins", "flag.toml", "env.yaml", "flag.toml"},
		{"env when flag unset", "", "env.yaml", "env.yaml"},
		{"blank flag ignored", "   ", "env.yaml", "env.yaml"},
		{"trimmed", " flag.toml ", "", "flag.toml"},
		{"neither", "", " ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SETTINGS_PATH", tc.env)
			if got := FirstNonEmpty(tc.flag, os.Getenv("SETTINGS_PATH")); got != tc.want {
				t.Fatalf("FirstNonEmpty(%q, %q) = %q; want %q", tc.flag, tc.env, got, tc.want)
			}
		})
	}
}
