package config_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/m-mizutani/annodb/pkg/cli/config"
	"github.com/m-mizutani/gt"
)

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{name: "Valid level: debug", level: "debug"},
		{name: "Valid level: DEBUG (case insensitive)", level: "DEBUG"},
		{name: "Valid level: info", level: "info"},
		{name: "Valid level: Info", level: "Info"},
		{name: "Valid level: warn", level: "warn"},
		{name: "Valid level: WARN", level: "WARN"},
		{name: "Valid level: error", level: "error"},
		{name: "Valid level: ERROR", level: "ERROR"},
		{name: "Invalid level: invalid", level: "invalid", wantErr: true},
		{name: "Invalid level: empty string", level: "", wantErr: true},
		{name: "Invalid level: warning", level: "warning", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &config.Logger{
				Level:  tt.level,
				Output: &bytes.Buffer{},
			}

			result, err := logger.Configure()
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, result).NotNil()
		})
	}
}

func TestLogger_Configure_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := (&config.Logger{Level: "warn", Output: &buf}).Configure()
	gt.NoError(t, err).Required()

	logger.Info("hidden message")
	logger.Warn("visible message")

	gt.False(t, strings.Contains(buf.String(), "hidden message"))
	gt.True(t, strings.Contains(buf.String(), "visible message"))
}

func TestLogger_Configure_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := (&config.Logger{Level: "info", JSON: true, Output: &buf}).Configure()
	gt.NoError(t, err).Required()

	logger.Info("test log message", "dataset", "sample")

	var record map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record)).Required()
	gt.Value(t, record["msg"]).Equal("test log message")
	gt.Value(t, record["dataset"]).Equal("sample")
}

func TestLogger_Configure_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := (&config.Logger{Level: "info", JSON: true, Output: &buf}).Configure()
	gt.NoError(t, err).Required()

	logger.Info("configured",
		"secret", "hmac-secret-value",
		"webhook_url", "https://hooks.slack.com/services/T000/B000/XXXX",
		"addr", "localhost:8080",
	)

	out := buf.String()
	gt.False(t, strings.Contains(out, "hmac-secret-value"))
	gt.False(t, strings.Contains(out, "hooks.slack.com"))
	gt.True(t, strings.Contains(out, "localhost:8080"))
}

func TestLogger_Flags(t *testing.T) {
	logger := &config.Logger{}
	flags := logger.Flags()
	gt.A(t, flags).Length(2)

	flagNames := make(map[string]bool)
	for _, flag := range flags {
		names := flag.Names()
		if len(names) > 0 {
			flagNames[names[0]] = true
		}
	}

	gt.True(t, flagNames["log-level"])
	gt.True(t, flagNames["log-json"])
}
