package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(noEnv, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want debug", cfg.LogLevel)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("shutdownTimeout=%v, want %v", cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.MaxRooms != DefaultMaxRooms {
		t.Fatalf("maxRooms=%d, want %d", cfg.MaxRooms, DefaultMaxRooms)
	}
	if cfg.SignalingWSIdleTimeout != DefaultSignalingWSIdleTimeout {
		t.Fatalf("idleTimeout=%v, want %v", cfg.SignalingWSIdleTimeout, DefaultSignalingWSIdleTimeout)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxSignalingMessageBytes {
		t.Fatalf("maxMessageBytes=%d, want %d", cfg.MaxSignalingMessageBytes, DefaultMaxSignalingMessageBytes)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("allowedOrigins=%v, want empty", cfg.AllowedOrigins)
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("iceServers=%v, want empty", cfg.ICEServers)
	}
}

func TestProdModeDefaultsToJSONLogs(t *testing.T) {
	cfg, err := load(noEnv, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want info", cfg.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarListenAddr:                    "0.0.0.0:9000",
		envVarMode:                          "prod",
		envVarLogFormat:                     "text",
		envVarShutdownTimeout:               "5s",
		envVarAllowedOrigins:                "https://app.example.com, https://staging.example.com",
		envVarMaxRooms:                      "8",
		envVarSignalingWSIdleTimeout:        "30s",
		envVarSignalingWSPingInterval:       "10s",
		envVarMaxSignalingMessageBytes:      "1024",
		envVarMaxSignalingMessagesPerSecond: "5",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("listenAddr=%q", cfg.ListenAddr)
	}
	if cfg.Mode != ModeProd || cfg.LogFormat != LogFormatText {
		t.Fatalf("mode=%q logFormat=%q", cfg.Mode, cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("shutdownTimeout=%v", cfg.ShutdownTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://staging.example.com" {
		t.Fatalf("allowedOrigins=%v", cfg.AllowedOrigins)
	}
	if cfg.MaxRooms != 8 {
		t.Fatalf("maxRooms=%d", cfg.MaxRooms)
	}
	if cfg.SignalingWSIdleTimeout != 30*time.Second || cfg.SignalingWSPingInterval != 10*time.Second {
		t.Fatalf("idle=%v ping=%v", cfg.SignalingWSIdleTimeout, cfg.SignalingWSPingInterval)
	}
	if cfg.MaxSignalingMessageBytes != 1024 || cfg.MaxSignalingMessagesPerSecond != 5 {
		t.Fatalf("maxBytes=%d perSecond=%d", cfg.MaxSignalingMessageBytes, cfg.MaxSignalingMessagesPerSecond)
	}
}

func TestTURNRESTConfig(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarTURNRESTSecret: "shared",
		envVarTURNRESTTTL:    "30m",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TURNRESTSecret != "shared" {
		t.Fatalf("secret=%q", cfg.TURNRESTSecret)
	}
	if cfg.TURNRESTTTL != 30*time.Minute {
		t.Fatalf("ttl=%v", cfg.TURNRESTTTL)
	}
	if cfg.TURNRESTUsernamePrefix != DefaultTURNRESTUsernamePrefix {
		t.Fatalf("prefix=%q", cfg.TURNRESTUsernamePrefix)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarListenAddr: "127.0.0.1:7000",
	}), []string{"--listen-addr", "127.0.0.1:7001"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7001" {
		t.Fatalf("listenAddr=%q, want flag value", cfg.ListenAddr)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad mode", map[string]string{envVarMode: "staging"}, "unsupported mode"},
		{"bad log format", map[string]string{envVarLogFormat: "yaml"}, "unsupported log format"},
		{"bad log level", map[string]string{envVarLogLevel: "loud"}, "invalid log level"},
		{"bad duration", map[string]string{envVarShutdownTimeout: "soon"}, envVarShutdownTimeout},
		{"bad int", map[string]string{envVarMaxRooms: "many"}, envVarMaxRooms},
		{"turn secret with zero ttl", map[string]string{
			envVarTURNRESTSecret: "s",
			envVarTURNRESTTTL:    "0s",
		}, envVarTURNRESTTTL},
		{"turn prefix with colon", map[string]string{
			envVarTURNRESTSecret:         "s",
			envVarTURNRESTUsernamePrefix: "a:b",
		}, envVarTURNRESTUsernamePrefix},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(lookupMap(tc.env), nil)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewLogger(Config{LogFormat: "yaml"}); err == nil {
		t.Fatalf("expected error for unknown log format")
	}
	if _, err := NewLogger(Config{LogFormat: LogFormatJSON}); err != nil {
		t.Fatalf("NewLogger(json): %v", err)
	}
}
