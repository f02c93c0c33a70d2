package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangshifu/cyclemap/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("cyclemap-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "cyclemap-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, "amap", cfg.Trip.MapProvider)
	assert.Equal(t, "trip-import", cfg.Temporal.TaskQueue)
	assert.Equal(t, "postgres://cyclemap:@localhost:5432/cyclemap?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CYCLEMAP_SERVER_PORT", "9090")
	t.Setenv("CYCLEMAP_TRIP_MAP_PROVIDER", "baidu")

	cfg, err := config.Load("cyclemap-test")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "baidu", cfg.Trip.MapProvider)
}

func TestLoadWithFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("trip.default_source", "", "")
	require.NoError(t, fs.Parse([]string{"--trip.default_source=https://example.com/trip.json"}))

	cfg, err := config.LoadWithFlags("cyclemap-test", fs)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/trip.json", cfg.Trip.DefaultSource)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := config.Config{
		Server:   config.ServerConfig{Port: 0, ReadTimeout: 1, WriteTimeout: 1, BodyLimitMB: 1},
		Database: config.DatabaseConfig{Enabled: true, Port: 5432},
		NATS:     config.NATSConfig{URL: "nats://x"},
		Valkey:   config.ValkeyConfig{Addr: "x"},
		Temporal: config.TemporalConfig{TaskQueue: "q"},
		Trip:     config.TripConfig{MapProvider: "google", FetchTimeout: 1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "database.host is required")
	assert.Contains(t, msg, "trip.map_provider")
}

func TestValidate_DatabaseDisabled(t *testing.T) {
	cfg := config.Config{
		Server:   config.ServerConfig{Port: 80, ReadTimeout: 1, WriteTimeout: 1, BodyLimitMB: 1},
		NATS:     config.NATSConfig{URL: "nats://x"},
		Valkey:   config.ValkeyConfig{Addr: "x"},
		Temporal: config.TemporalConfig{TaskQueue: "q"},
		Trip:     config.TripConfig{MapProvider: "OSM", FetchTimeout: 1},
	}
	assert.NoError(t, cfg.Validate())
}
