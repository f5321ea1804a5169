package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/geo-reporter/internal/constants"
	"github.com/benmeehan/geo-reporter/pkg/file"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
logging:
  level: debug
reporter:
  endpoint: https://example.test/post
  ext: fleet-a
  interval: 15s
location:
  source: static
  enabled: true
  authorization: always
  static_latitude: 51.5
  static_longitude: -0.12
server:
  enabled: true
  listen: ":9102"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	config, err := LoadConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "https://example.test/post", config.Reporter.Endpoint)
	assert.Equal(t, "fleet-a", config.Reporter.Ext)
	assert.Equal(t, 15*time.Second, config.Reporter.Interval)
	assert.Equal(t, SourceStatic, config.Location.Source)
	assert.Equal(t, 51.5, config.Location.StaticLatitude)
	assert.True(t, config.Server.Enabled)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("REPORTER_ENDPOINT", "https://override.test/ingest")
	t.Setenv("REPORTER_INTERVAL", "2m")

	config, err := LoadConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "https://override.test/ingest", config.Reporter.Endpoint)
	assert.Equal(t, 2*time.Minute, config.Reporter.Interval)
	assert.Equal(t, "fleet-a", config.Reporter.Ext)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "reporter:\n  unknown_key: 1\n"), file.NewFileService())
	assert.Error(t, err)
}

func TestFinishConfig_Defaults(t *testing.T) {
	config, err := finishConfig(&Config{}, envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultReportInterval, config.Reporter.Interval)
	assert.Equal(t, SourceStatic, config.Location.Source)
	assert.Equal(t, constants.DefaultLocationRequestTimeout, config.Location.RequestTimeout)
	assert.Equal(t, 2, config.Location.Workers)
	assert.Equal(t, 9600, config.Location.GPSDeviceBaudRate)
	assert.Equal(t, 10*time.Second, config.MQTT.ConnectTimeout)
	assert.Equal(t, "data/device.json", config.Identity.DeviceFile)
	assert.Empty(t, config.Reporter.Endpoint)
}

func TestFinishConfig_Lookuper(t *testing.T) {
	config, err := finishConfig(&Config{}, envconfig.MapLookuper(map[string]string{
		"LOCATION_SOURCE":          "google",
		"MAPS_API_KEY":             "key",
		"LOCATION_ENABLED":         "true",
		"LOCATION_STATIC_LATITUDE": "12.5",
		"MQTT_QOS":                 "2",
	}))
	require.NoError(t, err)

	assert.Equal(t, SourceGoogle, config.Location.Source)
	assert.Equal(t, "key", config.Location.MapsAPIKey)
	assert.True(t, config.Location.Enabled)
	assert.Equal(t, 12.5, config.Location.StaticLatitude)
	assert.Equal(t, 2, config.MQTT.QOS)
}

func TestFinishConfig_BadEnvironmentValue(t *testing.T) {
	_, err := finishConfig(&Config{}, envconfig.MapLookuper(map[string]string{
		"REPORTER_INTERVAL": "soon",
	}))
	assert.ErrorContains(t, err, "failed to apply environment overrides")
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "source", snakeCase("Source"))
	assert.Equal(t, "heartbeat_interval", snakeCase("HeartbeatInterval"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Reporter.Interval = -time.Second },
			wantErr: "invalid config: reporter.interval must be at least 0s, got -1s",
		},
		{
			name:    "sensor without port",
			mutate:  func(c *Config) { c.Location.Source = SourceSensor },
			wantErr: "invalid config: location.gps_device_port is required when source is sensor",
		},
		{
			name:    "google without key",
			mutate:  func(c *Config) { c.Location.Source = SourceGoogle },
			wantErr: "invalid config: location.maps_api_key is required when source is google",
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Location.Source = "carrier-pigeon" },
			wantErr: `invalid config: location.source must be one of: sensor google static, got "carrier-pigeon"`,
		},
		{
			name:    "unknown authorization request",
			mutate:  func(c *Config) { c.Location.RequestAuthorization = "sometimes" },
			wantErr: `invalid config: location.request_authorization must be one of: when_in_use always, got "sometimes"`,
		},
		{
			name:    "mqtt without broker",
			mutate:  func(c *Config) { c.MQTT.Enabled = true },
			wantErr: "invalid config: mqtt.broker is required when enabled is true; mqtt.topic is required when enabled is true",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QOS = 3 },
			wantErr: "invalid config: mqtt.qos must be at most 2, got 3",
		},
		{
			name:    "server without listen",
			mutate:  func(c *Config) { c.Server.Enabled = true },
			wantErr: "invalid config: server.listen is required when enabled is true",
		},
		{
			name:    "heartbeat without topic",
			mutate:  func(c *Config) { c.MQTT.HeartbeatInterval = time.Minute },
			wantErr: "invalid config: mqtt.heartbeat_topic is required when heartbeat_interval is set",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Location.Workers = -1 },
			wantErr: "invalid config: location.workers must be at least 0, got -1",
		},
		{
			name:   "invalid endpoint is accepted",
			mutate: func(c *Config) { c.Reporter.Endpoint = "not a valid url" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config Config
			config.applyDefaults()
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
