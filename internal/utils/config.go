package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/benmeehan/geo-reporter/internal/constants"
	"github.com/benmeehan/geo-reporter/pkg/file"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Location source kinds
const (
	SourceSensor = "sensor" // serial GPS receiver
	SourceGoogle = "google" // Google geolocation API
	SourceStatic = "static" // fixed coordinate
)

// Config represents the structure of the configuration file.
// Fields tagged with env can be overridden from the environment.
type Config struct {
	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL, overwrite"`   // trace, debug, info, warn, error
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY, overwrite"` // console output instead of JSON
	} `yaml:"logging"`

	Identity struct {
		DeviceFile string `yaml:"device_file" env:"DEVICE_FILE, overwrite"` // Path to the device identity file
	} `yaml:"identity"`

	Reporter struct {
		Endpoint      string        `yaml:"endpoint" env:"REPORTER_ENDPOINT, overwrite"`                   // URL receiving the POSTed reports
		Ext           string        `yaml:"ext" env:"REPORTER_EXT, overwrite"`                             // Free text sent as "ext"
		Interval      time.Duration `yaml:"interval" env:"REPORTER_INTERVAL, overwrite" validate:"gte=0s"` // Time between scheduled reports
		ReportOnStart bool          `yaml:"report_on_start" env:"REPORTER_REPORT_ON_START, overwrite"`     // Report once as soon as the agent starts
		HTTPTimeout   time.Duration `yaml:"http_timeout" env:"REPORTER_HTTP_TIMEOUT, overwrite"`           // Zero leaves requests unbounded
	} `yaml:"reporter"`

	Location struct {
		Source               string        `yaml:"source" env:"LOCATION_SOURCE, overwrite" validate:"oneof=sensor google static"`                              // sensor, google or static
		Enabled              bool          `yaml:"enabled" env:"LOCATION_ENABLED, overwrite"`                                                                  // Location services switch
		Authorization        string        `yaml:"authorization" env:"LOCATION_AUTHORIZATION, overwrite"`                                                      // Initial authorization status
		GrantPrompts         bool          `yaml:"grant_prompts" env:"LOCATION_GRANT_PROMPTS, overwrite"`                                                      // Grant authorization requests
		RequestAuthorization string        `yaml:"request_authorization" env:"LOCATION_REQUEST_AUTH, overwrite" validate:"omitempty,oneof=when_in_use always"` // when_in_use or always, requested at startup
		RequestTimeout       time.Duration `yaml:"request_timeout" env:"LOCATION_REQUEST_TIMEOUT, overwrite"`                                                  // Per one-shot request
		Workers              int           `yaml:"workers" env:"LOCATION_WORKERS, overwrite" validate:"gte=0"`                                                 // Concurrent one-shot requests
		GPSDevicePort        string        `yaml:"gps_device_port" env:"GPS_DEVICE_PORT, overwrite" validate:"required_if=Source sensor"`                      // Serial port of the GPS receiver
		GPSDeviceBaudRate    int           `yaml:"gps_baud_rate" env:"GPS_BAUD_RATE, overwrite"`                                                               // Baud rate of the GPS receiver
		MapsAPIKey           string        `yaml:"maps_api_key" env:"MAPS_API_KEY, overwrite" validate:"required_if=Source google"`                            // Google maps API Key
		ModemIndex           int           `yaml:"modem_index" env:"MODEM_INDEX, overwrite"`                                                                   // mmcli modem used for cell data
		StaticLatitude       float64       `yaml:"static_latitude" env:"LOCATION_STATIC_LATITUDE, overwrite"`                                                  // Used by the static source
		StaticLongitude      float64       `yaml:"static_longitude" env:"LOCATION_STATIC_LONGITUDE, overwrite"`                                                // Used by the static source
	} `yaml:"location"`

	MQTT struct {
		Enabled           bool          `yaml:"enabled" env:"MQTT_ENABLED, overwrite"`                                                            // Publish report events over MQTT
		Broker            string        `yaml:"broker" env:"MQTT_BROKER, overwrite" validate:"required_if=Enabled true"`                          // MQTT broker address
		ClientID          string        `yaml:"client_id" env:"MQTT_CLIENT_ID, overwrite"`                                                        // MQTT client ID prefix
		CACertificate     string        `yaml:"ca_certificate" env:"MQTT_CA_CERTIFICATE, overwrite"`                                              // Path to the CA certificate
		Topic             string        `yaml:"topic" env:"MQTT_TOPIC, overwrite" validate:"required_if=Enabled true"`                            // Topic for report events
		QOS               int           `yaml:"qos" env:"MQTT_QOS, overwrite" validate:"gte=0,lte=2"`                                             // MQTT QoS level
		ConnectTimeout    time.Duration `yaml:"connect_timeout" env:"MQTT_CONNECT_TIMEOUT, overwrite"`                                            // Broker connection timeout
		HeartbeatTopic    string        `yaml:"heartbeat_topic" env:"MQTT_HEARTBEAT_TOPIC, overwrite" validate:"required_with=HeartbeatInterval"` // Topic for agent heartbeats
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"MQTT_HEARTBEAT_INTERVAL, overwrite" validate:"gte=0s"`                    // Zero disables heartbeats
	} `yaml:"mqtt"`

	Server struct {
		Enabled     bool   `yaml:"enabled" env:"SERVER_ENABLED, overwrite"`                                   // Serve the control API and /metrics
		Listen      string `yaml:"listen" env:"SERVER_LISTEN, overwrite" validate:"required_if=Enabled true"` // Listen address, e.g. ":9102"
		HostMetrics bool   `yaml:"host_metrics" env:"SERVER_HOST_METRICS, overwrite"`                         // Export CPU, memory, disk and load gauges
		DiskPath    string `yaml:"disk_path" env:"SERVER_DISK_PATH, overwrite"`                               // Filesystem for the disk gauge
	} `yaml:"server"`
}

// LoadConfig loads the YAML configuration from filename and applies
// environment overrides and defaults.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}
	return finishConfig(&config, envconfig.OsLookuper())
}

func finishConfig(config *Config, lookuper envconfig.Lookuper) (*Config, error) {
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Reporter.Interval == 0 {
		c.Reporter.Interval = constants.DefaultReportInterval
	}
	if c.Location.Source == "" {
		c.Location.Source = SourceStatic
	}
	if c.Location.RequestTimeout == 0 {
		c.Location.RequestTimeout = constants.DefaultLocationRequestTimeout
	}
	if c.Location.Workers == 0 {
		c.Location.Workers = 2
	}
	if c.Location.GPSDeviceBaudRate == 0 {
		c.Location.GPSDeviceBaudRate = 9600
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.Identity.DeviceFile == "" {
		c.Identity.DeviceFile = "data/device.json"
	}
}

// Validate checks values that would otherwise only fail at runtime.
// The endpoint is not checked here; a bad URL is reported per attempt
// through the failure delegate.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, configFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// configValidator reports fields by their YAML path, e.g. "location.source".
var configValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

func configFieldError(fe validator.FieldError) string {
	// Namespace is "Config.<section>.<key>"
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required_if":
		cond := strings.Fields(fe.Param())
		if len(cond) == 2 {
			return fmt.Sprintf("%s is required when %s is %s", field, snakeCase(cond[0]), cond[1])
		}
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s, got %q", field, fe.Param(), fe.Value())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, snakeCase(fe.Param()))
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// snakeCase turns a Go field name used in a validation param into its YAML key.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
