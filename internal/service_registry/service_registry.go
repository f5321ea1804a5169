package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/geo-reporter/internal/api"
	"github.com/benmeehan/geo-reporter/internal/metrics"
	"github.com/benmeehan/geo-reporter/internal/services"
	"github.com/benmeehan/geo-reporter/internal/utils"
	"github.com/benmeehan/geo-reporter/pkg/identity"
	"github.com/benmeehan/geo-reporter/pkg/location"
	"github.com/benmeehan/geo-reporter/pkg/mqtt"
	"github.com/benmeehan/geo-reporter/pkg/reporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Service is the interface for all plug-in services
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	mqttClient  mqtt.MQTTClient    // nil when MQTT is disabled
	deviceInfo  identity.DeviceInfoInterface
	registerer  prometheus.Registerer
	gatherer    prometheus.Gatherer
	workerPool  *utils.WorkerPool
	source      *location.ProviderSource
	Logger      zerolog.Logger

	// ReportService is set by RegisterServices for hosts that drive it directly.
	ReportService *services.LocationReportService
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, deviceInfo identity.DeviceInfoInterface,
	registerer prometheus.Registerer, gatherer prometheus.Gatherer, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		deviceInfo: deviceInfo,
		registerer: registerer,
		gatherer:   gatherer,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order, then drains the worker pool.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if sr.workerPool != nil {
		sr.workerPool.Shutdown()
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
// The control server depends on the report service, so it is registered
// after it and therefore stopped before it.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:        "location_report",
			enabled:     true,
			constructor: func() (Service, error) { return sr.newLocationReportService(config) },
		},
		{
			name:    "heartbeat",
			enabled: sr.mqttClient != nil && config.MQTT.HeartbeatInterval > 0,
			constructor: func() (Service, error) {
				return services.NewHeartbeatService(config.MQTT.HeartbeatTopic, config.MQTT.HeartbeatInterval,
					config.MQTT.QOS, sr.deviceInfo, sr.ReportService, sr.mqttClient, sr.Logger), nil
			},
		},
		{
			name:        "control_server",
			enabled:     config.Server.Enabled,
			constructor: func() (Service, error) { return sr.newControlServer(config) },
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

func (sr *ServiceRegistry) newLocationReportService(config *utils.Config) (*services.LocationReportService, error) {
	provider, err := NewProvider(config, sr.Logger)
	if err != nil {
		return nil, err
	}

	status, err := location.ParseAuthorizationStatus(config.Location.Authorization)
	if err != nil {
		return nil, err
	}

	sr.workerPool = utils.NewWorkerPool(config.Location.Workers)
	source := location.NewProviderSource(provider, sr.workerPool, location.SourceOptions{
		Enabled:        config.Location.Enabled,
		Status:         status,
		GrantPrompts:   config.Location.GrantPrompts,
		RequestTimeout: config.Location.RequestTimeout,
	}, sr.Logger.With().Str("component", "location").Logger())

	sr.source = source

	delegates := services.MultiDelegate{&services.LogDelegate{Logger: sr.Logger}}
	if config.Server.Enabled {
		delegates = append(delegates, services.MetricsDelegate{})
		if err := metrics.RegisterPendingLocationRequests(sr.registerer, source.Pending); err != nil {
			return nil, fmt.Errorf("failed to register pending requests gauge: %w", err)
		}
	}
	if sr.mqttClient != nil {
		delegates = append(delegates, services.NewReportEventPublisher(
			config.MQTT.Topic, config.MQTT.QOS, sr.deviceInfo, sr.mqttClient, sr.Logger))
	}

	sender := reporter.NewReporter(reporter.NewHTTPTransport(config.Reporter.HTTPTimeout),
		sr.Logger.With().Str("component", "reporter").Logger())

	svc := services.NewLocationReportService(
		config.Reporter.Endpoint,
		config.Reporter.Ext,
		config.Reporter.Interval,
		config.Reporter.ReportOnStart,
		sender,
		source,
		delegates,
		sr.Logger,
	)

	switch config.Location.RequestAuthorization {
	case "when_in_use":
		svc.RequestLocationWhenInUse()
	case "always":
		svc.RequestLocationAlways()
	}

	sr.ReportService = svc
	return svc, nil
}

func (sr *ServiceRegistry) newControlServer(config *utils.Config) (*api.Server, error) {
	if sr.ReportService == nil {
		return nil, errors.New("control server requires the location report service")
	}

	if config.Server.HostMetrics {
		collector := metrics.NewHostCollector(config.Server.DiskPath, sr.Logger.With().Str("component", "host_metrics").Logger())
		if err := sr.registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register host metrics: %w", err)
		}
	}

	var pending func() int
	if sr.source != nil {
		pending = sr.source.Pending
	}
	router := api.NewRouter(api.NewReportHandler(sr.ReportService, pending), sr.gatherer,
		sr.Logger.With().Str("component", "api").Logger())
	return api.NewServer(config.Server.Listen, router, sr.Logger), nil
}

// NewProvider builds the location provider selected in the configuration.
func NewProvider(config *utils.Config, logger zerolog.Logger) (location.Provider, error) {
	switch config.Location.Source {
	case utils.SourceSensor:
		return location.NewDeviceSensorProvider(config.Location.GPSDevicePort, config.Location.GPSDeviceBaudRate), nil
	case utils.SourceGoogle:
		provider, err := location.NewGoogleGeolocationProvider(config.Location.MapsAPIKey, config.Location.ModemIndex, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create Google Geolocation provider")
			return nil, err
		}
		return provider, nil
	case utils.SourceStatic:
		return location.NewStaticProvider(config.Location.StaticLatitude, config.Location.StaticLongitude), nil
	default:
		return nil, fmt.Errorf("unknown location source %q", config.Location.Source)
	}
}
