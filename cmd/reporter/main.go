package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/geo-reporter/internal/service_registry"
	"github.com/benmeehan/geo-reporter/internal/utils"
	"github.com/benmeehan/geo-reporter/pkg/file"
	"github.com/benmeehan/geo-reporter/pkg/identity"
	"github.com/benmeehan/geo-reporter/pkg/logger"
	"github.com/benmeehan/geo-reporter/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// Bootstrap logger until the configured one is available
	log := logger.New(logger.Options{})

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.New(logger.Options{Level: config.Logging.Level, Pretty: config.Logging.Pretty})

	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load device information")
	}
	log = log.With().Str("device_id", deviceInfo.GetDeviceID()).Logger()

	var mqttClient mqtt.MQTTClient
	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		mqttService := mqtt.NewMqttService(fileClient, log)
		if err := mqttService.Initialize(config.MQTT.Broker, clientID, config.MQTT.CACertificate, config.MQTT.ConnectTimeout); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		mqttClient = mqttService
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, deviceInfo,
		prometheus.DefaultRegisterer, prometheus.DefaultGatherer, log)
	if err := serviceRegistry.RegisterServices(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().
		Str("endpoint", config.Reporter.Endpoint).
		Dur("interval", config.Reporter.Interval).
		Str("source", config.Location.Source).
		Msg("All services started successfully")

	waitForShutdown(log, serviceRegistry)

	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
}

// waitForShutdown blocks until SIGINT/SIGTERM. SIGHUP triggers an immediate report.
func waitForShutdown(log zerolog.Logger, serviceRegistry *service_registry.ServiceRegistry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			log.Info().Msg("Received SIGHUP, reporting location now")
			go serviceRegistry.ReportService.ReportOnce()
			continue
		}
		break
	}

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Failed to stop services cleanly")
	}
}
