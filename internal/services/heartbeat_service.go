package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/geo-reporter/internal/constants"
	"github.com/benmeehan/geo-reporter/internal/models"
	"github.com/benmeehan/geo-reporter/pkg/identity"
	"github.com/benmeehan/geo-reporter/pkg/mqtt"
	"github.com/rs/zerolog"
)

// ReporterState is the scheduler state carried by each heartbeat.
// Implemented by *LocationReportService.
type ReporterState interface {
	Endpoint() string
	IsScheduled() bool
	Interval() time.Duration
	LocationAvailable() bool
}

// HeartbeatService manages periodic heartbeat messages.
type HeartbeatService struct {
	PubTopic       string
	Interval       time.Duration
	QOS            int
	PublishTimeout time.Duration
	DeviceInfo     identity.DeviceInfoInterface
	State          ReporterState
	MqttClient     mqtt.MQTTClient
	Logger         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, qos int, deviceInfo identity.DeviceInfoInterface,
	state ReporterState, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:       pubTopic,
		Interval:       interval,
		QOS:            qos,
		PublishTimeout: constants.DefaultPublishTimeout,
		DeviceInfo:     deviceInfo,
		State:          state,
		MqttClient:     mqttClient,
		Logger:         logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publish()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) publish() {
	heartbeat := models.Heartbeat{
		DeviceID:          h.DeviceInfo.GetDeviceID(),
		Timestamp:         time.Now().UTC(),
		Status:            constants.StatusAlive,
		Endpoint:          h.State.Endpoint(),
		Scheduled:         h.State.IsScheduled(),
		LocationAvailable: h.State.LocationAvailable(),
	}
	if interval := h.State.Interval(); interval > 0 {
		heartbeat.Interval = interval.String()
	}

	payload, err := json.Marshal(heartbeat)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	if !token.WaitTimeout(h.PublishTimeout) {
		h.Logger.Warn().Str("topic", h.PubTopic).Msg("Timed out publishing heartbeat")
		return
	}
	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
		return
	}
	h.Logger.Debug().Msg("Heartbeat published successfully")
}
