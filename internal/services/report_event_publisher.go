package services

import (
	"encoding/json"
	"time"

	"github.com/benmeehan/geo-reporter/internal/constants"
	"github.com/benmeehan/geo-reporter/internal/models"
	"github.com/benmeehan/geo-reporter/pkg/identity"
	"github.com/benmeehan/geo-reporter/pkg/mqtt"
	"github.com/rs/zerolog"
)

// ReportEventPublisher mirrors report outcomes to an MQTT topic.
type ReportEventPublisher struct {
	PubTopic       string
	QOS            int
	PublishTimeout time.Duration
	DeviceInfo     identity.DeviceInfoInterface
	MqttClient     mqtt.MQTTClient
	Logger         zerolog.Logger
}

// NewReportEventPublisher initializes a new ReportEventPublisher.
func NewReportEventPublisher(pubTopic string, qos int, deviceInfo identity.DeviceInfoInterface,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *ReportEventPublisher {
	return &ReportEventPublisher{
		PubTopic:       pubTopic,
		QOS:            qos,
		PublishTimeout: constants.DefaultPublishTimeout,
		DeviceInfo:     deviceInfo,
		MqttClient:     mqttClient,
		Logger:         logger,
	}
}

func (p *ReportEventPublisher) DidReport(lat, lon float64, body []byte) {
	p.publish(models.ReportEvent{
		Latitude:     lat,
		Longitude:    lon,
		Status:       constants.ReportStatusSuccess,
		ResponseSize: len(body),
	})
}

func (p *ReportEventPublisher) DidFailToReport(lat, lon float64, err error) {
	p.publish(models.ReportEvent{
		Latitude:  lat,
		Longitude: lon,
		Status:    constants.ReportStatusFailure,
		Reason:    FailureReason(err),
		Error:     err.Error(),
	})
}

func (p *ReportEventPublisher) publish(event models.ReportEvent) {
	event.DeviceID = p.DeviceInfo.GetDeviceID()
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		p.Logger.Error().Err(err).Msg("Failed to serialize report event")
		return
	}

	token := p.MqttClient.Publish(p.PubTopic, byte(p.QOS), false, payload)
	if !token.WaitTimeout(p.PublishTimeout) {
		p.Logger.Warn().Str("topic", p.PubTopic).Msg("Timed out publishing report event")
		return
	}
	if err := token.Error(); err != nil {
		p.Logger.Error().Err(err).Str("topic", p.PubTopic).Msg("Failed to publish report event")
		return
	}
	p.Logger.Debug().Str("topic", p.PubTopic).Str("status", event.Status).Msg("Report event published")
}
