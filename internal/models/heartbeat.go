package models

import "time"

// Heartbeat is the periodic agent status published over MQTT.
type Heartbeat struct {
	DeviceID          string    `json:"device_id"`
	Timestamp         time.Time `json:"timestamp"`
	Status            string    `json:"status"`
	Endpoint          string    `json:"endpoint"`
	Scheduled         bool      `json:"scheduled"`
	Interval          string    `json:"interval,omitempty"`
	LocationAvailable bool      `json:"location_available"`
}
