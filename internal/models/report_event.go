package models

import "time"

// ReportEvent describes the outcome of one location report attempt.
type ReportEvent struct {
	DeviceID     string    `json:"device_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
	ResponseSize int       `json:"response_size,omitempty"`
}
