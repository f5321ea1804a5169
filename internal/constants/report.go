package constants

import "time"

// Report outcomes, used in published events and metric labels
const (
	// ReportStatusSuccess indicates that the endpoint returned a body
	ReportStatusSuccess = "success"
	// ReportStatusFailure indicates that the attempt ended in a report error
	ReportStatusFailure = "failure"
)

// Failure reasons
const (
	ReasonInvalidEndpoint = "invalid_endpoint"
	ReasonSerialization   = "serialization"
	ReasonEmptyBody       = "empty_body"
	ReasonUnknown         = "unknown"
)

const (
	// DefaultReportInterval is used when the config leaves the interval unset.
	DefaultReportInterval = 60 * time.Second

	// DefaultLocationRequestTimeout bounds a single one-shot location request.
	DefaultLocationRequestTimeout = 30 * time.Second

	// DefaultPublishTimeout bounds waiting for an MQTT publish acknowledgement.
	DefaultPublishTimeout = 5 * time.Second
)
