package services

import (
	"errors"

	"github.com/benmeehan/geo-reporter/internal/constants"
	"github.com/benmeehan/geo-reporter/internal/metrics"
	"github.com/benmeehan/geo-reporter/pkg/reporter"
	"github.com/rs/zerolog"
)

// LogDelegate writes every report outcome to the logger.
type LogDelegate struct {
	Logger zerolog.Logger
}

func (d *LogDelegate) DidReport(lat, lon float64, body []byte) {
	d.Logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("response_size", len(body)).
		Msg("Location reported")
}

func (d *LogDelegate) DidFailToReport(lat, lon float64, err error) {
	d.Logger.Error().
		Err(err).
		Float64("lat", lat).
		Float64("lon", lon).
		Str("reason", FailureReason(err)).
		Msg("Location report failed")
}

// MetricsDelegate counts report outcomes.
type MetricsDelegate struct{}

func (MetricsDelegate) DidReport(lat, lon float64, _ []byte) {
	metrics.ReportsTotal.WithLabelValues(constants.ReportStatusSuccess, "").Inc()
	if lat == 0 && lon == 0 {
		metrics.ZeroPositionReportsTotal.Inc()
	}
}

func (MetricsDelegate) DidFailToReport(_, _ float64, err error) {
	metrics.ReportsTotal.WithLabelValues(constants.ReportStatusFailure, FailureReason(err)).Inc()
}

// MultiDelegate forwards each outcome to every delegate in order.
type MultiDelegate []ReportDelegate

func (m MultiDelegate) DidReport(lat, lon float64, body []byte) {
	for _, d := range m {
		d.DidReport(lat, lon, body)
	}
}

func (m MultiDelegate) DidFailToReport(lat, lon float64, err error) {
	for _, d := range m {
		d.DidFailToReport(lat, lon, err)
	}
}

// FailureReason maps a report error to a short label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, reporter.ErrInvalidEndpoint):
		return constants.ReasonInvalidEndpoint
	case errors.Is(err, reporter.ErrSerialization):
		return constants.ReasonSerialization
	case errors.Is(err, reporter.ErrEmptyResponseBody):
		return constants.ReasonEmptyBody
	default:
		return constants.ReasonUnknown
	}
}
