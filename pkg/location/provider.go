package location

import (
	"context"
	"errors"
)

// ErrNoLocation is returned by providers that could not produce a fix.
var ErrNoLocation = errors.New("no location available")

// Coordinate represents the geographical position of the device.
type Coordinate struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // provider specific, not reported
}

// Provider interface defines the methods for location providers
type Provider interface {
	GetLocation(ctx context.Context) (Coordinate, error)
	Close() error
}
