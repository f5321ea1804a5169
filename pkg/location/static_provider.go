package location

import "context"

// StaticProvider always returns the same coordinate. Used for fixed
// installations and for running the agent without positioning hardware.
type StaticProvider struct {
	coordinate Coordinate
}

// NewStaticProvider creates a provider for a fixed position.
func NewStaticProvider(latitude, longitude float64) *StaticProvider {
	return &StaticProvider{coordinate: Coordinate{Latitude: latitude, Longitude: longitude}}
}

func (s *StaticProvider) GetLocation(ctx context.Context) (Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	return s.coordinate, nil
}

func (s *StaticProvider) Close() error {
	return nil
}
