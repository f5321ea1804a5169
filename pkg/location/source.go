package location

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// AuthorizationStatus is the permission state of the reporting process.
type AuthorizationStatus string

const (
	StatusNotDetermined       AuthorizationStatus = "not_determined"
	StatusRestricted          AuthorizationStatus = "restricted"
	StatusDenied              AuthorizationStatus = "denied"
	StatusAuthorizedAlways    AuthorizationStatus = "always"
	StatusAuthorizedWhenInUse AuthorizationStatus = "when_in_use"
)

// AuthorizationLevel is the permission requested from the source.
type AuthorizationLevel int

const (
	WhenInUse AuthorizationLevel = iota
	Always
)

func (l AuthorizationLevel) String() string {
	if l == Always {
		return "always"
	}
	return "when_in_use"
}

// ParseAuthorizationStatus maps a config value to a status. Empty means not determined.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, error) {
	switch status := AuthorizationStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case "":
		return StatusNotDetermined, nil
	case StatusNotDetermined, StatusRestricted, StatusDenied, StatusAuthorizedAlways, StatusAuthorizedWhenInUse:
		return status, nil
	default:
		return "", fmt.Errorf("unknown authorization status %q", s)
	}
}

// Authorized reports whether the status allows reading the position.
func (s AuthorizationStatus) Authorized() bool {
	return s == StatusAuthorizedAlways || s == StatusAuthorizedWhenInUse
}

// Source is the positioning capability consumed by the report scheduler.
type Source interface {
	// CheckAvailable returns true iff location services are enabled and
	// the current authorization is always or when-in-use.
	CheckAvailable() bool
	// RequestOneShotLocation asks for a single fix. onResult is called at
	// most once, on an arbitrary goroutine; it is never called if the fix fails.
	RequestOneShotLocation(onResult func(Coordinate))
	// RequestAuthorization asks for the given permission level.
	RequestAuthorization(level AuthorizationLevel)
}

// Dispatcher runs one-shot requests off the caller's goroutine. Submit
// must return once ctx is done, even when the task was not queued.
type Dispatcher interface {
	Submit(ctx context.Context, task func()) error
}

// SourceOptions configures a ProviderSource.
type SourceOptions struct {
	Enabled        bool
	Status         AuthorizationStatus
	GrantPrompts   bool          // RequestAuthorization grants instead of denying
	RequestTimeout time.Duration // per one-shot request, zero means none
}

// ProviderSource turns a Provider into a Source.
type ProviderSource struct {
	provider   Provider
	dispatcher Dispatcher
	opts       SourceOptions
	logger     zerolog.Logger

	mu      sync.RWMutex
	enabled bool
	status  AuthorizationStatus
	closed  bool

	ctx     context.Context
	cancel  context.CancelFunc
	pending cmap.ConcurrentMap[string, time.Time]
}

// NewProviderSource creates a Source reading fixes from provider on dispatcher.
func NewProviderSource(provider Provider, dispatcher Dispatcher, opts SourceOptions, logger zerolog.Logger) *ProviderSource {
	ctx, cancel := context.WithCancel(context.Background())
	status := opts.Status
	if status == "" {
		status = StatusNotDetermined
	}
	return &ProviderSource{
		provider:   provider,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		enabled:    opts.Enabled,
		status:     status,
		ctx:        ctx,
		cancel:     cancel,
		pending:    cmap.New[time.Time](),
	}
}

func (s *ProviderSource) CheckAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.enabled && s.status.Authorized()
}

func (s *ProviderSource) RequestOneShotLocation(onResult func(Coordinate)) {
	if s.isClosed() {
		return
	}

	id := uuid.NewString()
	if n := s.pending.Count(); n > 0 {
		s.logger.Warn().Int("pending", n).Str("request_id", id).
			Msg("Requesting location while earlier requests are unresolved")
	}
	s.pending.Set(id, time.Now())

	err := s.dispatcher.Submit(s.ctx, func() {
		defer s.pending.Remove(id)

		ctx := s.ctx
		if s.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
			defer cancel()
		}

		coord, err := s.provider.GetLocation(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("request_id", id).Msg("One-shot location request failed")
			return
		}
		if s.isClosed() {
			return
		}
		s.logger.Debug().Str("request_id", id).
			Float64("lat", coord.Latitude).
			Float64("lon", coord.Longitude).
			Float64("accuracy", coord.Accuracy).
			Msg("Location fix received")
		onResult(coord)
	})
	if err != nil {
		s.pending.Remove(id)
		if s.ctx.Err() != nil {
			s.logger.Debug().Str("request_id", id).Msg("Location request dropped, source closed")
			return
		}
		s.logger.Error().Err(err).Str("request_id", id).Msg("Failed to dispatch location request")
	}
}

// RequestAuthorization behaves like an OS permission prompt: it is only
// answered while the status is not determined.
func (s *ProviderSource) RequestAuthorization(level AuthorizationLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusNotDetermined {
		s.logger.Debug().Str("status", string(s.status)).Str("requested", level.String()).
			Msg("Authorization already determined")
		return
	}
	if !s.opts.GrantPrompts {
		s.status = StatusDenied
	} else if level == Always {
		s.status = StatusAuthorizedAlways
	} else {
		s.status = StatusAuthorizedWhenInUse
	}
	s.logger.Info().Str("status", string(s.status)).Str("requested", level.String()).Msg("Location authorization updated")
}

// SetEnabled toggles location services globally.
func (s *ProviderSource) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetStatus overrides the authorization status, e.g. when revoked by an operator.
func (s *ProviderSource) SetStatus(status AuthorizationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *ProviderSource) Status() AuthorizationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Pending returns the number of one-shot requests that have not resolved.
func (s *ProviderSource) Pending() int {
	return s.pending.Count()
}

// Close aborts in-flight requests, drops their results and closes the provider.
func (s *ProviderSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if err := s.provider.Close(); err != nil {
		return fmt.Errorf("failed to close location provider: %w", err)
	}
	return nil
}

func (s *ProviderSource) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
