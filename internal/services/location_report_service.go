package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benmeehan/geo-reporter/pkg/location"
	"github.com/benmeehan/geo-reporter/pkg/reporter"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidInterval = errors.New("report interval must be positive")
	ErrServiceClosed   = errors.New("location report service is closed")
)

// ReportDelegate receives the outcome of every completed report attempt,
// together with the coordinate that was actually sent.
type ReportDelegate interface {
	DidReport(lat, lon float64, body []byte)
	DidFailToReport(lat, lon float64, err error)
}

// ReportSender posts a single report. Implemented by *reporter.Reporter.
type ReportSender interface {
	Send(ctx context.Context, endpoint string, report reporter.Report, onSuccess reporter.SuccessFunc, onFailure reporter.FailureFunc)
}

// LocationReportService periodically reports the device position to an HTTP endpoint.
// When the location source is unavailable it reports position (0, 0) instead.
//
// A one-shot location request that is still unresolved when the next tick
// fires is not de-duplicated: both may end up reporting.
type LocationReportService struct {
	// Configuration fields
	interval      time.Duration
	reportOnStart bool

	// Dependencies
	sender   ReportSender
	source   location.Source
	delegate ReportDelegate
	logger   zerolog.Logger

	configMu sync.RWMutex
	endpoint string
	ext      string

	// Timer state; cancel is non-nil while Scheduled.
	timerMu        sync.Mutex
	cancel         context.CancelFunc
	activeInterval time.Duration
	wg             sync.WaitGroup

	// baseCtx bounds every send and is cancelled by Close.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	lifecycleMu sync.RWMutex
	closed      bool
}

// NewLocationReportService creates a new LocationReportService in the Idle state.
func NewLocationReportService(endpoint, ext string, interval time.Duration, reportOnStart bool,
	sender ReportSender, source location.Source, delegate ReportDelegate, logger zerolog.Logger) *LocationReportService {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocationReportService{
		interval:      interval,
		reportOnStart: reportOnStart,
		sender:        sender,
		source:        source,
		delegate:      delegate,
		logger:        logger,
		endpoint:      endpoint,
		ext:           ext,
		baseCtx:       ctx,
		baseCancel:    cancel,
	}
}

// Configure replaces both the endpoint and the ext payload.
func (l *LocationReportService) Configure(endpoint, ext string) {
	l.configMu.Lock()
	defer l.configMu.Unlock()
	l.endpoint = endpoint
	l.ext = ext
}

func (l *LocationReportService) SetEndpoint(endpoint string) {
	l.configMu.Lock()
	defer l.configMu.Unlock()
	l.endpoint = endpoint
}

func (l *LocationReportService) SetExt(ext string) {
	l.configMu.Lock()
	defer l.configMu.Unlock()
	l.ext = ext
}

func (l *LocationReportService) Endpoint() string {
	l.configMu.RLock()
	defer l.configMu.RUnlock()
	return l.endpoint
}

func (l *LocationReportService) Ext() string {
	l.configMu.RLock()
	defer l.configMu.RUnlock()
	return l.ext
}

// Start arms the configured interval and optionally reports once right away.
func (l *LocationReportService) Start() error {
	if l.IsScheduled() {
		l.logger.Warn().Msg("LocationReportService is already running")
		return errors.New("location report service is already running")
	}
	return l.schedule(l.interval, l.reportOnStart)
}

// Stop tears the service down. See Close.
func (l *LocationReportService) Stop() error {
	return l.Close()
}

// StartUpdatingLocation reports every interval, replacing any existing schedule.
// Each tick reports on its own goroutine, so a slow endpoint does not hold
// back later ticks.
func (l *LocationReportService) StartUpdatingLocation(interval time.Duration) error {
	return l.schedule(interval, false)
}

func (l *LocationReportService) schedule(interval time.Duration, reportNow bool) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	// Checked under timerMu so Close, which takes timerMu before waiting,
	// never races a new goroutine.
	l.timerMu.Lock()
	defer l.timerMu.Unlock()

	if l.isClosed() {
		return ErrServiceClosed
	}

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(l.baseCtx)
	l.cancel = cancel
	l.activeInterval = interval

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runTicker(ctx, interval)
	}()

	if reportNow {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.ReportOnce()
		}()
	}

	l.logger.Info().Dur("interval", interval).Str("endpoint", l.Endpoint()).Msg("Location reporting scheduled")
	return nil
}

// StopUpdatingLocation cancels the schedule. Safe to call when Idle.
func (l *LocationReportService) StopUpdatingLocation() {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()

	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.activeInterval = 0
	l.logger.Info().Msg("Location reporting stopped")
}

// IsScheduled reports whether a repeating schedule is armed.
func (l *LocationReportService) IsScheduled() bool {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	return l.cancel != nil
}

// Interval returns the period of the armed schedule, or zero when Idle.
func (l *LocationReportService) Interval() time.Duration {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	return l.activeInterval
}

// LocationAvailable reports whether the next report would carry a real position.
func (l *LocationReportService) LocationAvailable() bool {
	return l.source.CheckAvailable()
}

func (l *LocationReportService) runTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A replaced schedule may still see one buffered tick.
			if ctx.Err() != nil {
				return
			}
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				l.ReportOnce()
			}()
		case <-ctx.Done():
			return
		}
	}
}

// ReportOnce reports the current position once, independently of the schedule.
// If the source is unavailable position (0, 0) is sent immediately. Otherwise a
// one-shot fix is requested and reported when it arrives; a fix that never
// arrives produces no report.
func (l *LocationReportService) ReportOnce() {
	if l.isClosed() {
		return
	}

	if !l.source.CheckAvailable() {
		l.logger.Debug().Msg("Location unavailable, reporting zero position")
		l.send(0, 0)
		return
	}

	l.source.RequestOneShotLocation(l.ReportLocation)
}

// ReportLocation sends the given coordinate right away. It is the entry
// point for location-change events.
func (l *LocationReportService) ReportLocation(coord location.Coordinate) {
	if l.isClosed() {
		return
	}
	l.send(coord.Latitude, coord.Longitude)
}

// RequestLocationWhenInUse asks the source for when-in-use authorization.
func (l *LocationReportService) RequestLocationWhenInUse() {
	l.source.RequestAuthorization(location.WhenInUse)
}

// RequestLocationAlways asks the source for always authorization.
func (l *LocationReportService) RequestLocationAlways() {
	l.source.RequestAuthorization(location.Always)
}

func (l *LocationReportService) send(lat, lon float64) {
	endpoint, ext := l.currentConfig()
	report := reporter.Report{Latitude: lat, Longitude: lon, Ext: ext}

	l.sender.Send(l.baseCtx, endpoint, report,
		func(body []byte, transportErr error) {
			if transportErr != nil {
				l.logger.Warn().Err(transportErr).Str("endpoint", endpoint).
					Msg("Report delivered a body despite a transport error")
			}
			l.deliver(func(d ReportDelegate) { d.DidReport(lat, lon, body) })
		},
		func(err error) {
			l.logger.Error().Err(err).Str("endpoint", endpoint).
				Float64("lat", lat).Float64("lon", lon).
				Msg("Failed to report location")
			l.deliver(func(d ReportDelegate) { d.DidFailToReport(lat, lon, err) })
		},
	)
}

func (l *LocationReportService) currentConfig() (string, string) {
	l.configMu.RLock()
	defer l.configMu.RUnlock()
	return l.endpoint, l.ext
}

// deliver holds the lifecycle read lock for the duration of the callback so
// that Close cannot return while a delegate call is running.
func (l *LocationReportService) deliver(call func(ReportDelegate)) {
	l.lifecycleMu.RLock()
	defer l.lifecycleMu.RUnlock()
	if l.closed || l.delegate == nil {
		return
	}
	call(l.delegate)
}

// Close cancels the schedule and in-flight sends, closes the location source
// when it is closable and waits for the ticker and its reports to exit.
// No delegate method is called after Close returns. Close must not be
// called from a delegate callback.
func (l *LocationReportService) Close() error {
	l.lifecycleMu.Lock()
	if l.closed {
		l.lifecycleMu.Unlock()
		return nil
	}
	l.closed = true
	l.lifecycleMu.Unlock()

	l.StopUpdatingLocation()
	l.baseCancel()

	// The source goes first: ticks may be blocked on a one-shot request.
	var closeErr error
	if closer, ok := l.source.(io.Closer); ok {
		if closeErr = closer.Close(); closeErr != nil {
			l.logger.Error().Err(closeErr).Msg("Failed to close location source")
		}
	}
	l.wg.Wait()

	if closeErr != nil {
		return closeErr
	}
	l.logger.Info().Msg("LocationReportService stopped")
	return nil
}

func (l *LocationReportService) isClosed() bool {
	l.lifecycleMu.RLock()
	defer l.lifecycleMu.RUnlock()
	return l.closed
}
