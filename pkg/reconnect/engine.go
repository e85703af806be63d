package reconnect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/provlink/provlink-go/pkg/netif"
)

// Engine errors.
var (
	ErrNotStarted     = errors.New("reconnect engine not started")
	ErrAlreadyStarted = errors.New("reconnect engine already started")
)

// Station is the connection surface the engine drives. Satisfied by
// *netif.SimNetwork and by real network stacks.
type Station interface {
	Connect(ctx context.Context) error
	IsConnected() bool
}

// BackoffConfig configures exponential backoff between connection
// attempts.
type BackoffConfig struct {
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration

	// MaxInterval is the maximum retry delay.
	MaxInterval time.Duration

	// Multiplier is the backoff multiplier (e.g., 2.0 for doubling).
	Multiplier float64

	// MaxRetries is the maximum number of retries per resume
	// (0 = unlimited).
	MaxRetries int
}

// DefaultBackoffConfig returns sensible backoff defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     5 * time.Minute,
		Multiplier:      2.0,
		MaxRetries:      0,
	}
}

// Config configures an Engine.
type Config struct {
	// Backoff configures retry timing.
	Backoff BackoffConfig

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Engine retries the station connection until it holds. It is idle
// until resumed.
type Engine struct {
	mu sync.Mutex

	station Station
	cfg     Config

	started  bool
	resumeCh chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates an engine for the given station.
func NewEngine(station Station, cfg Config) *Engine {
	if cfg.Backoff.InitialInterval == 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return &Engine{
		station:  station,
		cfg:      cfg,
		resumeCh: make(chan struct{}, 1),
	}
}

// Start arms the engine. It must be called before any connection
// attempt is requested; no attempt is made until Resume.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.started = true

	go e.run(ctx)
	return nil
}

// Resume asks the engine to (re)attempt the connection. A no-op when
// there is nothing to connect to.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}

	select {
	case e.resumeCh <- struct{}{}:
	default:
		// A resume is already pending.
	}
	return nil
}

// Stop shuts the engine down and waits for the run loop to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.resumeCh:
			e.attempt(ctx)
		}
	}
}

// attempt retries the connection with exponential backoff until it
// succeeds, the retry budget is exhausted, or the engine is stopped.
// ErrNoCredentials ends the attempt immediately: resuming with no
// configuration is legal and simply does nothing.
func (e *Engine) attempt(ctx context.Context) {
	backoff := e.cfg.Backoff
	delay := backoff.InitialInterval

	for retry := 0; ; retry++ {
		if e.station.IsConnected() {
			return
		}

		err := e.station.Connect(ctx)
		if err == nil {
			e.debugLog("station connected", "retries", retry)
			return
		}
		if errors.Is(err, netif.ErrNoCredentials) {
			e.debugLog("no credentials, nothing to connect to")
			return
		}
		if ctx.Err() != nil {
			return
		}

		e.debugLog("connection attempt failed", "retry", retry, "err", err)

		if backoff.MaxRetries > 0 && retry >= backoff.MaxRetries-1 {
			e.debugLog("retry budget exhausted", "retries", backoff.MaxRetries)
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}

		delay = time.Duration(float64(delay) * backoff.Multiplier)
		if delay > backoff.MaxInterval {
			delay = backoff.MaxInterval
		}
	}
}

func (e *Engine) debugLog(msg string, args ...any) {
	if e.cfg.Logger != nil {
		e.cfg.Logger.Debug(msg, args...)
	}
}
