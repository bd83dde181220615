package circuit_breaker

import (
	"errors"
	"sync"
	"time"
)

type Status uint8

const (
	Closed   Status = 1
	Open     Status = 2
	HalfOpen Status = 3
)

func (s Status) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

var ErrOpenCB = errors.New("circuit breaker is open")

type CircuitBreaker interface {
	Call(fn func() error) error
	State() Status
	Reset()
}

type Config struct {
	// Window is how many recent calls are tracked.
	Window int `yaml:"window" envconfig:"CB_WINDOW"`
	// FailureRatio of the window that opens the breaker.
	FailureRatio float64 `yaml:"failureRatio" envconfig:"CB_FAILURE_RATIO"`
	// Timeout an open breaker waits before letting a probe through.
	Timeout time.Duration `yaml:"timeout" envconfig:"CB_TIMEOUT"`
	// RecoveryCalls is how many successes in a row close a half-open breaker.
	RecoveryCalls int `yaml:"recoveryCalls" envconfig:"CB_RECOVERY_CALLS"`
}

type circuitBreaker struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	state    Status
	openedAt time.Time
	// failures is a ring buffer of the last Window outcomes.
	failures  []bool
	pos       int
	successes int
}

func New(cfg Config) CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 100
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.RecoveryCalls <= 0 {
		cfg.RecoveryCalls = 2
	}
	return &circuitBreaker{
		cfg:      cfg,
		now:      time.Now,
		state:    Closed,
		failures: make([]bool, cfg.Window),
	}
}

func (cb *circuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == Open {
		if cb.now().Sub(cb.openedAt) <= cb.cfg.Timeout {
			cb.mu.Unlock()
			return ErrOpenCB
		}
		cb.state = HalfOpen
		cb.successes = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures[cb.pos] = err != nil
	cb.pos = (cb.pos + 1) % len(cb.failures)

	if cb.state == HalfOpen {
		if err != nil {
			cb.trip()
			return err
		}
		cb.successes++
		if cb.successes >= cb.cfg.RecoveryCalls {
			cb.reset()
		}
		return nil
	}

	fails := 0
	for _, failed := range cb.failures {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(len(cb.failures)) >= cb.cfg.FailureRatio {
		cb.trip()
	}
	return err
}

func (cb *circuitBreaker) State() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *circuitBreaker) trip() {
	cb.state = Open
	cb.successes = 0
	cb.openedAt = cb.now()
}

func (cb *circuitBreaker) reset() {
	for i := range cb.failures {
		cb.failures[i] = false
	}
	cb.successes = 0
	cb.pos = 0
	cb.state = Closed
}
