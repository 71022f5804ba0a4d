package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState represents the state of a host circuit breaker.
type BreakerState int

const (
	// BreakerClosed is the normal operating state.
	BreakerClosed BreakerState = iota
	// BreakerOpen means the host keeps failing and fetches are rejected.
	BreakerOpen
	// BreakerHalfOpen allows a single probe fetch to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a fetch is rejected because the host's
// breaker is open.
var ErrBreakerOpen = eris.New("host breaker is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe fetch. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count toward the threshold. If nil,
	// every error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called with the host on each transition.
	OnStateChange func(host string, from, to BreakerState)
}

// DefaultBreakerConfig returns sensible defaults for batch fetching.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// FromBreakerConfig builds a BreakerConfig from raw config values.
func FromBreakerConfig(failureThreshold, resetTimeoutSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}

// breaker tracks failures for a single host.
type breaker struct {
	host string
	cfg  BreakerConfig

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailureTime     time.Time

	nowFunc func() time.Time
}

// HostBreakers guards fetches per host so one dead site cannot burn the
// whole batch's retry budget.
type HostBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*breaker
	cfg      BreakerConfig
	nowFunc  func() time.Time
}

// NewHostBreakers creates a registry of per-host circuit breakers.
func NewHostBreakers(cfg BreakerConfig) *HostBreakers {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &HostBreakers{
		breakers: make(map[string]*breaker),
		cfg:      cfg,
		nowFunc:  time.Now,
	}
}

// Allow reports whether a fetch against host may proceed. It returns
// ErrBreakerOpen while the host's breaker is open and the reset timeout has
// not elapsed.
func (hb *HostBreakers) Allow(host string) error {
	b := hb.get(host)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.nowFunc().Sub(b.lastFailureTime) >= b.cfg.ResetTimeout {
			b.transition(BreakerHalfOpen)
			return nil // probe fetch
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

// Record feeds a fetch outcome for host into its breaker.
func (hb *HostBreakers) Record(host string, err error) {
	b := hb.get(host)
	b.mu.Lock()
	defer b.mu.Unlock()

	shouldTrip := b.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}

	if err == nil || !shouldTrip(err) {
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailureTime = b.nowFunc()

	switch b.state {
	case BreakerClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		// A failed probe reopens the breaker.
		b.transition(BreakerOpen)
	}
}

// State returns the current state of the host's breaker.
func (hb *HostBreakers) State(host string) BreakerState {
	b := hb.get(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailureTime) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// States returns a snapshot of every tracked host's state.
func (hb *HostBreakers) States() map[string]BreakerState {
	hb.mu.RLock()
	hosts := make([]string, 0, len(hb.breakers))
	for h := range hb.breakers {
		hosts = append(hosts, h)
	}
	hb.mu.RUnlock()

	states := make(map[string]BreakerState, len(hosts))
	for _, h := range hosts {
		states[h] = hb.State(h)
	}
	return states
}

func (hb *HostBreakers) get(host string) *breaker {
	hb.mu.RLock()
	b, ok := hb.breakers[host]
	hb.mu.RUnlock()
	if ok {
		return b
	}

	hb.mu.Lock()
	defer hb.mu.Unlock()
	if b, ok = hb.breakers[host]; ok {
		return b
	}
	b = &breaker{host: host, cfg: hb.cfg, state: BreakerClosed, nowFunc: hb.nowFunc}
	hb.breakers[host] = b
	return b
}

func (b *breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.host, from, to)
	}
}
