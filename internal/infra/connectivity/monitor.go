// Package connectivity tracks whether the CRM's backends are reachable.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrTimeout is recorded when a probe does not answer within the timeout.
var ErrTimeout = errors.New("connectivity probe timed out")

// Probe checks one backend.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProbeResult is the last outcome of one probe.
type ProbeResult struct {
	Name      string        `json:"name"`
	Online    bool          `json:"online"`
	Latency   time.Duration `json:"latency"`
	LastError string        `json:"lastError,omitempty"`
}

// Status is the monitor's cached view.
type Status struct {
	Online      bool          `json:"online"`
	LastChecked time.Time     `json:"lastChecked"`
	LastError   string        `json:"lastError,omitempty"`
	Probes      []ProbeResult `json:"probes"`
}

// Monitor throttles probes to one per interval and shares an in-flight
// probe between concurrent callers.
type Monitor struct {
	probes   []Probe
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	status  Status
	checked bool
}

// NewMonitor creates a monitor. A probe counts as offline if it fails or
// does not answer within timeout.
func NewMonitor(interval, timeout time.Duration, logger *zap.Logger, probes ...Probe) *Monitor {
	return &Monitor{
		probes:   probes,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Check returns the cached status when the last check is younger than the
// interval, unless force is set.
func (m *Monitor) Check(ctx context.Context, force bool) Status {
	if !force {
		m.mu.RLock()
		fresh := m.checked && m.now().Sub(m.status.LastChecked) < m.interval
		st := m.status
		m.mu.RUnlock()
		if fresh {
			return st
		}
	}

	// The check is shared, so one caller giving up must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, _, _ := m.group.Do("check", func() (any, error) {
		return m.probe(shared), nil
	})
	return v.(Status)
}

// Status returns the last recorded status without probing.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Start re-checks every interval until ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx, true)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx, true)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) Status {
	results := make([]ProbeResult, len(m.probes))
	var wg sync.WaitGroup
	for i, p := range m.probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			results[i] = m.run(ctx, p)
		}(i, p)
	}
	wg.Wait()

	st := Status{Online: true, LastChecked: m.now(), Probes: results}
	for _, r := range results {
		if !r.Online {
			st.Online = false
			if st.LastError == "" {
				st.LastError = fmt.Sprintf("%s: %s", r.Name, r.LastError)
			}
		}
	}

	m.mu.Lock()
	prev := m.status
	m.status = st
	m.checked = true
	m.mu.Unlock()

	if prev.Online != st.Online || !prev.LastChecked.IsZero() && st.LastError != prev.LastError {
		m.logger.Info("connectivity: status changed",
			zap.Bool("online", st.Online),
			zap.String("error", st.LastError),
		)
	}
	return st
}

// run races one probe against the timeout.
func (m *Monitor) run(ctx context.Context, p Probe) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.now()
	errc := make(chan error, 1)
	go func() { errc <- p.Check(ctx) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ErrTimeout
	}

	r := ProbeResult{Name: p.Name, Online: err == nil, Latency: m.now().Sub(start)}
	if err != nil {
		r.LastError = err.Error()
	}
	return r
}
