package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check probes one backing component.
type Check func(ctx context.Context) error

// Status is the latest probe result of every component.
type Status struct {
	Components map[string]bool `json:"components"`
	LastCheck  time.Time       `json:"last_check"`
}

// Healthy reports whether every component answered its last probe.
func (s Status) Healthy() bool {
	for _, ok := range s.Components {
		if !ok {
			return false
		}
	}
	return !s.LastCheck.IsZero()
}

type Monitor struct {
	checks   map[string]Check
	timeout  time.Duration
	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(checks map[string]Check, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		timeout:  3 * time.Second,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components := make(map[string]bool, len(m.status.Components))
	for name, ok := range m.status.Components {
		components[name] = ok
	}
	return Status{Components: components, LastCheck: m.status.LastCheck}
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every component once.
func (m *Monitor) Refresh() {
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := Status{Components: make(map[string]bool, len(names))}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err := m.checks[name](ctx)
		cancel()
		if err != nil {
			m.logger.Warn("component check failed", zap.String("component", name), zap.Error(err))
		}
		status.Components[name] = err == nil
	}
	status.LastCheck = time.Now()

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
