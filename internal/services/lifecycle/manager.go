package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager runs the long-lived services of the process, coordinates their
// graceful shutdown and reacts to OS signals.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook

	wg     sync.WaitGroup
	errsMu sync.Mutex
	errs   []error
	failed chan struct{}
	once   sync.Once
}

// New creates a lifecycle manager with the desired timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
		failed:  make(chan struct{}),
	}
}

// Go runs a blocking service such as a listener. A service that returns an
// error closes Failed so the process can begin shutting down.
func (m *Manager) Go(name string, run func() error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("component started", zap.String("component", name))
		if err := run(); err != nil {
			m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
			m.errsMu.Lock()
			m.errs = append(m.errs, err)
			m.errsMu.Unlock()
			m.once.Do(func() { close(m.failed) })
		}
	}()
}

// Failed is closed once any service started with Go fails.
func (m *Manager) Failed() <-chan struct{} {
	return m.failed
}

// Wait blocks until every service started with Go has returned and reports
// their failures.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.errsMu.Lock()
	defer m.errsMu.Unlock()
	return errors.Join(m.errs...)
}

// Register adds a shutdown hook. Hooks are executed in reverse order.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown executes all registered hooks, respecting the configured timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result error
	for i := len(m.hooks) - 1; i >= 0; i-- {
		h := m.hooks[i]
		if err := h.fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", h.name))
	}
	return result
}

// Listen invokes cancel once an OS termination signal is received.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
