package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotRegistered is returned for a command or query name without a handler.
var ErrNotRegistered = errors.New("handler not registered")

type CommandHandler func(ctx context.Context, payload interface{}) (interface{}, error)
type QueryHandler func(ctx context.Context, params interface{}) (interface{}, error)

// Dispatcher routes named commands and queries to their handlers.
type Dispatcher struct {
	cmdHandlers map[string]CommandHandler
	qryHandlers map[string]QueryHandler
	mu          sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		cmdHandlers: make(map[string]CommandHandler),
		qryHandlers: make(map[string]QueryHandler),
	}
}

func (d *Dispatcher) RegisterCommand(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdHandlers[name] = handler
}

func (d *Dispatcher) RegisterQuery(name string, handler QueryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.qryHandlers[name] = handler
}

func (d *Dispatcher) ExecuteCommand(ctx context.Context, name string, payload interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.cmdHandlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("command %s: %w", name, ErrNotRegistered)
	}
	return handler(ctx, payload)
}

func (d *Dispatcher) ExecuteQuery(ctx context.Context, name string, params interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.qryHandlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("query %s: %w", name, ErrNotRegistered)
	}
	return handler(ctx, params)
}

// Execute runs name as a command, falling back to a query of the same name.
func (d *Dispatcher) Execute(ctx context.Context, name string, payload interface{}) (interface{}, error) {
	result, err := d.ExecuteCommand(ctx, name, payload)
	if errors.Is(err, ErrNotRegistered) {
		return d.ExecuteQuery(ctx, name, payload)
	}
	return result, err
}
