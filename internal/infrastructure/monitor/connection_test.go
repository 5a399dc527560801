package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_Refresh(t *testing.T) {
	tests := []struct {
		name        string
		checks      map[string]Check
		wantHealthy bool
		wantStatus  map[string]bool
	}{
		{
			name: "all up",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantHealthy: true,
			wantStatus:  map[string]bool{"postgres": true, "redis": true},
		},
		{
			name: "one down",
			checks: map[string]Check{
				"bolt":  func(context.Context) error { return nil },
				"genai": func(context.Context) error { return errors.New("unreachable") },
			},
			wantHealthy: false,
			wantStatus:  map[string]bool{"bolt": true, "genai": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.checks, 0, nil)
			assert.False(t, m.IsOnline(), "unknown before the first probe")

			m.Refresh()

			assert.Equal(t, tt.wantHealthy, m.IsOnline())
			status := m.GetStatus()
			assert.Equal(t, tt.wantStatus, status.Components)
			assert.False(t, status.LastCheck.IsZero())
		})
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m := New(map[string]Check{"bolt": func(context.Context) error { return nil }}, 0, nil)
	m.Start()
	assert.True(t, m.IsOnline())
	m.Stop()
	m.Stop()
}
