package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://taskboard:@localhost:5432/taskboard?sslmode=disable", cfg.Database.URL)
	assert.NotEmpty(t, cfg.JWT.Secret, "development gets a throwaway secret")
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "./assets/migrations", cfg.Migrations.Path)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "BOLT")
	t.Setenv("BOLTDB_PATH", "/tmp/tasks.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SESSION_TTL", "3600")
	t.Setenv("GENAI_FLOW_URL", "http://localhost:3400/suggestTaskTitle")
	t.Setenv("LIVE_PING_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.Store.Driver)
	assert.Equal(t, "/tmp/tasks.db", cfg.Bolt.Path)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "http://localhost:3400/suggestTaskTitle", cfg.GenAI.URL)
	assert.Equal(t, 5*time.Second, cfg.Live.PingInterval)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unknown driver",
			env:  map[string]string{"STORE_DRIVER": "mongo", "JWT_SECRET": "x"},
			want: `unknown STORE_DRIVER "mongo"`,
		},
		{
			name: "production without secret",
			env:  map[string]string{"APP_ENV": "production", "JWT_SECRET": ""},
			want: "JWT_SECRET is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
