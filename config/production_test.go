package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "db", Port: 5432, Name: "ams", User: "ams", Password: "secret", SSLMode: "disable"},
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		Security: SecurityConfig{AuthRateLimit: 10, GlobalRateLimit: 100},
		JWT: JWTConfig{
			SecretKey:       "0123456789abcdef0123456789abcdef",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			Issuer:          "ams-registry",
			Audience:        "ams-registry-api",
		},
		Logging:    LoggingConfig{Level: "info", Output: "stdout"},
		Cache:      CacheConfig{Provider: "redis"},
		Allocation: AllocationConfig{LockBackend: LockBackendPostgres, LockTimeout: 5 * time.Second, FillPolicy: "lowest_free", SweepEnabled: true, SweepInterval: time.Minute},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *ProductionConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ProductionConfig) {}},
		{name: "missing db password", mutate: func(c *ProductionConfig) { c.Database.Password = "" }, wantErr: "DB_PASSWORD is required"},
		{name: "short jwt secret", mutate: func(c *ProductionConfig) { c.JWT.SecretKey = "short" }, wantErr: "JWT_SECRET_KEY must be at least 32"},
		{name: "rsa without keys", mutate: func(c *ProductionConfig) { c.JWT.UseRSAKeys = true }, wantErr: "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY"},
		{name: "unknown lock backend", mutate: func(c *ProductionConfig) { c.Allocation.LockBackend = "etcd" }, wantErr: "ALLOC_LOCK_BACKEND must be one of"},
		{
			name: "redis lock without redis",
			mutate: func(c *ProductionConfig) {
				c.Allocation.LockBackend = LockBackendRedis
				c.Allocation.LockLease = time.Second
			},
			wantErr: "requires CACHE_ENABLED",
		},
		{
			name: "redis lock with redis",
			mutate: func(c *ProductionConfig) {
				c.Allocation.LockBackend = LockBackendRedis
				c.Allocation.LockLease = 10 * time.Second
				c.Cache.Enabled = true
				c.Cache.RedisURL = "redis://localhost:6379"
			},
		},
		{name: "zero lock timeout", mutate: func(c *ProductionConfig) { c.Allocation.LockTimeout = 0 }, wantErr: "ALLOC_LOCK_TIMEOUT must be positive"},
		{name: "bad fill policy", mutate: func(c *ProductionConfig) { c.Allocation.FillPolicy = "random" }, wantErr: "ALLOC_FILL_POLICY"},
		{name: "sweeper without interval", mutate: func(c *ProductionConfig) { c.Allocation.SweepInterval = 0 }, wantErr: "ALLOC_SWEEP_INTERVAL"},
		{
			name: "disabled sweeper ignores interval",
			mutate: func(c *ProductionConfig) {
				c.Allocation.SweepEnabled = false
				c.Allocation.SweepInterval = 0
			},
		},
		{name: "file logging without path", mutate: func(c *ProductionConfig) { c.Logging.Output = "both" }, wantErr: "LOG_FILE_PATH is required"},
		{name: "bad log level", mutate: func(c *ProductionConfig) { c.Logging.Level = "trace" }, wantErr: "LOG_LEVEL must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("ALLOC_LOCK_BACKEND", "Redis")
	t.Setenv("ALLOC_LOCK_TIMEOUT", "750ms")
	t.Setenv("ALLOC_SWEEP_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg := loadFromEnv()

	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, LockBackendRedis, cfg.Allocation.LockBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.Allocation.LockTimeout)
	assert.False(t, cfg.Allocation.SweepEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 8080, cfg.Server.Port, "unparsable values fall back to the default")
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Contains(t, cfg.Database.DSN(), "port=6543")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nAMS_TEST_FROM_FILE=\"quoted\"\nAMS_TEST_PRESET=file\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("AMS_TEST_PRESET", "env")
	t.Setenv("AMS_TEST_FROM_FILE", "")

	require.NoError(t, loadEnvFile())
	assert.Equal(t, "quoted", os.Getenv("AMS_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("AMS_TEST_PRESET"), "existing variables win over the file")
}
