package config

import (
	"testing"

	"github.com/sonavox/mediad/internal/ratelimit"
)

func validConfig() Config {
	return Config{
		MaxQueueLength:         10,
		RateLimitRequests:      60,
		RateLimitWindowSeconds: 60,
		RateLimitBurstCap:      120,
		RateLimitIdentity:      ratelimit.ModeByAddress,
		StoreBackend:           StoreMemory,
		WebhookTimeoutSeconds:  15,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "Valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "Unbounded queue is valid",
			mutate:  func(c *Config) { c.MaxQueueLength = 0 },
			wantErr: false,
		},
		{
			name:    "Negative queue length",
			mutate:  func(c *Config) { c.MaxQueueLength = -1 },
			wantErr: true,
		},
		{
			name:    "Zero rate limit",
			mutate:  func(c *Config) { c.RateLimitRequests = 0 },
			wantErr: true,
		},
		{
			name:    "Zero window",
			mutate:  func(c *Config) { c.RateLimitWindowSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "Burst cap below limit",
			mutate:  func(c *Config) { c.RateLimitBurstCap = 10 },
			wantErr: true,
		},
		{
			name:    "Unknown identity mode",
			mutate:  func(c *Config) { c.RateLimitIdentity = "by-cookie" },
			wantErr: true,
		},
		{
			name:    "Credential identity mode",
			mutate:  func(c *Config) { c.RateLimitIdentity = ratelimit.ModeByCredential },
			wantErr: false,
		},
		{
			name:    "Unknown store backend",
			mutate:  func(c *Config) { c.StoreBackend = "dynamo" },
			wantErr: true,
		},
		{
			name:    "Redis backend",
			mutate:  func(c *Config) { c.StoreBackend = StoreRedis },
			wantErr: false,
		},
		{
			name:    "Zero webhook timeout",
			mutate:  func(c *Config) { c.WebhookTimeoutSeconds = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("default SERVER_PORT = %q, want 8080", cfg.ServerPort)
	}
	if cfg.MaxQueueLength != 0 {
		t.Errorf("default MAX_QUEUE_LENGTH = %d, want 0 (unbounded)", cfg.MaxQueueLength)
	}
	if cfg.RateLimitWindowSeconds != 60 {
		t.Errorf("default RATE_LIMIT_WINDOW_SECONDS = %d, want 60", cfg.RateLimitWindowSeconds)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("default STORE_BACKEND = %q, want memory", cfg.StoreBackend)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MAX_QUEUE_LENGTH", "25")
	t.Setenv("RATE_LIMIT_IDENTITY", ratelimit.ModeByCredential)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxQueueLength != 25 {
		t.Errorf("MAX_QUEUE_LENGTH = %d, want 25", cfg.MaxQueueLength)
	}
	if cfg.RateLimitIdentity != ratelimit.ModeByCredential {
		t.Errorf("RATE_LIMIT_IDENTITY = %q, want %q", cfg.RateLimitIdentity, ratelimit.ModeByCredential)
	}
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "filesystem")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for unknown store backend")
	}
}
