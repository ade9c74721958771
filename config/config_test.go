package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout.Duration())
	assert.Equal(t, 3, cfg.Probe.Attempts)
	assert.Equal(t, 1, cfg.Probe.Burst)
	assert.Equal(t, ServiceNintendo, cfg.Service.Kind)
	assert.Equal(t, FormatText, cfg.Report.Format)
	assert.Equal(t, 10*time.Second, cfg.Proxy.HandshakeTimeout.Duration())
	assert.True(t, cfg.Predict)
	assert.False(t, cfg.Proxied())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"username without password", func(c *Config) {
			c.Proxy.Address = "127.0.0.1:1080"
			c.Proxy.Username = "alice"
		}, "proxy.username/password"},
		{"password without username", func(c *Config) {
			c.Proxy.Address = "127.0.0.1:1080"
			c.Proxy.Password = "secret"
		}, "proxy.username/password"},
		{"credentials without proxy", func(c *Config) {
			c.Proxy.Username = "alice"
			c.Proxy.Password = "secret"
		}, "proxy.username"},
		{"proxy without port", func(c *Config) { c.Proxy.Address = "127.0.0.1" }, "proxy.address"},
		{"proxy port out of range", func(c *Config) { c.Proxy.Address = "127.0.0.1:70000" }, "proxy.address"},
		{"negative timeout", func(c *Config) { c.Probe.Timeout = -1 }, "probe.timeout"},
		{"zero attempts", func(c *Config) { c.Probe.Attempts = 0 }, "probe.attempts"},
		{"burst too large", func(c *Config) { c.Probe.Burst = 100 }, "probe.burst"},
		{"unknown service", func(c *Config) { c.Service.Kind = "xbox" }, "service.kind"},
		{"bad stun server", func(c *Config) {
			c.Service.Kind = ServiceSTUN
			c.Service.STUNServer = "stun.example.com"
		}, "service.stun_server"},
		{"unknown format", func(c *Config) { c.Report.Format = "yaml" }, "report.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfig_ValidProxy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy.Address = "proxy.example.com:1080"
	cfg.Proxy.Username = "alice"
	cfg.Proxy.Password = "secret"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Proxied())

	cfg.Probe.Timeout = 0
	assert.NoError(t, cfg.Validate(), "zero timeout waits forever")
}

func TestConfig_Nil(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1.5s"`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`250`), &d))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte("3000")))
	assert.Equal(t, 3*time.Second, d.Duration())

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	assert.Error(t, d.UnmarshalText([]byte("forever")))

	out, err := json.Marshal(Milliseconds(3000))
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(out))
}
