package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test/output")
	SetLevel("test/output", slog.LevelDebug)

	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(&bytes.Buffer{})

	log.Info("after switch", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "after switch")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "subsystem=test/output")
}

func TestSetGlobalLevel_ReachesDerivedLoggers(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(&bytes.Buffer{})

	derived := Logger("test/derived").With("run", "r1")
	SetGlobalLevel(slog.LevelError)
	derived.Info("hidden")
	assert.Empty(t, buf.String())

	SetGlobalLevel(slog.LevelDebug)
	derived.Debug("shown")
	assert.Contains(t, buf.String(), "run=r1")

	SetGlobalLevel(slog.LevelWarn)
}

func TestParseConfig(t *testing.T) {
	cfg := parseConfig("nat=debug, transport/socks5=error ,info", "JSON")

	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("nat/prober"), "parent level applies to children")
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("transport/socks5"))
	assert.Equal(t, slog.LevelInfo, cfg.LevelForSubsystem("transport/udp"))
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg := parseConfig("", "")
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, slog.LevelWarn, cfg.DefaultLevel)

	cfg = parseConfig("bogus,nat=loud", "")
	assert.Equal(t, slog.LevelWarn, cfg.DefaultLevel)
	assert.Empty(t, cfg.SubsystemLevels)
}

func TestDiscard(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(&bytes.Buffer{})

	Discard().Error("nothing")
	assert.Empty(t, buf.String())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("NINAT_LOG_LEVEL", "nat=debug,error")
	t.Setenv("NINAT_LOG_FORMAT", "json")
	ResetConfig()
	t.Cleanup(ResetConfig)

	cfg := ConfigFromEnv()
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("nat/classifier"))
	assert.Same(t, cfg, ConfigFromEnv(), "cached until reset")
}
