package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ninat/config"
	"github.com/dep2p/go-ninat/internal/core/nat/classifier"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/core/transport/socks5"
	"github.com/dep2p/go-ninat/pkg/types"
)

func noExit(int) {}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		res  *types.Result
		err  error
		want int
	}{
		{"classified", &types.Result{Status: types.StatusClassified}, nil, 0},
		{"indeterminate", &types.Result{Status: types.StatusIndeterminate}, nil, 0},
		{"blocked", &types.Result{Status: types.StatusBlocked}, nil, 6},
		{"config", nil, &config.ConfigError{Field: "probe.attempts", Reason: "must be at least 1"}, 2},
		{"proxy unreachable", nil, fmt.Errorf("%w: 127.0.0.1:1080: refused", socks5.ErrProxyUnreachable), 3},
		{"auth failed", nil, socks5.ErrAuthFailed, 4},
		{"no acceptable method", nil, socks5.ErrNoAcceptableMethod, 4},
		{"associate rejected", nil, &socks5.CommandRejectedError{Code: 0x07}, 5},
		{"handshake io", nil, &socks5.HandshakeError{Step: "read method selection", Cause: io.EOF}, 5},
		{"bad version", nil, socks5.ErrBadVersion, 5},
		{"resolve", nil, fmt.Errorf("%w: nncs1-lp1.n.n.srv.nintendo.net: no such host", traversal.ErrResolve), 8},
		{"probe failure", nil, &classifier.ProbeError{Step: "E1", Cause: transport.ErrClosed}, 7},
		{"io failure", nil, &transport.Error{Op: "send", Cause: errors.New("network is unreachable")}, 7},
		{"cancelled", nil, context.Canceled, 1},
		{"other", nil, errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.res, tt.err))
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	c, err := parse(nil, io.Discard, io.Discard, noExit)
	require.NoError(t, err)

	cfg := c.toConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout.Duration())
	assert.Equal(t, 3, cfg.Probe.Attempts)
	assert.Equal(t, 10*time.Second, cfg.Proxy.HandshakeTimeout.Duration())
	assert.Equal(t, config.ServiceNintendo, cfg.Service.Kind)
	assert.Equal(t, config.FormatText, cfg.Report.Format)
	assert.True(t, cfg.Predict)
	assert.False(t, cfg.Proxied())
}

func TestParse_Flags(t *testing.T) {
	c, err := parse([]string{
		"-s", "127.0.0.1:1080", "--username", "alice", "--password", "secret",
		"-w", "0", "--service", "stun", "--stun-server", "stun.example.com:3478",
		"--no-predict", "--format", "json", "-v",
	}, io.Discard, io.Discard, noExit)
	require.NoError(t, err)

	cfg := c.toConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:1080", cfg.Proxy.Address)
	assert.Equal(t, "alice", cfg.Proxy.Username)
	assert.Equal(t, time.Duration(0), cfg.Probe.Timeout.Duration())
	assert.Equal(t, config.ServiceSTUN, cfg.Service.Kind)
	assert.Equal(t, "stun.example.com:3478", cfg.Service.STUNServer)
	assert.False(t, cfg.Predict)
	assert.Equal(t, config.FormatJSON, cfg.Report.Format)
	assert.True(t, cfg.Verbose)
}

func TestParse_Env(t *testing.T) {
	t.Setenv("NINAT_TIMEOUT", "500")
	t.Setenv("NINAT_SOCKS_PROXY", "proxy.example.com:1080")

	c, err := parse(nil, io.Discard, io.Discard, noExit)
	require.NoError(t, err)
	assert.Equal(t, int64(500), c.Timeout)
	assert.Equal(t, "proxy.example.com:1080", c.SocksProxy)
}

func TestParse_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ninat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"attempts": 5, "gateway": true}`), 0o600))

	c, err := parse([]string{"--config", path}, io.Discard, io.Discard, noExit)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Attempts)
	assert.True(t, c.Gateway)
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"username without password", []string{"-s", "127.0.0.1:1080", "--username", "alice"}},
		{"credentials without proxy", []string{"--username", "alice", "--password", "secret"}},
		{"unknown service", []string{"--service", "xbox"}},
		{"negative timeout", []string{"--timeout=-1"}},
		{"unknown flag", []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := run(tt.args, io.Discard, &stderr, noExit)
			assert.Equal(t, exitConfig, code)
			assert.Contains(t, stderr.String(), "ninat:")
		})
	}
}

func TestRun_ProxyUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	var stdout, stderr bytes.Buffer
	code := run([]string{"-s", addr, "--server1", "198.51.100.1", "--server2", "198.51.100.2", "--proxy-timeout", "2000"},
		&stdout, &stderr, noExit)
	assert.Equal(t, exitProxyUnreachable, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "proxy unreachable")
}

func sampleResult() *types.Result {
	ext := types.NewEndpoint(netip.MustParseAddr("203.0.113.7"), 40001)
	return &types.Result{
		Status:         types.StatusClassified,
		Mapping:        types.MappingAddressAndPortDependent,
		Filtering:      types.FilteringAddressDependent,
		External:       &ext,
		PortAllocation: types.PortAllocationRandom,
		NATType:        types.NATTypeD,
		Notes:          []string{"router external address 100.64.0.9 is carrier-grade NAT space: another NAT layer upstream"},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, config.FormatText, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Remote Address: 203.0.113.7\n")
	assert.Contains(t, out, "NAT Type:\n")
	assert.Contains(t, out, "  Nintendo Switch : D\n")
	assert.Contains(t, out, "  Sony PlayStation: 3\n")
	assert.Contains(t, out, "  Microsoft Xbox  : Strict\n")
	assert.Contains(t, out, "Mapping         : address-and-port-dependent\n")
	assert.Contains(t, out, "Note: router external address 100.64.0.9")
}

func TestWriteText_Blocked(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, &types.Result{Status: types.StatusBlocked, NATType: types.NATTypeF}))

	out := buf.String()
	assert.NotContains(t, out, "Remote Address")
	assert.Contains(t, out, "  Sony PlayStation: -\n")
	assert.Contains(t, out, "  Microsoft Xbox  : Unavailable\n")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, config.FormatJSON, sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "classified", decoded["status"])
	assert.Equal(t, "D", decoded["nat_type"])
	assert.Equal(t, "address-dependent", decoded["filtering"])
}
