package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-ninat/config"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal/traversaltest"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/core/transport/socks5"
	"github.com/dep2p/go-ninat/internal/core/transport/transporttest"
	"github.com/dep2p/go-ninat/internal/core/transport/udp"
	"github.com/dep2p/go-ninat/pkg/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Probe.Timeout = config.Milliseconds(30)
	cfg.Probe.Attempts = 2
	return cfg
}

// onNetwork 用内存网络与模拟 Nintendo 服务替换真实传输
func onNetwork(n *transporttest.Network) fx.Option {
	svc := traversaltest.Nintendo(n)
	return fx.Options(
		fx.Decorate(func(transport.Opener) transport.Opener { return n }),
		fx.Decorate(func(traversal.Service) traversal.Service { return svc }),
	)
}

func TestRun_Classifies(t *testing.T) {
	n := transporttest.NewNetwork(transporttest.NAT{
		Mapping:   types.MappingEndpointIndependent,
		Filtering: types.FilteringAddressAndPortDependent,
	})

	res, err := Run(context.Background(), testConfig(), onNetwork(n))
	require.NoError(t, err)
	assert.Equal(t, types.StatusClassified, res.Status)
	assert.Equal(t, types.NATTypeB, res.NATType)
	assert.Nil(t, res.Router)
}

func TestRun_Blocked(t *testing.T) {
	n := transporttest.NewNetwork(transporttest.NAT{Blocked: true})

	res, err := Run(context.Background(), testConfig(), onNetwork(n))
	require.NoError(t, err)
	assert.Equal(t, types.StatusBlocked, res.Status)
	assert.Equal(t, types.NATTypeF, res.NATType)
}

func TestRun_InvalidConfigBeforeNetwork(t *testing.T) {
	n := transporttest.NewNetwork(transporttest.NAT{})
	cfg := testConfig()
	cfg.Proxy.Username = "alice"

	res, err := Run(context.Background(), cfg, onNetwork(n))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, res)
	assert.Empty(t, n.Sent())
}

func TestRun_WritesMetricsFile(t *testing.T) {
	n := transporttest.NewNetwork(transporttest.NAT{
		Mapping:   types.MappingEndpointIndependent,
		Filtering: types.FilteringEndpointIndependent,
	})
	cfg := testConfig()
	cfg.Report.MetricsFile = filepath.Join(t.TempDir(), "ninat.prom")

	_, err := Run(context.Background(), cfg, onNetwork(n))
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Report.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `nat_type="A"`)
	assert.Contains(t, string(data), "ninat_probe_datagrams_sent_total")
}

func TestRun_Cancelled(t *testing.T) {
	n := transporttest.NewNetwork(transporttest.NAT{Blocked: true})
	cfg := testConfig()
	cfg.Probe.Timeout = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, cfg, onNetwork(n))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRouterView_SkippedWhenProxied(t *testing.T) {
	res := &types.Result{Proxied: true}
	NewBootstrap(testConfig()).routerView(context.Background(), nil, res)
	assert.Nil(t, res.Router)
	assert.Len(t, res.Notes, 1)
}

func TestProvideOpener(t *testing.T) {
	assert.IsType(t, &udp.Opener{}, provideOpener(config.ProxyConfig{}))

	o := provideOpener(config.ProxyConfig{
		Address:          "127.0.0.1:1080",
		Username:         "alice",
		Password:         "secret",
		HandshakeTimeout: config.Milliseconds(2000),
	})
	s, ok := o.(*socks5.Opener)
	require.True(t, ok)
	assert.True(t, s.Proxied())
	assert.Equal(t, 2*time.Second, s.HandshakeTimeout)
	require.NotNil(t, s.Auth)
	assert.Equal(t, "alice", s.Auth.Username)

	noAuth := provideOpener(config.ProxyConfig{Address: "127.0.0.1:1080"}).(*socks5.Opener)
	assert.Nil(t, noAuth.Auth)
}

func TestProvideService(t *testing.T) {
	svc := provideService(config.ServiceConfig{Kind: config.ServiceNintendo, Server1: "a", Server2: "b"})
	assert.Equal(t, "nintendo", svc.Name())

	svc = provideService(config.ServiceConfig{Kind: config.ServiceSTUN, STUNServer: "stun.example.com:3478"})
	require.IsType(t, &traversal.STUN{}, svc)
	assert.Equal(t, "stun.example.com:3478", svc.(*traversal.STUN).Server)
}

func TestClassifierConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Probe.Burst = 5
	cfg.Probe.Pace = config.Milliseconds(10)
	cfg.Predict = false

	cc := classifierConfig(cfg)
	assert.Equal(t, 30*time.Millisecond, cc.Probe.Timeout)
	assert.Equal(t, 2, cc.Probe.Attempts)
	assert.Equal(t, 5, cc.Probe.Burst)
	assert.Equal(t, 10*time.Millisecond, cc.Probe.Pace)
	assert.False(t, cc.Predict)
}
