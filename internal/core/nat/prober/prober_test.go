package prober_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ninat/internal/core/metrics"
	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/core/transport/transporttest"
	"github.com/dep2p/go-ninat/pkg/types"
)

var (
	server = types.NewEndpoint(netip.MustParseAddr("198.51.100.10"), 10025)
	other  = types.NewEndpoint(netip.MustParseAddr("198.51.100.10"), 50920)
)

func echo(from types.Endpoint, b []byte, reply transporttest.ReplyFunc) {
	resp, _ := codec.Nintendo{}.EncodeResponse(codec.Response{Kind: b[3], Mapped: from})
	reply(server, resp)
}

func setup(t *testing.T, cfg prober.Config, h transporttest.Handler) (*prober.Controller, *transporttest.Network, transport.Transport, *metrics.Recorder) {
	t.Helper()
	n := transporttest.NewNetwork(transporttest.NAT{
		Mapping:   types.MappingEndpointIndependent,
		Filtering: types.FilteringEndpointIndependent,
	})
	if h != nil {
		n.Handle(server, h)
	}
	tr, err := n.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	rec := metrics.NewRecorder()
	return prober.New(tr, codec.Nintendo{}, codec.NewIDGenerator(), cfg, rec), n, tr, rec
}

func TestProbe_Answered(t *testing.T) {
	c, _, _, _ := setup(t, prober.Config{Timeout: time.Second, Attempts: 3}, echo)

	out := c.Probe(context.Background(), prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho, ReplyFrom: &server})
	require.Equal(t, prober.Answered, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, server, out.From)
	assert.Equal(t, netip.MustParseAddr("203.0.113.1"), out.Response.Mapped.Addr)
}

func TestProbe_StrayDatagramsNeverSatisfy(t *testing.T) {
	stray := func(from types.Endpoint, b []byte, reply transporttest.ReplyFunc) {
		wrongKind, _ := codec.Nintendo{}.EncodeResponse(codec.Response{Kind: codec.KindEchoOther, Mapped: from})
		right, _ := codec.Nintendo{}.EncodeResponse(codec.Response{Kind: b[3], Mapped: from})
		bogus, _ := codec.Nintendo{}.EncodeResponse(codec.Response{
			Kind:   b[3],
			Mapped: types.NewEndpoint(netip.MustParseAddr("192.0.2.66"), 6666),
		})

		reply(server, []byte("garbage"))
		reply(server, wrongKind)
		reply(other, bogus)
		reply(server, right)
	}
	c, _, _, rec := setup(t, prober.Config{Timeout: time.Second, Attempts: 1}, stray)

	out := c.Probe(context.Background(), prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho, ReplyFrom: &server})
	require.Equal(t, prober.Answered, out.Kind)
	assert.Equal(t, netip.MustParseAddr("203.0.113.1"), out.Response.Mapped.Addr)
	assert.NotEqual(t, uint16(6666), out.Response.Mapped.Port)

	n, err := testutil.GatherAndCount(rec.Registry(), "ninat_probe_datagrams_discarded_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "malformed, unmatched and wrong-source datagrams are each counted")
}

func TestProbe_NoAnswerRetries(t *testing.T) {
	c, n, _, _ := setup(t, prober.Config{Timeout: 20 * time.Millisecond, Attempts: 3, Burst: 2}, nil)

	out := c.Probe(context.Background(), prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho})
	assert.Equal(t, prober.NoAnswer, out.Kind)
	assert.Equal(t, 3, out.Attempts)
	assert.Len(t, n.Sent(), 6)
}

func TestProbe_ZeroTimeoutWaitsForAnswer(t *testing.T) {
	slow := func(from types.Endpoint, b []byte, reply transporttest.ReplyFunc) {
		go func() {
			time.Sleep(200 * time.Millisecond)
			echo(from, b, reply)
		}()
	}
	c, n, _, _ := setup(t, prober.Config{Timeout: 0, Attempts: 5}, slow)

	out := c.Probe(context.Background(), prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho})
	require.Equal(t, prober.Answered, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.GreaterOrEqual(t, out.RTT, 200*time.Millisecond)
	assert.Len(t, n.Sent(), 1, "timeout 0 never retries")
}

func TestProbe_ZeroTimeoutEndsOnClose(t *testing.T) {
	c, _, tr, _ := setup(t, prober.Config{Timeout: 0}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
		tr.Close()
	}()

	out := c.Probe(ctx, prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho})
	assert.Equal(t, prober.TransportFailed, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestProbe_TransportFailure(t *testing.T) {
	c, _, tr, _ := setup(t, prober.DefaultConfig(), echo)
	require.NoError(t, tr.Close())

	out := c.Probe(context.Background(), prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho})
	assert.Equal(t, prober.TransportFailed, out.Kind)
	assert.ErrorIs(t, out.Err, transport.ErrClosed)
}

func TestProbe_BurstPacing(t *testing.T) {
	c, n, _, _ := setup(t, prober.Config{Timeout: time.Second, Attempts: 1, Burst: 3, Pace: 10 * time.Millisecond}, echo)

	start := time.Now()
	out := c.Probe(context.Background(), prober.Probe{Step: "E1", Target: server, Kind: codec.KindEcho})
	require.Equal(t, prober.Answered, out.Kind)
	assert.Len(t, n.Sent(), 3)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSendOnly(t *testing.T) {
	c, n, _, _ := setup(t, prober.Config{Timeout: time.Second, Burst: 2}, nil)

	require.NoError(t, c.SendOnly(context.Background(), prober.Probe{Step: "prime", Target: server, Kind: codec.KindSendOnly}))
	sent := n.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, make([]byte, codec.NintendoSize), sent[0].Data)
}
