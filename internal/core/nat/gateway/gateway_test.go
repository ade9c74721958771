package gateway

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ninat/pkg/types"
)

func fakeDiscoverer(pmp, upnp func() (string, error)) *Discoverer {
	d := New(100 * time.Millisecond)
	d.discoverGateway = func() (net.IP, error) { return net.IPv4(192, 168, 1, 1), nil }
	d.natpmpExternal = func(net.IP, time.Duration) (string, error) { return pmp() }
	d.upnpExternal = func(context.Context) (string, error) { return upnp() }
	return d
}

func fail() (string, error) { return "", errors.New("unsupported") }

func TestDiscover_NATPMP(t *testing.T) {
	d := fakeDiscoverer(func() (string, error) { return "203.0.113.1", nil }, fail)

	info, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", info.Gateway)
	assert.Equal(t, MethodNATPMP, info.Method)
	assert.Equal(t, "203.0.113.1", info.ExternalIP)
}

func TestDiscover_FallsBackToUPnP(t *testing.T) {
	d := fakeDiscoverer(fail, func() (string, error) { return "203.0.113.2", nil })

	info, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodUPnP, info.Method)
	assert.Equal(t, "203.0.113.2", info.ExternalIP)
}

func TestDiscover_NoExternalAddress(t *testing.T) {
	d := fakeDiscoverer(fail, fail)

	info, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoExternalAddress)
	require.NotNil(t, info)
	assert.Equal(t, "192.168.1.1", info.Gateway)
	assert.Empty(t, info.Method)
}

func TestDiscover_NoGateway(t *testing.T) {
	d := fakeDiscoverer(fail, fail)
	d.discoverGateway = func() (net.IP, error) { return nil, errors.New("no route") }

	info, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoGateway)
	assert.Nil(t, info)
}

func TestDiscover_HangingRouterTimesOut(t *testing.T) {
	hang := func() (string, error) {
		time.Sleep(5 * time.Second)
		return "", nil
	}
	d := fakeDiscoverer(hang, hang)

	start := time.Now()
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoExternalAddress)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNotes(t *testing.T) {
	observed := types.NewEndpoint(netip.MustParseAddr("203.0.113.1"), 40000)

	tests := []struct {
		name     string
		external string
		observed *types.Endpoint
		want     int
		contains string
	}{
		{"matches", "203.0.113.1", &observed, 0, ""},
		{"no observation", "203.0.113.9", nil, 0, ""},
		{"differs", "203.0.113.9", &observed, 1, "differs from observed 203.0.113.1"},
		{"private", "192.168.0.10", &observed, 2, "is private"},
		{"cgnat", "100.64.12.1", &observed, 2, "carrier-grade NAT"},
		{"garbage", "router", &observed, 1, "unparsable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := Notes(&types.RouterInfo{Gateway: "192.168.1.1", ExternalIP: tt.external}, tt.observed)
			assert.Len(t, notes, tt.want)
			if tt.contains != "" {
				require.NotEmpty(t, notes)
				assert.Contains(t, notes[0], tt.contains)
			}
		})
	}

	assert.Nil(t, Notes(nil, &observed))
	assert.Nil(t, Notes(&types.RouterInfo{Gateway: "192.168.1.1"}, &observed))
}
