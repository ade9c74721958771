package udp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/core/transport/udp"
	"github.com/dep2p/go-ninat/pkg/types"
)

func listenEcho(t *testing.T) types.Endpoint {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_, _ = conn.WriteToUDP(buf[:n], from)
		}
	}()

	ep, ok := types.EndpointFromUDPAddr(conn.LocalAddr().(*net.UDPAddr))
	require.True(t, ok)
	return ep
}

func openLoopback(t *testing.T) transport.Transport {
	t.Helper()
	tr, err := (&udp.Opener{LocalAddr: "127.0.0.1:0"}).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTransport_SendRecv(t *testing.T) {
	server := listenEcho(t)
	tr := openLoopback(t)

	require.NoError(t, tr.Send(server, []byte("ping")))
	from, b, err := tr.Recv(time.Now().Add(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, server, from)
	assert.Equal(t, []byte("ping"), b)
}

func TestTransport_Timeout(t *testing.T) {
	tr := openLoopback(t)

	_, _, err := tr.Recv(time.Now().Add(20 * time.Millisecond))
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.False(t, transport.IsFatal(err))
}

func TestTransport_CloseUnblocksRecv(t *testing.T) {
	tr := openLoopback(t)

	done := make(chan error, 1)
	go func() {
		_, _, err := tr.Recv(time.Time{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close(), "close is idempotent")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, transport.ErrClosed)
		assert.True(t, transport.IsFatal(err))
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not return after close")
	}
}
