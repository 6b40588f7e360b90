//go:build linux

package netio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// socketpair returns two connected, non-blocking TCP-equivalent fds
// (AF_UNIX, SOCK_STREAM) for exercising Channel.Drain without a real
// network listener.
func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

type nopHandler struct{}

func (nopHandler) OnDataReceived(ch *Channel, buf []byte) (int, error) { return len(buf), nil }

func TestChannelDrainWritesCommittedRecordsToSocket(t *testing.T) {
	local, remote := socketpair(t)
	ch := NewChannel(local, "", nopHandler{}, ChannelConfig{})

	ci, err := ch.Ring().TryClaim(1, 5)
	require.NoError(t, err)
	copy(ch.Ring().WriteAt(ci), []byte("hello"))
	ch.Ring().Commit(ci)

	wantWrite, err := ch.Drain()
	require.NoError(t, err)
	require.False(t, wantWrite)

	buf := make([]byte, 5)
	n, err := unix.Read(remote, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

// TestStageResidualRejectsOverflow exercises the unexported overflow guard
// directly (same package), since reliably forcing a real short write
// through the kernel's socket buffering is not deterministic.
func TestStageResidualRejectsOverflow(t *testing.T) {
	local, _ := socketpair(t)
	ch := NewChannel(local, "", nopHandler{}, ChannelConfig{WriteBufferSize: 4})

	err := ch.stageResidual([]byte("way too big for 4 bytes"))
	require.Error(t, err)
}

// TestChannelDrainFlushesStagedResidualFirst verifies Drain writes out a
// previously staged residual before touching the ring buffer.
func TestChannelDrainFlushesStagedResidualFirst(t *testing.T) {
	local, remote := socketpair(t)
	ch := NewChannel(local, "", nopHandler{}, ChannelConfig{})
	require.NoError(t, ch.stageResidual([]byte("resid")))

	wantWrite, err := ch.Drain()
	require.NoError(t, err)
	require.False(t, wantWrite)

	buf := make([]byte, 5)
	n, err := unix.Read(remote, buf)
	require.NoError(t, err)
	require.Equal(t, "resid", string(buf[:n]))
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	local, _ := socketpair(t)
	ch := NewChannel(local, "", nopHandler{}, ChannelConfig{})
	require.NoError(t, ch.Close())
	require.True(t, ch.IsClosed())
	require.NoError(t, ch.Close(), "second Close must be a no-op, not re-close an already-closed fd")
}

func TestChannelDrainNoOpOnClosedChannel(t *testing.T) {
	local, _ := socketpair(t)
	ch := NewChannel(local, "", nopHandler{}, ChannelConfig{})
	require.NoError(t, ch.Close())

	wantWrite, err := ch.Drain()
	require.NoError(t, err)
	require.False(t, wantWrite)
}

// TestReactorConnectAcceptRoundTrip exercises the full Listen/Connect/
// OnConnected/Drain/OnDataReceived path over a real loopback TCP socket
// (spec §4.4).
func TestReactorConnectAcceptRoundTrip(t *testing.T) {
	connected := make(chan *Channel, 2)
	received := make(chan string, 1)

	serverCB := Callbacks{
		OnConnected: func(ch *Channel) { connected <- ch },
	}
	r, err := NewReactor(ReactorConfig{Name: "test-reactor"}, serverCB)
	require.NoError(t, err)
	go r.Run()
	defer func() {
		r.Stop()
		<-r.Done()
	}()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	handler := handlerFunc(func(ch *Channel, buf []byte) (int, error) {
		received <- string(buf)
		return len(buf), nil
	})

	require.NoError(t, r.Listen(addr, handler))

	clientCB := Callbacks{
		OnConnected: func(ch *Channel) { connected <- ch },
	}
	cr, err := NewReactor(ReactorConfig{Name: "client-reactor"}, clientCB)
	require.NoError(t, err)
	go cr.Run()
	defer func() {
		cr.Stop()
		<-cr.Done()
	}()

	require.NoError(t, cr.Connect(addr, handlerFunc(func(ch *Channel, buf []byte) (int, error) { return len(buf), nil })))

	var serverCh, clientCh *Channel
	for i := 0; i < 2; i++ {
		select {
		case ch := <-connected:
			if serverCh == nil && ch.Remote() == "" {
				serverCh = ch
			} else {
				clientCh = ch
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for OnConnected")
		}
	}
	require.NotNil(t, serverCh)
	require.NotNil(t, clientCh)

	ci, err := clientCh.Ring().TryClaim(1, 3)
	require.NoError(t, err)
	copy(clientCh.Ring().WriteAt(ci), []byte("hey"))
	clientCh.Ring().Commit(ci)

	select {
	case got := <-received:
		require.Equal(t, "hey", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive data")
	}
}

// handlerFunc adapts a plain function to the Handler interface.
type handlerFunc func(ch *Channel, buf []byte) (int, error)

func (f handlerFunc) OnDataReceived(ch *Channel, buf []byte) (int, error) { return f(ch, buf) }
