package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MorphGrid/Framework/internal/transport/frame"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadFrameDeadline = 2 * time.Second
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.MaxDelay = 80 * time.Millisecond
	cfg.CooldownAfterIdle = 10 * time.Millisecond
	return cfg
}

func startEchoServer(t *testing.T, received chan<- []byte, accepted chan<- struct{}, disconnected chan<- struct{}) (*Service, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svc := NewService("echo-server", "127.0.0.1", 0, RoleServer, Handlers{
		OnAccepted: func(ctx context.Context, s *Service, c *Connection) error {
			if accepted != nil {
				accepted <- struct{}{}
			}
			return nil
		},
		OnRead: func(ctx context.Context, s *Service, c *Connection, payload []byte) error {
			if received != nil {
				received <- payload
			}
			return c.Write(payload)
		},
		OnDisconnected: func(ctx context.Context, s *Service, c *Connection) {
			if disconnected != nil {
				disconnected <- struct{}{}
			}
		},
	}, 1, testConfig())

	go func() { _ = svc.ServeListener(svc.Context(), ln) }()
	return svc, ln
}

func TestEchoPingPongRoundTrip(t *testing.T) {
	received := make(chan []byte, 1)
	svc, ln := startEchoServer(t, received, nil, nil)
	defer svc.StopClients()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, frame.WriteFrame(conn, []byte("ping"), frame.DefaultLimits()))

	select {
	case got := <-received:
		require.Equal(t, []byte("ping"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}

	out, err := frame.ReadFrame(bufio.NewReader(conn), frame.DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), out)
}

func TestZeroLengthFrameIsKeepAliveNotDispatched(t *testing.T) {
	received := make(chan []byte, 1)
	svc, ln := startEchoServer(t, received, nil, nil)
	defer svc.StopClients()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, frame.WriteFrame(conn, nil, frame.DefaultLimits()))
	require.NoError(t, frame.WriteFrame(conn, []byte("real"), frame.DefaultLimits()))

	select {
	case got := <-received:
		require.Equal(t, []byte("real"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}
}

func TestOversizedFrameClosesConnectionWithError(t *testing.T) {
	errs := make(chan error, 1)
	disconnected := make(chan struct{}, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg := testConfig()
	cfg.FrameLimits = frame.Limits{MaxFrameSize: 4}
	svc := NewService("oversize-server", "127.0.0.1", 0, RoleServer, Handlers{
		OnError: func(ctx context.Context, s *Service, c *Connection, err error) { errs <- err },
		OnDisconnected: func(ctx context.Context, s *Service, c *Connection) {
			disconnected <- struct{}{}
		},
	}, 1, cfg)
	go func() { _ = svc.ServeListener(svc.Context(), ln) }()
	defer svc.StopClients()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, frame.WriteFrame(conn, []byte("toolong"), frame.Limits{MaxFrameSize: 1 << 20}))

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrFrameTooLarge)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnError")
	}
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnDisconnected")
	}
}

func TestPeerCloseIsCleanDisconnectWithoutOnError(t *testing.T) {
	errs := make(chan error, 1)
	disconnected := make(chan struct{}, 1)

	svc, ln := startEchoServer(t, nil, nil, disconnected)
	svc.handlers.OnError = func(ctx context.Context, s *Service, c *Connection, err error) { errs <- err }
	defer svc.StopClients()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnDisconnected")
	}
	select {
	case err := <-errs:
		t.Fatalf("unexpected OnError on clean peer close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIdleReadDeadlineFiresOnErrorWithErrTimeoutNotErrReadError(t *testing.T) {
	errs := make(chan error, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg := testConfig()
	cfg.ReadFrameDeadline = 50 * time.Millisecond
	svc := NewService("timeout-server", "127.0.0.1", 0, RoleServer, Handlers{
		OnError: func(ctx context.Context, s *Service, c *Connection, err error) { errs <- err },
	}, 1, cfg)
	go func() { _ = svc.ServeListener(svc.Context(), ln) }()
	defer svc.StopClients()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrTimeout)
		require.False(t, errors.Is(err, ErrReadError))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnError")
	}
}

func TestClientSupervisorScaleRunsParallelConnections(t *testing.T) {
	var mu sync.Mutex
	acceptedIDs := map[string]struct{}{}
	accepted := make(chan struct{}, 8)

	svc, ln := startEchoServer(t, nil, accepted, nil)
	defer svc.StopClients()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client := NewService("client-fleet", host, port, RoleClient, Handlers{
		OnAccepted: func(ctx context.Context, s *Service, c *Connection) error {
			mu.Lock()
			acceptedIDs[c.ID.String()] = struct{}{}
			mu.Unlock()
			return nil
		},
	}, 4, testConfig())

	go func() { _ = client.Dial(host, port) }()
	defer client.StopClients()

	for i := 0; i < 4; i++ {
		select {
		case <-accepted:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for accept %d/4", i+1)
		}
	}

	require.Eventually(t, func() bool {
		return client.Count() == 4
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	count := len(acceptedIDs)
	mu.Unlock()
	require.Equal(t, 4, count)
}

func TestStopClientsCancelsSupervisorFibers(t *testing.T) {
	svc, ln := startEchoServer(t, nil, nil, nil)
	defer svc.StopClients()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client := NewService("client-cancel", host, port, RoleClient, Handlers{}, 2, testConfig())

	dialDone := make(chan struct{})
	go func() {
		_ = client.Dial(host, port)
		close(dialDone)
	}()

	require.Eventually(t, func() bool { return client.Count() > 0 }, 2*time.Second, 20*time.Millisecond)

	client.StopClients()

	select {
	case <-dialDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Dial to return after StopClients")
	}
}
