package session

import (
	"context"
	"net"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Serve binds host:port, starts accepting, and blocks until the Service's
// cancellation scope fires or the listener returns a non-cancellation error
// (spec.md §4.4, Acceptor). If port is 0 the OS assigns one; GetPort()
// reflects the bound value as soon as the listener is bound, before the
// accept loop starts. Serve does not return until the accept loop ends, so
// callers that need the assigned port up front should use ServeListener
// with their own net.Listen.
func (s *Service) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.GetPort())))
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener runs the accept loop against a caller-supplied listener,
// letting the caller observe the bound address (ln.Addr()) before any
// connection arrives — useful for tests that bind port 0 and need the
// assigned port immediately.
func (s *Service) ServeListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.setPort(tcpAddr.Port)
	}
	s.running.Store(true)
	defer close(s.acceptorDone)

	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
		_ = ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				s.running.Store(false)
				return nil
			}
			s.running.Store(false)
			log.Error().Err(err).Str("service", s.ID).Msg("transport.accept failed")
			return err
		}
		s.handleAccepted(raw)
	}
}

func (s *Service) handleAccepted(raw net.Conn) {
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	id := NewConnectionID()
	conn := newConnection(id, raw, s)

	if err := s.add(conn); err != nil {
		log.Warn().Err(err).Str("service", s.ID).Str("conn", id.String()).Msg("transport.accept rejected")
		conn.closeWriter()
		_ = conn.shutdown()
		return
	}

	go func() {
		// OnDisconnected does not fire on either failure branch below, for
		// the same reason as the client supervisor's dialOnce: a connection
		// that fails OnConnect/OnAccepted never finished becoming accepted.
		ctx := s.Context()
		if err := s.handlers.fireConnect(ctx, s, conn); err != nil {
			s.handlers.fireError(ctx, s, conn, err)
			s.remove(conn.ID)
			conn.closeWriter()
			_ = conn.shutdown()
			return
		}
		if err := s.handlers.fireAccepted(ctx, s, conn); err != nil {
			s.handlers.fireError(ctx, s, conn, err)
			s.remove(conn.ID)
			conn.closeWriter()
			_ = conn.shutdown()
			return
		}
		runReadLoop(s, conn)
	}()
}
