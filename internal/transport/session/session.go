package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/MorphGrid/Framework/internal/transport/frame"
)

// runReadLoop drives one Connection through the Reading/Dispatching/Closing
// states (spec.md §4.2). Its callers have already fired the handshake
// callbacks — the acceptor (server role) and the client supervisor (client
// role) both fire OnConnect then OnAccepted before calling it — so this
// function never fires either of them itself.
func runReadLoop(svc *Service, conn *Connection) {
	ctx := svc.Context()
	var closeErr error
	var clean bool

	for {
		if ctx.Err() != nil {
			clean = true
			break
		}

		deadline := time.Now().Add(svc.cfg.ReadFrameDeadline)
		if err := conn.stream.SetReadDeadline(deadline); err != nil {
			closeErr = err
			break
		}

		payload, err := frame.ReadFrame(conn.reader, conn.limits)
		if err != nil {
			closeErr, clean = classifyReadError(ctx, err)
			break
		}
		if payload == nil {
			// Zero-length keep-alive: looped without a handler call
			// (spec.md §8 invariant 4).
			continue
		}

		if hErr := svc.handlers.fireRead(ctx, svc, conn, payload); hErr != nil {
			closeErr = hErr
			break
		}
	}

	closeConnection(svc, conn, closeErr, clean)
}

// classifyReadError maps a frame-layer error (and cancellation) onto the
// Closing transition spec.md §4.2 describes: PeerClosed and mid-loop
// cancellation are clean (OnDisconnected only); everything else reports
// through OnError first.
func classifyReadError(ctx context.Context, err error) (closeErr error, clean bool) {
	if ctx.Err() != nil {
		return nil, true
	}
	switch {
	case errors.Is(err, frame.ErrPeerClosed):
		return nil, true
	case errors.Is(err, frame.ErrFrameTooLarge):
		return ErrFrameTooLarge, false
	case isTimeout(err):
		// Checked ahead of ErrReadError: frame.ReadFrame wraps every
		// non-EOF read failure, including a deadline expiry, in
		// errors.Join(ErrReadError, err) — so the underlying net.Error
		// must be inspected first or a real timeout never surfaces as
		// ErrTimeout.
		return ErrTimeout, false
	case errors.Is(err, frame.ErrReadError):
		return ErrReadError, false
	default:
		return ErrReadError, false
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// closeConnection runs the Closing sequence in spec.md §4.2's documented
// order: OnError if applicable, then OnDisconnected, then registry removal.
// It then stops the writer goroutine, which flushes any already-enqueued
// writes before exiting, and finally shuts down the socket. OnDisconnected
// is gated on
// markDisconnected's CompareAndSwap rather than on remove()'s return, so it
// still fires exactly once when StopClients races this same teardown for
// the same connection, without needing to run remove() first.
func closeConnection(svc *Service, conn *Connection, closeErr error, clean bool) {
	ctx := context.Background()
	if !clean && closeErr != nil {
		svc.handlers.fireError(ctx, svc, conn, closeErr)
	}
	if conn.markDisconnected() {
		svc.handlers.fireDisconnected(ctx, svc, conn)
	}
	svc.remove(conn.ID)
	conn.closeWriter()
	_ = conn.shutdown()
}
