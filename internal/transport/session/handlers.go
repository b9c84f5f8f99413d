package session

import (
	"context"
	"fmt"
)

// OnConnectFunc fires once a Connection is established, before OnAccepted
// and before the read loop starts: on the client side after the dial
// succeeds, on the server side after accept.
type OnConnectFunc func(ctx context.Context, svc *Service, conn *Connection) error

// OnAcceptedFunc fires once per Connection, before the first read and
// immediately after OnConnect, on both the server and the client side.
type OnAcceptedFunc func(ctx context.Context, svc *Service, conn *Connection) error

// OnReadFunc fires once per non-empty frame, in arrival order.
type OnReadFunc func(ctx context.Context, svc *Service, conn *Connection, payload []byte) error

// OnWriteFunc fires after each successfully flushed outbound frame.
type OnWriteFunc func(ctx context.Context, svc *Service, conn *Connection)

// OnDisconnectedFunc fires exactly once per accepted Connection, at end of life.
type OnDisconnectedFunc func(ctx context.Context, svc *Service, conn *Connection)

// OnErrorFunc fires on framing/I-O/connect/resolve failure, before
// OnDisconnected. conn is nil for failures that precede a Connection object
// existing (resolve or connect failure in the client supervisor).
type OnErrorFunc func(ctx context.Context, svc *Service, conn *Connection, err error)

// Handlers is the immutable callback bundle a consumer supplies at Service
// construction. Every field is optional; a nil field is simply not invoked.
// Handlers must not be mutated after the Service is constructed — they are
// read concurrently from every Connection's goroutines without a lock.
type Handlers struct {
	OnConnect      OnConnectFunc
	OnAccepted     OnAcceptedFunc
	OnRead         OnReadFunc
	OnWrite        OnWriteFunc
	OnDisconnected OnDisconnectedFunc
	OnError        OnErrorFunc
}

func (h Handlers) fireConnect(ctx context.Context, svc *Service, conn *Connection) error {
	if h.OnConnect == nil {
		return nil
	}
	return runProtected(func() error { return h.OnConnect(ctx, svc, conn) })
}

func (h Handlers) fireAccepted(ctx context.Context, svc *Service, conn *Connection) error {
	if h.OnAccepted == nil {
		return nil
	}
	return runProtected(func() error { return h.OnAccepted(ctx, svc, conn) })
}

func (h Handlers) fireRead(ctx context.Context, svc *Service, conn *Connection, payload []byte) error {
	if h.OnRead == nil {
		return nil
	}
	return runProtected(func() error { return h.OnRead(ctx, svc, conn, payload) })
}

func (h Handlers) fireWrite(ctx context.Context, svc *Service, conn *Connection) {
	if h.OnWrite == nil {
		return
	}
	_ = runProtected(func() error { h.OnWrite(ctx, svc, conn); return nil })
}

func (h Handlers) fireDisconnected(ctx context.Context, svc *Service, conn *Connection) {
	if h.OnDisconnected == nil {
		return
	}
	_ = runProtected(func() error { h.OnDisconnected(ctx, svc, conn); return nil })
}

func (h Handlers) fireError(ctx context.Context, svc *Service, conn *Connection, err error) {
	if h.OnError == nil {
		return
	}
	_ = runProtected(func() error { h.OnError(ctx, svc, conn, err); return nil })
}

// runProtected catches a handler panic and converts it into ErrHandlerPanic
// so it can be routed through OnError instead of unwinding past the Session
// boundary (spec.md §7, HandlerException).
func runProtected(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return fn()
}
