package session

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MorphGrid/Framework/internal/transport/frame"
)

const writeMailboxDepth = 64

type writeRequest struct {
	payload []byte
	result  chan error
}

// Connection is one established bidirectional stream. Reads happen on the
// Session's own goroutine (one per Connection, started by the acceptor or
// the client supervisor); writes are serialized through a mailbox drained
// by a single dedicated goroutine — the Go-native realization of the
// spec's single-writer strand (see SPEC_FULL.md §3). A blocking read never
// starves a write: the two run on independent goroutines.
type Connection struct {
	ID          ConnectionID
	ConnectedAt time.Time
	stream      net.Conn
	reader      *bufio.Reader
	service     *Service
	limits      frame.Limits

	writeCh chan writeRequest
	closing sync.Once
	stopCh  chan struct{}
	closed  atomic.Bool
	drained chan struct{}

	disconnectFired atomic.Bool
}

func newConnection(id ConnectionID, stream net.Conn, svc *Service) *Connection {
	c := &Connection{
		ID:          id,
		ConnectedAt: time.Now(),
		stream:      stream,
		reader:      bufio.NewReader(stream),
		service:     svc,
		limits:      svc.limits,
		writeCh:     make(chan writeRequest, writeMailboxDepth),
		stopCh:      make(chan struct{}),
		drained:     make(chan struct{}),
	}
	go c.runWriter()
	return c
}

// RemoteAddr returns the peer address of the underlying stream.
func (c *Connection) RemoteAddr() net.Addr { return c.stream.RemoteAddr() }

// Write schedules payload to be framed and flushed on the connection's
// write strand. It is fire-and-forget: the returned error only reflects
// that the write could not be enqueued (connection already closing);
// asynchronous write failures are routed through Handlers.OnError.
//
// writeCh is never closed — only stopCh is, exactly once, via closeWriter —
// so a Write racing a concurrent closeWriter can never land a send on a
// closed channel; it either wins the race and enqueues, or observes stopCh
// and fails closed.
func (c *Connection) Write(payload []byte) error {
	if c.closed.Load() {
		return ErrWriteError
	}
	req := writeRequest{payload: payload}
	select {
	case c.writeCh <- req:
		return nil
	case <-c.stopCh:
		return ErrWriteError
	default:
	}
	// Mailbox momentarily full: block submission order without dropping the
	// write, same total-ordering guarantee, just without the fast path.
	select {
	case c.writeCh <- req:
		return nil
	case <-c.stopCh:
		return ErrWriteError
	}
}

// WriteSync behaves like Write but waits for the frame to be flushed (or to
// fail), returning the outcome. Used by tests and by callers that need a
// backpressure signal.
func (c *Connection) WriteSync(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return ErrWriteError
	}
	req := writeRequest{payload: payload, result: make(chan error, 1)}
	select {
	case c.writeCh <- req:
	case <-c.stopCh:
		return ErrWriteError
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) runWriter() {
	defer close(c.drained)
	for {
		select {
		case req := <-c.writeCh:
			c.flush(req)
		case <-c.stopCh:
			c.drainPending()
			return
		}
	}
}

// drainPending flushes whatever was already enqueued before stopCh fired,
// so in-flight writes still complete (spec.md §3: "destroyed after... all
// outstanding writes drain"). It never blocks waiting for more: anything
// enqueued after this point raced the close and is dropped, same as any
// other post-shutdown Write.
func (c *Connection) drainPending() {
	for {
		select {
		case req := <-c.writeCh:
			c.flush(req)
		default:
			return
		}
	}
}

func (c *Connection) flush(req writeRequest) {
	err := frame.WriteFrame(c.stream, req.payload, c.limits)
	if err == nil {
		c.service.handlers.fireWrite(context.Background(), c.service, c)
	} else {
		c.service.handlers.fireError(context.Background(), c.service, c, err)
	}
	if req.result != nil {
		req.result <- err
	}
}

// closeWriter stops accepting new writes and waits for the writer goroutine
// to drain and exit. Closing stopCh (never writeCh) is what makes this safe
// to call concurrently with in-flight Write calls: receiving from a closed
// channel never panics, only sending does, and nothing ever sends on
// stopCh or closes writeCh.
func (c *Connection) closeWriter() {
	c.closing.Do(func() { close(c.stopCh) })
	<-c.drained
}

// markDisconnected reports whether this call is the first to claim the
// OnDisconnected notification for this Connection. A natural read-loop end
// and StopClients' own sweep can both reach the same Connection; gating on
// this CompareAndSwap instead of on registry removal lets OnDisconnected
// fire before remove() (matching spec order) while still firing exactly
// once no matter which teardown path wins the race.
func (c *Connection) markDisconnected() bool {
	return c.disconnectFired.CompareAndSwap(false, true)
}

// shutdown half-closes the send side if the transport supports it, then
// closes the stream in every case.
func (c *Connection) shutdown() error {
	c.closed.Store(true)
	if tc, ok := c.stream.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	return c.stream.Close()
}
