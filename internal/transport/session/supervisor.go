package session

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Dial launches s.scale parallel reconnect fibers against host:port and
// blocks until the Service's cancellation scope fires and every fiber has
// returned. Each fiber independently resolves, connects, registers, runs a
// session to completion, and reconnects with exponential backoff-with-jitter
// on failure, or after CooldownAfterIdle once a session has ended
// (spec.md §4.5).
func (s *Service) Dial(host string, port int) error {
	s.running.Store(true)
	s.Host = host
	s.setPort(port)

	done := make(chan struct{}, s.scale)
	for i := 0; i < s.scale; i++ {
		go func(fiber int) {
			s.runReconnectFiber(fiber, host, port)
			done <- struct{}{}
		}(i)
	}

	<-s.ctx.Done()
	for i := 0; i < s.scale; i++ {
		<-done
	}
	s.running.Store(false)
	return nil
}

// runReconnectFiber is one of the scale independent reconnect loops
// spec.md §4.5 describes in pseudocode: resolve, connect, register, run the
// session, then either back off (on failure) or cool down (after the
// session has ended) before trying again.
func (s *Service) runReconnectFiber(fiber int, host string, port int) {
	rng := rand.New(rand.NewSource(int64(fiber) + 1))
	attempt := 0

	for {
		if s.ctx.Err() != nil {
			return
		}

		clean, err := s.dialOnce(host, port)
		if err != nil {
			attempt++
			if s.cfg.MaxAttempts > 0 && attempt >= s.cfg.MaxAttempts {
				log.Error().Err(err).Str("service", s.ID).Int("fiber", fiber).
					Msg("transport.dial giving up after max attempts")
				return
			}
			delay := nextBackoffDelay(s.cfg, attempt, rng)
			if !s.sleepOrCanceled(delay) {
				return
			}
			continue
		}

		attempt = 0
		if clean {
			if !s.sleepOrCanceled(s.cfg.CooldownAfterIdle) {
				return
			}
		}
	}
}

// dialOnce resolves and connects a single Connection, fires OnConnect then
// OnAccepted, and — once both succeed — runs its session loop to
// completion. It returns clean == true and a nil error whenever the session
// loop ran to its end, whatever closed it; a failure before the session
// starts, or cancellation seen by the supervisor poll while the session is
// still running, returns a non-nil error instead. The caller uses this to
// choose a cooldown pause over a backoff pause.
//
// Resolution and connection are distinct steps, each with its own error
// sentinel, so a caller branching on the error with errors.Is can tell a
// DNS failure (ErrHostNotResolved) apart from a refused or unreachable
// connect (ErrServiceNotFound) — spec.md §4.5 treats them as separate
// on_error causes, not one generic dial failure.
func (s *Service) dialOnce(host string, port int) (clean bool, err error) {
	ctx := s.Context()

	resolved, resolveErr := resolveHost(ctx, host)
	if resolveErr != nil {
		wrapped := fmt.Errorf("%w: %v", ErrHostNotResolved, resolveErr)
		s.handlers.fireError(ctx, s, nil, wrapped)
		return false, wrapped
	}

	addr := net.JoinHostPort(resolved, strconv.Itoa(port))
	raw, dialErr := net.DialTimeout("tcp", addr, 10*time.Second)
	if dialErr != nil {
		wrapped := fmt.Errorf("%w: %v", ErrServiceNotFound, dialErr)
		s.handlers.fireError(ctx, s, nil, wrapped)
		return false, wrapped
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	id := NewConnectionID()
	conn := newConnection(id, raw, s)
	if addErr := s.add(conn); addErr != nil {
		conn.closeWriter()
		_ = conn.shutdown()
		return false, addErr
	}

	// OnDisconnected does not fire below: a connection that never got past
	// OnConnect/OnAccepted never finished becoming an accepted Connection,
	// so it never earned the disconnect notification the read loop promises.
	if cErr := s.handlers.fireConnect(ctx, s, conn); cErr != nil {
		s.handlers.fireError(ctx, s, conn, cErr)
		s.remove(conn.ID)
		conn.closeWriter()
		_ = conn.shutdown()
		return false, cErr
	}
	if aErr := s.handlers.fireAccepted(ctx, s, conn); aErr != nil {
		s.handlers.fireError(ctx, s, conn, aErr)
		s.remove(conn.ID)
		conn.closeWriter()
		_ = conn.shutdown()
		return false, aErr
	}

	return s.runSessionWithCancellationPoll(ctx, conn)
}

// resolveHost turns host into an address dialable by net.DialTimeout.
// Literal IPs skip resolution entirely; everything else goes through the
// default resolver so a DNS failure surfaces distinctly from a later
// connect failure.
func resolveHost(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses for %s", host)
	}
	return addrs[0], nil
}

// runSessionWithCancellationPoll runs conn's session loop on its own
// goroutine and polls s.cfg.PollTick for the Service's cancellation scope
// firing while that loop is still running (spec.md §4.5 step 5). The read
// loop always tears the Connection down itself via closeConnection —
// including on cancellation, through ctx.Err() inside runReadLoop — so this
// poll only needs to report the cancellation through OnError before the
// loop gets there on its own; it never duplicates the teardown.
func (s *Service) runSessionWithCancellationPoll(ctx context.Context, conn *Connection) (clean bool, err error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runReadLoop(s, conn)
	}()

	ticker := time.NewTicker(s.cfg.PollTick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true, nil
		case <-ticker.C:
			if ctx.Err() != nil {
				s.handlers.fireError(context.Background(), s, conn, ErrConnectionCanceled)
				return false, ErrConnectionCanceled
			}
		}
	}
}

// sleepOrCanceled waits for d, returning false early if the Service's
// cancellation scope fires first.
func (s *Service) sleepOrCanceled(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
