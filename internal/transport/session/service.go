package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/MorphGrid/Framework/internal/transport/frame"
)

// Role distinguishes a Service's place in the fleet: SERVER binds a port
// and accepts; CLIENT resolves a target and dials it, possibly N times in
// parallel.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Config bundles the knobs spec.md §6 names as defaults, all overridable
// per Service.
type Config struct {
	FrameLimits       frame.Limits
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	MaxAttempts       int
	CooldownAfterIdle time.Duration
	PollTick          time.Duration
	ReadFrameDeadline time.Duration
}

// DefaultConfig returns the defaults spec.md §6 specifies: 500ms base
// backoff delay, 30s cap, unlimited attempts, 200ms reconnect cooldown,
// 100ms supervisor poll tick, 60 minute per-frame read deadline.
func DefaultConfig() Config {
	return Config{
		FrameLimits:       frame.DefaultLimits(),
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       -1,
		CooldownAfterIdle: 200 * time.Millisecond,
		PollTick:          100 * time.Millisecond,
		ReadFrameDeadline: 60 * time.Minute,
	}
}

// Service is a named endpoint (server or client role) owning a dynamic set
// of Connections (spec.md §3/§4.3).
type Service struct {
	ID       string
	Host     string
	port     atomic.Int32
	role     Role
	handlers Handlers
	scale    int
	limits   frame.Limits
	cfg      Config

	running atomic.Bool

	mu    sync.Mutex
	conns map[ConnectionID]*Connection

	cancel context.CancelFunc
	ctx    context.Context

	acceptorDone chan struct{}
}

// NewService constructs a Service. scale < 1 is clamped to 1 (spec.md §9
// Open Questions resolution). handlers are copied by value and never
// mutated afterward.
func NewService(id, host string, port int, role Role, handlers Handlers, scale int, cfg Config) *Service {
	if scale < 1 {
		scale = 1
	}
	if cfg.FrameLimits.MaxFrameSize == 0 {
		cfg.FrameLimits = frame.DefaultLimits()
	}
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		ID:           id,
		Host:         host,
		role:         role,
		handlers:     handlers,
		scale:        scale,
		limits:       cfg.FrameLimits,
		cfg:          cfg,
		conns:        make(map[ConnectionID]*Connection),
		cancel:       cancel,
		ctx:          ctx,
		acceptorDone: make(chan struct{}),
	}
	svc.port.Store(int32(port))
	return svc
}

// GetPort returns the bound port (server mode: the OS-assigned value once
// bound, if the Service was constructed with port 0).
func (s *Service) GetPort() int { return int(s.port.Load()) }

// GetRunning reports the Service's running flag.
func (s *Service) GetRunning() bool { return s.running.Load() }

// GetID returns the Service's id.
func (s *Service) GetID() string { return s.ID }

// GetHost returns the Service's configured host.
func (s *Service) GetHost() string { return s.Host }

// Role returns whether this Service is server- or client-mode.
func (s *Service) Role() Role { return s.role }

func (s *Service) setPort(p int) { s.port.Store(int32(p)) }

// add inserts conn into the registry. Precondition: running == true.
func (s *Service) add(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return ErrNotRunning
	}
	if _, exists := s.conns[conn.ID]; exists {
		return ErrAlreadyPresent
	}
	s.conns[conn.ID] = conn
	return nil
}

// remove deletes id from the registry and reports whether it was present.
// Idempotent: returns true exactly once for a given id.
func (s *Service) remove(id ConnectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	return true
}

// Contains reports whether id is currently registered.
func (s *Service) Contains(id ConnectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[id]
	return ok
}

// Snapshot returns a stable copy of the current Connection set, safe to
// iterate without holding the registry lock (spec.md §4.3).
func (s *Service) Snapshot() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// StopClients sets running=false, fires the Service's cancellation scope,
// and drives every currently-registered Connection to termination: shuts
// down both halves of its socket, fires OnDisconnected (gated so a racing
// read-loop teardown can't double-fire it), then removes it from the
// registry, matching the Closing order closeConnection uses. Per-connection
// errors are aggregated into one multierror and logged; StopClients itself
// never returns an error (spec.md §4.3).
func (s *Service) StopClients() {
	s.running.Store(false)
	s.cancel()

	var errs *multierror.Error
	for _, conn := range s.Snapshot() {
		if err := conn.shutdown(); err != nil {
			errs = multierror.Append(errs, err)
		}
		conn.closeWriter()
		if conn.markDisconnected() {
			s.handlers.fireDisconnected(context.Background(), s, conn)
		}
		s.remove(conn.ID)
	}
	if errs != nil {
		log.Warn().Err(errs).Str("service", s.ID).Msg("transport.stop_clients teardown errors")
	}
}

// CloseConnection tears down one registered Connection by id, driving it
// through the same Closing sequence a natural session end would: the read
// loop blocked in ReadFrame observes the socket close, classifies it, and
// runs closeConnection itself — CloseConnection only needs to shut down the
// socket, not duplicate that bookkeeping. A miss (already gone) is a no-op.
func (s *Service) CloseConnection(id ConnectionID) {
	s.mu.Lock()
	conn, ok := s.conns[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = conn.shutdown()
}

// Context returns the Service's cancellation scope. Firing it (via
// StopClients, or by cancelling a parent scope) cancels every suspended
// operation bound to this Service at its next checkpoint.
func (s *Service) Context() context.Context { return s.ctx }
