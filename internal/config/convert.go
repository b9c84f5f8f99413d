package config

import (
	"github.com/MorphGrid/Framework/internal/transport/frame"
	"github.com/MorphGrid/Framework/internal/transport/session"
)

// SessionConfig builds a transport session.Config from a ServerConfig's
// frame and deadline settings, leaving backoff/cooldown/poll at their
// server-side defaults (a server never reconnects).
func (cfg ServerConfig) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.FrameLimits = frame.Limits{MaxFrameSize: uint32(cfg.FrameMaxBytes)}
	sc.ReadFrameDeadline = cfg.ReadDeadline()
	return sc
}

// SessionConfig builds a transport session.Config from a ClientConfig's
// backoff, cooldown, and frame settings.
func (cfg ClientConfig) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.FrameLimits = frame.Limits{MaxFrameSize: uint32(cfg.FrameMaxBytes)}
	sc.BaseDelay = cfg.BaseDelay()
	sc.MaxDelay = cfg.MaxDelay()
	sc.MaxAttempts = cfg.MaxAttempts
	return sc
}
