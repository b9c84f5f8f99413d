package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/MorphGrid/Framework/internal/config"
	"github.com/MorphGrid/Framework/internal/logging"
	"github.com/MorphGrid/Framework/internal/observability"
	"github.com/MorphGrid/Framework/internal/transport/session"
)

func main() {
	configPath := flag.String("config", "cmd/client/config.toml", "path to client config")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load client config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := session.NewService(cfg.ID, cfg.TargetHost, cfg.TargetPort, session.RoleClient, session.Handlers{
		OnConnect:      onConnect,
		OnAccepted:     onAccepted,
		OnRead:         onRead,
		OnDisconnected: onDisconnected,
		OnError:        onError,
	}, cfg.Scale, cfg.SessionConfig())

	go func() {
		<-ctx.Done()
		transport.StopClients()
	}()

	log.Info().Str("id", cfg.ID).Str("target", cfg.TargetHost).Int("port", cfg.TargetPort).
		Int("scale", cfg.Scale).Msg("client supervisor starting")
	if err := transport.Dial(cfg.TargetHost, cfg.TargetPort); err != nil {
		log.Fatal().Err(err).Msg("transport.dial stopped")
	}
}

func onConnect(ctx context.Context, svc *session.Service, conn *session.Connection) error {
	log.Info().Str("service", svc.GetID()).Str("conn", conn.ID.String()).Msg("transport.connected")
	observability.RecordTransportReconnect(svc.GetID())
	return nil
}

func onAccepted(ctx context.Context, svc *session.Service, conn *session.Connection) error {
	observability.SetTransportConnections(svc.GetID(), svc.Role().String(), svc.Count())
	return conn.Write([]byte("hello"))
}

func onRead(ctx context.Context, svc *session.Service, conn *session.Connection, payload []byte) error {
	observability.RecordTransportFrame(svc.GetID(), "read", "ok")
	log.Debug().Str("conn", conn.ID.String()).Int("bytes", len(payload)).Msg("transport.read")
	return nil
}

func onDisconnected(ctx context.Context, svc *session.Service, conn *session.Connection) {
	log.Info().Str("service", svc.GetID()).Str("conn", conn.ID.String()).Msg("transport.disconnected")
	observability.SetTransportConnections(svc.GetID(), svc.Role().String(), svc.Count())
}

func onError(ctx context.Context, svc *session.Service, conn *session.Connection, err error) {
	log.Warn().Str("service", svc.GetID()).Err(err).Msg("transport.error")
}
