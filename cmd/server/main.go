package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MorphGrid/Framework/internal/auth"
	"github.com/MorphGrid/Framework/internal/cacher"
	"github.com/MorphGrid/Framework/internal/config"
	"github.com/MorphGrid/Framework/internal/httpapi"
	"github.com/MorphGrid/Framework/internal/jobqueue"
	"github.com/MorphGrid/Framework/internal/logging"
	"github.com/MorphGrid/Framework/internal/observability"
	"github.com/MorphGrid/Framework/internal/transport/session"
)

func main() {
	configPath := flag.String("config", "cmd/server/config.toml", "path to server config")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load server config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := session.NewService(cfg.ID, cfg.Host, cfg.Port, session.RoleServer, session.Handlers{
		OnConnect:      onConnect,
		OnAccepted:     onAccepted,
		OnRead:         onRead,
		OnDisconnected: onDisconnected,
		OnError:        onError,
	}, 1, cfg.SessionConfig())

	validator := buildValidator(cfg)
	results := cacher.NewMemoryCacher[jobqueue.Result](0, 10*time.Minute)
	jobs := jobqueue.New(cfg.JobWorkers, echoHandler, results)

	api := &httpapi.API{
		Transport:   transport,
		Jobs:        jobs,
		Validator:   validator,
		CORSOrigins: cfg.CORSOrigins,
	}
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: api.NewRouter()}

	go func() {
		if err := jobs.Run(ctx); err != nil {
			log.Error().Err(err).Msg("jobqueue.run stopped")
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("httpapi listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("httpapi stopped")
		}
	}()

	go func() {
		log.Info().Str("id", cfg.ID).Str("host", cfg.Host).Int("port", cfg.Port).Msg("transport server starting")
		if err := transport.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("transport.serve stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	transport.StopClients()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func buildValidator(cfg config.ServerConfig) auth.Validator {
	switch cfg.AuthMode {
	case "jwt":
		return auth.JWTValidator{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}
	default:
		return auth.StaticToken{Token: cfg.StaticToken}
	}
}

func echoHandler(ctx context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

func onConnect(ctx context.Context, svc *session.Service, conn *session.Connection) error {
	log.Debug().Str("service", svc.GetID()).Str("conn", conn.ID.String()).Msg("transport.on_connect")
	return nil
}

func onAccepted(ctx context.Context, svc *session.Service, conn *session.Connection) error {
	log.Info().Str("service", svc.GetID()).Str("conn", conn.ID.String()).
		Str("remote", conn.RemoteAddr().String()).Msg("transport.accepted")
	observability.SetTransportConnections(svc.GetID(), svc.Role().String(), svc.Count())
	return nil
}

func onRead(ctx context.Context, svc *session.Service, conn *session.Connection, payload []byte) error {
	observability.RecordTransportFrame(svc.GetID(), "read", "ok")
	return conn.Write(payload)
}

func onDisconnected(ctx context.Context, svc *session.Service, conn *session.Connection) {
	log.Info().Str("service", svc.GetID()).Str("conn", conn.ID.String()).Msg("transport.disconnected")
	observability.SetTransportConnections(svc.GetID(), svc.Role().String(), svc.Count())
}

func onError(ctx context.Context, svc *session.Service, conn *session.Connection, err error) {
	id := "unknown"
	if conn != nil {
		id = conn.ID.String()
	}
	log.Warn().Str("service", svc.GetID()).Str("conn", id).Err(err).Msg("transport.error")
	observability.RecordTransportFrame(svc.GetID(), "read", "error")
}
