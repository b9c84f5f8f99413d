// Package httpapi exposes the transport fleet and job queue over HTTP:
// liveness/readiness, Prometheus exposition, and a bearer-token-protected
// surface (checked by the configured auth.Validator, static token or JWT)
// for inspecting connections and submitting jobs.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/MorphGrid/Framework/internal/auth"
	"github.com/MorphGrid/Framework/internal/dbpool"
	"github.com/MorphGrid/Framework/internal/jobqueue"
	"github.com/MorphGrid/Framework/internal/observability"
	"github.com/MorphGrid/Framework/internal/transport/session"
)

// API bundles the collaborators the router dispatches to.
type API struct {
	Transport   *session.Service
	Jobs        *jobqueue.Queue
	Validator   auth.Validator
	DB          dbpool.Pool
	CORSOrigins []string

	appeared time.Time
}

// NewRouter builds the gin engine: recovery, request logging/metrics, CORS,
// then the unauthenticated and bearer-token-protected route groups.
func (a *API) NewRouter() *gin.Engine {
	if a.appeared.IsZero() {
		a.appeared = time.Now()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(a.Transport.GetID()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: a.corsOrigins(),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", a.handleHealthz)
	r.GET("/readyz", a.handleReadyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1", RequireAuth(a.Validator))
	v1.GET("/connections", a.handleListConnections)
	v1.DELETE("/connections/:id", a.handleDeleteConnection)
	v1.POST("/jobs", a.handleSubmitJob)
	v1.GET("/jobs/:id", a.handleGetJob)

	return r
}

func (a *API) corsOrigins() []string {
	if len(a.CORSOrigins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return a.CORSOrigins
}

func (a *API) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(a.appeared).String(),
	})
}

func (a *API) handleReadyz(c *gin.Context) {
	ready := a.Transport.GetRunning()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":      ready,
		"port":       a.Transport.GetPort(),
		"connection": a.Transport.Count(),
	})
}
