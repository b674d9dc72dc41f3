// Package api serves the DealScout JSON API, including server-sent event and
// websocket streams of running negotiations.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/dealscout/internal/scout"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service     *scout.Service
	Port        int
	CORSOrigins []string
	Out         io.Writer
	Logger      *log.Logger
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil || opts.Service.DB == nil {
		return fmt.Errorf("api: service with db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8000
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.Service, opts.CORSOrigins, opts.Logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *scout.Service, corsOrigins []string, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors(corsOrigins))

	h := &handlers{svc: svc, origins: corsOrigins, logger: logger}
	registerRoutes(router, h)
	return router
}
