package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RoanBrand/LWNXProtocol/comwrapper"
	"github.com/RoanBrand/LWNXProtocol/config"
)

// Server wraps the status HTTP server.
type Server struct {
	srv *http.Server
}

// New configures gin with health, readiness, metrics and device status routes.
// statusFn supplies the device snapshots; the service is ready once any device is.
func New(cfg config.HTTPConfig, metricsPath string, metricsHandler http.Handler, statusFn func() []comwrapper.Status) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if statusFn == nil {
			c.String(http.StatusOK, "ready")
			return
		}
		for _, s := range statusFn() {
			if s.Ready() {
				c.String(http.StatusOK, "ready")
				return
			}
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	r.GET("/devices", func(c *gin.Context) {
		devices := []comwrapper.Status{}
		if statusFn != nil {
			devices = statusFn()
		}
		c.JSON(http.StatusOK, gin.H{"devices": devices})
	})
	r.GET("/devices/:name", func(c *gin.Context) {
		if statusFn != nil {
			for _, s := range statusFn() {
				if s.Name == c.Param("name") {
					c.JSON(http.StatusOK, s)
					return
				}
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Start serves until Shutdown; it blocks.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
