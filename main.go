package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/RoanBrand/LWNXProtocol/comwrapper"
	"github.com/RoanBrand/LWNXProtocol/config"
	"github.com/RoanBrand/LWNXProtocol/httpserver"
	"github.com/RoanBrand/LWNXProtocol/logging"
	"github.com/RoanBrand/LWNXProtocol/metrics"
)

// Monitors every configured LWNX device, one goroutine per COM port.
// The config file is named by LWNX_CONFIG or found as config.yaml in the working directory.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("%v (You must have a valid config file, see LWNX_CONFIG)", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("app", cfg.App.Name))

	reg := metrics.NewRegistry()
	link := metrics.NewLinkMetrics(reg)

	monitors := make([]*comwrapper.Monitor, 0, len(cfg.Devices))
	for _, dev := range cfg.Devices {
		monitors = append(monitors, comwrapper.NewMonitor(dev, cfg.Protocol, logger,
			comwrapper.WithLinkRecorder(link.For(dev.Name))))
	}
	status := func() []comwrapper.Status {
		out := make([]comwrapper.Status, len(monitors))
		for i, m := range monitors {
			out[i] = m.Status()
		}
		return out
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpSrv *httpserver.Server
	if cfg.HTTP.Enable {
		var metricsHandler http.Handler
		if cfg.Metrics.Enable {
			metricsHandler = metrics.Handler(reg)
		}
		httpSrv = httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, status)
		go func() {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		logger.Info("http server started", zap.String("addr", cfg.HTTP.Addr))
	}

	w := sync.WaitGroup{}
	for _, m := range monitors {
		w.Add(1)
		go func(m *comwrapper.Monitor) {
			defer w.Done()
			_ = m.ListenAndServe(ctx)
		}(m)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	w.Wait()
}
