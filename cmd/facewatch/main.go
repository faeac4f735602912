package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture/camera"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture/shmsource"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/config"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/pipeline"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/visibility"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/webmonitor"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/webrtc"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	logger.Info("Main", "facewatch starting (source=%s, detector=%s, mode=%s)",
		cfg.Source, cfg.Detector.Backend, cfg.Detector.Mode)
	logger.Info("Main", "Log level: %s", level)

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
	logger.Info("Main", "Stopped")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var rtc *webrtc.Server
	var sinks []webmonitor.EventSink
	if cfg.WebRTC.Enabled {
		rtc = webrtc.NewServer(cfg.WebRTC.STUNServers, cfg.WebRTC.MaxClients, m)
		defer rtc.Close()
		sinks = append(sinks, rtc)
	}

	events := webmonitor.NewEventBroadcaster(m)
	presenter := webmonitor.NewPresenter(events, sinks...)
	frames := webmonitor.NewFrameBroadcaster(cfg.Web, presenter.View, m)
	frames.Start()
	defer frames.Stop()

	monitor := visibility.NewMonitor(presenter, visibility.WithMetrics(m))

	source, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}

	detector, err := detect.New(cfg.Detector.Backend, cfg.Detector.Options)
	if err != nil {
		_ = source.Close()
		return fmt.Errorf("failed to create detector: %w", err)
	}
	defer detector.Close()

	runner := &pipeline.Runner{
		Source: source,
		Detect: &detect.Async{
			Detector: detector,
			OnResult: frames.Publish,
		},
		Monitor: monitor,
		Metrics: m,
	}

	deps := webmonitor.Deps{
		Presenter:  presenter,
		ICEServers: cfg.WebRTC.STUNServers,
		Events:     events,
		Frames:     frames,
		State:      monitor.Snapshot,
		Metrics:    m,
	}
	if rtc != nil {
		deps.WebRTC = rtc
	}
	httpServer := &http.Server{
		Addr:    cfg.Web.Addr,
		Handler: webmonitor.NewServer(cfg.Web, deps).Handler(),
	}

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("Main", "Starting metrics server on %s", cfg.MetricsAddr)
			if err := m.StartServer(cfg.MetricsAddr); err != nil {
				logger.Error("Main", "Metrics server error: %v", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Main", "Web monitor listening on %s", cfg.Web.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Main", "Monitor stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			logger.Error("Main", "Pipeline stopped: %v", err)
			return
		}
		logger.Info("Main", "Pipeline stopped")
	}()

	// The terminal screen stays reachable after the pipeline stops, until a
	// signal arrives.
	select {
	case <-ctx.Done():
		logger.Info("Main", "Shutting down...")
	case err := <-serverErr:
		stop()
		monitor.Close()
		wg.Wait()
		return fmt.Errorf("HTTP server error: %w", err)
	}

	monitor.Close()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Main", "HTTP shutdown: %v", err)
	}
	return nil
}

func openSource(cfg config.Config) (capture.Source, error) {
	switch cfg.Source {
	case config.SourceCamera:
		return camera.Open(cfg.Camera.Options())
	case config.SourceDir:
		return capture.NewDirSource(cfg.Replay.Dir, cfg.Replay.FPS, cfg.Replay.Rotation, cfg.Replay.Loop)
	case config.SourceShm:
		return shmsource.Open(cfg.Shm.Name, cfg.Shm.PollInterval, cfg.Shm.Rotation)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
