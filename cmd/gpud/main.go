package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gpud/internal/arbiter"
	"gpud/internal/compute"
	"gpud/internal/config"
	"gpud/internal/health"
	"gpud/internal/httpapi"
	"gpud/internal/lifecycle"
	"gpud/internal/modelapi"
	"gpud/internal/orchestrator"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ""
	if v := os.Getenv("GPUD_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8090")
	configPath := flag.String("config", os.Getenv("GPUD_CONFIG"), "Path to config file (.yaml/.json/.toml)")
	instanceID := flag.String("instance-id", os.Getenv("GPUD_INSTANCE_ID"), "EC2 instance id of the GPU host")
	region := flag.String("region", os.Getenv("GPUD_REGION"), "AWS region of the GPU host")
	instanceURL := flag.String("instance-url", os.Getenv("GPUD_INSTANCE_URL"), "Base URL of the instance-hosted segmentation service")
	serverlessURL := flag.String("serverless-url", os.Getenv("GPUD_SERVERLESS_URL"), "Health URL base of the serverless fallback backend (empty disables)")
	logLevel := flag.String("log-level", envOr("GPUD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	flag.Parse()

	log := newLogger(*logLevel)

	var cfg config.Config
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
		cfg = c
	}
	// Flags override file values.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *instanceID != "" {
		cfg.InstanceID = *instanceID
	}
	if *region != "" {
		cfg.Region = *region
	}
	if *instanceURL != "" {
		cfg.InstanceBaseURL = *instanceURL
	}
	if *serverlessURL != "" {
		cfg.ServerlessBaseURL = *serverlessURL
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := health.NewMonitor(cfg.HealthTTL.D(), cfg.ProbeTimeout.D(), log)

	var lc *lifecycle.Controller
	var loader orchestrator.ModelLoader
	var evictor arbiter.Evictor
	if cfg.InstanceID != "" {
		ec2c, err := compute.NewEC2Client(ctx, cfg.Region, cfg.InstanceID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build EC2 client")
		}
		api := modelapi.New(cfg.InstanceBaseURL)
		loader = api
		evictor = api
		lc = lifecycle.New(ec2c, api, lifecycle.Config{
			BootTimeout:    cfg.BootTimeout.D(),
			ControlTimeout: cfg.ControlTimeout.D(),
			ProbeTimeout:   cfg.ProbeTimeout.D(),
			PollInterval:   cfg.PollInterval.D(),
		}, log)
		monitor.Register(health.BackendInstance, health.ModelServiceProber{Client: api})
		go lc.Run(ctx)
	}
	if cfg.ServerlessBaseURL != "" {
		url := strings.TrimRight(cfg.ServerlessBaseURL, "/") + "/health"
		monitor.Register(health.BackendServerless, health.HTTPProber{URL: url})
	}

	arb := arbiter.New(evictor, cfg.ControlTimeout.D(), log)

	orch := orchestrator.New(orchestrator.Config{
		TrainReadyWait: cfg.TrainReadyWait.D(),
		IdleWindow:     cfg.IdleTimeout.D(),
		StopTimeout:    cfg.ControlTimeout.D(),
	}, lc, monitor, arb, loader, log)

	httpapi.SetLogger(log)
	mux := httpapi.NewMux(orch, httpapi.Options{CORSOrigins: cfg.CORSOrigins})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("instance", cfg.InstanceID).Msg("gpud listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
