// Command designflow runs the interior-design workflow engine: it
// resumes persisted projects, accepts signals over HTTP, and drives
// each project through the design pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"designflow/pkg/activity"
	"designflow/pkg/config"
	"designflow/pkg/logx"
	"designflow/pkg/persistence"
	"designflow/pkg/webapi"
	"designflow/pkg/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var configPath string
	var liveMode bool
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&liveMode, "live", false, "Use live AI backends instead of the mock gateway")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config/designflow.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.SetGlobal(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatalf("Failed to create database dir: %v", err)
	}
	if err := persistence.Initialize(cfg.DatabasePath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() { _ = persistence.Close() }()

	var gateway activity.Gateway
	if liveMode {
		store := activity.NewDiskImageStore(filepath.Join(cfg.DataDir, "images"))
		gateway, err = activity.NewGatewayFromConfig(cfg, store)
		if err != nil {
			log.Fatalf("Failed to build activity gateway: %v", err)
		}
		logx.Infof("live mode: image model %s, text provider %s", cfg.Models.ImageModel, cfg.Models.TextProvider)
	} else {
		gateway = activity.NewMockGateway()
		logx.Infof("mock mode: no AI backends will be called")
	}

	registry := workflow.NewRegistry(cfg, gateway, workflow.NewSQLStore())
	if err := registry.Resume(); err != nil {
		log.Fatalf("Failed to resume projects: %v", err)
	}

	server := webapi.NewServer(registry, cfg.MetricsAddr)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logx.Infof("received %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil {
			logx.Warnf("http server stopped: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logx.Warnf("http shutdown: %v", err)
	}
	if err := registry.Shutdown(shutdownTimeout); err != nil {
		logx.Warnf("registry shutdown: %v", err)
	}
	logx.Infof("engine stopped, %d projects will resume on next boot", registry.ActiveCount())
}
