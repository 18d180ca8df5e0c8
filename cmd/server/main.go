// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/northbound/ragcore/internal/app"
	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/server"
	"github.com/northbound/ragcore/internal/worker"
)

var (
	configPath  = flag.String("config", "", "Path to config file (defaults to ./config.yaml if present)")
	workerCount = flag.Int("worker-count", 5, "Number of background ingestion workers")
)

func main() {
	flag.Parse()

	logFile := "ragcore-server.log"
	if _, err := logger.Init(logFile); err != nil {
		log.Printf("failed to initialize logger: %v, using stdout only", err)
	} else {
		logger.Printf("logger initialized, writing to %s", logFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := app.New(ctx, cfg)
	if err != nil {
		logger.Errorf("app: %v", err)
		os.Exit(1)
	}
	defer state.Close()

	var workerCancel context.CancelFunc
	if state.Queue != nil {
		workerCtx, wc := context.WithCancel(ctx)
		workerCancel = wc
		handler := worker.NewIngestHandler(state.IngestDeps())
		go func() {
			if err := worker.StartWorkers(workerCtx, state.Queue, handler, *workerCount); err != nil {
				logger.Errorf("worker: %v", err)
			}
		}()
		logger.Printf("started %d ingestion workers", *workerCount)
	} else {
		logger.Printf("job queue unavailable, ingestion workers not started")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.NewRouter(state),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Printf("HTTP server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(httpServer, workerCancel)
}

func waitForShutdown(httpServer *http.Server, workerCancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if workerCancel != nil {
		workerCancel()
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	if err := logger.GetDefault().Close(); err != nil {
		log.Printf("logger close error: %v", err)
	}
}
