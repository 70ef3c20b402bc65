package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/relaytest"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1965", "Address to listen on")
	username := flag.String("user", "", "Username required in LOGIN (empty accepts any)")
	password := flag.String("password", "", "Password required in LOGIN")
	scriptFile := flag.String("script", "", "YAML script of timed relay lines to play")
	greeting := flag.String("greeting", "", "Lines sent on accept, separated by '|'")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging configuration file")
	flag.Parse()

	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)
	defer logger.Close()

	opts := relaytest.Options{
		Address:  *addr,
		Username: *username,
		Password: *password,
	}
	if *greeting != "" {
		opts.Greeting = strings.Split(*greeting, "|")
	}

	var script relaytest.Script
	if *scriptFile != "" {
		var err error
		script, err = relaytest.LoadScript(*scriptFile)
		if err != nil {
			log.Fatalf("Failed to load script: %v", err)
		}
		logger.Info("Loaded relay script", "path", *scriptFile, "steps", len(script.Steps), "loop", script.Loop)
	}

	relay, err := relaytest.Start(opts)
	if err != nil {
		log.Fatalf("Failed to start mock relay: %v", err)
	}
	logger.Info("Mock relay running", "address", relay.Addr())
	logger.Info("Press Ctrl+C to shutdown")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(script.Steps) > 0 {
		go func() {
			// wait for a viewer before playing so the first lines are not lost
			for relay.Connections() == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			if err := relay.Play(ctx, script); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Script playback failed", "error", err)
			}
			logger.Info("Script playback finished")
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down mock relay")
	relay.Shutdown()
	logger.Info("Mock relay stopped")
}
