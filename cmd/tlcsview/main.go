package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/tlcsview/internal/bridge"
	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/config"
	"github.com/lawnchairsociety/tlcsview/internal/console"
	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/metrics"
)

func main() {
	configFile := flag.String("config", "data/tlcs.yaml", "Path to client configuration file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging configuration file")
	envFile := flag.String("env", ".env", "Path to .env file (ignored if missing)")
	host := flag.String("host", "", "Relay host (overrides config)")
	port := flag.Int("port", 0, "Relay port (overrides config)")
	username := flag.String("user", "", "Relay username (overrides config)")
	password := flag.String("password", "", "Relay password (overrides config)")
	gameID := flag.String("game", "", "Game to observe (overrides config)")
	autoReconnect := flag.String("auto-reconnect", "", "Auto-reconnect on|off (overrides config)")
	reconnectInterval := flag.Duration("interval", 0, "Reconnect interval, e.g. 2s (overrides config)")
	connectOnStart := flag.Bool("connect", false, "Connect immediately on startup")
	bridgeAddr := flag.String("bridge", "", "Enable the WebSocket bridge on this address (overrides config)")
	hashToken := flag.String("hash-token", "", "Print the bcrypt hash of a bridge token and exit")
	flag.Parse()

	if *hashToken != "" {
		hash, err := bridge.HashToken(*hashToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)
	defer logger.Close()

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Warning("Failed to load .env file", "path", *envFile, "error", err)
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load client config, using defaults", "path", *configFile, "error", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment configuration: %v", err)
	}

	// Command line flags win over file and environment
	if *host != "" {
		cfg.TLCS.Host = *host
	}
	if *port != 0 {
		cfg.TLCS.Port = *port
	}
	if *username != "" {
		cfg.TLCS.Username = *username
	}
	if *password != "" {
		cfg.TLCS.Password = *password
	}
	if *gameID != "" {
		cfg.TLCS.GameID = *gameID
	}
	switch *autoReconnect {
	case "":
	case "on", "true":
		cfg.TLCS.AutoReconnect = true
	case "off", "false":
		cfg.TLCS.AutoReconnect = false
	default:
		log.Fatalf("Invalid -auto-reconnect value %q (want on or off)", *autoReconnect)
	}
	if *reconnectInterval > 0 {
		cfg.TLCS.ReconnectIntervalMS = int(reconnectInterval.Milliseconds())
	}
	if *bridgeAddr != "" {
		cfg.Bridge.Enabled = true
		cfg.Bridge.Address = *bridgeAddr
	}

	logger.Info("Starting tlcsview", "relay", cfg.TLCS.ConnectionConfig().Address(), "bridge", cfg.Bridge.Enabled)

	collector := metrics.New()
	manager := client.New(client.WithMetrics(collector))
	manager.SetAutoReconnect(cfg.TLCS.AutoReconnect)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	term := console.New(manager, cfg.TLCS.ConnectionConfig(), os.Stdout)

	sub := manager.Subscribe()
	g.Go(func() error {
		return term.PrintEvents(gctx, sub)
	})

	g.Go(func() error {
		err := term.Run(gctx, os.Stdin)
		if errors.Is(err, console.ErrInputClosed) && cfg.Bridge.Enabled {
			// headless: keep serving the bridge until a signal arrives
			logger.Info("Console input closed, serving the bridge only")
			return nil
		}
		if err != nil && !errors.Is(err, console.ErrInputClosed) {
			return err
		}
		stop()
		return nil
	})

	var bridgeServer *bridge.Server
	if cfg.Bridge.Enabled {
		if len(cfg.Bridge.AllowedOrigins) == 0 {
			logger.Info("Bridge CORS policy", "mode", "same-origin")
		} else if len(cfg.Bridge.AllowedOrigins) == 1 && cfg.Bridge.AllowedOrigins[0] == "*" {
			logger.Warning("Bridge CORS allows all origins (not recommended)")
		} else {
			logger.Info("Bridge CORS policy", "allowed_origins", cfg.Bridge.AllowedOrigins)
		}
		if cfg.Bridge.TokenHash == "" {
			logger.Warning("Bridge token not configured, any local client may control the session")
		}

		bridgeServer = bridge.New(cfg.Bridge, manager, collector)
		g.Go(func() error {
			return bridgeServer.ListenAndServe()
		})
	}

	if *connectOnStart {
		g.Go(func() error {
			if err := manager.Connect(gctx, cfg.TLCS.ConnectionConfig()); err != nil {
				logger.Warning("Initial connect failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		manager.Close()
		if bridgeServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			bridgeServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("tlcsview stopped: %v", err)
	}
	logger.Info("tlcsview stopped")
}
