package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/powermon/api"
	"example.com/powermon/config"
	"example.com/powermon/internal/cache"
	"example.com/powermon/internal/database"
	"example.com/powermon/internal/messaging"
	"example.com/powermon/internal/notifier"
	"example.com/powermon/internal/repository"
	"example.com/powermon/internal/service"
	"example.com/powermon/internal/telemetry"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Serve command flags
	disableNewRelic bool
	disableMonitor  bool
	serverPort      int
	gracefulTimeout int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitoring service",
	Long: `Starts the powermon API server together with the liveness monitor
that evaluates device heartbeats and records power-state transitions.

The server respects the configuration in config.yaml or specified via the
--config flag. It will gracefully shut down on SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&disableNewRelic, "disable-newrelic", false, "Disable New Relic monitoring")
	serveCmd.Flags().BoolVar(&disableMonitor, "disable-monitor", false, "Serve the API without the liveness monitor")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "Server port (overrides config file)")
	serveCmd.Flags().IntVar(&gracefulTimeout, "graceful-timeout", 30, "Graceful shutdown timeout in seconds")
}

// startServer initializes and starts the API server and the monitor
func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}

	log.WithFields(logrus.Fields{
		"port":             cfg.Server.Port,
		"monitor_enabled":  !disableMonitor,
		"newrelic_enabled": cfg.NewRelic.Enabled && !disableNewRelic,
	}).Info("Initializing service components...")

	// Initialize database with retry logic
	var db database.DB
	maxRetries := 5
	retryInterval := time.Second

	for i := 0; i < maxRetries; i++ {
		log.WithField("attempt", i+1).Info("Connecting to database...")
		db, err = database.Connect(cfg.Database)
		if err == nil {
			break
		}

		log.WithFields(logrus.Fields{
			"error":         err.Error(),
			"retry_attempt": i + 1,
			"max_retries":   maxRetries,
		}).Error("Failed to connect to database, retrying...")

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	if err != nil {
		log.Fatalf("Failed to connect to database after %d attempts: %v", maxRetries, err)
	}

	log.Info("Successfully connected to database")
	defer func() {
		log.Info("Closing database connection...")
		if err := db.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing database connection")
		}
	}()

	// Initialize Redis cache client; fall back to a no-op cache
	log.Info("Connecting to Redis...")
	cacheClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, state cache disabled")
		cacheClient = cache.NewNoopClient()
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing Redis connection")
		}
	}()

	// Initialize transition publisher
	log.Info("Connecting to message broker...")
	publisher, err := messaging.NewServiceBusPublisher(cfg.ServiceBus)
	if err != nil {
		log.Fatalf("Failed to connect to message broker: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing messaging connection")
		}
	}()

	// Initialize notifier
	tgNotifier, err := notifier.NewTelegramNotifier(cfg.Telegram, log)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	// Initialize New Relic if enabled
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && !disableNewRelic {
		log.Info("Initializing New Relic monitoring...")
		nrApp, err = telemetry.InitNewRelic(cfg.NewRelic)
		if err != nil {
			log.Warnf("Failed to initialize New Relic: %v", err)
		}
	}

	// Create repository and service
	repo := repository.NewRepository(db)

	svc, err := service.NewService(service.ServiceConfig{
		Repository:        repo,
		Cache:             cacheClient,
		Logger:            log,
		AutoCreateDevices: cfg.Heartbeat.AutoCreate,
	})
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}

	// Create the liveness monitor
	dispatcher := service.NewDispatcher(repo, tgNotifier, cfg.Telegram.PublicURL, log)
	monitor := service.NewMonitor(cfg.Monitor, repo, dispatcher, publisher, cacheClient, log)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	if !disableMonitor {
		go monitor.Run(monitorCtx)
	}

	// Create and start the server
	log.Info("Initializing API server...")
	server := api.NewServer(cfg, log, nrApp, svc)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithFields(logrus.Fields{
			"port": cfg.Server.Port,
		}).Info("Starting server...")

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-stop
	log.Infof("Received signal %s, shutting down gracefully...", sig.String())

	// Stop issuing new ticks; an in-flight tick may finish.
	stopMonitor()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(gracefulTimeout)*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server...")
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}

	log.Info("Server shutdown complete")
}
