package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"queue-watch-go/internal/api/handlers"
	"queue-watch-go/internal/camera"
	"queue-watch-go/internal/config"
	"queue-watch-go/internal/db"
	"queue-watch-go/internal/db/repository"
	"queue-watch-go/internal/detection"
	"queue-watch-go/internal/integrations/mqtt"
	"queue-watch-go/internal/integrations/opencv"
	"queue-watch-go/internal/logger"
	"queue-watch-go/internal/server/sse"
	"queue-watch-go/internal/services/ingest"
	"queue-watch-go/internal/services/retention"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const defaultConfigPath = "/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	log.Info("Initializing database...")
	database, err := db.Open(cfg.DB.File)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := repository.NewSQLiteRepository(database)

	hub := sse.NewHub()
	go hub.Run()

	mqttClient := mqtt.NewClient(cfg.MQTT)
	if err := mqttClient.Start(); err != nil {
		log.Warnf("Failed to connect to MQTT broker: %v. Continuing without MQTT.", err)
	}
	defer mqttClient.Stop()

	detector, err := opencv.NewDetector(cfg.Detection)
	if err != nil {
		log.Fatalf("Failed to load detection model: %v", err)
	}
	defer detector.Close()
	counter := detection.NewCounter(detector, detection.DefaultROI, cfg.Detection.Confidence)

	locator := camera.NewLocator(cfg.Camera.AuthEndpoint, cfg.Camera.PageURL,
		time.Duration(cfg.Camera.CaptureTimeoutSeconds)*time.Second)
	capturer := camera.NewCapturer(locator, cfg.Camera.FFmpegBin, cfg.Camera.PageURL,
		time.Duration(cfg.Camera.CaptureTimeoutSeconds)*time.Second, cfg.Camera.JPEGQuality)

	retentionService := retention.NewService(repo, cfg.Retention)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Worker.Enabled {
		ingestService := ingest.NewService(repo, capturer, counter, mqttClient, hub, retentionService, cfg)
		go ingestService.Run(ctx)
	} else {
		log.Warn("Ingestion worker is disabled in configuration")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	apiHandler := handlers.NewAPIHandler(repo, hub)
	apiHandler.RegisterRoutes(router.Group("/api"))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Infof("Starting server on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	log.Info("Server stopped.")
}
