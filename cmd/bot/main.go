package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/handlers"
	"github.com/fusionbot-vk/fusionbot/internal/i18n"
	"github.com/fusionbot-vk/fusionbot/internal/middleware"
	"github.com/fusionbot-vk/fusionbot/internal/services/ai"
	"github.com/fusionbot-vk/fusionbot/internal/services/cache"
	"github.com/fusionbot-vk/fusionbot/internal/services/moderation"
	"github.com/fusionbot-vk/fusionbot/internal/services/reputation"
	"github.com/fusionbot-vk/fusionbot/internal/transport"
	"github.com/fusionbot-vk/fusionbot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("No .env file loaded: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to initialize localizer")
	}

	store, err := reputation.NewManager(cfg, log)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to initialize reputation store")
	}

	metrics := middleware.NewMetrics()
	limiter := middleware.NewRateLimiter(&cfg.RateLimit, metrics, log)
	go limiter.Run(ctx)

	filter := moderation.NewFilter(&cfg.Moderation, localizer, metrics, log)
	respCache := cache.NewResponseCache(&cfg.Cache, metrics, log)
	resolver := ai.NewResolver(&cfg.Models, filter, respCache, localizer, metrics, log)

	vk := transport.NewVK(&cfg.Bot, log)
	moderator := moderation.NewModerator(store, vk, localizer, metrics, log)

	stats := handlers.NewStats()
	dispatcher := handlers.NewDispatcher(cfg, store, resolver, moderator, vk, localizer, metrics, log, stats)
	pipeline := handlers.NewPipeline(cfg, vk, dispatcher, store, filter, limiter, localizer, metrics, log, stats)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithField("port", cfg.Monitoring.Metrics.Port).Info("Starting metrics server")
			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithField("error", err).Error("Metrics server stopped")
			}
		}()
	}

	go pipeline.Run(ctx)
	log.WithFields(logrus.Fields{
		"group_id":  cfg.Bot.GroupID,
		"endpoints": len(cfg.Models.Endpoints),
	}).Info("Bot is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("Shutting down")
	cancel()
}
