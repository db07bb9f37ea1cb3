package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tg_weather_bot/internal/api"
	"tg_weather_bot/internal/auth"
	"tg_weather_bot/internal/config"
	"tg_weather_bot/internal/credentials"
	"tg_weather_bot/internal/dashboard"
	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/feature/gate"
	"tg_weather_bot/internal/feature/operator"
	"tg_weather_bot/internal/feature/subscription"
	"tg_weather_bot/internal/health"
	"tg_weather_bot/internal/logging"
	"tg_weather_bot/internal/metrics"
	"tg_weather_bot/internal/store"
	"tg_weather_bot/internal/telegram"
	"tg_weather_bot/internal/weather"
)

const (
	mongoConnectTimeout      = 10 * time.Second
	mongoIndexTimeout        = 5 * time.Second
	mongoDisconnectTimeout   = 5 * time.Second
	credentialsLoadTimeout   = 5 * time.Second
	operatorBootstrapTimeout = 5 * time.Second
	httpShutdownTimeout      = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
		"port":     cfg.HTTPPort,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg, logging.For("store"))
	cancel()
	if err != nil {
		fatal(logger.WithError(err), "mongo connection error", err)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	err = mongoManager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		fatal(logger.WithError(err), "mongo index setup error", err)
	}

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	creds := credentials.NewStore(mongoManager.Settings(), cfg.WeatherAPIKey, cfg.TelegramToken, logging.For("credentials"),
		credentials.WithTokenVerifier(telegram.NewTokenVerifier("")),
	)
	credsCtx, cancelCreds := context.WithTimeout(context.Background(), credentialsLoadTimeout)
	err = creds.Load(credsCtx)
	cancelCreds()
	if err != nil {
		fatal(logger.WithError(err), "credentials load error", err)
	}

	if cfg.AdminEmail != "" {
		if err := bootstrapOperator(cfg, mongoManager); err != nil {
			fatal(logger.WithError(err), "operator bootstrap error", err)
		}
	}

	chatUsers := domain.NewChatUserRepository(mongoManager.Users())
	operators := domain.NewOperatorRepository(mongoManager.Operators())
	statsProvider := store.NewStatsProvider(mongoManager.Users())

	botLogger := logging.For("telegram")
	chatGate := gate.New(chatUsers, botLogger)
	weatherClient := weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherTimeout, creds)
	weatherService := weather.NewService(chatGate, weatherClient, logging.For("weather"))

	dashboardLogger := logging.For("dashboard")
	hub := dashboard.NewHub(dashboard.DefaultBuffer, dashboardLogger)
	authService := auth.NewService(operators, cfg.JWTSecret, cfg.SessionTTL, logging.For("auth"))

	dispatcher := telegram.NewDispatcher(telegram.Dependencies{
		Gate:          chatGate,
		Users:         chatUsers,
		Subscriptions: subscription.NewRegistrar(mongoManager.Users(), botLogger),
		Weather:       weatherService,
		Events:        hub,
	}, botLogger)

	tgClient, err := telegram.NewClient(creds.TelegramToken(), botLogger,
		telegram.WithUpdateHandler(dispatcher.HandlerFunc()),
		telegram.WithTokenChanges(creds.TelegramTokenChanges()),
	)
	if err != nil {
		fatal(logger.WithError(err), "telegram client setup error", err)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	metrics.Register()
	apiLogger := logging.For("api")

	router := api.NewRouter(api.Dependencies{
		Users:         chatUsers,
		Stats:         statsProvider,
		Credentials:   creds,
		Auth:          authService,
		Events:        hub,
		Health:        health.NewHandler(mongoManager, tgClient, apiLogger),
		Metrics:       metrics.Handler(),
		Live:          dashboard.NewHandler(hub, authService, cfg.BaseURL, dashboardLogger),
		AllowedOrigin: cfg.BaseURL,
	}, apiLogger)
	httpServer := api.NewServer(cfg.HTTPPort, router, apiLogger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		tgClient.Start(gCtx)
		if gCtx.Err() == nil {
			logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
			return errors.New("telegram polling stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		return httpServer.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.WithField("event", "shutdown_signal").Info("stopping http server and telegram polling")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancelShutdown()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithField("event", "run_error").WithError(err).Error("service stopped with error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func bootstrapOperator(cfg config.Config, mongoManager *store.Manager) error {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operatorBootstrapTimeout)
	defer cancel()

	_, err = operator.NewRegistrar(mongoManager.Operators(), logging.For("auth")).EnsureOperator(ctx, cfg.AdminEmail, hash)
	return err
}

func fatal(entry *logrus.Entry, msg string, err error) {
	entry.Error(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
