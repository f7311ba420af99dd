package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/alerting"
	"github.com/coachhub/coachhub-api/internal/api"
	"github.com/coachhub/coachhub-api/internal/config"
	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/db"
	"github.com/coachhub/coachhub-api/internal/events"
	"github.com/coachhub/coachhub-api/internal/middleware"
	"github.com/coachhub/coachhub-api/internal/notify"
	"github.com/coachhub/coachhub-api/internal/scheduler"
	"github.com/coachhub/coachhub-api/pkg/cache"
	"github.com/coachhub/coachhub-api/pkg/messagequeue"
)

const serviceName = "coachhub-api"

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(appConfig.GinMode)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(rootCtx, 15*time.Second)
	defer cancelInit()

	fb, err := db.InitFirebase(initCtx, appConfig, logger.Named("firebase"))
	if err != nil {
		logger.Fatal("failed to initialize Firebase", zap.Error(err))
	}
	defer fb.Close()

	plans, err := core.LoadPlanCatalog(appConfig.PlansFile)
	if err != nil {
		logger.Fatal("failed to load plan catalogue", zap.Error(err))
	}

	// --- Repositories ---
	profileRepo := db.NewFirestoreProfileRepository(fb.Firestore)
	subscriptionRepo := db.NewFirestoreSubscriptionRepository(fb.Firestore)
	paymentRepo := db.NewFirestorePaymentRepository(fb.Firestore)
	chatRepo := db.NewFirestoreChatRepository(fb.Firestore)
	notificationRepo := db.NewFirestoreNotificationRepository(fb.Firestore)
	auditRepo := db.NewFirestoreAuditRepository(fb.Firestore)

	// --- Outbound integrations ---
	notifier, err := newNotifier(initCtx, appConfig, fb, logger.Named("notify"))
	if err != nil {
		logger.Fatal("failed to initialize notifier", zap.Error(err))
	}

	var redisClient *redis.Client
	if appConfig.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(initCtx, cache.NewRedisClientConfig{URL: appConfig.RedisURL, Logger: logger.Named("redis")})
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	publisher, err := newPublisher(appConfig, redisClient, logger.Named("events"))
	if err != nil {
		logger.Fatal("failed to initialize event broker", zap.Error(err))
	}
	defer publisher.Close()

	var scanLocker cache.Locker
	if redisClient != nil {
		scanLocker = cache.NewRedisLocker(redisClient, "coachhub:lock:", logger.Named("lock"))
	} else {
		logger.Warn("REDIS_URL is not set, expiration scan runs without a lease")
	}

	var alerter core.Alerter = alerting.NewLogAlerter(logger.Named("alerts"))
	if appConfig.SlackBotToken != "" && appConfig.SlackAlertChannel != "" {
		alerter = alerting.NewSlackAlerter(appConfig.SlackBotToken, appConfig.SlackAlertChannel)
	}

	// --- Services ---
	auditService := core.NewAuditService(auditRepo)
	profileService := core.NewProfileService(profileRepo)
	subscriptionService := core.NewSubscriptionService(core.SubscriptionDeps{
		Subscriptions:   subscriptionRepo,
		Payments:        paymentRepo,
		Profiles:        profileRepo,
		Plans:           plans,
		Notifier:        notifier,
		Events:          publisher,
		Alerter:         alerter,
		Audit:           auditService,
		Location:        appConfig.Location(),
		ScanConcurrency: appConfig.ScanConcurrency,
		ScanLocker:      scanLocker,
		Logger:          logger.Named("subscriptions"),
	})
	chatService := core.NewChatService(core.ChatDeps{
		Chats:         chatRepo,
		Notifications: notificationRepo,
		Profiles:      profileRepo,
		Notifier:      notifier,
		Events:        publisher,
		Logger:        logger.Named("chat"),
	})

	// --- HTTP ---
	if strings.EqualFold(appConfig.GinMode, "release") {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger.Named("http")),
		middleware.RecoveryMiddleware(logger),
		middleware.Metrics(),
		middleware.CORSMiddleware(appConfig.ClientURL, logger),
	)

	identity := middleware.NewFirebaseIdentity(fb.Auth, appConfig.ProviderTimeout)
	authMW := middleware.NewAuthMiddleware(identity, profileService, logger.Named("auth"))
	api.SetupRoutes(router, appConfig, logger, authMW, subscriptionService, chatService)

	// --- Background expiration scan ---
	schedOpts := scheduler.Options{Interval: appConfig.ScanInterval, OnStartup: appConfig.ScanOnStartup, Locker: scanLocker}
	sched := scheduler.New(subscriptionService, schedOpts, logger.Named("scheduler"))
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(rootCtx)
	}()

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	<-schedDone
	logger.Info("server exited")
}

func newLogger(ginMode string) (*zap.Logger, error) {
	if strings.EqualFold(ginMode, "release") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newNotifier(ctx context.Context, appConfig *config.Config, fb *db.Firebase, logger *zap.Logger) (*notify.Notifier, error) {
	var sender notify.EmailSender
	switch appConfig.EmailProvider {
	case "smtp":
		sender = notify.NewSMTPSender(appConfig.SMTPHost, appConfig.SMTPPort, appConfig.SMTPUsername, appConfig.SMTPPassword)
	case "ses":
		ses, err := notify.NewSESSender(ctx, appConfig.AWSRegion)
		if err != nil {
			return nil, err
		}
		sender = ses
	default:
		sender = notify.NewLogSender(logger)
	}

	var pusher notify.Pusher
	if appConfig.PushEnabled && fb.Messaging != nil {
		pusher = notify.NewFCMPusher(fb.Messaging)
	}

	logger.Info("notifier configured", zap.String("emailProvider", appConfig.EmailProvider), zap.Bool("push", pusher != nil))
	return notify.New(sender, pusher, notify.Options{
		From:         appConfig.EmailFrom,
		DashboardURL: appConfig.DashboardURL,
		Timeout:      appConfig.ProviderTimeout,
	}, logger), nil
}

// eventPublisher is what main needs from the configured publisher.
type eventPublisher interface {
	core.EventPublisher
	Close() error
}

func newPublisher(appConfig *config.Config, redisClient *redis.Client, logger *zap.Logger) (eventPublisher, error) {
	var (
		queue messagequeue.MessageQueue
		err   error
	)
	switch appConfig.EventsBroker {
	case "rabbitmq":
		queue, err = messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL, Logger: logger})
	case "nats":
		queue, err = messagequeue.NewNATSService(appConfig.NATSURL, serviceName)
	case "redis":
		queue = messagequeue.NewRedisService(redisClient)
	default:
		logger.Info("no event broker configured, domain events are discarded")
		return events.Noop{}, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("event broker connected", zap.String("broker", appConfig.EventsBroker), zap.String("topic", appConfig.EventsTopic))
	return events.NewPublisher(queue, appConfig.EventsTopic, serviceName, logger), nil
}
