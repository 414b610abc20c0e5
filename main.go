package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "email-analyzer-backend/cmd/api"
	authdomain "email-analyzer-backend/internal/auth/domain"
	authRepo "email-analyzer-backend/internal/auth/repository"
	authUsecase "email-analyzer-backend/internal/auth/usecase"
	emaildomain "email-analyzer-backend/internal/email/domain"
	emailRepo "email-analyzer-backend/internal/email/repository"
	emailUsecase "email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/internal/notification"
	"email-analyzer-backend/internal/scheduler"
	"email-analyzer-backend/pkg/ai"
	"email-analyzer-backend/pkg/config"
	"email-analyzer-backend/pkg/database"
	"email-analyzer-backend/pkg/fcm"
	"email-analyzer-backend/pkg/gmail"
	"email-analyzer-backend/pkg/lock"
	"email-analyzer-backend/pkg/logger"
	"email-analyzer-backend/pkg/pacer"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Setup(cfg.IsProduction())
	log := logger.For("main")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.WithError(err).Warn("sentry disabled")
		}
		defer sentry.Flush(2 * time.Second)
	}
	if cfg.EncryptionKey == "" {
		log.Warn("ENCRYPTION_KEY not set, stored provider tokens use an empty key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}, &emaildomain.Email{}, &emaildomain.EmailReview{}, &emaildomain.DailySummary{}); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	reviewRepository := emailRepo.NewEmailReviewRepository(db)
	summaryRepository := emailRepo.NewEmailSummaryRepository(db)

	credentials := authUsecase.NewCredentialStore(userRepo, cfg.EncryptionKey)
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, gmail.WithTimeout(cfg.ProviderTimeout))

	generator, err := ai.NewGenerator(ctx, ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize AI provider")
	}
	analyzer := ai.NewAnalyzer(generator, cfg.AITimeout)
	log.WithField("provider", cfg.AIProvider).Info("AI provider initialized")

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client)
		log.Info("using redis sync locks")
	}

	mode := gmail.ParseQueryMode(cfg.SyncQueryMode)
	policy := pacer.NewPolicy(cfg.SyncItemDelay, cfg.SyncRateLimitCooldown, cfg.SyncMaxAttempts, cfg.SyncJitter)
	syncService := emailUsecase.NewSyncService(
		credentials, gmailService, analyzer,
		emailRepository, reviewRepository, summaryRepository,
		policy, locker,
		emailUsecase.SyncConfig{
			MaxResults: int64(cfg.SyncMaxResults),
			PageSize:   cfg.DashboardPageSize,
			LockTTL:    cfg.SyncLockTTL,
		},
	)

	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.WithError(err).Warn("FCM disabled")
		} else {
			syncService.SetNotifier(notification.NewActionNotifier(fcmTokenRepo, fcmClient, cfg.FrontendURL))
			log.Info("FCM action notifications enabled")
		}
	}

	runner := emailUsecase.NewRunner(credentials, syncService, userRepo, mode)
	emailUc := emailUsecase.NewEmailUsecase(
		syncService, emailRepository, reviewRepository, summaryRepository,
		analyzer, credentials, gmailService, cfg.GooglePubSubTopic, cfg.DashboardPageSize,
	)
	authUc := authUsecase.NewAuthUsecase(userRepo, fcmTokenRepo, cfg)

	syncQueue := emailUsecase.NewSyncQueue(syncService, 64)
	syncQueue.Start(ctx)
	defer syncQueue.Stop()

	// Gmail push notifications, only when a Pub/Sub project is configured
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		pushHandler := notification.NewPushHandler(userRepo, syncQueue, mode)
		notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GooglePubSubSubscription, cfg.GoogleCredentials, pushHandler)
		if err != nil {
			log.WithError(err).Error("failed to initialize notification service")
		} else {
			defer notifService.Close()
			go notifService.Start(ctx)
		}
	} else {
		log.Warn("GOOGLE_PROJECT_ID not configured, push notifications disabled")
	}

	pipeline, err := scheduler.New(cfg.CronSchedule, cfg.CronTimezone, func(ctx context.Context) {
		stats := runner.RunAll(ctx)
		logger.For("scheduler").WithFields(logrus.Fields{
			"users_processed": stats.UsersProcessed,
			"users_failed":    stats.UsersFailed,
			"users_skipped":   stats.UsersSkipped,
		}).Info("pipeline run finished")
	})
	if err != nil {
		log.WithError(err).Fatal("invalid schedule")
	}
	pipeline.Start()
	defer pipeline.Stop()

	handler := api.NewHandler(authUc, emailUc, runner, syncService, cfg, pipeline.Next)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
}
