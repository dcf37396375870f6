package backend

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jghoshh/habitsync/backend/config"
	"github.com/jghoshh/habitsync/backend/queue"
	"github.com/jghoshh/habitsync/backend/server"
	"github.com/jghoshh/habitsync/backend/server/auth"
	"github.com/jghoshh/habitsync/backend/server/habits"
	"github.com/jghoshh/habitsync/backend/server/notifications/email"
	"github.com/jghoshh/habitsync/backend/server/stats"
	cache "github.com/jghoshh/habitsync/backend/storage/cache"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/jghoshh/habitsync/lib/logging"
)

// notificationProducers is the number of AMQP producers publishing reminders.
const notificationProducers = 1

// RunBackend is the main function that sets up and runs the backend server.
// It blocks until SIGINT or SIGTERM, then shuts everything down.
func RunBackend() {
	cfg, err := config.Load("backend/.env", ".env")
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stdout})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("backend stopped with an error")
	}
	logging.Info().Msg("backend stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.NewStorage(cfg.StorageDriver, cfg.DBName, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Disconnect(); err != nil {
			logging.Warn().Err(err).Msg("failed to disconnect storage")
		}
	}()
	logging.Info().Str("driver", cfg.StorageDriver).Str("db", cfg.DBName).Msg("storage ready")

	var notifier server.Notifier
	if cfg.NotificationsEnabled() {
		notificationQueue, closeQueue, err := startNotifications(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeQueue()
		notifier = notificationQueue
	} else {
		logging.Info().Msg("RABBITMQ_URL not set, notifications disabled")
	}

	authService := auth.NewService(store, cfg.SigningKey, cfg.TokenTTL)
	habitService := habits.NewService(store, loc)
	statsService := stats.NewService(store, loc)

	srv := server.New(store, authService, habitService, statsService, notifier)
	return srv.Start(ctx, cfg.ListenAddr())
}

// startNotifications connects the reminder pipeline: the optional Redis cache used
// to skip redelivered messages, the SMTP sender and the RabbitMQ queue with its consumers.
func startNotifications(ctx context.Context, cfg *config.Config) (*queue.Queue, func(), error) {
	var processed cache.CacheInterface
	if cfg.RedisURL != "" {
		c, err := cache.NewCache(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		processed = c
	} else {
		logging.Warn().Msg("REDIS_URL not set, redelivered notifications will be sent again")
	}

	sender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
	if err := sender.Ping(); err != nil {
		logging.Warn().Err(err).Msg("SMTP server not reachable, reminders will be retried")
	}

	notificationQueue, err := queue.BuildNotificationQueue(cfg.RabbitMQURL, notificationProducers, cfg.Consumers, processed, sender)
	if err != nil {
		if processed != nil {
			processed.Disconnect()
		}
		return nil, nil, err
	}

	if err := notificationQueue.StartConsumers(ctx); err != nil {
		notificationQueue.Close()
		if processed != nil {
			processed.Disconnect()
		}
		return nil, nil, fmt.Errorf("error starting queue consumers: %w", err)
	}
	logging.Info().Int("consumers", cfg.Consumers).Msg("notification queue ready")

	closeAll := func() {
		if err := notificationQueue.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close notification queue")
		}
		if processed != nil {
			if err := processed.Disconnect(); err != nil {
				logging.Warn().Err(err).Msg("failed to disconnect cache")
			}
		}
	}
	return notificationQueue, closeAll, nil
}
