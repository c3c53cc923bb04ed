package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"fwk-assistant/internal/ai"
	appsvc "fwk-assistant/internal/app"
	"fwk-assistant/internal/cache"
	"fwk-assistant/internal/config"
	"fwk-assistant/internal/kv"
	"fwk-assistant/internal/logging"
	mysqlClient "fwk-assistant/internal/platform/mysql"
	rabbitmqClient "fwk-assistant/internal/platform/rabbitmq"
	redisClient "fwk-assistant/internal/platform/redis"
	"fwk-assistant/internal/repository"
	"fwk-assistant/internal/worker"
)

type App struct {
	Config *config.Config

	// KV holds every client's session values, whatever the backend.
	KV        kv.Store
	Gemini    *ai.GeminiClient
	Publisher appsvc.ActivityPublisher

	MySQL          *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	ActivityWorker *worker.ActivityWorker

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:    cfg,
		Publisher: appsvc.NopPublisher{},
		Gemini: ai.NewGeminiClient(ai.GeminiConfig{
			BaseURL: cfg.Gemini.BaseURL,
			Model:   cfg.Gemini.Model,
			Timeout: time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		}),
		StartedAt: time.Now(),
	}

	if err := app.initStorage(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.initMessaging(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	logging.Logger().Info("bootstrap complete",
		"storage", cfg.Storage.Backend,
		"rabbitmq", cfg.RabbitMQ.Enabled,
		"model", cfg.Gemini.Model,
	)
	return app, nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.Config.Storage.Backend {
	case config.StorageRedis:
		client, err := redisClient.New(ctx, a.Config.Redis)
		if err != nil {
			return err
		}
		a.Redis = client
		a.KV = cache.NewRedisStore(client, a.Config.Redis.KeyPrefix, time.Duration(a.Config.Redis.TTLSeconds)*time.Second)
	case config.StorageMySQL:
		db, err := mysqlClient.New(ctx, a.Config.MySQLDSN())
		if err != nil {
			return err
		}
		a.MySQL = db
		a.KV = repository.NewKVRepository(db)
	case config.StorageMemory:
		a.KV = kv.NewMemoryStore(kv.WithTTL(time.Duration(a.Config.Storage.MemoryTTLSeconds) * time.Second))
	default:
		return fmt.Errorf("unknown storage backend %q", a.Config.Storage.Backend)
	}
	return nil
}

func (a *App) initMessaging(ctx context.Context) error {
	if !a.Config.RabbitMQ.Enabled {
		return nil
	}
	conn, err := rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL)
	if err != nil {
		return err
	}
	a.MQConn = conn
	a.Publisher = rabbitmqClient.NewActivityPublisher(conn, a.Config.RabbitMQ.ActivityQueue)

	// The worker outlives the bootstrap context.
	activityWorker := worker.NewActivityWorker(conn, a.Config.RabbitMQ.ActivityQueue)
	if err := activityWorker.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start activity worker failed: %w", err)
	}
	a.ActivityWorker = activityWorker
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.ActivityWorker != nil {
		a.ActivityWorker.Close()
	}
	if closer, ok := a.Publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
