package bootstrap

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"docsearch/internal/ai"
	"docsearch/internal/app"
	"docsearch/internal/config"
	"docsearch/internal/conversation"
	gcsClient "docsearch/internal/platform/gcs"
	mysqlClient "docsearch/internal/platform/mysql"
	rabbitmqClient "docsearch/internal/platform/rabbitmq"
	redisClient "docsearch/internal/platform/redis"
	"docsearch/internal/prompt"
	"docsearch/internal/repository"
	"docsearch/internal/search"
	"docsearch/internal/stage"
	"docsearch/internal/warehouse"
	"docsearch/internal/worker"
)

type App struct {
	Config         *config.Config
	Warehouse      *warehouse.Provider
	Redis          *redis.Client
	MQConn         *amqp.Connection
	Storage        *storage.Client
	FeedbackWorker *worker.FeedbackAuditWorker

	Auth     *app.AuthService
	Catalog  *app.CatalogService
	Chat     *app.ChatService
	Feedback *app.FeedbackService

	StartedAt time.Time
}

// ConfigureLogging applies the configured level and formatter to logrus.
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, using info", cfg.App.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.App.Env != "dev" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// NewCatalog builds only what schema management needs: the warehouse
// provider and the stage.
func NewCatalog(ctx context.Context, cfg *config.Config) (*app.CatalogService, *warehouse.Provider, *storage.Client, error) {
	provider := warehouse.NewProvider(mysqlClient.Opener(cfg.MySQLDSN()), warehouse.WithPrepare(repository.Migrate))
	storageCli, err := gcsClient.New(ctx, cfg.Storage)
	if err != nil {
		_ = provider.Close()
		return nil, nil, nil, err
	}
	store := stage.NewGCSStore(storageCli, cfg.Storage.Bucket, cfg.Storage.ProjectID, cfg.Storage.Prefix)
	return app.NewCatalogService(provider, store, cfg.Storage.Compress), provider, storageCli, nil
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, StartedAt: time.Now()}

	catalog, provider, storageCli, err := NewCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Catalog, a.Warehouse, a.Storage = catalog, provider, storageCli

	// Every fresh warehouse handle is migrated and the stage is created on
	// the first upload, so a dependency that is down here only delays them.
	if err := catalog.EnsureSchema(ctx); err != nil {
		log.WithError(err).Warn("ensure schema failed, retried on next warehouse connect and upload")
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.FeedbackWorker = worker.NewFeedbackAuditWorker(a.MQConn, cfg.RabbitMQ.FeedbackQueue)
	if err := a.FeedbackWorker.Start(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("start feedback worker failed: %w", err)
	}

	a.Auth = app.NewAuthService(provider, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	a.Chat = app.NewChatService(
		conversation.NewRedisStore(a.Redis, time.Duration(cfg.Redis.ConversationTTLMinutes)*time.Minute),
		search.NewClient(cfg.Search),
		ai.NewOpenAIGenerator(cfg.LLM),
		prompt.NewBuilder(cfg.Chat.Instructions, cfg.LLM.HistoryLength),
		app.ChatOptions{
			Columns:        cfg.Search.Columns,
			SearchLimit:    cfg.Search.DefaultLimit,
			Suggestions:    cfg.Chat.Suggestions,
			OfficialDomain: cfg.Chat.OfficialDomain,
			OfficialLabel:  cfg.Chat.OfficialLabel,
		},
	)
	a.Feedback = app.NewFeedbackService(a.Chat, provider, rabbitmqClient.NewFeedbackPublisher(a.MQConn, cfg.RabbitMQ.FeedbackQueue))

	log.WithFields(log.Fields{
		"search_service": cfg.Search.Service,
		"model":          cfg.LLM.Model,
		"bucket":         cfg.Storage.Bucket,
	}).Info("application wired")
	return a, nil
}

// CheckRabbitMQ reports a closed broker connection.
func (a *App) CheckRabbitMQ(context.Context) error {
	if a.MQConn == nil || a.MQConn.IsClosed() {
		return fmt.Errorf("connection closed")
	}
	return nil
}

func (a *App) CheckRedis(ctx context.Context) error {
	return a.Redis.Ping(ctx).Err()
}

func (a *App) Close() error {
	var closeErr error
	if a.FeedbackWorker != nil {
		a.FeedbackWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Warehouse != nil {
		if err := a.Warehouse.Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
