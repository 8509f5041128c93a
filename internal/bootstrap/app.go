package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lumina/internal/ai"
	"lumina/internal/app"
	"lumina/internal/backend"
	"lumina/internal/cache"
	"lumina/internal/config"
	"lumina/internal/platform/database"
	rabbitmqClient "lumina/internal/platform/rabbitmq"
	redisClient "lumina/internal/platform/redis"
	"lumina/internal/render"
	"lumina/internal/telemetry"
	"lumina/internal/worker"
)

const sweepInterval = time.Minute

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Markdown *render.Markdown

	// Nil in degraded mode.
	DB       *gorm.DB
	Provider *backend.Provider
	Registry *app.Registry
	Auth     *app.AuthService
	Chat     *app.ChatService

	// Optional.
	Redis      *redis.Client
	MQConn     *amqp.Connection
	AuthWorker *worker.AuthEventWorker

	StartedAt time.Time

	stopTracing func(context.Context) error
	stopSweep   context.CancelFunc
}

// New wires the process. Without store credentials it returns a degraded
// App that only serves health and the configuration screen.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Markdown:  render.NewMarkdown(),
		StartedAt: time.Now(),
	}
	if cfg.Telemetry.MetricsEnabled {
		a.Metrics = telemetry.NewMetrics(cfg.Telemetry.MetricsNamespace)
	}

	stopTracing, err := telemetry.InitTracing(ctx, cfg.App.Name, cfg.Telemetry.TraceFile)
	if err != nil {
		return nil, err
	}
	a.stopTracing = stopTracing

	if !cfg.StoreConfigured() {
		logger.Warn("store credentials missing, starting in configuration-required mode")
		return a, nil
	}

	db, err := database.New(ctx, cfg.Store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		_ = a.Close()
		return nil, err
	}

	var revocations backend.Revocations = cache.NewMemoryRevocations()
	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = redisCli
		revocations = cache.NewRevocationStore(redisCli)
	}

	var publisher backend.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn
		publisher = rabbitmqClient.NewAuthEventPublisher(mqConn, cfg.RabbitMQ.AuthExchange)
	}

	a.Provider = backend.NewProvider(db, backend.Options{
		Secret:              cfg.Store.AnonKey,
		TokenTTL:            time.Duration(cfg.Auth.TokenExpireMinute) * time.Minute,
		RequireConfirmation: cfg.Auth.RequireConfirmation,
		ConfirmBaseURL:      cfg.Auth.ConfirmBaseURL,
		Revocations:         revocations,
		Publisher:           publisher,
		Logger:              logger.Named("backend"),
		Metrics:             a.Metrics,
	})

	if a.MQConn != nil {
		a.AuthWorker = worker.NewAuthEventWorker(a.MQConn, cfg.RabbitMQ.AuthExchange, a.Provider, logger.Named("auth_worker"))
		if err := a.AuthWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start auth event worker failed: %w", err)
		}
	}

	provider, err := ai.NewProvider(cfg.Inference)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if cfg.Inference.APIKey == "" {
		logger.Warn("inference api key missing, replies will use the fallback text")
	}

	a.Auth = app.NewAuthService(a.Provider, logger.Named("auth"))
	a.Chat = app.NewChatService(ai.NewAssistant(provider, logger.Named("ai"), a.Metrics), logger.Named("chat"), a.Metrics)
	a.Registry = app.NewRegistry(
		func() app.Backend { return a.Provider.NewClient() },
		time.Duration(cfg.Client.IdleTimeoutMinute)*time.Minute,
		logger.Named("registry"),
		a.Metrics,
	)

	sweepCtx, cancel := context.WithCancel(context.Background())
	a.stopSweep = cancel
	go a.Registry.Run(sweepCtx, sweepInterval)

	return a, nil
}

// Configured reports whether the store is wired.
func (a *App) Configured() bool {
	return a.Provider != nil
}

func (a *App) Close() error {
	var closeErr error
	if a.stopSweep != nil {
		a.stopSweep()
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.AuthWorker != nil {
		a.AuthWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.stopTracing(ctx); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
