package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"reviewhub/pkg/logger"
	"reviewhub/reviews-service/internal/app/reviews/config"
	"reviewhub/reviews-service/internal/app/reviews/handler"
	"reviewhub/reviews-service/internal/app/reviews/infrastructure"
	"reviewhub/reviews-service/internal/app/reviews/infrastructure/messaging"
	"reviewhub/reviews-service/internal/app/reviews/processor"
	"reviewhub/reviews-service/internal/app/reviews/repository"
	"reviewhub/reviews-service/internal/app/reviews/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("reviews-service", cfg.Log.Level)

	if cfg.Log.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.Log.LogstashAddr, "reviews-service", cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.Log.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище отзывов
	var reviewStore repository.ReviewStore
	switch cfg.Store.Backend {
	case config.StoreBackendMongo:
		mongoClient, err := connectMongoDB(cfg.MongoDB)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
			}
		}()
		logger.Info().
			Str("database", cfg.MongoDB.Database).
			Msg("Connected to MongoDB")

		reviewStore, err = repository.NewReviewRepository(ctx, mongoClient.Database(cfg.MongoDB.Database))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize review repository")
		}
	default:
		logger.Warn().Msg("Using in-memory review store, reviews are lost on restart")
		reviewStore = repository.NewMemoryReviewStore()
	}

	// Справочник имен пользователей
	var users repository.UserDirectory
	if cfg.Postgres.Enabled {
		pool, err := connectDB(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		db, err := openGorm(pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize GORM")
		}
		logger.Info().Str("database", cfg.Postgres.DBName).Msg("Connected to PostgreSQL")

		users = repository.NewUserDirectory(db)
	} else {
		users = repository.NewStaticUserDirectory(nil)
	}

	// Kafka
	var publisher infrastructure.MessagePublisher
	if cfg.Kafka.Enabled {
		kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaProducer.Close()
		publisher = kafkaProducer
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("Initialized Kafka producer")
	}

	// Проверка привязки user_id к IP
	var sessions repository.SessionStore
	if cfg.Session.CheckEnabled {
		redisClient, err := repository.NewRedisClient(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		sessions = repository.NewRedisSessionStore(redisClient)
		defer sessions.Close()
		logger.Info().Str("address", cfg.Redis.Address()).Msg("Session check enabled")
	}

	reviewService := service.NewReviewService(reviewStore, users, publisher)

	statsRefresher := processor.NewStatsRefresher(reviewService)
	if err := statsRefresher.Start(ctx, cfg.Stats.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start stats refresher")
	}
	defer statsRefresher.Stop()

	var sessionHandler *handler.SessionHandler
	if sessions != nil {
		sessionHandler = handler.NewSessionHandler(sessions, cfg.Session.TTL)
	}

	identity := handler.NewIdentityMiddleware(cfg.JWT.Secret, sessions)
	reviewHandler := handler.NewReviewHandler(reviewService)
	router := handler.SetupRoutes(reviewHandler, sessionHandler, identity)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("store", cfg.Store.Backend).
			Msg("Starting Reviews Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Reviews Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Reviews Service stopped gracefully")
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var client *mongo.Client
	var err error

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, clientOptions)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = client.Ping(pingCtx, nil)
			pingCancel()
			if err == nil {
				return client, nil
			}
		}

		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, err
}

// connectDB открывает pgx пул к базе основного сайта
// 10 попыток, пока PostgreSQL поднимается в Docker
func connectDB(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	// Сервис только читает имена, много соединений не нужно
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	var pool *pgxpool.Pool
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to PostgreSQL, retrying...")
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
	}

	return pool, nil
}

// openGorm оборачивает pgx пул в *sql.DB и отдает его GORM
func openGorm(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)

	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}
