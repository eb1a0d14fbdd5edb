package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/config"
	mapperrepo "github.com/Ramsey-B/clover/internal/repositories/mapperdefinition"
	mapperservice "github.com/Ramsey-B/clover/internal/services/mapperdefinition"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/reader"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/formula"
	"github.com/Ramsey-B/clover/pkg/routes/mapper"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/variables"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

type app struct {
	cfg     *config.Config
	model   *meta.Model
	logger  ectologger.Logger
	startup *startup.Startup
	checker *health.Checker

	sqlDB     *sqlx.DB
	db        database.DB
	redis     *redis.Client
	cache     *processor.MapperCache
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	processor *processor.Processor
	server    *http.Server
}

func newApp(cfg *config.Config, model *meta.Model, logger ectologger.Logger) *app {
	a := &app{
		cfg:     cfg,
		model:   model,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		checker: health.NewChecker(version),
	}

	a.startup.AddDependency(startup.Dependency{Name: "database", StartFn: a.startDatabase, StopFn: a.stopDatabase})
	if cfg.RedisAddr != "" {
		a.startup.AddDependency(startup.Dependency{Name: "redis", StartFn: a.startRedis, StopFn: a.stopRedis})
	}
	a.startup.AddDependency(startup.Dependency{Name: "kafka-producer", StartFn: a.startProducer, StopFn: a.stopProducer})
	a.startup.AddDependency(startup.Dependency{
		Name:    "processor",
		After:   a.processorDependencies(),
		StartFn: a.startProcessor,
		StopFn:  a.stopProcessor,
	})
	if cfg.KafkaConsumerEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name:    "kafka-consumer",
			After:   []string{"processor"},
			StartFn: a.startConsumer,
			StopFn:  a.stopConsumer,
		})
	}
	a.startup.AddDependency(startup.Dependency{
		Name:    "http",
		After:   []string{"processor"},
		StartFn: a.startServer,
		StopFn:  a.stopServer,
	})

	return a
}

func (a *app) processorDependencies() []string {
	deps := []string{"database", "kafka-producer"}
	if a.cfg.RedisAddr != "" {
		deps = append(deps, "redis")
	}
	return deps
}

func (a *app) start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.checker.SetReady(true)
	a.logger.WithContext(ctx).Infof("%s is ready on port %d", a.cfg.AppName, a.cfg.Port)
	return nil
}

func (a *app) stop(ctx context.Context) error {
	a.checker.SetReady(false)
	return a.startup.Stop(ctx)
}

func (a *app) startDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, database.Config{
		Host:     a.cfg.DatabaseHost,
		Port:     a.cfg.DatabasePort,
		User:     a.cfg.DatabaseUserName,
		Password: a.cfg.DatabasePassword,
		Name:     a.cfg.DatabaseName,
		SSLMode:  a.cfg.DatabaseSSLMode,
	}, a.logger)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(a.cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(a.cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(a.cfg.DatabaseConnMaxLifetime)

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
	})
	if err := migrations.MigratePostgres(db, a.cfg.DatabaseName); err != nil {
		_ = db.Close()
		return err
	}

	a.sqlDB = db
	a.db = database.NewDatabaseInstance(db, a.logger)
	a.checker.AddCheck("database", health.DatabaseCheck(db))
	return nil
}

func (a *app) stopDatabase(context.Context) error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

func (a *app) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.checker.AddOptionalCheck("redis", health.RedisCheck(client))
	return nil
}

func (a *app) stopRedis(context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *app) startProducer(context.Context) error {
	producerConfig := kafka.DefaultProducerConfig()
	producerConfig.Brokers = a.cfg.KafkaBrokers
	producerConfig.Topic = a.cfg.KafkaOutputTopic
	producerConfig.BatchSize = a.cfg.KafkaBatchSize
	producerConfig.BatchTimeout = time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond
	producerConfig.RequiredAcks = a.cfg.KafkaRequiredAcks
	producerConfig.Compression = a.cfg.KafkaCompression

	producer, err := kafka.NewProducer(producerConfig, a.logger)
	if err != nil {
		return err
	}
	a.producer = producer
	return nil
}

func (a *app) stopProducer(context.Context) error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}

// variableFactory keeps request variables in redis when it is configured.
func (a *app) variableFactory() processor.VariableStoreFactory {
	if a.redis == nil {
		return processor.MemoryVariables
	}
	ttl := time.Duration(a.cfg.VariablesTTLSeconds) * time.Second
	return func(ctx context.Context, requestID string, initial map[string]any) (variables.Store, error) {
		store := variables.NewRedis(a.redis, a.cfg.VariablesKeyPrefix, requestID, ttl)
		if err := store.Seed(ctx, initial); err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (a *app) startProcessor(ctx context.Context) error {
	repo := mapperrepo.NewRepository(a.db, a.logger)
	a.cache = processor.NewMapperCache(repo, a.model, processor.MapperCacheConfig{
		MaxSize: a.cfg.MapperCacheMaxSize,
		TTL:     time.Duration(a.cfg.MapperCacheTTLSeconds) * time.Second,
	})

	processorConfig := processor.DefaultProcessorConfig()
	processorConfig.WorkerCount = a.cfg.ProcessorWorkerCount
	processorConfig.ProcessTimeout = time.Duration(a.cfg.ProcessorTimeoutSeconds) * time.Second
	processorConfig.OutputTopic = a.cfg.KafkaOutputTopic
	processorConfig.ErrorTopic = a.cfg.KafkaErrorTopic

	a.processor = processor.NewProcessor(
		processorConfig,
		a.cache,
		a.producer,
		reader.NewSQL(a.db, a.logger),
		a.variableFactory(),
		a.logger,
	)
	a.processor.Start(ctx)
	return nil
}

func (a *app) stopProcessor(context.Context) error {
	if a.processor != nil {
		a.processor.Stop()
	}
	return nil
}

func (a *app) startConsumer(ctx context.Context) error {
	consumerConfig := kafka.DefaultConsumerConfig()
	consumerConfig.Brokers = a.cfg.KafkaBrokers
	consumerConfig.Topic = a.cfg.KafkaInputTopic
	consumerConfig.GroupID = a.cfg.KafkaConsumerGroup

	consumer, err := kafka.NewConsumer(consumerConfig, a.logger)
	if err != nil {
		return err
	}
	a.consumer = consumer
	consumer.OnInvalid(a.processor.InvalidMessageHandler())
	return consumer.Start(ctx, a.processor.MessageHandler())
}

func (a *app) stopConsumer(context.Context) error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Stop()
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	a.checker.RegisterRoutes(e.Group("/api/v1"))

	auth := middleware.TestAuth()
	if a.cfg.AuthEnabled {
		verify, err := middleware.NewOIDCVerifier(context.Background(), a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			a.logger.WithError(err).Error("Failed to create OIDC verifier, rejecting all authenticated requests")
			verify = func(context.Context, string) (middleware.UserClaims, error) {
				return middleware.UserClaims{}, err
			}
		}
		auth = middleware.Authentication(a.logger, verify)
	} else {
		a.logger.Warn("Authentication is disabled, tenants are taken from request headers")
	}

	api := e.Group("/api/v1", auth)

	service := mapperservice.NewService(mapperrepo.NewRepository(a.db, a.logger), a.model, a.logger)
	mapper.NewHandler(service, a.cache, reader.NewSQL(a.db, a.logger), a.variableFactory(), a.logger).
		Register(api.Group("/mappers"))
	formula.Register(api.Group("/formulas"))

	return e
}

func (a *app) startServer(context.Context) error {
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           a.router(),
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

func (a *app) stopServer(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
