package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	cleanups       []func() error
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// ensure the logs folder exists and Setup the logging module.
	err = os.MkdirAll(filepath.Dir(config.LogFile), 0o700)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	clock := NewClock(config.IsProduction)
	logFile := NewLogFileWriter(config)
	logger, flusher := SetupLogging(config, zapcore.AddSync(logFile), zapClock{clock})

	app := &App{
		logger:   logger,
		config:   config,
		cleanups: []func() error{flusher, logFile.Close},
	}

	ids := NewIDsHandler()
	metrics := NewMetrics()

	storage, queue, err := app.setupStorage(config, logger, ids, metrics)
	if err != nil {
		app.Clean()
		return nil, err
	}

	bookService := NewBookService(logger, metrics, config.Store, storage, queue)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		ids,
		metrics,
		bookService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the json timeout handler.
	routerWithTimeout := TimeoutHandler(router, config.Server.RequestTimeout)

	// Build the api server definition.
	app.server = &http.Server{
		Addr:           net.JoinHostPort(config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}

	return app, nil
}

// setupStorage connects the configured book storage. When the replica is enabled it
// also provides the redis queue feeding the boltdb replica and registers its consumer.
// Every opened client is registered for closing.
func (app *App) setupStorage(config *Config, logger *zap.Logger, ids UIDGenerator, metrics *Metrics) (BookStorage, Queuer, error) {
	var storage BookStorage
	var redisClient *redis.Client

	getRedisClient := func() (*redis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		client, err := GetRedisClient(config)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		redisClient = client
		app.cleanups = append(app.cleanups, client.Close)
		return client, nil
	}

	switch config.Store.Driver {
	case FirestoreDriver:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client, err := GetFirestoreClient(ctx, config)
		if err != nil {
			return nil, nil, err
		}
		app.cleanups = append(app.cleanups, client.Close)
		storage = NewFirestoreBookStorage(logger, client, config.Store.Collection)

	case RedisDriver:
		client, err := getRedisClient()
		if err != nil {
			return nil, nil, err
		}
		storage = NewRedisBookStorage(logger, client, ids, config.Store.Collection)

	case BoltDBDriver:
		client, err := GetBoltDBClient(config.BoltDB.FilePath, config.BoltDB.Timeout, config.Store.Collection)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to boltDB server: %s", err)
		}
		app.cleanups = append(app.cleanups, client.Close)
		storage = NewBoltBookStorage(logger, client, ids, config.Store.Collection)
	}

	logger.Info("book storage ready", zap.String("store.driver", config.Store.Driver), zap.String("store.collection", config.Store.Collection))

	if !config.Replica.Enabled {
		return storage, nil, nil
	}

	client, err := getRedisClient()
	if err != nil {
		return nil, nil, err
	}
	boltDBClient, err := GetBoltDBClient(config.BoltDB.FilePath, config.BoltDB.Timeout, config.BoltDB.BucketName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to boltDB server: %s", err)
	}
	app.cleanups = append(app.cleanups, boltDBClient.Close)

	redisQueue := NewRedisQueue(client, config.Store.Collection)
	boltDBConsumer := NewBoltDBConsumer(logger, metrics, redisQueue, NewBoltBookStorage(logger, boltDBClient, ids, config.BoltDB.BucketName))
	app.queueConsumers = append(app.queueConsumers, func(ctx context.Context) error {
		return boltDBConsumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	})
	logger.Info("book replica ready", zap.String("replica.file", config.BoltDB.FilePath), zap.String("replica.bucket", config.BoltDB.BucketName))
	return storage, redisQueue, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions in reverse order so
// the logger is flushed and closed last.
func (app *App) Clean() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		if err := app.cleanups[i](); err != nil {
			fmt.Fprintln(os.Stderr, "cleanup failed:", err)
		}
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
