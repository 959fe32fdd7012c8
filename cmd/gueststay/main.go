package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gueststay/internal/app/commands"
	"gueststay/internal/app/eventsourcing"
	"gueststay/internal/app/handlers/gueststay"
	"gueststay/internal/app/middleware"
	"gueststay/internal/app/queries"
	"gueststay/internal/app/uow"
	"gueststay/internal/infra/broker/kafka"
	rediscache "gueststay/internal/infra/cache/redis"
	"gueststay/internal/infra/config"
	mongodb "gueststay/internal/infra/db/mongo"
	"gueststay/internal/infra/db/scylla"
	"gueststay/internal/infra/folio"
	"gueststay/internal/infra/grpchealth"
	ginserver "gueststay/internal/infra/http/gin"
	"gueststay/internal/infra/obs"
	infraoutbox "gueststay/internal/infra/outbox"
	"gueststay/internal/infra/storage/memory"
	"gueststay/internal/infra/storage/s3"
	"gueststay/internal/infra/validation"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every deferred cleanup so main can exit with a status code only
// after connections are closed.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		return err
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return err
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	if app.relay != nil {
		group.Go(func() error {
			logger.Info("outbox relay starting", "brokers", cfg.KafkaBrokers)
			if err := app.relay.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	if cfg.GRPCHealthAddr != "" {
		grpcHealth := &grpchealth.Server{Addr: cfg.GRPCHealthAddr, Probe: app.health.Probe, Logger: logger}
		group.Go(func() error {
			if err := grpcHealth.Run(groupCtx); err != nil {
				return fmt.Errorf("grpc health: %w", err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
		return err
	}
	logger.Info("service stopped")
	return nil
}

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	relay    *infraoutbox.Worker
	closers  []func(context.Context) error
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

// storage is what one STORAGE_DRIVER contributes to the application.
type storage struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	outbox      infraoutbox.Store
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{health: obs.HealthHandlers{Checks: map[string]obs.Check{}}}

	st, err := app.openStorage(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	var hooks []eventsourcing.CommitHook
	var cache gueststay.DetailsCache
	if cfg.CacheEnabled() {
		rdb, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		app.health.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		cache = rediscache.NewStayDetailsCache(rdb, cfg.CacheTTL, logger)
		hooks = append(hooks, gueststay.CacheInvalidation{Cache: cache})
	}

	accounts := gueststay.NewAccounts(gueststay.AccountsOptions{
		UoWFactory:  st.factory,
		Logger:      logger,
		MaxAttempts: cfg.CommandMaxAttempts,
		Hooks:       hooks,
	})
	module := gueststay.Module{
		CheckIn:       &gueststay.CheckInHandler{Accounts: accounts},
		RecordCharge:  &gueststay.RecordChargeHandler{Accounts: accounts},
		RecordPayment: &gueststay.RecordPaymentHandler{Accounts: accounts},
		CheckOut:      &gueststay.CheckOutHandler{Accounts: accounts},
		GetDetails:    &gueststay.GetDetailsHandler{UoWFactory: st.factory, Cache: cache},
		ExportFolio:   &gueststay.ExportFolioHandler{UoWFactory: st.factory},
	}
	if cfg.FolioEnabled() {
		folios, err := s3.NewFolioStore(s3.Options{
			Endpoint:  cfg.S3.Endpoint,
			UseSSL:    cfg.S3.UseSSL,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			LinkTTL:   cfg.S3.LinkTTL,
			Logger:    logger,
		})
		if err != nil {
			app.close(logger)
			return nil, err
		}
		module.ExportFolio.Renderer = folio.PDFRenderer{}
		module.ExportFolio.Storage = folios
	}

	commandBus := commands.NewInMemoryBus()
	module.RegisterCommands(commandBus)
	queryBus := queries.NewInMemoryBus()
	module.RegisterQueries(queryBus)

	validator := validation.New()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Idempotency(st.idempotency, middleware.IdempotencyOptions{TTL: cfg.IdempotencyTTL, Logger: logger}),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryValidation(validator),
	)

	if cfg.PublishingEnabled() {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "gueststay", nil)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
		app.relay = &infraoutbox.Worker{
			Store:       st.outbox,
			Producer:    producer,
			Logger:      logger,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
		}
	}

	app.handlers = ginserver.Handlers{
		GuestStays: ginserver.GuestStayHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
	}
	return app, nil
}

func (a *application) openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo, config.DriverScylla:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.health.Checks["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		factory := mongodb.Factory{DB: client.DB}
		st := storage{idempotency: mongodb.NewIdempotencyStore(client.DB)}
		if cfg.PublishingEnabled() {
			box := infraoutbox.NewMongoStore(client.DB)
			if err := box.EnsureIndexes(ctx); err != nil {
				return storage{}, fmt.Errorf("outbox indexes: %w", err)
			}
			factory.Outbox = box
			st.outbox = box
		}
		if cfg.StorageDriver == config.DriverScylla {
			session, err := scylla.NewSession(ctx, cfg.Scylla, logger)
			if err != nil {
				return storage{}, err
			}
			a.closers = append(a.closers, func(context.Context) error { session.Close(); return nil })
			events := scylla.NewEventStore(session, logger)
			a.health.Checks["scylla"] = events.Ping
			factory.Events = events
		}
		st.factory = factory
		return st, nil
	default:
		var opts []memory.Option
		if cfg.PublishingEnabled() {
			opts = append(opts, memory.WithOutbox())
		}
		store := memory.NewStore(opts...)
		a.health.Checks["memory"] = store.Ping
		logger.Warn("using in-memory storage; state is lost on restart")
		return storage{
			factory:     memory.Factory{Store: store},
			idempotency: memory.NewIdempotencyStore(),
			outbox:      store,
		}, nil
	}
}
