package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/checkout"
	"github.com/vhpx/pleasebuyus-sub000/internal/config"
	"github.com/vhpx/pleasebuyus-sub000/internal/events"
	h "github.com/vhpx/pleasebuyus-sub000/internal/http"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/logger"
	"github.com/vhpx/pleasebuyus-sub000/internal/poller"
	"github.com/vhpx/pleasebuyus-sub000/internal/store"
	"github.com/vhpx/pleasebuyus-sub000/internal/wishlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("cart service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instanceID := cfg.App.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	log = log.With(zap.String("instance_id", instanceID))

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("cart store ready", zap.String("backend", cfg.Store.Backend))

	cat, err := catalog.NewRepository(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer cat.Close()
	if err := cat.RunMigrations(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	carts := ledger.NewRegistry(st, log.Named("ledger"), ledger.WithIdleTTL(cfg.Store.CacheIdleTTL))
	go carts.Run(ctx)
	wishlists := wishlist.NewService(st, log.Named("wishlist"))

	bills, closeBills, err := openBillWriter(cfg, log)
	if err != nil {
		return err
	}
	defer closeBills()

	var publisher checkout.Publisher
	if cfg.Kafka.Enabled() {
		kp := events.NewKafkaPublisher(
			events.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...),
			instanceID,
			log.Named("events"),
		)
		defer kp.Close()
		publisher = kp

		p := poller.NewPoller(
			carts,
			poller.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...),
			instanceID,
			log.Named("poller"),
		)
		defer p.Close()
		go p.Run(ctx)
		log.Info("kafka enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	checkoutSvc := checkout.NewService(carts, bills, publisher, checkout.Options{
		Currency: cfg.Checkout.Currency,
		Breaker: checkout.BreakerSettings{
			MaxFailures:      cfg.Checkout.BreakerMaxFailures,
			OpenTimeout:      cfg.Checkout.BreakerOpenTimeout,
			HalfOpenRequests: 1,
		},
	}, log.Named("checkout"))

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		SecureCookies:  cfg.HTTP.SecureCookies,
	}, h.Services{
		Carts:     carts,
		Wishlists: wishlists,
		Catalog:   cat,
		Checkout:  checkoutSvc,
	}, log.Named("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(router, cfg.App.Name),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	closer := func(c store.Closer) func() {
		return func() {
			if err := c.Close(); err != nil {
				log.Warn("failed to close store", zap.Error(err))
			}
		}
	}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := store.ConnectRedis(connectCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewRedisStore(client, cfg.Store.KeyPrefix, cfg.Store.TTL)
		return s, closer(s), nil

	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, closer(s), nil

	case config.BackendMongo:
		db, err := store.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewMongoStore(db)
		if err := s.CreateIndexes(connectCtx, cfg.Store.TTL); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, closer(s), nil

	case config.BackendPostgres:
		db, err := store.OpenPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewPostgresStore(db)
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, closer(s), nil

	default:
		log.Warn("using in-memory cart store, carts are lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
}

func openBillWriter(cfg *config.Config, log *zap.Logger) (checkout.BillWriter, func(), error) {
	if cfg.Checkout.BillsDSN == "" {
		return checkout.NewMemoryBillWriter(log.Named("bills")), func() {}, nil
	}

	db, err := store.OpenPostgres(cfg.Checkout.BillsDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("bills: %w", err)
	}
	w := checkout.NewPostgresBillWriter(db)
	if err := w.RunMigrations(); err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("bills: %w", err)
	}
	return w, func() { w.Close() }, nil
}
