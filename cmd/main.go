package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/catalog"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/fleet"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/lock"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, users, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	if err := seedCatalog(ctx, cfg, store); err != nil {
		return err
	}

	locker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	if rl, ok := locker.(*lock.RedisLocker); ok {
		defer rl.Close()
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	if mp, ok := publisher.(*notify.MQTTPublisher); ok {
		defer mp.Close()
	}

	svc := fleet.NewService(store,
		fleet.WithLocker(locker),
		fleet.WithPublisher(publisher),
		fleet.WithPolicy(cfg.Policy()),
		fleet.WithParallelism(cfg.AlertEvalParallelism),
	)

	handler, err := buildHandler(ctx, cfg, svc, users)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "store": cfg.StoreDriver}).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore connects the configured record store and its user collection.
func openStore(ctx context.Context, cfg *config.Config) (db.RecordStore, db.UserCollection, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := db.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
		store := db.NewMongoStore(client, cfg.MongoDB, cfg.MongoTransactions)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, nil, err
		}
		users := &db.MongoUserCollection{Collection: client.Database(cfg.MongoDB).Collection("users")}
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, nil, err
		}
		return store, users, nil

	case config.DriverPostgres:
		store, err := db.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Connected to PostgreSQL")
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, nil, err
		}
		return store, &db.PostgresUserCollection{Pool: store.Pool()}, nil

	default:
		log.Warn("Using in-memory store; data is lost on restart")
		store := db.NewMemoryStore()
		return store, store, nil
	}
}

func seedCatalog(ctx context.Context, cfg *config.Config, store db.RecordStore) error {
	var (
		kinds []models.MaintenanceKind
		err   error
	)
	if cfg.CatalogFile != "" {
		kinds, err = catalog.LoadFile(cfg.CatalogFile)
	} else {
		kinds, err = catalog.Default()
	}
	if err != nil {
		return err
	}
	_, err = catalog.Seed(ctx, store, kinds)
	return err
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		return lock.NewKeyedMutex(), nil
	}
	l, err := lock.NewRedisLocker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	log.WithField("addr", cfg.RedisAddr).Info("Using Redis vehicle locks")
	return l, nil
}

func newPublisher(cfg *config.Config) (notify.Publisher, error) {
	if cfg.MQTTBroker == "" {
		return notify.Noop{}, nil
	}
	return notify.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
}

// buildHandler assembles routes and middleware. With auth disabled every
// caller is treated as an admin and the auth routes are not mounted.
func buildHandler(ctx context.Context, cfg *config.Config, svc *fleet.Service, users db.UserCollection) (http.Handler, error) {
	fh := handlers.NewFleetHandler(svc, time.Local)
	limiter := middleware.NewRateLimitMiddleware()
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second

	var handler http.Handler
	if cfg.AuthEnabled {
		authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
		if err != nil {
			return nil, err
		}
		ah := handlers.NewAuthHandler(authService, users)
		if cfg.AdminUsername != "" {
			if err := ah.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
				return nil, err
			}
		}
		handler = middleware.NewAuthMiddleware(authService).Authenticate(handlers.NewRouter(fh, ah))
	} else {
		log.Warn("Authentication disabled")
		handler = middleware.Anonymous(handlers.NewRouter(fh, nil))
	}

	return middleware.RequestLogger(limiter.RateLimit(cfg.RateLimitRequests, window)(handler)), nil
}
