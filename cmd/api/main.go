package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"load-request-api-server/config"
	"load-request-api-server/internal/api/routes"
	"load-request-api-server/internal/catalog"
	"load-request-api-server/internal/database"
	"load-request-api-server/internal/lifecycle"
	"load-request-api-server/internal/notify"
	"load-request-api-server/internal/reconcile"
	"load-request-api-server/internal/repository"
	"load-request-api-server/internal/repository/memory"
	mongostore "load-request-api-server/internal/repository/mongo"
	pgstore "load-request-api-server/internal/repository/postgres"
	"load-request-api-server/internal/s3"
)

func main() {
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, skus, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("type", cfg.Database.Type), zap.Error(err))
	}
	defer store.Close(context.Background())

	var archiver reconcile.Archiver
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to init S3 uploader", zap.Error(err))
		}
		archiver = uploader
	} else {
		logger.Warn("S3 bucket not configured; reconciliation export is disabled")
	}

	ids := lifecycle.UUIDGenerator{}
	emitter := notify.NewEmitter(store.Notifications(),
		func() string { return ids.NewID("NTF") },
		logger.Named("notify"),
		notify.WithRetries(cfg.Engine.NotifyRetries),
		notify.WithTimeout(cfg.Engine.OperationTimeout))

	opts := []lifecycle.Option{
		lifecycle.WithIDs(ids),
		lifecycle.WithDirectory(directoryFrom(cfg)),
		lifecycle.WithTimeout(cfg.Engine.OperationTimeout),
		lifecycle.WithOverShipment(cfg.Engine.AllowOverShipment),
		lifecycle.WithLogger(logger.Named("lifecycle")),
	}
	if skus != nil {
		opts = append(opts, lifecycle.WithCatalog(skus))
	}
	engine := lifecycle.NewService(store, emitter, opts...)
	reporter := reconcile.NewReporter(store, archiver, logger.Named("reconcile"),
		reconcile.WithTimeout(cfg.Engine.OperationTimeout))

	router := routes.SetupRouter(cfg, engine, emitter, reporter, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server", zap.String("port", cfg.Server.Port), zap.String("db", cfg.Database.Type))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Mode == "development" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

// openStore connects the configured backend and prepares its schema. The
// memory backend serves SKU details from the configured catalog, if any.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, lifecycle.Catalog, error) {
	switch cfg.Database.Type {
	case "", "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		if len(cfg.Catalog) == 0 {
			return memory.NewStore(), nil, nil
		}
		return memory.NewStore(), catalog.NewStatic(cfg.Catalog), nil

	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Mongo.DBName)
		idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.EnsureMongoIndexes(idxCtx, db, logger); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		return mongostore.NewStore(client, cfg.Mongo.DBName), catalog.NewMongo(db), nil

	case "postgres":
		db, err := database.ConnectPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pgstore.NewStore(db), catalog.NewPostgres(db), nil
	}
	return nil, nil, fmt.Errorf("unknown database type %q", cfg.Database.Type)
}

func directoryFrom(cfg config.Config) lifecycle.StaticDirectory {
	dir := lifecycle.StaticDirectory{
		Depots:           make(map[string]lifecycle.Depot, len(cfg.Depots)),
		DefaultApprovers: cfg.DefaultApprovers,
	}
	for _, d := range cfg.Depots {
		dir.Depots[d.ID] = lifecycle.Depot{
			WarehouseID: d.WarehouseID,
			Approvers:   d.Approvers,
			Truck:       d.Truck,
		}
	}
	return dir
}
