package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridvale/server/internal/config"
	"github.com/gridvale/server/internal/data"
	"github.com/gridvale/server/internal/game"
	"github.com/gridvale/server/internal/oracle"
	"github.com/gridvale/server/internal/persist"
	"github.com/gridvale/server/internal/scripting"
	"github.com/gridvale/server/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("GRIDVALE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Optional Postgres for snapshot persistence
	var store persist.Store = persist.NopStore{}
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		cancel()
		store = persist.NewSnapshotRepo(db)
		log.Info("snapshot persistence enabled")
	} else {
		log.Info("snapshot persistence disabled")
	}

	// 4. Load the sprite and tile catalog
	catalog, err := data.LoadCatalog(cfg.World.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog loaded", zap.Int("sprites", catalog.SpriteCount()))

	// 5. Lua prompt scripts
	luaEngine, err := scripting.NewEngine(cfg.Scripts.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()

	// 6. Oracle client (canned stub when no endpoint is configured)
	var oracleClient oracle.Client
	if cfg.Oracle.URL == "" {
		oracleClient = oracle.NewStubClient(time.Now().UnixNano())
		log.Warn("no oracle url configured, using canned responses")
	} else {
		oracleClient, err = oracle.NewHTTPClient(cfg.Oracle.URL, cfg.Oracle.Timeout, cfg.Oracle.Temperature, log)
		if err != nil {
			return fmt.Errorf("oracle client: %w", err)
		}
	}

	// 7. Session manager
	manager := game.NewManager(cfg, oracleClient, luaEngine, store, catalog, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	managerDone := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(managerDone)
	}()

	// 8. HTTP + websocket server
	srv := transport.NewServer(cfg.Server, manager, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("server started",
		zap.String("bind", cfg.Server.BindAddress),
		zap.Duration("tick", cfg.Session.TickRate))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	<-managerDone
	log.Info("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
