package main

import (
	"context"
	"fmt"
	"time"

	"larkmcp/internal/audit"
	"larkmcp/internal/bus"
	"larkmcp/internal/config"
	"larkmcp/internal/dispatch"
	"larkmcp/internal/domain"
	"larkmcp/internal/events"
	"larkmcp/internal/handle"
	"larkmcp/internal/lark"
	"larkmcp/internal/metrics"
	"larkmcp/internal/storage"
	"larkmcp/internal/tool"
)

// app is one tool server with its supporting infrastructure.
type app struct {
	registry *tool.Registry
	bus      *bus.EventBus
	metrics  *metrics.MetricsCollector
	journal  *audit.SQLiteStore
	fwd      *events.Forwarder
	fwdDone  chan struct{}
}

func buildApp(ctx context.Context, cfg *config.Config, server string) (*app, error) {
	a := &app{
		bus:     bus.NewEventBus(logger),
		metrics: metrics.NewMetricsCollector(),
	}
	metrics.Attach(a.bus, a.metrics)

	a.registry = tool.NewRegistry(server, a.bus, logger)
	switch server {
	case "lark":
		registerLark(cfg, a)
	case "oss":
		registerOSS(ctx, cfg, a)
	default:
		return nil, fmt.Errorf("unknown server %q (want lark or oss)", server)
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		if cfg.Audit.RetentionDays > 0 {
			if n, err := store.Prune(ctx, time.Duration(cfg.Audit.RetentionDays)*24*time.Hour); err != nil {
				logger.Warn("audit prune failed", "error", err)
			} else if n > 0 {
				logger.Info("audit pruned", "rows", n)
			}
		}
		audit.Attach(a.bus, store, logger)
		a.journal = store
	}

	if cfg.Events.Enabled {
		fwd, err := events.Dial(events.Config{
			URL:        cfg.Events.URL,
			Exchange:   cfg.Events.Exchange,
			Prefix:     server,
			BufferSize: cfg.Events.BufferSize,
			Logger:     logger,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("event forwarder: %w", err)
		}
		fwd.Attach(a.bus)
		a.fwd = fwd
		a.fwdDone = make(chan struct{})
		go func() {
			defer close(a.fwdDone)
			fwd.Run(ctx)
		}()
	}
	return a, nil
}

func registerLark(cfg *config.Config, a *app) {
	larkCfg := lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
		Timeout:   30 * time.Second,
		Logger:    logger,
	}
	bot := handle.New[domain.Messenger]("lark bot", lark.EnvFactory(larkCfg))
	tool.RegisterLarkTools(a.registry, tool.LarkConfig{
		Bot:    bot,
		Router: dispatch.NewRouter(bot, a.bus, logger),
		Connect: func(ctx context.Context, appID, appSecret string) (domain.Messenger, error) {
			c := larkCfg
			c.AppID, c.AppSecret = appID, appSecret
			client, err := lark.Connect(ctx, c)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Logger: logger,
	})
}

func registerOSS(ctx context.Context, cfg *config.Config, a *app) {
	facade := storage.NewFacade(nil, a.bus, logger)
	if cfg.OSS.Endpoint != "" && cfg.OSS.Bucket != "" {
		err := facade.Init(ctx, storage.Options{
			Endpoint:        cfg.OSS.Endpoint,
			Bucket:          cfg.OSS.Bucket,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			Region:          cfg.OSS.Region,
			Verbose:         cfg.OSS.Verbose,
		})
		if err != nil {
			// init_oss can still connect later.
			logger.Warn("preconfigured bucket unavailable", "endpoint", cfg.OSS.Endpoint, "bucket", cfg.OSS.Bucket, "error", err)
		}
	}
	tool.RegisterStorageTools(a.registry, tool.StorageConfig{Facade: facade, Logger: logger})
}

func (a *app) close() {
	if a.fwd != nil {
		if a.fwdDone != nil {
			select {
			case <-a.fwdDone:
			case <-time.After(3 * time.Second):
			}
		}
		if err := a.fwd.Close(); err != nil {
			logger.Warn("event forwarder close", "error", err)
		}
	}
	if a.journal != nil {
		a.journal.Close()
	}
}
