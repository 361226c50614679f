package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/voxelgate/internal/api"
	"github.com/annel0/voxelgate/internal/config"
	"github.com/annel0/voxelgate/internal/eventbus"
	"github.com/annel0/voxelgate/internal/game"
	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/network"
	"github.com/annel0/voxelgate/internal/observability"
	"github.com/annel0/voxelgate/internal/presence"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/storage"
	syncpkg "github.com/annel0/voxelgate/internal/sync"
	"github.com/annel0/voxelgate/internal/world"
)

const shutdownTimeout = 10 * time.Second

// stack собирает функции остановки; вызываются в обратном порядке.
type stack []func(ctx context.Context)

func (s *stack) push(fn func(ctx context.Context)) { *s = append(*s, fn) }

func (s stack) unwind(ctx context.Context) {
	for i := len(s) - 1; i >= 0; i-- {
		s[i](ctx)
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Configure(logging.Options{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		ToFile:  cfg.Logging.ToFile,
		Dir:     cfg.Logging.Dir,
		Console: true,
	})
	if err := logging.InitDefaultLogger("server"); err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer logging.CloseDefaultLogger()
	loggers := logging.GetLoggerManager()
	defer func() {
		if err := loggers.CloseAll(); err != nil {
			logging.Warn("Ошибка закрытия логгеров: %v", err)
		}
	}()
	if err := loggers.ApplyLevels(cfg.Logging.Components); err != nil {
		return errors.Wrap(err, "logging components")
	}
	logger := logging.GetServerLogger()

	logger.Info("🎮 Запуск voxelgate %s, протокол %d (%s)", version,
		protocol.Default().Version(), protocol.Default().VersionName())

	var closers stack
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		closers.unwind(ctx)
		logger.Info("👋 Сервер остановлен")
	}()

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			logger.Warn("⚠️ Трассировка недоступна: %v", err)
		} else {
			closers.push(func(ctx context.Context) {
				if err := shutdown(ctx); err != nil {
					logger.Warn("Ошибка остановки трассировки: %v", err)
				}
			})
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Хранилище чанков
	var store storage.ChunkStore
	switch cfg.World.Storage {
	case "badger":
		bs, err := storage.NewBadgerChunkStore(cfg.World.StoragePath)
		if err != nil {
			return errors.Wrap(err, "open chunk store")
		}
		store = bs
	default:
		store = storage.NewMemoryChunkStore()
	}
	closers.push(func(context.Context) {
		if err := store.Close(); err != nil {
			logger.Warn("Ошибка закрытия хранилища чанков: %v", err)
		}
	})

	// Шина событий
	var bus eventbus.EventBus
	switch cfg.EventBus.Backend {
	case "nats":
		jb, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			return errors.Wrap(err, "connect event bus")
		}
		bus = jb
	default:
		bus = eventbus.NewMemoryBus(1024)
	}
	closers.push(func(context.Context) { _ = bus.Close() })

	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start(5 * time.Second)
	closers.push(func(context.Context) { exporter.Stop() })
	if logging.ParseLevel(cfg.Logging.Level) == logging.TRACE {
		if sub, err := eventbus.StartLoggingListener(bus); err == nil {
			closers.push(func(context.Context) { sub.Unsubscribe() })
		}
	}

	// Мир
	w := world.New(world.Options{
		Registry:      registry.Default(),
		Generator:     world.NewGenerator(cfg.World.Generator, cfg.World.Seed, registry.Default()),
		Store:         store,
		Bus:           bus,
		Source:        cfg.Presence.ServerID,
		ChangeLogSize: cfg.World.ChangeLogSize,
		SaveInterval:  time.Duration(cfg.World.SaveEverySeconds) * time.Second,
	})
	w.Run(ctx)
	closers.push(func(ctx context.Context) {
		if err := w.Close(ctx); err != nil {
			logger.Error("❌ Мир не сохранён: %v", err)
		}
	})

	notifier, err := syncpkg.NewNotifier(ctx, bus)
	if err != nil {
		return errors.Wrap(err, "subscribe notifier")
	}
	closers.push(func(context.Context) { notifier.Stop() })

	// Реестр присутствия
	var pres presence.Registry
	switch cfg.Presence.Backend {
	case "redis":
		rr, err := presence.NewRedisRegistry(ctx, &presence.RedisConfig{
			Addr:     cfg.Presence.RedisAddr,
			ServerID: cfg.Presence.ServerID,
			TTL:      time.Duration(cfg.Presence.TTLSeconds) * time.Second,
		})
		if err != nil {
			return errors.Wrap(err, "connect presence")
		}
		pres = rr
	default:
		pres = presence.NewMemoryRegistry()
	}
	closers.push(func(context.Context) { _ = pres.Close() })

	// Позиции игроков между сессиями
	var positions storage.PositionRepo
	switch cfg.World.Positions {
	case "redis":
		rc := storage.DefaultRedisConfig()
		rc.Addr = cfg.Presence.RedisAddr
		pr, err := storage.NewRedisPositionRepository(ctx, rc)
		if err != nil {
			return errors.Wrap(err, "connect position store")
		}
		positions = pr
	default:
		positions = storage.NewMemoryPositionRepo()
	}
	closers.push(func(context.Context) { _ = positions.Close() })

	mode := config.ParseGameMode(cfg.World.GameMode)
	g := game.New(game.Options{World: w, Positions: positions, GameMode: mode})
	router := network.NewRouter()
	g.Register(router)

	opts := network.OptionsFromConfig(cfg)
	opts.World = w
	opts.Game = g
	opts.Router = router
	opts.Presence = pres
	opts.Notifier = notifier
	opts.Metrics = network.NewMetrics(reg)

	srv, err := network.NewServer(opts)
	if err != nil {
		return err
	}
	if err := srv.Listen(cfg.Server.Address()); err != nil {
		return err
	}
	closers.push(func(context.Context) { srv.Stop() })

	if cfg.Admin.Enabled {
		admin := api.NewRestServer(api.Config{
			Port:     cfg.Admin.GetPort(),
			Server:   srv,
			World:    w,
			Registry: reg,
		})
		admin.Start()
		closers.push(func(ctx context.Context) {
			if err := admin.Stop(ctx); err != nil {
				logger.Warn("Ошибка остановки админки: %v", err)
			}
		})
	}

	logger.Info("✅ Сервер слушает %s", srv.Addr())
	logger.Debug("Логгеры компонентов: %s", strings.Join(loggers.ListComponents(), ", "))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case <-ctx.Done():
	}
	return nil
}
