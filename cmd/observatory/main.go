package main

import (
	"context"
	"fmt"
	"net/http"
	ossignal "os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spreadwatch/internal/api"
	"spreadwatch/internal/baseline"
	"spreadwatch/internal/collector"
	"spreadwatch/internal/config"
	"spreadwatch/internal/digest"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/notify"
	"spreadwatch/internal/orderbook"
	"spreadwatch/internal/repository"
	"spreadwatch/internal/service"
	"spreadwatch/internal/signal"
	"spreadwatch/internal/tracker"
	"spreadwatch/internal/universe"
	"spreadwatch/internal/venue"
	"spreadwatch/internal/websocket"
	"spreadwatch/pkg/utils"
)

// main.go - точка входа обсерватории спредов
//
// Сборка конвейера: вселенная тикеров -> коллектор цен -> анализ
// стаканов -> квалификация сигналов -> отслеживание схождения,
// плюс базовые распределения, дайджест, трекер позиций, ops API
// и live лента. Остановка кооперативная: SIGINT/SIGTERM отменяет
// корневой контекст, циклы выходят на ближайшем такте.

func main() {
	// .env опционален; в контейнере конфигурация приходит окружением
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Logging.Development,
	})
	defer log.Sync()

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилища
	db, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("database connect failed", utils.Err(err))
	}
	defer db.Close()

	store, err := kv.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("kv connect failed", utils.Err(err))
	}
	defer store.Close()

	signalRepo := repository.NewSignalRepository(db)
	spreadLogRepo := repository.NewSpreadLogRepository(db)
	trackingRepo := repository.NewConvergenceRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	pairStatsRepo := repository.NewPairStatsRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	baselineRepo := repository.NewBaselineRepository(db)
	zscoreRepo := repository.NewZScoreRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	settings := service.NewSettingsService(settingsRepo, store, log)

	// Доставка алертов
	var notifier notify.Notifier
	if cfg.Telegram.BotToken != "" {
		tg := notify.NewTelegram(cfg.Telegram.BotToken, strconv.FormatInt(cfg.Telegram.ChatID, 10), log)
		defer tg.Close()
		notifier = tg
	} else {
		log.Warn("telegram token not set, alerts disabled")
		notifier = notify.NewNoop()
	}

	// Площадки за circuit breaker
	dex := venue.NewDexScreener(log)
	spot := venue.GuardAdapter(venue.NewBinance(log), log)
	futures := venue.GuardAdapter(venue.NewBybit(log), log)
	perp := venue.GuardAdapter(venue.NewHyperliquid(log), log)
	guardedDex := venue.GuardAdapter(dex, log)
	adapters := []venue.Adapter{spot, futures, perp, guardedDex}

	// Вселенная тикеров
	registry := universe.NewRegistry(store, spot, futures, perp, dex, universe.NewTokenResolver(log), log)
	if err := registry.Restore(ctx); err != nil {
		log.Warn("universe restore failed", utils.Err(err))
	}
	if len(registry.Tickers()) == 0 {
		if err := registry.Build(ctx); err != nil {
			log.Fatal("universe build failed", utils.Err(err))
		}
	}

	// Live лента
	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	// Стадии конвейера
	baselineSvc := baseline.NewService(store, baselineRepo, zscoreRepo, log)
	digestSvc := digest.NewService(cfg.Pipeline, store, notifier, settings, log)
	digestSvc.SetBaselineProvider(baselineSvc)

	coll := collector.New(cfg.Pipeline, registry, adapters, store, settings, log)
	coll.SetBaselineSink(baselineSvc)
	coll.SetDigestSink(digestSvc)
	coll.SetEventPublisher(hub)

	analyzer := orderbook.NewAnalyzer(cfg.Pipeline, adapters, store, settings, log)
	bookPool := orderbook.NewPool(cfg.Pipeline, analyzer, store, log)

	qualifier := signal.NewQualifier(store, signalRepo, spreadLogRepo, trackingRepo, notifier, settings, log)
	qualifier.SetContextProvider(baselineSvc)
	qualifier.SetEventPublisher(hub)

	trk := tracker.New(cfg.Pipeline, store, trackingRepo, snapshotRepo, analysisRepo, pairStatsRepo, notifier, log)
	trk.SetEventPublisher(hub)

	positionTracker := tracker.NewPositionTracker(cfg.Pipeline, store, positionRepo, notifier, log)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			log.Info("component stopped", utils.Component(name))
		}()
	}

	run("universe", func(ctx context.Context) { registry.Run(ctx, cfg.Pipeline.DiscoveryInterval) })
	run("collector", coll.Run)
	run("orderbook_pool", bookPool.Run)
	run("qualifier", qualifier.Run)
	run("tracker", trk.Run)
	run("position_tracker", positionTracker.Run)
	run("baseline", baselineSvc.Run)
	run("digest", digestSvc.Run)

	// Ops API
	router := api.SetupRoutes(&api.Dependencies{
		Config:    cfg.Server,
		DB:        db,
		Store:     store,
		Signals:   signalRepo,
		Trackings: trackingRepo,
		Analyses:  analysisRepo,
		PairStats: pairStatsRepo,
		Positions: positionRepo,
		Settings:  settings,
		Baseline:  baselineSvc,
		Registry:  registry,
		Hub:       hub,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server started", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", utils.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", utils.Err(err))
	}

	wg.Wait()
	log.Info("observatory stopped")
}
