package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spreadwatch/internal/api/handlers"
	"spreadwatch/internal/api/middleware"
	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/repository"
	"spreadwatch/internal/service"
	"spreadwatch/internal/universe"
	"spreadwatch/internal/websocket"
)

// routes.go - маршруты ops API
//
// Структура:
//
// /api/v1/
//
//	├── /signals                      GET    список сигналов
//	├── /signals/{id}                 GET    сигнал + отслеживание + анализ
//	├── /trackings                    GET    отслеживания (active|closed)
//	├── /stats/pairs                  GET    статистика исходов пар
//	├── /stats/overview               GET    агрегатные счетчики
//	├── /baseline/{pair}/{symbol}     GET    историческая норма
//	├── /blacklist/{kind}             GET/POST черные списки
//	├── /blacklist/{kind}/{value}     DELETE
//	├── /settings                     GET/PATCH настройки
//	├── /settings/overrides           GET    горячие переопределения
//	├── /settings/overrides/{field}   PUT/DELETE
//	├── /positions                    POST   "я вошел"
//	├── /positions/{id}/close         POST
//	├── /positions/{id}/result        POST   итог сделки
//	└── /universe                     GET    вселенная тикеров
//
// /ws/stream  - live лента событий
// /health     - liveness (ping БД и KV)
// /metrics    - Prometheus
//
// Middleware: Recovery -> Logging -> CORS на всех маршрутах;
// мутирующие admin маршруты дополнительно за bearer токеном.
type Dependencies struct {
	Config    config.ServerConfig
	DB        *sql.DB
	Store     *kv.Client
	Signals   *repository.SignalRepository
	Trackings *repository.ConvergenceRepository
	Analyses  *repository.AnalysisRepository
	PairStats *repository.PairStatsRepository
	Positions *repository.PositionRepository
	Settings  *service.SettingsService
	Baseline  handlers.BaselineSource
	Registry  *universe.Registry
	Hub       *websocket.Hub
}

// SetupRoutes собирает router ops API
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	signalHandler := handlers.NewSignalHandler(deps.Signals, deps.Trackings, deps.Analyses, deps.Positions)
	trackingHandler := handlers.NewTrackingHandler(deps.Trackings)
	statsHandler := handlers.NewStatsHandler(deps.PairStats, deps.Store)
	blacklistHandler := handlers.NewBlacklistHandler(deps.Store)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings)
	positionHandler := handlers.NewPositionHandler(deps.Positions, deps.Signals)

	api := router.PathPrefix("/api/v1").Subrouter()
	token := deps.Config.AuthToken

	// Читающие маршруты
	api.HandleFunc("/signals", signalHandler.List).Methods("GET")
	api.HandleFunc("/signals/{id}", signalHandler.Get).Methods("GET")
	api.HandleFunc("/trackings", trackingHandler.List).Methods("GET")
	api.HandleFunc("/stats/pairs", statsHandler.Pairs).Methods("GET")
	api.HandleFunc("/stats/overview", statsHandler.Overview).Methods("GET")
	api.HandleFunc("/blacklist/{kind}", blacklistHandler.List).Methods("GET")
	api.HandleFunc("/settings", settingsHandler.Get).Methods("GET")
	api.HandleFunc("/settings/overrides", settingsHandler.Overrides).Methods("GET")

	if deps.Baseline != nil {
		baselineHandler := handlers.NewBaselineHandler(deps.Baseline)
		api.HandleFunc("/baseline/{pair}/{symbol}", baselineHandler.Get).Methods("GET")
	}
	if deps.Registry != nil {
		universeHandler := handlers.NewUniverseHandler(deps.Registry)
		api.HandleFunc("/universe", universeHandler.Get).Methods("GET")
	}

	// Мутирующие admin маршруты за токеном
	api.Handle("/blacklist/{kind}", middleware.RequireAuth(token, http.HandlerFunc(blacklistHandler.Add))).Methods("POST")
	api.Handle("/blacklist/{kind}/{value}", middleware.RequireAuth(token, http.HandlerFunc(blacklistHandler.Remove))).Methods("DELETE")
	api.Handle("/settings", middleware.RequireAuth(token, http.HandlerFunc(settingsHandler.Update))).Methods("PATCH")
	api.Handle("/settings/overrides/{field}", middleware.RequireAuth(token, http.HandlerFunc(settingsHandler.SetOverride))).Methods("PUT")
	api.Handle("/settings/overrides/{field}", middleware.RequireAuth(token, http.HandlerFunc(settingsHandler.DeleteOverride))).Methods("DELETE")
	api.Handle("/positions", middleware.RequireAuth(token, http.HandlerFunc(positionHandler.Create))).Methods("POST")
	api.Handle("/positions/{id}/close", middleware.RequireAuth(token, http.HandlerFunc(positionHandler.CloseFunc))).Methods("POST")
	api.Handle("/positions/{id}/result", middleware.RequireAuth(token, http.HandlerFunc(positionHandler.RecordResult))).Methods("POST")

	// Live лента
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	// Liveness: процесс жив, если отвечают обе базы
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if deps.Store != nil {
			if err := deps.Store.Ping(ctx); err != nil {
				http.Error(w, "kv unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
