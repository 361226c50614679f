// Package api: административный HTTP сервер: состояние процесса, документ
// статуса игрового сервера и метрики Prometheus.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/middleware"
	"github.com/annel0/voxelgate/internal/network"
	"github.com/annel0/voxelgate/internal/world"
)

// GameServer: то, что админка читает у игрового сервера.
type GameServer interface {
	StatusDocument(ctx context.Context) network.StatusDocument
	Connections() int
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     int                  // порт для запуска сервера
	Server   GameServer           // обязателен
	World    *world.World         // nil: без статистики мира
	Registry *prometheus.Registry // nil: prometheus.DefaultRegisterer/DefaultGatherer
}

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	http    *http.Server
	server  GameServer
	world   *world.World
	metrics *ProcessMetrics
	logger  *logging.Logger
}

// NewRestServer создаёт сервер и настраивает маршруты.
func NewRestServer(config Config) *RestServer {
	if config.Port == 0 {
		config.Port = 8088
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// otelgin раньше логгера: логгер берёт trace-id из его span
	router.Use(otelgin.Middleware("admin_api"))
	router.Use(middleware.NewRequestLogger().Handler())

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if config.Registry != nil {
		reg, gatherer = config.Registry, config.Registry
	}
	promMw := middleware.NewPrometheusMiddleware("admin_api", reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	rs := &RestServer{
		router:  router,
		server:  config.Server,
		world:   config.World,
		metrics: NewProcessMetrics(),
		logger:  logging.GetComponentLogger("api"),
	}
	rs.http = &http.Server{
		Addr:              ":" + strconv.Itoa(config.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rs.setupRoutes()
	return rs
}

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/status", rs.handleStatus)
}

// Handler: корневой обработчик, для тестов и встраивания.
func (rs *RestServer) Handler() http.Handler { return rs.router }

// HealthResponse: ответ /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Time        int64        `json:"time"`
	Process     ProcessStats `json:"process"`
	Connections int          `json:"connections"`
	Entities    int          `json:"entities"`
	Chunks      int          `json:"chunks"`
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:      "ok",
		Time:        time.Now().Unix(),
		Process:     rs.metrics.Snapshot(),
		Connections: rs.server.Connections(),
	}
	if rs.world != nil {
		resp.Entities = rs.world.EntityCount()
		resp.Chunks = rs.world.ChunkCount()
	}
	c.JSON(http.StatusOK, resp)
}

// handleStatus отдаёт тот же документ, что и status_response.
func (rs *RestServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, rs.server.StatusDocument(c.Request.Context()))
}

// Start запускает сервер в фоне.
func (rs *RestServer) Start() {
	go func() {
		rs.logger.Info("🛠️ Админка слушает %s", rs.http.Addr)
		if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("❌ Админка остановлена: %v", err)
		}
	}()
}

// Stop завершает запросы и закрывает порт.
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}
