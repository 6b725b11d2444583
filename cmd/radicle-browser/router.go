package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bordumb/RadicleApp/internal/browser/controller"
	"github.com/bordumb/RadicleApp/internal/browser/handlers"
	"github.com/bordumb/RadicleApp/internal/browser/service"
	"github.com/bordumb/RadicleApp/internal/common/config"
	"github.com/bordumb/RadicleApp/internal/common/httpmw"
	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/events/bus"
	gateways "github.com/bordumb/RadicleApp/internal/gateway/websocket"
)

const serverName = "radicle-browser"

func newRouter(cfg *config.Config, svc *service.Service, hub *gateways.Hub, eventBus bus.EventBus, log *logger.Logger) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(log, serverName))
	router.Use(httpmw.OtelTracing(serverName))
	router.Use(httpmw.CORS())

	handlers.RegisterRoutes(router, controller.NewController(svc), log)
	gateways.RegisterRoutes(router, hub, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"event_bus": eventBus.IsConnected(),
		})
	})
	return router
}
