package approuters

import (
	"Murmur/internal/configuration"
	"Murmur/internal/handler"
	"Murmur/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorService := hub.NewMonitorService(container.Hub)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	monitorGroup := router.Group("/mm/api/monitor")
	{
		monitorGroup.GET("/stats", monitorHandler.GetStats)
	}
}
