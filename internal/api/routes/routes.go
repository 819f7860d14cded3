package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"load-request-api-server/config"
	"load-request-api-server/internal/api/handlers"
	"load-request-api-server/internal/api/middleware"
	"load-request-api-server/internal/lifecycle"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/notify"
	"load-request-api-server/internal/reconcile"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// SetupRouter wires the handlers onto /api/v1.
func SetupRouter(
	cfg config.Config,
	engine *lifecycle.Service,
	notifications *notify.Emitter,
	reporter *reconcile.Reporter,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	if len(cfg.Server.AllowedOrigins) > 0 {
		router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	}

	requestHandler := &handlers.LoadRequestHandler{Engine: engine}
	assignmentHandler := &handlers.AssignmentHandler{Engine: engine}
	notificationHandler := &handlers.NotificationHandler{Notifications: notifications}
	reconciliationHandler := &handlers.ReconciliationHandler{Reporter: reporter}
	stockHandler := &handlers.StockHandler{Engine: engine}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	anyRole := []string{models.RoleRequester, models.RoleApprover, models.RoleAdmin}
	deciders := []string{models.RoleApprover, models.RoleAdmin}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Authenticate([]byte(cfg.JWT.Secret)))
	apiV1.Use(middleware.Authorize(anyRole...))
	{
		requests := apiV1.Group("/load-requests")
		{
			requests.POST("", middleware.Authorize(models.RoleRequester), requestHandler.CreateLoadRequest)
			requests.GET("", requestHandler.GetLoadRequests)
			requests.GET("/:id", requestHandler.GetLoadRequestByID)
			requests.GET("/:id/loading-logs", requestHandler.GetLoadingLogs)

			// Ownership is checked by the engine.
			requests.PUT("/:id", requestHandler.UpdateDraft)
			requests.POST("/:id/submit", requestHandler.SubmitLoadRequest)
			requests.POST("/:id/cancel", requestHandler.CancelLoadRequest)

			decide := requests.Group("")
			decide.Use(middleware.Authorize(deciders...))
			{
				decide.POST("/:id/approve", requestHandler.ApproveLoadRequest)
				decide.POST("/:id/reject", requestHandler.RejectLoadRequest)
				decide.POST("/:id/shipment", requestHandler.RecordShipment)
				decide.POST("/:id/complete", requestHandler.CompleteLoadRequest)
				decide.GET("/:id/reconciliation", reconciliationHandler.GetReconciliation)
				decide.POST("/:id/reconciliation/export", reconciliationHandler.ExportReconciliation)
			}
		}

		assignments := apiV1.Group("/assignments")
		assignments.Use(middleware.Authorize(deciders...))
		{
			assignments.GET("", assignmentHandler.GetAssignments)
			assignments.GET("/:id", assignmentHandler.GetAssignmentByID)
			assignments.POST("/:id/start-loading", assignmentHandler.StartLoading)
		}

		notifications := apiV1.Group("/notifications")
		{
			notifications.GET("", notificationHandler.GetMyNotifications)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.DeleteNotification)
		}

		apiV1.GET("/stock/:warehouseID/:skuID", middleware.Authorize(deciders...), stockHandler.GetStockLevel)
	}

	return router
}
