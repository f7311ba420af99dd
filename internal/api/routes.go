package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/config"
	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/middleware"
	"github.com/coachhub/coachhub-api/internal/models"
	"github.com/coachhub/coachhub-api/internal/observability"
)

// SetupRoutes registers every route. Global middleware (request id, logging, recovery, CORS,
// metrics) is expected to be attached to router already.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
	subscriptionService core.SubscriptionService,
	chatService core.ChatService,
) {
	r := responder{logger: logger, exposeErrors: appConfig.IsDevelopment()}

	subscriptionHandler := NewSubscriptionHandler(subscriptionService, r)
	chatHandler := NewChatHandler(chatService, r)
	profileHandler := NewProfileHandler(r)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{Success: true, Message: "CoachHub API is healthy"})
	})
	router.GET("/metrics", observability.MetricsHandler())

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/subscriptions/plans", subscriptionHandler.ListPlans)

		authed := apiGroup.Group("", authMW.VerifyToken())
		authed.GET("/me", profileHandler.Me)

		subscriptions := authed.Group("/subscriptions")
		{
			subscriptions.POST("", middleware.RequireRole(models.RoleAdmin), subscriptionHandler.Create)
			subscriptions.POST("/renew", middleware.RequireRole(models.RoleAdmin, models.RoleEmployee), subscriptionHandler.Renew)
			subscriptions.GET("/employee/:employeeId", subscriptionHandler.GetForEmployee)
			subscriptions.GET("/employee/:employeeId/payments", subscriptionHandler.ListPayments)
			subscriptions.POST("/check-expirations", middleware.RequireRole(models.RoleAdmin), subscriptionHandler.CheckExpirations)
		}

		chat := authed.Group("/chat")
		{
			chat.POST("/send", chatHandler.Send)
			chat.POST("/create-or-get", chatHandler.CreateOrGet)
			chat.GET("/messages/:chatId", chatHandler.Messages)
			chat.POST("/reaction", chatHandler.React)
			chat.GET("/conversations", chatHandler.Conversations)
			chat.POST("/read/:chatId", chatHandler.MarkRead)
			chat.GET("/unread-count", chatHandler.UnreadCount)
			chat.GET("/contacts", chatHandler.Contacts)
		}
	}

	logger.Info("API routes configured")
}
