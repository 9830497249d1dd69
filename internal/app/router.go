// internal/app/router.go
package app

import (
	"context"
	"net/http"

	businessHandler "tuzo-service/internal/handlers/business"
	customerHandler "tuzo-service/internal/handlers/customer"
	mpesaHandler "tuzo-service/internal/handlers/mpesa"
	notifyHandler "tuzo-service/internal/handlers/notification"
	profileHandler "tuzo-service/internal/handlers/profile"
	rewardHandler "tuzo-service/internal/handlers/reward"
	transactionHandler "tuzo-service/internal/handlers/transaction"
	wsHandler "tuzo-service/internal/handlers/websocket"
	"tuzo-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	MpesaHandler       *mpesaHandler.MpesaHandler
	BusinessHandler    *businessHandler.BusinessHandler
	CustomerHandler    *customerHandler.CustomerHandler
	TransactionHandler *transactionHandler.TransactionHandler
	RewardHandler      *rewardHandler.RewardHandler
	ProfileHandler     *profileHandler.ProfileHandler
	NotifHandler       *notifyHandler.NotificationHandler
	WSHandler          *wsHandler.WebSocketHandler
	AuthMiddleware     *middleware.AuthMiddleware
	HealthCheck        func(ctx context.Context) error
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health & Metrics ====================
	api.GET("/health", func(c *gin.Context) {
		if h.HealthCheck != nil {
			if err := h.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== M-PESA (public) ====================
	mpesa := api.Group("/mpesa")
	{
		mpesa.POST("", h.MpesaHandler.Dispatch)
		mpesa.POST("/callback", h.MpesaHandler.Callback)
	}

	// ==================== Customers (public) ====================
	customersPublic := api.Group("/customers")
	{
		customersPublic.POST("/register", h.CustomerHandler.Register)
		customersPublic.GET("/lookup", h.CustomerHandler.Lookup) // ?business_id=&phone=
	}

	// ==================== Customers (owner) ====================
	customers := api.Group("/customers")
	customers.Use(h.AuthMiddleware.OwnerOnly()...)
	{
		customers.GET("", h.CustomerHandler.ListCustomers)
		customers.GET("/:id", h.CustomerHandler.GetCustomer)
	}

	// ==================== Businesses ====================
	businesses := api.Group("/businesses")
	businesses.Use(h.AuthMiddleware.Auth())
	{
		businesses.POST("", h.BusinessHandler.CreateBusiness)
	}

	myBusiness := api.Group("/businesses/me")
	myBusiness.Use(h.AuthMiddleware.OwnerOnly()...)
	{
		myBusiness.GET("", h.BusinessHandler.GetMyBusiness)
		myBusiness.PUT("", h.BusinessHandler.UpdateMyBusiness)
		myBusiness.GET("/stats", h.BusinessHandler.GetStats)
	}

	// ==================== Transactions & Rewards ====================
	transactions := api.Group("/transactions")
	transactions.Use(h.AuthMiddleware.Member()...)
	{
		transactions.GET("", h.TransactionHandler.ListTransactions)
	}

	rewards := api.Group("/rewards")
	rewards.Use(h.AuthMiddleware.Member()...)
	{
		rewards.GET("", h.RewardHandler.ListRewards)
	}

	rewardsOwner := api.Group("/rewards")
	rewardsOwner.Use(h.AuthMiddleware.OwnerOnly()...)
	{
		rewardsOwner.POST("/:id/redeem", h.RewardHandler.RedeemReward)
	}

	// ==================== Profile ====================
	me := api.Group("/me")
	me.Use(h.AuthMiddleware.Auth())
	{
		me.GET("", h.ProfileHandler.Me)
		me.POST("/link-customer", h.ProfileHandler.LinkCustomer)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Member()...)
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/latest", h.NotifHandler.GetLatestNotifications)
		notifications.GET("/count/unread", h.NotifHandler.GetUnreadCount)
		notifications.GET("/summary", h.NotifHandler.GetSummary)
		notifications.GET("/:id", h.NotifHandler.GetNotification)
		notifications.PUT("/:id/read", h.NotifHandler.MarkAsRead)
		notifications.PUT("/read-all", h.NotifHandler.MarkAllAsRead)
		notifications.DELETE("/:id", h.NotifHandler.DeleteNotification)
	}

	// ==================== WebSocket stats ====================
	ws := api.Group("/ws")
	ws.Use(h.AuthMiddleware.OwnerOnly()...)
	{
		ws.GET("/stats", h.WSHandler.GetStats)
	}
}
