package routes

import (
	"net/http"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterTokenRoutes registers token allocation and lifecycle endpoints.
func RegisterTokenRoutes(r *gin.Engine, th *handlers.TokenHandler) {
	api := r.Group("/api/tokens")
	{
		api.POST("/allocate", th.Allocate)
		api.POST("/emergency", th.AllocateEmergency)
		api.GET("/:tokenID", th.GetToken)
		api.PUT("/:tokenID/confirm", th.Confirm)
		api.PUT("/:tokenID/complete", th.Complete)
		api.PUT("/:tokenID/noshow", th.NoShow)
		api.DELETE("/:tokenID", th.Cancel)
	}
}

// RegisterSlotRoutes registers slot generation and lookup endpoints.
func RegisterSlotRoutes(r *gin.Engine, sh *handlers.SlotHandler) {
	api := r.Group("/api/slots")
	{
		api.POST("/generate", sh.Generate)
		api.POST("/complete-day", sh.CompleteDay)
		api.GET("", sh.FindAvailable)
		api.GET("/:slotID", sh.GetSlot)
		api.PUT("/:slotID/suspend", sh.Suspend)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, th *handlers.TokenHandler, sh *handlers.SlotHandler) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterTokenRoutes(r, th)
	RegisterSlotRoutes(r, sh)
}
