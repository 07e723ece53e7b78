package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	prefsDelivery "mailpilot-backend/internal/prefs/delivery"
	prefsUsecase "mailpilot-backend/internal/prefs/usecase"
	triageDelivery "mailpilot-backend/internal/triage/delivery"
	triageUsecase "mailpilot-backend/internal/triage/usecase"
)

// identityMiddleware resolves the caller's user id. Authentication proper
// lives in the gateway in front of this service; here only the forwarded
// identity header is honored.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func SetupRoutes(r *gin.Engine, triage triageUsecase.TriageUsecase, prefs prefsUsecase.PreferencesUsecase) {
	triageHandler := triageDelivery.NewTriageHandler(triage)
	prefsHandler := prefsDelivery.NewPreferencesHandler(prefs)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		runs := api.Group("/triage/runs")
		runs.Use(identityMiddleware())
		{
			runs.POST("", triageHandler.StartRun)
			runs.GET("/:id", triageHandler.GetRun)
			runs.GET("/:id/analyses", triageHandler.GetRunAnalyses)
			runs.GET("/:id/suggestions", triageHandler.GetRunSuggestions)
		}

		preferences := api.Group("/preferences")
		preferences.Use(identityMiddleware())
		{
			preferences.GET("", prefsHandler.Get)
			preferences.PUT("", prefsHandler.Update)
		}
	}
}
