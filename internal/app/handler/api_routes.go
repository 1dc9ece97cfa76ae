package handler

import (
	"net/http"

	"mlbilling/internal/app/middleware"
	"mlbilling/internal/app/role"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterAPIRoutes registers the REST API, health, metrics and swagger
// routes. A nil metricsHandler leaves /metrics out.
func (h *APIHandler) RegisterAPIRoutes(router *gin.Engine, authMiddleware *middleware.AuthMiddleware, metricsHandler http.Handler) {
	api := router.Group("/api")
	anyUser := authMiddleware.WithAuthCheck(role.User, role.Admin)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.AuthHandler.RegisterUser)
		auth.POST("/login", h.AuthHandler.LoginUser)
		auth.POST("/logout", anyUser, h.AuthHandler.LogoutUser)
	}

	users := api.Group("/users/me")
	users.Use(anyUser)
	{
		users.GET("", h.GetMe)
		users.PUT("", h.UpdateMe)
		users.GET("/credits", h.GetCreditHistory)
		users.PUT("/credits", h.TopUpCredits)
	}

	models := api.Group("/models")
	{
		models.POST("/estimate-cost", h.EstimateCost)
		models.GET("", h.ListModels)
		models.GET("/:id", h.GetModel)

		models.POST("", anyUser, h.UploadModel)
		models.DELETE("/:id", anyUser, h.DeleteModel)
		models.GET("/:id/artifact-url", anyUser, h.GetArtifactURL)
		models.POST("/:id/predict", anyUser, h.PredictWithModel)
	}

	predictions := api.Group("/predictions")
	predictions.Use(anyUser)
	{
		predictions.POST("", h.CreatePrediction)
		predictions.POST("/file", h.CreatePredictionFromFile)
		predictions.GET("", h.ListPredictions)
		predictions.GET("/:id", h.GetPrediction)
		predictions.GET("/file/:filename", h.DownloadPredictionFile)
	}

	router.GET("/ping", h.Ping)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
