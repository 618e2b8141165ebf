package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docsearch/internal/bootstrap"
	"docsearch/internal/transport/http/handler"
	"docsearch/internal/transport/http/middleware"
)

const maxUploadBytes = 200 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, map[string]handler.Checker{
		"warehouse":       app.Warehouse.Ping,
		"redis":           app.CheckRedis,
		"rabbitmq":        app.CheckRabbitMQ,
		"feedback_worker": app.FeedbackWorker.Healthy,
	})
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handler.NewAuthHandler(app.Auth)
	catalogHandler := handler.NewCatalogHandler(app.Catalog, maxUploadBytes)
	searchHandler := handler.NewSearchHandler(app.Chat, app.Feedback)
	requireAuth := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	catalogGroup := v1.Group("/catalog", requireAuth)
	catalogGroup.GET("/files", catalogHandler.List)
	catalogGroup.POST("/files", catalogHandler.Upload)

	searchGroup := v1.Group("/search", requireAuth)
	searchGroup.GET("/suggestions", searchHandler.Suggestions)
	searchGroup.POST("/sessions", searchHandler.CreateSession)
	searchGroup.GET("/sessions/:id", searchHandler.GetSession)
	searchGroup.POST("/sessions/:id/restart", searchHandler.Restart)
	searchGroup.POST("/sessions/:id/initial", searchHandler.AskInitial)
	searchGroup.POST("/sessions/:id/suggestion", searchHandler.SelectSuggestion)
	searchGroup.POST("/sessions/:id/ask", searchHandler.Ask)
	searchGroup.POST("/sessions/:id/feedback", searchHandler.Feedback)

	return router
}
