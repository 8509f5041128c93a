package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"lumina/internal/bootstrap"
	"lumina/internal/transport/http/handler"
	"lumina/internal/transport/http/middleware"
	"lumina/web"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), middleware.Recovery(app.Logger))

	spaHandler, err := handler.NewSPAHandler(web.Files, app.Configured())
	if err != nil {
		return nil, fmt.Errorf("load web bundle failed: %w", err)
	}
	healthHandler := handler.NewHealthHandler(app)

	router.GET("/api/health", healthHandler.Health)
	router.GET("/api/ready", healthHandler.Ready)
	if app.Metrics != nil {
		router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}
	router.NoRoute(spaHandler.Serve)

	secure := app.Config.App.Env == "prod"
	api := router.Group("/api")
	api.Use(middleware.RequireConfigured(app.Configured()))
	if app.Configured() {
		api.Use(middleware.ClientInstance(app.Registry, app.Auth, secure))
	}

	authHandler := handler.NewAuthHandler(app.Auth, app.Markdown, app.Logger, secure)
	chatHandler := handler.NewChatHandler(app.Chat, app.Markdown, app.Logger)
	eventsHandler := handler.NewEventsHandler(app.Markdown, app.Logger)

	api.GET("/state", chatHandler.State)
	api.GET("/events", eventsHandler.Stream)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/signin", authHandler.SignIn)
	authGroup.POST("/signout", authHandler.SignOut)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.GET("/confirm", authHandler.Confirm)

	api.POST("/conversations", chatHandler.CreateConversation)
	api.PATCH("/conversations/:id", chatHandler.RenameConversation)
	api.DELETE("/conversations/:id", chatHandler.DeleteConversation)
	api.PUT("/selection", chatHandler.SelectConversation)
	api.POST("/messages", chatHandler.SendMessage)

	return router, nil
}
