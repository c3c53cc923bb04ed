package http

import (
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	appsvc "fwk-assistant/internal/app"
	"fwk-assistant/internal/bootstrap"
	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/render"
	"fwk-assistant/internal/transport/http/handler"
	"fwk-assistant/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())

	sessionService := appsvc.NewSessionService(app.KV, app.Publisher, appsvc.SessionServiceConfig{
		KeyPrefix:      app.Config.Storage.KeyPrefix,
		EntryPage:      app.Config.Web.EntryPage,
		JWTSecret:      app.Config.Auth.JWTSecret,
		JWTExpiration:  time.Duration(app.Config.Auth.JWTExpireMinute) * time.Minute,
		AccessCodeHash: app.Config.Auth.AccessCodeHash,
	})
	assistantService := appsvc.NewAssistantService(app.Gemini, app.Publisher)

	healthHandler := handler.NewHealthHandler(app)
	sessionHandler := handler.NewSessionHandler(sessionService)
	assistantHandler := handler.NewAssistantHandler(assistantService, sessionService, render.New())

	router.GET("/healthz", healthHandler.Check)
	mountStatic(router, app.Config.Web.StaticDir, app.Config.Web.EntryPage)

	secret := app.Config.Auth.JWTSecret
	v1 := router.Group("/api/v1")

	sessionGroup := v1.Group("/session")
	sessionGroup.Use(middleware.OptionalJWT(secret))
	sessionGroup.POST("/login", sessionHandler.Login)
	sessionGroup.GET("/check", sessionHandler.Check)
	sessionGroup.POST("/logout", sessionHandler.Logout)

	assistantGroup := v1.Group("/assistant")
	assistantGroup.Use(middleware.AuthJWT(secret))
	assistantGroup.POST("/prompt", assistantHandler.Prompt)

	v1.POST("/render", assistantHandler.Render)

	return router
}

// mountStatic serves the page assets when the directory exists.
func mountStatic(router *gin.Engine, dir, entryPage string) {
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logging.Logger().Warn("static dir not found, serving api only", "dir", dir)
		return
	}
	router.StaticFile("/", filepath.Join(dir, entryPage))
	router.NoRoute(gin.WrapH(nethttp.FileServer(nethttp.Dir(dir))))
}
