// Package api wires the HTTP surface of the kiosk: gin engine, middleware and handlers.
package api

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"faceid-kiosk/config"
	"faceid-kiosk/internal/api/handlers"
	"faceid-kiosk/internal/api/middleware"
	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/kiosk"
	"faceid-kiosk/internal/server/sse"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Assets are the embedded page files.
type Assets struct {
	Templates fs.FS
	Static    fs.FS
}

// Deps are the components the handlers operate on.
type Deps struct {
	Kiosk      *kiosk.Kiosk
	Camera     *camera.Manager
	Hub        *sse.Hub
	Translator *middleware.Translator
	Assets     Assets
}

// NewRouter builds the gin engine with every kiosk route.
func NewRouter(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	gin.SetMode(cfg.Server.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 || (len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*") {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(cfg.Session.Name, store))
	router.Use(middleware.I18n(deps.Translator))

	web, err := handlers.NewWebHandler(cfg, deps.Translator, deps.Assets.Templates, deps.Assets.Static)
	if err != nil {
		return nil, err
	}
	web.RegisterRoutes(router)

	handlers.NewAPIHandler(deps.Kiosk, deps.Translator).RegisterRoutes(router.Group("/api"))
	handlers.NewEventHandler(deps.Camera, deps.Hub, cfg.Camera).RegisterRoutes(router)
	handlers.NewSystemHandler(deps.Camera, deps.Kiosk, deps.Hub).RegisterRoutes(router)

	return router, nil
}

// requestLogger logs every request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case c.Request.URL.Path == "/api/state" || c.Request.URL.Path == "/system/stats":
			entry.Trace("HTTP request")
		default:
			entry.Debug("HTTP request")
		}
	}
}

// Server is the HTTP server of the kiosk.
type Server struct {
	httpServer *http.Server
}

// NewServer creates the HTTP server for router.
func NewServer(cfg config.ServerConfig, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Infof("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for running requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
