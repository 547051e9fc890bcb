package api

import (
	"alcyxob/navistream/internal/service"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies wires the router. Gatherer nil disables /metrics; MediaDir
// non-empty serves local storage under /media.
type Dependencies struct {
	AuthService     service.AuthService
	VideoService    service.VideoService
	UserService     service.UserService
	PlaylistService service.PlaylistService
	Ingester        Ingester
	Logger          zerolog.Logger
	CORSOrigins     []string
	MetricsPath     string
	Gatherer        prometheus.Gatherer
	MediaDir        string

	UploadTimeout time.Duration
}

// NewRouter builds a gin engine with recovery, request logging and CORS.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(deps.Logger.With().Str("component", "http").Logger()))
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	SetupRoutes(router, deps)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Content-Length", "Authorization", "X-Requested-With"}
	return cfg
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := NewAuthHandler(deps.AuthService)
	videoHandler := NewVideoHandler(deps.VideoService, deps.Ingester, deps.Logger)
	videoHandler.uploadTimeout = deps.UploadTimeout
	userHandler := NewUserHandler(deps.UserService)
	playlistHandler := NewPlaylistHandler(deps.PlaylistService)
	authMiddleware := AuthMiddleware(deps.AuthService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.MediaDir != "" {
		router.Static("/media", deps.MediaDir)
	}

	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", authMiddleware, authHandler.Me)
	}

	videos := apiGroup.Group("/videos")
	{
		// public
		videos.GET("", videoHandler.List)
		videos.GET("/trending", videoHandler.Trending)
		videos.GET("/search", videoHandler.Search)
		videos.GET("/recommendations", videoHandler.Recommendations)
		videos.POST("/:id/view", videoHandler.View)

		// authenticated
		videos.POST("/upload", authMiddleware, videoHandler.Upload)
		videos.GET("/my-videos", authMiddleware, videoHandler.MyVideos)
		videos.GET("/liked", authMiddleware, videoHandler.Liked)

		videos.GET("/:id", videoHandler.Get)
		videos.PUT("/:id", authMiddleware, videoHandler.Update)
		videos.DELETE("/:id", authMiddleware, videoHandler.Delete)
		videos.POST("/:id/like", authMiddleware, videoHandler.Like)
		videos.POST("/:id/comments", authMiddleware, videoHandler.AddComment)
		videos.DELETE("/:id/comments/:commentId", authMiddleware, videoHandler.RemoveComment)
		videos.POST("/:id/watch-later", authMiddleware, userHandler.ToggleWatchLater)
	}

	users := apiGroup.Group("/users")
	{
		users.PUT("/profile", authMiddleware, userHandler.UpdateProfile)
		users.GET("/:id", userHandler.Profile)
		users.POST("/:id/subscribe", authMiddleware, userHandler.Subscribe)
	}
	apiGroup.GET("/watch-later", authMiddleware, userHandler.WatchLater)

	playlists := apiGroup.Group("/playlists", authMiddleware)
	{
		playlists.POST("", playlistHandler.Create)
		playlists.GET("", playlistHandler.List)
		playlists.POST("/:id/videos", playlistHandler.AddVideo)
	}
}
