package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/config"
	"github.com/emilythestrangee/campus-events/backend/internal/database"
	"github.com/emilythestrangee/campus-events/backend/internal/handlers"
	"github.com/emilythestrangee/campus-events/backend/internal/logging"
	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
	"github.com/emilythestrangee/campus-events/backend/internal/ratelimit"
)

type Server struct {
	cfg         *config.Config
	db          database.Service
	handler     *handlers.Handler
	verifier    auth.Verifier
	voteLimiter ratelimit.Limiter
}

func New(cfg *config.Config, db database.Service, handler *handlers.Handler, verifier auth.Verifier, voteLimiter ratelimit.Limiter) *Server {
	return &Server{
		cfg:         cfg,
		db:          db,
		handler:     handler,
		verifier:    verifier,
		voteLimiter: voteLimiter,
	}
}

// HTTPServer wraps the router in an http.Server listening on PORT.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(), metrics.Middleware())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(s.cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.cfg.UploadDir != "" {
		r.Static(s.cfg.UploadBaseURL, s.cfg.UploadDir)
	}

	requireAuth := auth.RequireAuth(s.verifier)
	optionalAuth := auth.OptionalAuth(s.verifier)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		// Public reads, personalised when a token is present
		public := api.Group("", optionalAuth)
		{
			public.GET("/events", s.handler.Event.ListEvents)
			public.GET("/events/:id", s.handler.Event.GetEvent)
			public.GET("/events/:id/attendees", s.handler.Event.ListAttendees)
			public.GET("/events/:id/comments", s.handler.Comment.GetComments)

			public.GET("/users/:id", s.handler.User.GetUserProfile)
			public.GET("/users/:id/followers", s.handler.User.GetFollowers)
			public.GET("/users/:id/following", s.handler.User.GetFollowing)

			public.GET("/groups", s.handler.Group.ListGroups)
			public.GET("/groups/:id", s.handler.Group.GetGroup)
			public.GET("/groups/:id/members", s.handler.Group.ListMembers)
			public.GET("/groups/:id/events", s.handler.Group.ListGroupEvents)
		}

		// Protected routes (authentication required)
		protected := api.Group("", requireAuth)
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			protected.POST("/events", s.handler.Event.CreateEvent)
			protected.PUT("/events/:id", s.handler.Event.UpdateEvent)
			protected.DELETE("/events/:id", s.handler.Event.DeleteEvent)
			protected.POST("/events/:id/image", s.handler.Event.UploadImage)
			protected.POST("/events/:id/attend", s.handler.Event.Attend)
			protected.DELETE("/events/:id/attend", s.handler.Event.Unattend)

			protected.POST("/events/:id/comments", s.handler.Comment.CreateComment)
			protected.PUT("/comments/:commentId", s.handler.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
			protected.POST("/comments/:commentId/vote",
				ratelimit.Middleware(s.voteLimiter, ratelimit.ByUser("vote")),
				s.handler.Comment.VoteComment)

			protected.PUT("/users/:id", s.handler.User.UpdateUserProfile)
			protected.POST("/users/:id/follow", s.handler.User.FollowUser)
			protected.DELETE("/users/:id/follow", s.handler.User.UnfollowUser)

			protected.POST("/groups", s.handler.Group.CreateGroup)
			protected.POST("/groups/:id/join", s.handler.Group.JoinGroup)
			protected.DELETE("/groups/:id/join", s.handler.Group.LeaveGroup)

			protected.GET("/notifications", s.handler.Notification.ListNotifications)
			protected.GET("/notifications/stream", s.handler.Notification.Stream)
			protected.POST("/notifications/read-all", s.handler.Notification.MarkAllRead)
			protected.POST("/notifications/:id/read", s.handler.Notification.MarkRead)
		}
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
