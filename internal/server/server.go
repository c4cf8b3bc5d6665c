// Package server exposes the REST API the mobile client talks to.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/auth"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/engine"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/store"
)

// Server wires the API handlers to the store, auth service and engine.
type Server struct {
	log         *zap.Logger
	repo        store.Repo
	auth        *auth.Service
	runner      *engine.Runner
	defaultCC   string
	demoMinutes int
}

func New(log *zap.Logger, repo store.Repo, authSvc *auth.Service, runner *engine.Runner, defaultCC string, demoMinutes int) *Server {
	if demoMinutes <= 0 {
		demoMinutes = 2
	}
	return &Server{
		log:         log,
		repo:        repo,
		auth:        authSvc,
		runner:      runner,
		defaultCC:   defaultCC,
		demoMinutes: demoMinutes,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("", s.requireAuth)
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/profile", s.handleGetProfile)
	authed.PUT("/profile", s.handleUpdateProfile)
	authed.POST("/timers", s.handleCreateTimer)
	authed.GET("/timers", s.handleListTimers)
	authed.GET("/timers/active", s.handleActiveTimer)
	authed.POST("/timers/active/checkin", s.handleAcknowledge)
	authed.POST("/timers/active/stop", s.handleStop)
	authed.PATCH("/timers/:id", s.handleUpdateTimer)
	authed.DELETE("/timers/:id", s.handleDeleteTimer)
	authed.GET("/dashboard", s.handleDashboard)
	authed.POST("/demo", s.handleDemo)

	return r
}

const userKey = "safely.user"

// requireAuth resolves the Authorization bearer token to a user.
func (s *Server) requireAuth(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	u, err := s.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		if err == auth.ErrInvalidSession {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		s.log.Error("authenticate failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Set(userKey, u)
	c.Next()
}

func currentUser(c *gin.Context) *domain.UserProfile {
	return c.MustGet(userKey).(*domain.UserProfile)
}
