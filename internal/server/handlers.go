package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/auth"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/engine"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/store"
)

// --- Auth ---

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Contact     string `json:"contact"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := domain.NormalizePhone(req.Contact, s.defaultCC)
	u, err := s.auth.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName, contact)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.log.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, u, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"user":       u,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	token, _ := bearerToken(c)
	if err := s.auth.Logout(c.Request.Context(), token); err != nil {
		s.log.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:], true
	}
	return "", false
}

// --- Profile ---

func (s *Server) handleGetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Contact     string `json:"contact"`
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u := currentUser(c)
	contact := domain.NormalizePhone(req.Contact, s.defaultCC)
	if err := s.repo.UpdateProfile(c.Request.Context(), u.ID, req.DisplayName, contact); err != nil {
		s.log.Error("update profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	updated, err := s.repo.GetUser(c.Request.Context(), u.ID)
	if err != nil {
		s.log.Error("reload profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// --- Timers ---

type createTimerRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	Name            string `json:"name"`
	CheckInCount    int    `json:"check_in_count"`
	Contact         string `json:"contact"`
}

// timerResponse is a record plus its live countdown view.
type timerResponse struct {
	domain.TimerRecord
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Display          string `json:"display"`
	NextCheckInMs    *int64 `json:"next_check_in_ms,omitempty"`
}

func (s *Server) timerView(rec *domain.TimerRecord, now time.Time) timerResponse {
	resp := timerResponse{TimerRecord: *rec}
	if !rec.IsActive {
		resp.State = engine.StateIdle.String()
		resp.Display = domain.FormatClock(0)
		return resp
	}

	resp.RemainingSeconds = domain.RemainingSeconds(now, rec.StartedAt, rec.DurationMinutes)
	resp.Display = domain.FormatClock(resp.RemainingSeconds)
	if next, ok := domain.NextOffset(rec.CheckInOffsetsMs, domain.ElapsedMs(now, rec.StartedAt)); ok {
		resp.NextCheckInMs = &next
	}

	state, _, tracked := s.runner.View(rec.OwnerID)
	if tracked {
		resp.State = state.String()
	} else {
		resp.State = engine.StateRunning.String()
	}
	return resp
}

func (s *Server) handleCreateTimer(c *gin.Context) {
	var req createTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.createTimer(c, req, true)
}

// handleDemo starts the onboarding demo: a short fixed countdown with one
// check-in and no contact, so the whole flow runs without alerting anyone.
func (s *Server) handleDemo(c *gin.Context) {
	s.createTimer(c, createTimerRequest{
		DurationMinutes: s.demoMinutes,
		Name:            "Demo timer",
		CheckInCount:    1,
	}, false)
}

func (s *Server) createTimer(c *gin.Context, req createTimerRequest, useProfileContact bool) {
	if err := domain.ValidateTimer(req.DurationMinutes, req.CheckInCount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u := currentUser(c)
	contact := domain.NormalizePhone(req.Contact, s.defaultCC)
	if contact == "" && useProfileContact {
		// Fall back to the profile's emergency contact.
		contact = u.Contact
	}

	now := time.Now().UTC()
	rec := &domain.TimerRecord{
		ID:               uuid.NewString(),
		OwnerID:          u.ID,
		DurationMinutes:  req.DurationMinutes,
		StartedAt:        now,
		Name:             req.Name,
		CheckInCount:     req.CheckInCount,
		CheckInOffsetsMs: domain.CheckInOffsets(req.DurationMinutes, req.CheckInCount),
		CheckInLog:       []domain.CheckInEntry{},
		IsActive:         true,
		Contact:          contact,
	}
	if err := s.repo.CreateTimer(c.Request.Context(), rec); err != nil {
		if errors.Is(err, store.ErrActiveTimerExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("create timer failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	s.runner.Track(rec)
	s.log.Info("timer started",
		zap.String("timer", rec.ID),
		zap.String("owner", u.ID),
		zap.Int("duration_min", rec.DurationMinutes),
		zap.Int("check_ins", rec.CheckInCount),
	)
	c.JSON(http.StatusCreated, s.timerView(rec, now))
}

func (s *Server) handleListTimers(c *gin.Context) {
	u := currentUser(c)
	timers, err := s.repo.ListTimers(c.Request.Context(), u.ID, 50)
	if err != nil {
		s.log.Error("list timers failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	now := time.Now().UTC()
	res := make([]timerResponse, 0, len(timers))
	for i := range timers {
		res = append(res, s.timerView(&timers[i], now))
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleActiveTimer(c *gin.Context) {
	u := currentUser(c)
	rec, err := s.repo.GetActiveTimer(c.Request.Context(), u.ID)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveTimer) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active timer"})
			return
		}
		s.log.Error("get active timer failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Lazy expiry: a record whose countdown ran out while nothing ticked
	// it is archived by its next reader.
	now := time.Now().UTC()
	if domain.RemainingSeconds(now, rec.StartedAt, rec.DurationMinutes) == 0 {
		if err := s.repo.MarkInactive(c.Request.Context(), rec.ID); err != nil {
			s.log.Error("lazy expiry failed", zap.Error(err), zap.String("timer", rec.ID))
		}
		s.runner.Forget(u.ID)
		c.JSON(http.StatusNotFound, gin.H{"error": "no active timer"})
		return
	}
	c.JSON(http.StatusOK, s.timerView(rec, now))
}

func (s *Server) handleAcknowledge(c *gin.Context) {
	u := currentUser(c)
	entry, err := s.runner.Acknowledge(c.Request.Context(), u.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNoActiveTimer):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active timer"})
		case errors.Is(err, engine.ErrNotCheckInDue):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.log.Error("acknowledge failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleStop(c *gin.Context) {
	u := currentUser(c)
	if err := s.runner.Stop(c.Request.Context(), u.ID); err != nil {
		if errors.Is(err, store.ErrNoActiveTimer) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active timer"})
			return
		}
		s.log.Error("stop failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

type updateTimerRequest struct {
	DurationMinutes *int    `json:"duration_minutes"`
	Name            *string `json:"name"`
	CheckInCount    *int    `json:"check_in_count"`
	Contact         *string `json:"contact"`
}

func (s *Server) handleUpdateTimer(c *gin.Context) {
	var req updateTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u := currentUser(c)
	id := c.Param("id")
	upd := domain.TimerUpdate{
		DurationMinutes: req.DurationMinutes,
		Name:            req.Name,
		CheckInCount:    req.CheckInCount,
	}
	if req.Contact != nil {
		normalized := domain.NormalizePhone(*req.Contact, s.defaultCC)
		upd.Contact = &normalized
	}

	if err := s.repo.UpdateTimer(c.Request.Context(), u.ID, id, upd); err != nil {
		switch {
		case errors.Is(err, store.ErrTimerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrInvalidDuration), errors.Is(err, domain.ErrInvalidCheckInCount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.log.Error("update timer failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	rec, err := s.repo.GetTimer(c.Request.Context(), u.ID, id)
	if err != nil {
		s.log.Error("reload timer failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// The engine must see the regenerated schedule.
	if rec.IsActive {
		s.runner.Track(rec)
	}
	c.JSON(http.StatusOK, s.timerView(rec, time.Now().UTC()))
}

func (s *Server) handleDeleteTimer(c *gin.Context) {
	u := currentUser(c)
	id := c.Param("id")

	rec, err := s.repo.GetTimer(c.Request.Context(), u.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrTimerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("load timer failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rec.IsActive {
		s.runner.Forget(u.ID)
	}
	if err := s.repo.DeleteTimer(c.Request.Context(), u.ID, id); err != nil {
		s.log.Error("delete timer failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Dashboard ---

func (s *Server) handleDashboard(c *gin.Context) {
	u := currentUser(c)
	ctx := c.Request.Context()

	stats, err := s.repo.UsageStats(ctx, u.ID)
	if err != nil {
		s.log.Error("usage stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	recent, err := s.repo.ListTimers(ctx, u.ID, 10)
	if err != nil {
		s.log.Error("recent timers failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now().UTC()
	views := make([]timerResponse, 0, len(recent))
	for i := range recent {
		views = append(views, s.timerView(&recent[i], now))
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"recent": views,
	})
}
