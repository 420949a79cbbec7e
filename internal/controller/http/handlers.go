package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hiredvalley/mentorbooking/internal/service"
	"go.uber.org/zap"
)

// respondError маппит классы доменных ошибок на HTTP-статусы
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleRequestSession(c *gin.Context) {
	var input service.RequestSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.bookingService.RequestSession(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type respondInput struct {
	Accept  *bool  `json:"accept" binding:"required"`
	Message string `json:"message"`
}

func (s *Server) handleRespondSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var input respondInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "accept flag is required"})
		return
	}

	session, err := s.bookingService.RespondToSession(c.Request.Context(), id, currentUserID(c), *input.Accept, input.Message)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type cancelInput struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var input cancelInput
	_ = c.ShouldBindJSON(&input)

	session, err := s.bookingService.CancelSession(c.Request.Context(), id, currentUserID(c), input.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type completeInput struct {
	Notes string `json:"notes"`
}

func (s *Server) handleCompleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var input completeInput
	_ = c.ShouldBindJSON(&input)

	session, err := s.bookingService.CompleteSession(c.Request.Context(), id, currentUserID(c), input.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type rateInput struct {
	Rating   int    `json:"rating" binding:"required"`
	Feedback string `json:"feedback"`
}

func (s *Server) handleRateSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var input rateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating is required"})
		return
	}

	session, err := s.bookingService.RateSession(c.Request.Context(), id, currentUserID(c), input.Rating, input.Feedback)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	userID := currentUserID(c)

	var err error
	var sessions interface{}
	if c.Query("role") == "mentor" {
		sessions, err = s.bookingService.GetSessionsForMentor(c.Request.Context(), userID)
	} else {
		sessions, err = s.bookingService.GetSessionsForMentee(c.Request.Context(), userID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleSessionHistory(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	events, err := s.bookingService.GetSessionHistory(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleListMentors(c *gin.Context) {
	mentors, err := s.mentorService.ListAvailable(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"mentors": mentors})
}

func (s *Server) handleGetMentor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mentor id"})
		return
	}

	mentor, err := s.mentorService.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, mentor)
}

func (s *Server) handleUpsertMentor(c *gin.Context) {
	var input service.MentorProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mentor, err := s.mentorService.UpsertProfile(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, mentor)
}

type availabilityInput struct {
	Available *bool `json:"available" binding:"required"`
}

func (s *Server) handleSetAvailability(c *gin.Context) {
	var input availabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "available flag is required"})
		return
	}

	if err := s.mentorService.SetAvailability(c.Request.Context(), currentUserID(c), *input.Available); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := s.notificationService.GetForUser(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := s.notificationService.MarkRead(c.Request.Context(), id, currentUserID(c)); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
