package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Контракты сервисов, используемые хендлерами. В тестах подменяются моками.

type BookingService interface {
	RequestSession(ctx context.Context, menteeID int64, input service.RequestSessionInput) (*service.RequestedSession, error)
	RespondToSession(ctx context.Context, sessionID, actingUserID int64, accept bool, message string) (*model.Session, error)
	CancelSession(ctx context.Context, sessionID, actingUserID int64, reason string) (*model.Session, error)
	CompleteSession(ctx context.Context, sessionID, actingUserID int64, notes string) (*model.Session, error)
	RateSession(ctx context.Context, sessionID, menteeID int64, rating int, feedback string) (*model.Session, error)
	GetSessionsForMentee(ctx context.Context, menteeID int64) ([]*model.Session, error)
	GetSessionsForMentor(ctx context.Context, userID int64) ([]*model.Session, error)
	GetSessionHistory(ctx context.Context, sessionID, actingUserID int64) ([]*model.SessionEvent, error)
}

type MentorService interface {
	UpsertProfile(ctx context.Context, userID int64, input service.MentorProfileInput) (*model.MentorProfile, error)
	SetAvailability(ctx context.Context, userID int64, available bool) error
	GetByID(ctx context.Context, id int64) (*model.MentorProfile, error)
	ListAvailable(ctx context.Context) ([]*model.MentorProfile, error)
}

type NotificationService interface {
	GetForUser(ctx context.Context, userID int64, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
}

// Server HTTP-сервер бронирования сессий
type Server struct {
	bookingService      BookingService
	mentorService       MentorService
	notificationService NotificationService
	router              *gin.Engine
	logger              *zap.Logger
}

func NewServer(
	bookingService BookingService,
	mentorService MentorService,
	notificationService NotificationService,
	jwtSecret string,
	environment string,
	logger *zap.Logger,
) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		bookingService:      bookingService,
		mentorService:       mentorService,
		notificationService: notificationService,
		router:              router,
		logger:              logger,
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(AuthMiddleware(jwtSecret))
	{
		api.POST("/sessions", s.handleRequestSession)
		api.GET("/sessions", s.handleListSessions)
		api.GET("/sessions/:id/history", s.handleSessionHistory)
		api.POST("/sessions/:id/respond", s.handleRespondSession)
		api.POST("/sessions/:id/cancel", s.handleCancelSession)
		api.POST("/sessions/:id/complete", s.handleCompleteSession)
		api.POST("/sessions/:id/rate", s.handleRateSession)

		api.GET("/mentors", s.handleListMentors)
		api.GET("/mentors/:id", s.handleGetMentor)
		api.POST("/mentors", s.handleUpsertMentor)
		api.POST("/mentors/availability", s.handleSetAvailability)

		api.GET("/notifications", s.handleListNotifications)
		api.POST("/notifications/:id/read", s.handleMarkNotificationRead)
	}

	return s
}

// Run запускает сервер
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router отдаёт роутер (для httptest)
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
