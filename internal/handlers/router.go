package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/exam-service/internal/config"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/services"
	"github.com/prepdesk/exam-service/internal/utils"
)

type HandlerManager struct {
	examHandler    *ExamHandler
	bookingHandler *BookingHandler
	attemptHandler *AttemptHandler
	gradingHandler *GradingHandler
	adminHandler   *AdminHandler
	authMiddleware *CasdoorAuthMiddleware
	serviceManager services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		examHandler:    NewExamHandler(serviceManager.Exam(), logger),
		bookingHandler: NewBookingHandler(serviceManager.Booking(), logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), logger),
		gradingHandler: NewGradingHandler(serviceManager.Grading(), logger),
		adminHandler:   NewAdminHandler(serviceManager.BandMap(), serviceManager.Seed(), logger),
		authMiddleware: NewCasdoorAuthMiddleware(casdoorConfig, userRepo),
		serviceManager: serviceManager,
	}
}

// SetupRoutes registers all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	staffOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)
	graderOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleProctor, models.RoleAdmin)
	adminOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			// Authoring - Teachers and Admins only
			exams.POST("", staffOnly, hm.examHandler.CreateExam)
			exams.PUT("/:id", staffOnly, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", staffOnly, hm.examHandler.DeleteExam)
			exams.PUT("/:id/status", staffOnly, hm.examHandler.SetExamActive)
			exams.POST("/:id/sections", staffOnly, hm.examHandler.AddSection)

			// Viewing - all authenticated users; students receive sanitized
			// content and only see active exams
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/content", hm.examHandler.GetExamContent)
		}

		// Section and question authoring
		sections := v1.Group("/sections", staffOnly)
		{
			sections.PUT("/:section_id", hm.examHandler.UpdateSection)
			sections.DELETE("/:section_id", hm.examHandler.DeleteSection)
			sections.POST("/:section_id/questions", hm.examHandler.AddQuestion)
			sections.PUT("/:section_id/questions/reorder", hm.examHandler.ReorderQuestions)
		}
		questions := v1.Group("/questions", staffOnly)
		{
			questions.PUT("/:question_id", hm.examHandler.UpdateQuestion)
			questions.DELETE("/:question_id", hm.examHandler.DeleteQuestion)
		}

		// Booking routes
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", staffOnly, hm.bookingHandler.CreateBooking)
			bookings.GET("", hm.bookingHandler.ListBookings)
			bookings.GET("/:id", hm.bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", hm.bookingHandler.CancelBooking)
			bookings.POST("/:id/activate", hm.bookingHandler.ActivateBooking)
		}

		// Attempt routes - the exam runner surface
		attempts := v1.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.BootstrapAttempt)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/sections/:section_id/enter", hm.attemptHandler.EnterSection)
			attempts.POST("/:id/sections/:section_id/save", hm.attemptHandler.SaveAnswers)
			attempts.POST("/:id/sections/:section_id/submit", hm.attemptHandler.SubmitSection)
		}

		// Grading routes - staff only
		grading := v1.Group("/grading", graderOnly)
		{
			grading.GET("/queue", hm.gradingHandler.GetQueue)
			grading.GET("/stats", hm.gradingHandler.GetStats)
		}
		v1.POST("/attempt-sections/:id/grade", graderOnly, hm.gradingHandler.GradeSection)

		// Admin routes
		admin := v1.Group("/admin", adminOnly)
		{
			admin.POST("/seed/demo", hm.adminHandler.Seed)
			admin.GET("/band-maps/:category", hm.adminHandler.ListBandMaps)
			admin.POST("/band-maps/:category/import", hm.adminHandler.ImportBandMaps)
			admin.GET("/band-maps/:category/export", hm.adminHandler.ExportBandMaps)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}
