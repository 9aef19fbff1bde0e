package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/services"
	"github.com/prepdesk/exam-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// BootstrapAttempt loads everything the exam runner needs in one call
// @Summary Bootstrap attempt
// @Description Returns the attempt, the sanitized exam content, saved answers
// @Description and per-section timer state. The first call stamps started_at.
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptBootstrap
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) BootstrapAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	bootstrap, err := h.attemptService.Bootstrap(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, bootstrap)
}

// EnterSection starts the section clock
// @Summary Enter section
// @Description Starts the server-side countdown for the section on first entry
// @Description and returns the remaining time. Re-entering an open section is
// @Description allowed and does not reset the clock.
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param section_id path uint true "Section ID"
// @Success 200 {object} services.SectionState
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/sections/{section_id}/enter [post]
func (h *AttemptHandler) EnterSection(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	sectionID := h.parseIDParam(c, "section_id")
	if sectionID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	state, err := h.attemptService.EnterSection(c.Request.Context(), id, sectionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// SaveAnswers persists a section's in-progress answers
// @Summary Save answers
// @Description Saves the full answer set for a section. With immediate=true the
// @Description write happens before the response, otherwise it is debounced.
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param section_id path uint true "Section ID"
// @Param immediate query bool false "Persist before responding"
// @Param answers body services.SaveAnswersRequest true "Answers keyed by question ID"
// @Success 200 {object} services.SaveResult
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/sections/{section_id}/save [post]
func (h *AttemptHandler) SaveAnswers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	sectionID := h.parseIDParam(c, "section_id")
	if sectionID == 0 {
		return
	}

	var req services.SaveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	immediate := c.Query("immediate") == "true"
	result, err := h.attemptService.SaveAnswers(c.Request.Context(), id, sectionID, req, userID, immediate)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SubmitSection finalizes a section
// @Summary Submit section
// @Description Flushes pending answers, locks the section and auto-grades the
// @Description objective questions. Submitting twice returns 409.
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param section_id path uint true "Section ID"
// @Success 200 {object} services.SectionSubmitResult
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/sections/{section_id}/submit [post]
func (h *AttemptHandler) SubmitSection(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	sectionID := h.parseIDParam(c, "section_id")
	if sectionID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.SubmitSection(c.Request.Context(), id, sectionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SubmitAttempt finalizes the whole attempt
// @Summary Submit attempt
// @Description Marks the attempt submitted once every section is final, and
// @Description computes the overall band when no manual grading remains.
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Attempt
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.SubmitAttempt(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// ListAttempts lists attempts visible to the caller
// @Summary List attempts
// @Tags attempts
// @Produce json
// @Param status query string false "Attempt status"
// @Param exam_id query int false "Exam ID"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} SuccessResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	attempts, total, err := h.attemptService.List(c.Request.Context(), h.parseAttemptFilters(c), userID, h.currentUserRole(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    total,
	})
}

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		st := models.AttemptStatus(strings.ToUpper(status))
		filters.Status = &st
	}
	if studentID := strings.TrimSpace(c.Query("student_id")); studentID != "" {
		filters.StudentID = &studentID
	}
	if examID := h.parseIntQuery(c, "exam_id", 0); examID > 0 {
		id := uint(examID)
		filters.ExamID = &id
	}

	return filters
}
