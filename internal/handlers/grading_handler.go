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

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

// GetQueue lists submitted sections awaiting a manual band
// @Summary Grading queue
// @Tags grading
// @Produce json
// @Param category query string false "Exam category"
// @Param section_type query string false "Section type"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Router /grading/queue [get]
func (h *GradingHandler) GetQueue(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	items, total, err := h.gradingService.Queue(c.Request.Context(), h.parseQueueFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// GradeSection assigns a manual band to a submitted section
// @Summary Grade section
// @Description Records a band score in half steps from 0 to 9 with an optional
// @Description rubric breakdown, then recomputes the attempt overall band when
// @Description it was the last ungraded section.
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt section ID"
// @Param grade body services.GradeSectionRequest true "Band score and rubric"
// @Success 200 {object} models.AttemptSection
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /attempt-sections/{id}/grade [post]
func (h *GradingHandler) GradeSection(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.GradeSectionRequest
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

	section, err := h.gradingService.GradeSection(c.Request.Context(), id, req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

// GetStats summarizes the grading backlog
// @Summary Grading stats
// @Tags grading
// @Produce json
// @Success 200 {object} repositories.GradingStats
// @Failure 403 {object} ErrorResponse
// @Router /grading/stats [get]
func (h *GradingHandler) GetStats(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.gradingService.Stats(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *GradingHandler) parseQueueFilters(c *gin.Context) repositories.GradingQueueFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.GradingQueueFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		cat := models.ExamCategory(strings.ToUpper(category))
		filters.Category = &cat
	}
	if sectionType := strings.TrimSpace(c.Query("section_type")); sectionType != "" {
		st := models.SectionType(strings.ToUpper(sectionType))
		filters.SectionType = &st
	}
	if studentID := strings.TrimSpace(c.Query("student_id")); studentID != "" {
		filters.StudentID = &studentID
	}

	return filters
}
