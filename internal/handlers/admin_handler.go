package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/services"
	"github.com/prepdesk/exam-service/internal/utils"
)

type AdminHandler struct {
	BaseHandler
	bandMapService services.BandMapService
	seedService    services.SeedService
}

func NewAdminHandler(bandMapService services.BandMapService, seedService services.SeedService, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:    NewBaseHandler(logger),
		bandMapService: bandMapService,
		seedService:    seedService,
	}
}

// ListBandMaps lists the conversion rows for a category
// @Summary List band maps
// @Tags band-maps
// @Produce json
// @Param category path string true "Exam category"
// @Success 200 {object} SuccessResponse
// @Router /admin/band-maps/{category} [get]
func (h *AdminHandler) ListBandMaps(c *gin.Context) {
	category, ok := h.parseCategory(c)
	if !ok {
		return
	}

	maps, err := h.bandMapService.List(c.Request.Context(), category)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"band_maps": maps})
}

// ImportBandMaps replaces a category's conversion table from a spreadsheet
// @Summary Import band maps
// @Description Uploads an xlsx with columns Section Type, Track, Min Raw,
// @Description Max Raw and Band. The existing rows for the category are
// @Description replaced in one transaction.
// @Tags band-maps
// @Accept multipart/form-data
// @Produce json
// @Param category path string true "Exam category"
// @Param file formData file true "Spreadsheet file"
// @Success 200 {object} services.BandMapImportResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /admin/band-maps/{category}/import [post]
func (h *AdminHandler) ImportBandMaps(c *gin.Context) {
	category, ok := h.parseCategory(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Spreadsheet file is required",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to open uploaded file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	workbook, err := excelize.OpenReader(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "File is not a valid spreadsheet",
			Details: err.Error(),
		})
		return
	}
	defer workbook.Close()

	userID, authed := h.currentUserID(c)
	if !authed {
		return
	}

	result, err := h.bandMapService.Import(c.Request.Context(), category, workbook, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportBandMaps downloads a category's conversion table as a spreadsheet
// @Summary Export band maps
// @Tags band-maps
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param category path string true "Exam category"
// @Success 200 {file} binary
// @Router /admin/band-maps/{category}/export [get]
func (h *AdminHandler) ExportBandMaps(c *gin.Context) {
	category, ok := h.parseCategory(c)
	if !ok {
		return
	}

	workbook, err := h.bandMapService.Export(c.Request.Context(), category)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("band_maps_%s.xlsx", strings.ToLower(string(category)))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := workbook.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream band map export", "error", err, "category", category)
	}
}

// Seed loads the demo exams and band maps
// @Summary Seed demo data
// @Description Idempotent. Creates the demo exams and the default band
// @Description conversion tables when they do not already exist.
// @Tags admin
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /admin/seed/demo [post]
func (h *AdminHandler) Seed(c *gin.Context) {
	examIDs, err := h.seedService.SeedDemoExams(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	bandMapRows, err := h.seedService.SeedBandMaps(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Seed completed",
		Data: gin.H{
			"exam_ids":      examIDs,
			"band_map_rows": bandMapRows,
		},
	})
}

func (h *AdminHandler) parseCategory(c *gin.Context) (models.ExamCategory, bool) {
	category := models.ExamCategory(strings.ToUpper(c.Param("category")))
	if !category.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unknown exam category",
			Details: c.Param("category"),
		})
		return "", false
	}
	return category, true
}
