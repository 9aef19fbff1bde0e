package repositories

import (
	"time"

	"github.com/prepdesk/exam-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Category  *models.ExamCategory `json:"category"`
	Track     *string              `json:"track"`
	IsActive  *bool                `json:"is_active"`
	CreatedBy *string              `json:"created_by"`
	Query     *string              `json:"query"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`    // "created_at", "title", "category"
	SortOrder string               `json:"sort_order"` // "asc", "desc"
}

type BookingFilters struct {
	StudentID *string               `json:"student_id"`
	TeacherID *string               `json:"teacher_id"`
	ExamID    *uint                 `json:"exam_id"`
	Status    *models.BookingStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	ExamID    *uint                 `json:"exam_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// GradingQueueFilters selects locked sections awaiting a manual grade.
type GradingQueueFilters struct {
	Category    *models.ExamCategory `json:"category"`
	SectionType *models.SectionType  `json:"section_type"`
	StudentID   *string              `json:"student_id"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

type QuestionOrder struct {
	QuestionID uint `json:"question_id"`
	Position   int  `json:"position"`
}

// SectionGrade carries a manual grading submission into the repository.
type SectionGrade struct {
	BandScore float64  `json:"band_score"`
	Rubric    []byte   `json:"rubric,omitempty"`
	Feedback  *string  `json:"feedback,omitempty"`
	GraderID  string   `json:"grader_id"`
	RawScore  *float64 `json:"raw_score,omitempty"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts   int                          `json:"total_attempts"`
	StatusBreakdown map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageBand     float64                      `json:"average_band"`
	CompletionRate  float64                      `json:"completion_rate"`
}

type GradingStats struct {
	TotalSections   int     `json:"total_sections"`
	GradedSections  int     `json:"graded_sections"`
	PendingSections int     `json:"pending_sections"`
	AutoGraded      int     `json:"auto_graded"`
	ManualGraded    int     `json:"manual_graded"`
	AverageBand     float64 `json:"average_band"`
}
