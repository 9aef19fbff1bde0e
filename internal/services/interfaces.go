package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
)

// ===== REQUEST DTOs =====

type CreateExamRequest struct {
	Title          string                 `json:"title" validate:"required,min=3,max=255"`
	Description    *string                `json:"description,omitempty"`
	Category       string                 `json:"category" validate:"required,exam_category"`
	Track          *string                `json:"track,omitempty" validate:"omitempty,max=50"`
	NavigationMode string                 `json:"navigation_mode,omitempty" validate:"omitempty,navigation_mode"`
	Sections       []CreateSectionRequest `json:"sections,omitempty" validate:"omitempty,dive"`
}

type UpdateExamRequest struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description    *string `json:"description,omitempty"`
	Track          *string `json:"track,omitempty" validate:"omitempty,max=50"`
	NavigationMode *string `json:"navigation_mode,omitempty" validate:"omitempty,navigation_mode"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

type CreateSectionRequest struct {
	Type         string                  `json:"type" validate:"required,section_type"`
	Title        string                  `json:"title" validate:"required,max=255"`
	Instructions *string                 `json:"instructions,omitempty"`
	DurationMin  int                     `json:"duration_min" validate:"required,min=1,max=240"`
	Position     int                     `json:"position" validate:"gte=0"`
	Questions    []CreateQuestionRequest `json:"questions,omitempty" validate:"omitempty,dive"`
}

type UpdateSectionRequest struct {
	Title        *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Instructions *string `json:"instructions,omitempty"`
	DurationMin  *int    `json:"duration_min,omitempty" validate:"omitempty,min=1,max=240"`
	Position     *int    `json:"position,omitempty" validate:"omitempty,gte=0"`
}

type CreateQuestionRequest struct {
	QType       string          `json:"qtype" validate:"required,question_type"`
	Position    int             `json:"position" validate:"gte=0"`
	Prompt      json.RawMessage `json:"prompt" validate:"required"`
	Options     json.RawMessage `json:"options,omitempty"`
	AnswerKey   json.RawMessage `json:"answer_key,omitempty"`
	MaxScore    float64         `json:"max_score,omitempty" validate:"omitempty,gt=0"`
	Explanation *string         `json:"explanation,omitempty"`
}

type UpdateQuestionRequest struct {
	Position    *int            `json:"position,omitempty" validate:"omitempty,gte=0"`
	Prompt      json.RawMessage `json:"prompt,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
	AnswerKey   json.RawMessage `json:"answer_key,omitempty"`
	MaxScore    *float64        `json:"max_score,omitempty" validate:"omitempty,gt=0"`
	Explanation *string         `json:"explanation,omitempty"`
}

type CreateBookingRequest struct {
	StudentID  string    `json:"student_id" validate:"required"`
	ExamID     uint      `json:"exam_id" validate:"required"`
	SectionIDs []uint    `json:"section_ids,omitempty"`
	StartAt    time.Time `json:"start_at" validate:"required"`
}

type SaveAnswersRequest struct {
	Answers map[string]json.RawMessage `json:"answers" validate:"required"`
}

type GradeSectionRequest struct {
	BandScore float64              `json:"band_score" validate:"band_score"`
	Rubric    *models.RubricScores `json:"rubric,omitempty"`
	Feedback  *string              `json:"feedback,omitempty"`
}

// ===== RESPONSE DTOs =====

// SectionState is the server-authoritative runtime view of one attempt section.
type SectionState struct {
	AttemptSectionID uint                        `json:"attempt_section_id"`
	SectionID        uint                        `json:"section_id"`
	Type             models.SectionType          `json:"type"`
	Title            string                      `json:"title"`
	Position         int                         `json:"position"`
	DurationMin      int                         `json:"duration_min"`
	Status           models.AttemptSectionStatus `json:"status"`
	// Selectable reflects the exam's navigation mode: whether the student may
	// enter this section right now.
	Selectable bool `json:"selectable"`
	// TimeRemaining is seconds left on the clock; zero when not started or done.
	TimeRemaining int  `json:"time_remaining"`
	IsExpired     bool `json:"is_expired"`
	// Progress counters
	Answered   int     `json:"answered"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// AttemptBootstrap is the single payload the attempt runner loads on mount.
type AttemptBootstrap struct {
	Attempt *models.Attempt `json:"attempt"`
	Exam    *models.Exam    `json:"exam"`
	// SavedAnswers maps section ID to the question->value map last persisted.
	SavedAnswers map[uint]map[string]json.RawMessage `json:"saved_answers"`
	Sections     []SectionState                      `json:"sections"`
	ServerTime   time.Time                           `json:"server_time"`
}

type SaveResult struct {
	SectionID uint      `json:"section_id"`
	Persisted bool      `json:"persisted"` // false while the save is queued behind the debounce
	SavedAt   time.Time `json:"saved_at"`
}

type SectionSubmitResult struct {
	AttemptSectionID uint                        `json:"attempt_section_id"`
	Status           models.AttemptSectionStatus `json:"status"`
	RawScore         *float64                    `json:"raw_score,omitempty"`
	MaxRawScore      *float64                    `json:"max_raw_score,omitempty"`
	BandScore        *float64                    `json:"band_score,omitempty"`
	PendingManual    bool                        `json:"pending_manual"`
	UnlockedIndex    int                         `json:"unlocked_index"`
}

type GradingQueueItem struct {
	AttemptSectionID uint               `json:"attempt_section_id"`
	AttemptID        uint               `json:"attempt_id"`
	SectionID        uint               `json:"section_id"`
	SectionType      models.SectionType `json:"section_type"`
	SectionTitle     string             `json:"section_title"`
	LockedAt         *time.Time         `json:"locked_at,omitempty"`
}

type BandMapImportResult struct {
	Category models.ExamCategory `json:"category"`
	Imported int                 `json:"imported"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	Create(ctx context.Context, req CreateExamRequest, creatorID string) (*models.Exam, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.Exam, error)
	GetWithContent(ctx context.Context, id uint, userID string) (*models.Exam, error)
	Update(ctx context.Context, id uint, req UpdateExamRequest, userID string) (*models.Exam, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.ExamFilters, userID string) ([]*models.Exam, int64, error)
	SetActive(ctx context.Context, id uint, active bool, userID string) error

	AddSection(ctx context.Context, examID uint, req CreateSectionRequest, userID string) (*models.Section, error)
	UpdateSection(ctx context.Context, sectionID uint, req UpdateSectionRequest, userID string) (*models.Section, error)
	DeleteSection(ctx context.Context, sectionID uint, userID string) error

	AddQuestion(ctx context.Context, sectionID uint, req CreateQuestionRequest, userID string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, questionID uint, req UpdateQuestionRequest, userID string) (*models.Question, error)
	DeleteQuestion(ctx context.Context, questionID uint, userID string) error
	ReorderQuestions(ctx context.Context, sectionID uint, orders []repositories.QuestionOrder, userID string) error
}

type BookingService interface {
	Create(ctx context.Context, req CreateBookingRequest, teacherID string) (*models.Booking, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.Booking, error)
	List(ctx context.Context, filters repositories.BookingFilters, userID string, role models.UserRole) ([]*models.Booking, int64, error)
	Cancel(ctx context.Context, id uint, userID string) error

	// Activate turns a confirmed booking into a live attempt with one
	// attempt-section per booked section.
	Activate(ctx context.Context, id uint, studentID string) (*models.Attempt, error)
}

type AttemptService interface {
	Bootstrap(ctx context.Context, attemptID uint, studentID string) (*AttemptBootstrap, error)

	// EnterSection starts the section clock on first entry and returns the
	// server-computed deadline. Safe to call again while the section is open.
	EnterSection(ctx context.Context, attemptID, sectionID uint, studentID string) (*SectionState, error)

	SaveAnswers(ctx context.Context, attemptID, sectionID uint, req SaveAnswersRequest, studentID string, immediate bool) (*SaveResult, error)
	SubmitSection(ctx context.Context, attemptID, sectionID uint, studentID string) (*SectionSubmitResult, error)
	SubmitAttempt(ctx context.Context, attemptID uint, studentID string) (*models.Attempt, error)
	List(ctx context.Context, filters repositories.AttemptFilters, userID string, role models.UserRole) ([]*models.Attempt, int64, error)

	// HandleSectionExpiry force-locks an in-progress section whose deadline
	// has passed and runs auto-scoring. Called by the timeout sweeper.
	HandleSectionExpiry(ctx context.Context, attemptSectionID uint) error
}

type GradingService interface {
	Queue(ctx context.Context, filters repositories.GradingQueueFilters, graderID string) ([]*GradingQueueItem, int64, error)
	GradeSection(ctx context.Context, attemptSectionID uint, req GradeSectionRequest, graderID string) (*models.AttemptSection, error)
	Stats(ctx context.Context, graderID string) (*repositories.GradingStats, error)
}

type BandMapService interface {
	List(ctx context.Context, category models.ExamCategory) ([]*models.BandMap, error)
	Lookup(ctx context.Context, category models.ExamCategory, sectionType models.SectionType, track *string, raw int) (float64, error)
	Import(ctx context.Context, category models.ExamCategory, file *excelize.File, userID string) (*BandMapImportResult, error)
	Export(ctx context.Context, category models.ExamCategory) (*excelize.File, error)
}

type SeedService interface {
	SeedDemoExams(ctx context.Context) ([]uint, error)
	SeedBandMaps(ctx context.Context) (int, error)
}
