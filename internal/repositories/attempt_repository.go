package repositories

import (
	"context"
	"time"

	"github.com/prepdesk/exam-service/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingRepository interface for booking operations
type BookingRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error)
	GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error)
	Update(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.BookingStatus) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters BookingFilters) ([]*models.Booking, int64, error)

	// Conflict detection: any active booking for the student whose start time
	// lies within the exclusion window around startAt.
	HasConflict(ctx context.Context, tx *gorm.DB, studentID string, startAt time.Time, excludeID *uint) (bool, error)
}

// AttemptRepository interface for attempt operations
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetWithSections(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) // attempt sections ordered by position
	GetByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// Runtime state
	SetStarted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
	SetUnlockedIndex(ctx context.Context, tx *gorm.DB, id uint, index int) error
	SetSubmitted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
	SetBandOverall(ctx context.Context, tx *gorm.DB, id uint, band float64) error

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB, filters AttemptFilters) (*AttemptStats, error)
}

// AttemptSectionRepository interface for per-section attempt state
type AttemptSectionRepository interface {
	// Basic operations
	CreateBatch(ctx context.Context, tx *gorm.DB, sections []*models.AttemptSection) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptSection, error)
	GetByIDWithSection(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptSection, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptSection, error)
	GetByAttemptAndSection(ctx context.Context, tx *gorm.DB, attemptID, sectionID uint) (*models.AttemptSection, error)
	Update(ctx context.Context, tx *gorm.DB, section *models.AttemptSection) error

	// Answer writes (last-writer-wins at section granularity)
	SaveAnswers(ctx context.Context, tx *gorm.DB, id uint, answers datatypes.JSON) error

	// Runtime state
	MarkStarted(ctx context.Context, tx *gorm.DB, id uint, startedAt, expiresAt time.Time) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptSectionStatus) error
	// Lock finalizes an open section into the given terminal status
	// ("locked" for forced closes, "submitted" for student submits).
	// Idempotent: a second call finds no open row and reports not-found.
	Lock(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptSectionStatus, endedAt time.Time) error
	CountNotFinal(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)
	CountUngraded(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)

	// Grading
	SaveAutoScore(ctx context.Context, tx *gorm.DB, id uint, rawScore, maxRawScore float64, band *float64) error
	SaveGrade(ctx context.Context, tx *gorm.DB, id uint, grade SectionGrade) error
	ListPendingGrading(ctx context.Context, tx *gorm.DB, filters GradingQueueFilters) ([]*models.AttemptSection, int64, error)

	// Expiry sweep: in-progress sections whose deadline has passed.
	GetExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.AttemptSection, error)

	// Statistics
	GetGradingStats(ctx context.Context, tx *gorm.DB) (*GradingStats, error)
}

// BandMapRepository interface for raw-score-to-band lookup tables
type BandMapRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.BandMap) error
	CreateBatch(ctx context.Context, tx *gorm.DB, entries []*models.BandMap) error
	List(ctx context.Context, tx *gorm.DB, category models.ExamCategory) ([]*models.BandMap, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*models.BandMap, error)

	// Lookup finds the row whose range contains raw for the given scope.
	// Rows with a matching track win over track-agnostic rows.
	Lookup(ctx context.Context, tx *gorm.DB, category models.ExamCategory, sectionType models.SectionType, track *string, raw int) (*models.BandMap, error)

	// ReplaceCategory atomically swaps all rows for one category (import).
	ReplaceCategory(ctx context.Context, tx *gorm.DB, category models.ExamCategory, entries []*models.BandMap) error
}
