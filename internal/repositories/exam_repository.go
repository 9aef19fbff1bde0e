package repositories

import (
	"context"

	"github.com/prepdesk/exam-service/internal/models"
	"gorm.io/gorm"
)

// ExamRepository interface for exam and section operations
type ExamRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetWithSections(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) // sections and questions ordered by position
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)

	// Validation and checks
	ExistsByTitle(ctx context.Context, tx *gorm.DB, title string, excludeID *uint) (bool, error)
	HasActiveBookings(ctx context.Context, tx *gorm.DB, examID uint) (bool, error)

	// Status management
	SetActive(ctx context.Context, tx *gorm.DB, id uint, active bool) error

	// Section operations
	CreateSection(ctx context.Context, tx *gorm.DB, section *models.Section) error
	GetSectionByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Section, error)
	GetSectionWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Section, error)
	GetSectionsByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Section, error)
	GetSectionsByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Section, error)
	UpdateSection(ctx context.Context, tx *gorm.DB, section *models.Section) error
	DeleteSection(ctx context.Context, tx *gorm.DB, id uint) error
}

// QuestionRepository interface for question-specific operations
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Bulk operations
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)

	// Query operations
	GetBySection(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.Question, error)
	GetBySections(ctx context.Context, tx *gorm.DB, sectionIDs []uint) ([]*models.Question, error)
	CountBySection(ctx context.Context, tx *gorm.DB, sectionID uint) (int64, error)

	// Ordering
	Reorder(ctx context.Context, tx *gorm.DB, sectionID uint, orders []QuestionOrder) error
}
