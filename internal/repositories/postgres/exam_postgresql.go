package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/cache"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
)

// ExamPostgreSQL implements ExamRepository with Redis caching
type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	helpers      *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
		helpers:      NewSharedHelpers(db),
	}
}

func (r *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// ===== BASIC CRUD OPERATIONS =====

func (r *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := r.getDB(tx).WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

func (r *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam

	// Bypass cache inside transactions to avoid stale reads
	if tx != nil {
		err := tx.WithContext(ctx).First(&exam, id).Error
		if err != nil {
			return nil, err
		}
		return &exam, nil
	}

	cacheKey := fmt.Sprintf("id:%d", id)
	err := r.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var fresh models.Exam
		if err := r.db.WithContext(ctx).First(&fresh, id).Error; err != nil {
			return nil, err
		}
		return &fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamPostgreSQL) GetWithSections(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := r.getDB(tx).WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sections.position ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := r.getDB(tx).WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

func (r *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(tx).WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, id, "")
	return nil
}

// ===== QUERY OPERATIONS =====

func (r *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var exams []*models.Exam
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Exam{})
	query = r.helpers.ApplyExamFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}

	return exams, total, nil
}

// ===== VALIDATION AND CHECKS =====

func (r *ExamPostgreSQL) ExistsByTitle(ctx context.Context, tx *gorm.DB, title string, excludeID *uint) (bool, error) {
	var count int64
	query := r.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("title = ?", title)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check exam title: %w", err)
	}
	return count > 0, nil
}

func (r *ExamPostgreSQL) HasActiveBookings(ctx context.Context, tx *gorm.DB, examID uint) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("exam_id = ? AND status IN ?", examID,
			[]models.BookingStatus{models.BookingConfirmed, models.BookingInProgress}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count exam bookings: %w", err)
	}
	return count > 0, nil
}

func (r *ExamPostgreSQL) SetActive(ctx context.Context, tx *gorm.DB, id uint, active bool) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to set exam active flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, id, "")
	return nil
}

// ===== SECTION OPERATIONS =====

func (r *ExamPostgreSQL) CreateSection(ctx context.Context, tx *gorm.DB, section *models.Section) error {
	if err := r.getDB(tx).WithContext(ctx).Create(section).Error; err != nil {
		return fmt.Errorf("failed to create section: %w", err)
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, section.ExamID, "")
	return nil
}

func (r *ExamPostgreSQL) GetSectionByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Section, error) {
	var section models.Section
	if err := r.getDB(tx).WithContext(ctx).First(&section, id).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *ExamPostgreSQL) GetSectionWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Section, error) {
	var section models.Section
	err := r.getDB(tx).WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		First(&section, id).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *ExamPostgreSQL) GetSectionsByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Section, error) {
	var sections []*models.Section
	err := r.getDB(tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC").
		Find(&sections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get sections by exam: %w", err)
	}
	return sections, nil
}

func (r *ExamPostgreSQL) GetSectionsByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Section, error) {
	if len(ids) == 0 {
		return []*models.Section{}, nil
	}
	var sections []*models.Section
	err := r.getDB(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Order("position ASC").
		Find(&sections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get sections by ids: %w", err)
	}
	return sections, nil
}

func (r *ExamPostgreSQL) UpdateSection(ctx context.Context, tx *gorm.DB, section *models.Section) error {
	if err := r.getDB(tx).WithContext(ctx).Save(section).Error; err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, section.ExamID, "")
	return nil
}

func (r *ExamPostgreSQL) DeleteSection(ctx context.Context, tx *gorm.DB, id uint) error {
	var section models.Section
	db := r.getDB(tx).WithContext(ctx)
	if err := db.First(&section, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gorm.ErrRecordNotFound
		}
		return fmt.Errorf("failed to load section for delete: %w", err)
	}
	if err := db.Delete(&models.Section{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, section.ExamID, "")
	return nil
}
