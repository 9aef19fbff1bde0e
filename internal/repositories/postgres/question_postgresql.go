package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/cache"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
)

// QuestionPostgreSQL implements QuestionRepository
type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := r.getDB(tx).WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	cache.SafeDelete(ctx, r.cacheManager.Question, fmt.Sprintf("section:%d", question.SectionID))
	return nil
}

func (r *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	if err := r.getDB(tx).WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := r.getDB(tx).WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	cache.SafeDelete(ctx, r.cacheManager.Question,
		fmt.Sprintf("id:%d", question.ID),
		fmt.Sprintf("section:%d", question.SectionID))
	return nil
}

func (r *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(tx).WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, r.cacheManager.Question, fmt.Sprintf("id:%d", id))
	return nil
}

// ===== BULK OPERATIONS =====

func (r *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := r.getDB(tx).WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}
	return nil
}

func (r *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}
	var questions []*models.Question
	err := r.getDB(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by ids: %w", err)
	}
	return questions, nil
}

// ===== QUERY OPERATIONS =====

func (r *QuestionPostgreSQL) GetBySection(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := r.getDB(tx).WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by section: %w", err)
	}
	return questions, nil
}

func (r *QuestionPostgreSQL) GetBySections(ctx context.Context, tx *gorm.DB, sectionIDs []uint) ([]*models.Question, error) {
	if len(sectionIDs) == 0 {
		return []*models.Question{}, nil
	}
	var questions []*models.Question
	err := r.getDB(tx).WithContext(ctx).
		Where("section_id IN ?", sectionIDs).
		Order("section_id ASC, position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by sections: %w", err)
	}
	return questions, nil
}

func (r *QuestionPostgreSQL) CountBySection(ctx context.Context, tx *gorm.DB, sectionID uint) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("section_id = ?", sectionID).
		Count(&count).Error
	return count, err
}

// ===== ORDERING =====

func (r *QuestionPostgreSQL) Reorder(ctx context.Context, tx *gorm.DB, sectionID uint, orders []repositories.QuestionOrder) error {
	if len(orders) == 0 {
		return nil
	}
	db := r.getDB(tx).WithContext(ctx)
	for _, order := range orders {
		result := db.Model(&models.Question{}).
			Where("id = ? AND section_id = ?", order.QuestionID, sectionID).
			Update("position", order.Position)
		if result.Error != nil {
			return fmt.Errorf("failed to reorder question %d: %w", order.QuestionID, result.Error)
		}
	}
	cache.SafeDelete(ctx, r.cacheManager.Question, fmt.Sprintf("section:%d", sectionID))
	return nil
}
