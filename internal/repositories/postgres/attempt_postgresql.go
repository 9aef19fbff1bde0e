package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/cache"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
)

// AttemptPostgreSQL implements AttemptRepository
type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	helpers      *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
		helpers:      NewSharedHelpers(db),
	}
}

func (r *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	if err := r.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (r *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := r.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) GetWithSections(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := r.getDB(tx).WithContext(ctx).
		Preload("Exam").
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("attempt_sections.position ASC")
		}).
		Preload("Sections.Section").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) GetByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := r.getDB(tx).WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	if err := r.getDB(tx).WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	cache.InvalidateAttemptCache(ctx, r.cacheManager, attempt.ID, attempt.StudentID)
	return nil
}

func (r *AttemptPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{"status": status})
}

func (r *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Attempt{})
	query = r.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Preload("Exam").Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

// ===== RUNTIME STATE =====

func (r *AttemptPostgreSQL) SetStarted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	// Only the first load sets started_at
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND started_at IS NULL", id).
		Updates(map[string]interface{}{
			"started_at": at,
			"status":     models.AttemptInProgress,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark attempt started: %w", result.Error)
	}
	return nil
}

func (r *AttemptPostgreSQL) SetUnlockedIndex(ctx context.Context, tx *gorm.DB, id uint, index int) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{"unlocked_index": index})
}

func (r *AttemptPostgreSQL) SetSubmitted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{
		"submitted_at": at,
		"status":       models.AttemptSubmitted,
	})
}

func (r *AttemptPostgreSQL) SetBandOverall(ctx context.Context, tx *gorm.DB, id uint, band float64) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{
		"band_overall": band,
		"status":       models.AttemptGraded,
	})
}

func (r *AttemptPostgreSQL) updateColumns(ctx context.Context, tx *gorm.DB, id uint, values map[string]interface{}) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update attempt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Attempt, fmt.Sprintf("id:%d*", id))
	return nil
}

// ===== STATISTICS =====

func (r *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) (*repositories.AttemptStats, error) {
	stats := &repositories.AttemptStats{
		StatusBreakdown: make(map[models.AttemptStatus]int),
	}

	cacheKey := "attempts:summary"
	if filters.ExamID != nil {
		cacheKey = fmt.Sprintf("attempts:exam:%d", *filters.ExamID)
	}

	err := r.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		fresh := &repositories.AttemptStats{
			StatusBreakdown: make(map[models.AttemptStatus]int),
		}

		type statusCount struct {
			Status models.AttemptStatus
			Count  int
		}
		var counts []statusCount
		query := r.getDB(tx).WithContext(ctx).Model(&models.Attempt{})
		query = r.helpers.ApplyAttemptFilters(query, filters)
		if err := query.Select("status, COUNT(*) as count").Group("status").Scan(&counts).Error; err != nil {
			return nil, fmt.Errorf("failed to aggregate attempt statuses: %w", err)
		}

		completed := 0
		for _, c := range counts {
			fresh.StatusBreakdown[c.Status] = c.Count
			fresh.TotalAttempts += c.Count
			if c.Status == models.AttemptSubmitted || c.Status == models.AttemptGraded {
				completed += c.Count
			}
		}
		if fresh.TotalAttempts > 0 {
			fresh.CompletionRate = float64(completed) / float64(fresh.TotalAttempts)
		}

		var avgBand *float64
		bandQuery := r.getDB(tx).WithContext(ctx).Model(&models.Attempt{}).
			Where("band_overall IS NOT NULL")
		bandQuery = r.helpers.ApplyAttemptFilters(bandQuery, filters)
		if err := bandQuery.Select("AVG(band_overall)").Scan(&avgBand).Error; err != nil {
			return nil, fmt.Errorf("failed to average bands: %w", err)
		}
		if avgBand != nil {
			fresh.AverageBand = *avgBand
		}

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// AttemptSectionPostgreSQL implements AttemptSectionRepository
type AttemptSectionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptSectionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptSectionRepository {
	return &AttemptSectionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *AttemptSectionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *AttemptSectionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, sections []*models.AttemptSection) error {
	if len(sections) == 0 {
		return nil
	}
	if err := r.getDB(tx).WithContext(ctx).Create(sections).Error; err != nil {
		return fmt.Errorf("failed to create attempt sections: %w", err)
	}
	return nil
}

func (r *AttemptSectionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptSection, error) {
	var section models.AttemptSection
	if err := r.getDB(tx).WithContext(ctx).First(&section, id).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *AttemptSectionPostgreSQL) GetByIDWithSection(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptSection, error) {
	var section models.AttemptSection
	err := r.getDB(tx).WithContext(ctx).
		Preload("Section").
		First(&section, id).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *AttemptSectionPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptSection, error) {
	var sections []*models.AttemptSection
	err := r.getDB(tx).WithContext(ctx).
		Preload("Section").
		Where("attempt_id = ?", attemptID).
		Order("position ASC").
		Find(&sections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt sections: %w", err)
	}
	return sections, nil
}

func (r *AttemptSectionPostgreSQL) GetByAttemptAndSection(ctx context.Context, tx *gorm.DB, attemptID, sectionID uint) (*models.AttemptSection, error) {
	var section models.AttemptSection
	err := r.getDB(tx).WithContext(ctx).
		Where("attempt_id = ? AND section_id = ?", attemptID, sectionID).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *AttemptSectionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, section *models.AttemptSection) error {
	if err := r.getDB(tx).WithContext(ctx).Save(section).Error; err != nil {
		return fmt.Errorf("failed to update attempt section: %w", err)
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Attempt, fmt.Sprintf("id:%d*", section.AttemptID))
	return nil
}

// SaveAnswers overwrites the full answers map for one section. Writes are
// rejected at the service layer once the section is final; the status guard
// here is a second line of defense against racing autosaves.
func (r *AttemptSectionPostgreSQL) SaveAnswers(ctx context.Context, tx *gorm.DB, id uint, answers datatypes.JSON) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("id = ? AND status IN ?", id,
			[]models.AttemptSectionStatus{models.SectionNotStarted, models.SectionInProgress}).
		Update("answers", answers)
	if result.Error != nil {
		return fmt.Errorf("failed to save answers: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ===== RUNTIME STATE =====

func (r *AttemptSectionPostgreSQL) MarkStarted(ctx context.Context, tx *gorm.DB, id uint, startedAt, expiresAt time.Time) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("id = ? AND status = ?", id, models.SectionNotStarted).
		Updates(map[string]interface{}{
			"status":     models.SectionInProgress,
			"started_at": startedAt,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark section started: %w", result.Error)
	}
	return nil
}

func (r *AttemptSectionPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptSectionStatus) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update section status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Lock freezes a section exactly once; a second call affects zero rows.
func (r *AttemptSectionPostgreSQL) Lock(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptSectionStatus, endedAt time.Time) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("id = ? AND status IN ?", id,
			[]models.AttemptSectionStatus{models.SectionNotStarted, models.SectionInProgress}).
		Updates(map[string]interface{}{
			"status":   status,
			"ended_at": endedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to lock section: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *AttemptSectionPostgreSQL) CountNotFinal(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("attempt_id = ? AND status IN ?", attemptID,
			[]models.AttemptSectionStatus{models.SectionNotStarted, models.SectionInProgress}).
		Count(&count).Error
	return count, err
}

func (r *AttemptSectionPostgreSQL) CountUngraded(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("attempt_id = ? AND band_score IS NULL", attemptID).
		Count(&count).Error
	return count, err
}

// ===== GRADING =====

func (r *AttemptSectionPostgreSQL) SaveAutoScore(ctx context.Context, tx *gorm.DB, id uint, rawScore, maxRawScore float64, band *float64) error {
	values := map[string]interface{}{
		"raw_score":     rawScore,
		"max_raw_score": maxRawScore,
	}
	if band != nil {
		values["band_score"] = *band
		values["status"] = models.SectionGraded
		values["graded_at"] = time.Now()
	}
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to save auto score: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *AttemptSectionPostgreSQL) SaveGrade(ctx context.Context, tx *gorm.DB, id uint, grade repositories.SectionGrade) error {
	values := map[string]interface{}{
		"band_score": grade.BandScore,
		"graded_by":  grade.GraderID,
		"graded_at":  time.Now(),
		"status":     models.SectionGraded,
	}
	if grade.Rubric != nil {
		values["rubric"] = datatypes.JSON(grade.Rubric)
	}
	if grade.Feedback != nil {
		values["feedback"] = *grade.Feedback
	}
	if grade.RawScore != nil {
		values["raw_score"] = *grade.RawScore
	}
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to save grade: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *AttemptSectionPostgreSQL) ListPendingGrading(ctx context.Context, tx *gorm.DB, filters repositories.GradingQueueFilters) ([]*models.AttemptSection, int64, error) {
	var sections []*models.AttemptSection
	var total int64

	base := r.getDB(tx).WithContext(ctx).
		Model(&models.AttemptSection{}).
		Joins("JOIN sections ON sections.id = attempt_sections.section_id").
		Joins("JOIN attempts ON attempts.id = attempt_sections.attempt_id").
		Joins("JOIN exams ON exams.id = attempts.exam_id").
		Where("attempt_sections.status IN ?",
			[]models.AttemptSectionStatus{models.SectionLocked, models.SectionSubmitted}).
		Where("attempt_sections.band_score IS NULL")

	if filters.Category != nil {
		base = base.Where("exams.category = ?", *filters.Category)
	}
	if filters.SectionType != nil {
		base = base.Where("sections.type = ?", *filters.SectionType)
	}
	if filters.StudentID != nil {
		base = base.Where("attempts.student_id = ?", *filters.StudentID)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count grading queue: %w", err)
	}

	query := base.Preload("Section").Order("attempt_sections.ended_at ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	if err := query.Find(&sections).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list grading queue: %w", err)
	}

	return sections, total, nil
}

// ===== EXPIRY SWEEP =====

func (r *AttemptSectionPostgreSQL) GetExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.AttemptSection, error) {
	var sections []*models.AttemptSection
	query := r.getDB(tx).WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.SectionInProgress, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("failed to get expired sections: %w", err)
	}
	return sections, nil
}

// ===== STATISTICS =====

func (r *AttemptSectionPostgreSQL) GetGradingStats(ctx context.Context, tx *gorm.DB) (*repositories.GradingStats, error) {
	stats := &repositories.GradingStats{}

	err := r.cacheManager.Stats.CacheOrExecute(ctx, "grading:summary", stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		fresh := &repositories.GradingStats{}
		db := r.getDB(tx).WithContext(ctx).Model(&models.AttemptSection{})

		var total, graded, pending, manual int64
		if err := db.Session(&gorm.Session{}).
			Where("status IN ?", []models.AttemptSectionStatus{
				models.SectionLocked, models.SectionSubmitted, models.SectionGraded}).
			Count(&total).Error; err != nil {
			return nil, err
		}
		if err := db.Session(&gorm.Session{}).
			Where("status = ?", models.SectionGraded).
			Count(&graded).Error; err != nil {
			return nil, err
		}
		if err := db.Session(&gorm.Session{}).
			Where("status IN ? AND band_score IS NULL",
				[]models.AttemptSectionStatus{models.SectionLocked, models.SectionSubmitted}).
			Count(&pending).Error; err != nil {
			return nil, err
		}
		if err := db.Session(&gorm.Session{}).
			Where("status = ? AND graded_by IS NOT NULL", models.SectionGraded).
			Count(&manual).Error; err != nil {
			return nil, err
		}

		fresh.TotalSections = int(total)
		fresh.GradedSections = int(graded)
		fresh.PendingSections = int(pending)
		fresh.ManualGraded = int(manual)
		fresh.AutoGraded = int(graded - manual)

		var avgBand *float64
		if err := db.Session(&gorm.Session{}).
			Where("band_score IS NOT NULL").
			Select("AVG(band_score)").Scan(&avgBand).Error; err != nil {
			return nil, err
		}
		if avgBand != nil {
			fresh.AverageBand = *avgBand
		}

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
