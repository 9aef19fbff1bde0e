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

// BandMapPostgreSQL implements BandMapRepository with Redis caching for
// lookups, since band tables only change on import.
type BandMapPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewBandMapPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.BandMapRepository {
	return &BandMapPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *BandMapPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *BandMapPostgreSQL) Create(ctx context.Context, tx *gorm.DB, entry *models.BandMap) error {
	if err := r.getDB(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create band map entry: %w", err)
	}
	return r.cacheManager.InvalidateBandMaps(ctx, string(entry.Category))
}

func (r *BandMapPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, entries []*models.BandMap) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.getDB(tx).WithContext(ctx).CreateInBatches(entries, 200).Error; err != nil {
		return fmt.Errorf("failed to create band map entries: %w", err)
	}
	return r.cacheManager.InvalidateBandMaps(ctx, string(entries[0].Category))
}

func (r *BandMapPostgreSQL) List(ctx context.Context, tx *gorm.DB, category models.ExamCategory) ([]*models.BandMap, error) {
	var entries []*models.BandMap
	err := r.getDB(tx).WithContext(ctx).
		Where("category = ?", category).
		Order("section_type ASC, min_raw ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list band map entries: %w", err)
	}
	return entries, nil
}

func (r *BandMapPostgreSQL) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.BandMap, error) {
	var entries []*models.BandMap
	err := r.getDB(tx).WithContext(ctx).
		Order("category ASC, section_type ASC, min_raw ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list band map entries: %w", err)
	}
	return entries, nil
}

// Lookup resolves a raw score to a band. Track-specific rows take precedence
// over track-agnostic rows for the same category and section type.
func (r *BandMapPostgreSQL) Lookup(ctx context.Context, tx *gorm.DB, category models.ExamCategory, sectionType models.SectionType, track *string, raw int) (*models.BandMap, error) {
	trackKey := "any"
	if track != nil {
		trackKey = *track
	}
	cacheKey := fmt.Sprintf("%s:%s:%s:%d", category, sectionType, trackKey, raw)

	var entry models.BandMap
	err := r.cacheManager.BandMap.CacheOrExecute(ctx, cacheKey, &entry, cache.BandMapCacheConfig.TTL, func() (interface{}, error) {
		query := r.getDB(tx).WithContext(ctx).
			Where("category = ? AND section_type = ?", category, sectionType).
			Where("min_raw <= ? AND max_raw >= ?", raw, raw)
		if track != nil {
			query = query.Where("track = ? OR track IS NULL", *track).
				Order("track DESC NULLS LAST")
		} else {
			query = query.Where("track IS NULL")
		}

		var fresh models.BandMap
		if err := query.First(&fresh).Error; err != nil {
			return nil, err
		}
		return &fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReplaceCategory swaps the whole table for one category in a single
// transaction so imports are atomic.
func (r *BandMapPostgreSQL) ReplaceCategory(ctx context.Context, tx *gorm.DB, category models.ExamCategory, entries []*models.BandMap) error {
	db := r.getDB(tx)

	replace := func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).
			Where("category = ?", category).
			Delete(&models.BandMap{}).Error; err != nil {
			return fmt.Errorf("failed to clear band map category: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.WithContext(ctx).CreateInBatches(entries, 200).Error; err != nil {
			return fmt.Errorf("failed to import band map entries: %w", err)
		}
		return nil
	}

	var err error
	if tx != nil {
		// Already inside a transaction
		err = replace(tx)
	} else {
		err = db.WithContext(ctx).Transaction(replace)
	}
	if err != nil {
		return err
	}
	return r.cacheManager.InvalidateBandMaps(ctx, string(category))
}
