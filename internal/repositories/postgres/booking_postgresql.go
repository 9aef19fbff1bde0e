package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/cache"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
)

// BookingPostgreSQL implements BookingRepository
type BookingPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	helpers      *SharedHelpers
}

func NewBookingPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.BookingRepository {
	return &BookingPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
		helpers:      NewSharedHelpers(db),
	}
}

func (r *BookingPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *BookingPostgreSQL) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	if err := r.getDB(tx).WithContext(ctx).Create(booking).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *BookingPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.getDB(tx).WithContext(ctx).First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingPostgreSQL) GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.getDB(tx).WithContext(ctx).
		Preload("Exam").
		Preload("Attempt").
		First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingPostgreSQL) Update(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	if err := r.getDB(tx).WithContext(ctx).Save(booking).Error; err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

func (r *BookingPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.BookingStatus) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookingPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(tx).WithContext(ctx).Delete(&models.Booking{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookingPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.BookingFilters) ([]*models.Booking, int64, error) {
	var bookings []*models.Booking
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Booking{})
	query = r.helpers.ApplyBookingFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Preload("Exam").Find(&bookings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, total, nil
}

// HasConflict reports whether the student already has an active booking whose
// start time lies within the exclusion window around startAt.
func (r *BookingPostgreSQL) HasConflict(ctx context.Context, tx *gorm.DB, studentID string, startAt time.Time, excludeID *uint) (bool, error) {
	windowStart := startAt.Add(-models.BookingConflictWindow)
	windowEnd := startAt.Add(models.BookingConflictWindow)

	var count int64
	query := r.getDB(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("student_id = ?", studentID).
		Where("status IN ?", []models.BookingStatus{models.BookingConfirmed, models.BookingInProgress}).
		Where("start_at > ? AND start_at < ?", windowStart, windowEnd)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check booking conflict: %w", err)
	}
	return count > 0, nil
}
