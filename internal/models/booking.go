package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// BookingConflictWindow is the exclusion window around a booking's start time.
// No two active bookings for the same student may start within this window of
// each other.
const BookingConflictWindow = 2 * time.Hour

// Booking schedules a student to sit a subset of an exam's sections.
type Booking struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index"`
	// TeacherID is the staff member who assigned the booking.
	TeacherID string `json:"teacher_id" gorm:"not null;size:255;index"`
	ExamID    uint   `json:"exam_id" gorm:"not null;index"`

	// SectionIDs selects which of the exam's sections the student must sit.
	// Empty means all sections.
	SectionIDs datatypes.JSON `json:"section_ids,omitempty" gorm:"type:jsonb"`

	StartAt time.Time     `json:"start_at" gorm:"not null;index"`
	Status  BookingStatus `json:"status" gorm:"not null;size:20;default:CONFIRMED;index"`

	Exam    *Exam    `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Attempt *Attempt `json:"attempt,omitempty" gorm:"foreignKey:BookingID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsActive reports whether the booking blocks other bookings in its window.
func (b *Booking) IsActive() bool {
	return b.Status == BookingConfirmed || b.Status == BookingInProgress
}
