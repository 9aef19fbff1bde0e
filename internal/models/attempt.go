package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptGraded     AttemptStatus = "GRADED"
)

type AttemptSectionStatus string

const (
	SectionNotStarted AttemptSectionStatus = "not_started"
	SectionInProgress AttemptSectionStatus = "in_progress"
	SectionLocked     AttemptSectionStatus = "locked"
	SectionSubmitted  AttemptSectionStatus = "submitted"
	SectionGraded     AttemptSectionStatus = "graded"
)

// IsFinal reports whether the section no longer accepts answer writes.
func (s AttemptSectionStatus) IsFinal() bool {
	return s == SectionLocked || s == SectionSubmitted || s == SectionGraded
}

// Attempt is one sitting of an exam, created when a booking is activated.
type Attempt struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	BookingID uint   `json:"booking_id" gorm:"not null;uniqueIndex"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index"`
	ExamID    uint   `json:"exam_id" gorm:"not null;index"`

	Status AttemptStatus `json:"status" gorm:"not null;size:20;default:NOT_STARTED;index"`
	// UnlockedIndex is the position of the furthest section the student may
	// enter under linear and type_grouped navigation.
	UnlockedIndex int `json:"unlocked_index" gorm:"not null;default:0"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// BandOverall is derived from per-section bands once grading completes.
	BandOverall *float64 `json:"band_overall,omitempty"`

	Exam     *Exam            `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Sections []AttemptSection `json:"sections,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// AttemptSection is a student's progress record for one section of an attempt.
// Once the status is locked or beyond, the answers map is immutable; graders
// may still attach band scores and feedback.
type AttemptSection struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;index:idx_attempt_section,unique"`
	SectionID uint `json:"section_id" gorm:"not null;index:idx_attempt_section,unique"`
	// Position is the section's order within the attempt, snapshotted at
	// activation so later exam edits cannot reorder a live attempt.
	Position int `json:"position" gorm:"not null;default:0"`

	Status AttemptSectionStatus `json:"status" gorm:"not null;size:20;default:not_started;index"`

	// Answers maps question ID to the submitted value; value shape depends on
	// the question's qtype.
	Answers datatypes.JSON `json:"answers,omitempty" gorm:"type:jsonb"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	// ExpiresAt is the server-authoritative deadline, set when the section
	// enters in_progress.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Scoring results.
	RawScore    *float64       `json:"raw_score,omitempty"`
	MaxRawScore *float64       `json:"max_raw_score,omitempty"`
	BandScore   *float64       `json:"band_score,omitempty"`
	Rubric      datatypes.JSON `json:"rubric,omitempty" gorm:"type:jsonb"`
	Feedback    *string        `json:"feedback,omitempty" gorm:"type:text"`
	GradedBy    *string        `json:"graded_by,omitempty" gorm:"size:255"`
	GradedAt    *time.Time     `json:"graded_at,omitempty"`

	Section *Section `json:"section,omitempty" gorm:"foreignKey:SectionID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptSection) TableName() string {
	return "attempt_sections"
}

// RubricScores are the IELTS writing sub-scores a grader may attach.
type RubricScores struct {
	TaskAchievement   *float64 `json:"task_achievement,omitempty"`
	CoherenceCohesion *float64 `json:"coherence_cohesion,omitempty"`
	LexicalResource   *float64 `json:"lexical_resource,omitempty"`
	GrammaticalRange  *float64 `json:"grammatical_range,omitempty"`
}
