package events

import (
	"time"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventAttemptStarted   EventType = "attempt.started"
	EventSectionLocked    EventType = "attempt.section_locked"
	EventSectionExpired   EventType = "attempt.section_expired"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventSectionGraded    EventType = "attempt.section_graded"
	EventAttemptGraded    EventType = "attempt.graded"
)

// ExamEvent is the envelope every published event shares.
type ExamEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

func newEvent(eventType EventType, data interface{}) *ExamEvent {
	return &ExamEvent{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: eventTimestamp(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// ===== PAYLOADS =====

type BookingEventData struct {
	BookingID uint      `json:"booking_id"`
	StudentID string    `json:"student_id"`
	TeacherID string    `json:"teacher_id"`
	ExamID    uint      `json:"exam_id"`
	StartAt   time.Time `json:"start_at"`
}

type AttemptEventData struct {
	AttemptID uint     `json:"attempt_id"`
	BookingID uint     `json:"booking_id"`
	StudentID string   `json:"student_id"`
	ExamID    uint     `json:"exam_id"`
	Band      *float64 `json:"band,omitempty"`
}

type SectionEventData struct {
	AttemptID        uint     `json:"attempt_id"`
	AttemptSectionID uint     `json:"attempt_section_id"`
	SectionID        uint     `json:"section_id"`
	StudentID        string   `json:"student_id"`
	SectionType      string   `json:"section_type,omitempty"`
	RawScore         *float64 `json:"raw_score,omitempty"`
	BandScore        *float64 `json:"band_score,omitempty"`
	GradedBy         *string  `json:"graded_by,omitempty"`
}

// ===== FACTORY FUNCTIONS =====

func NewBookingCreatedEvent(data BookingEventData) *ExamEvent {
	return newEvent(EventBookingCreated, data)
}

func NewBookingCancelledEvent(data BookingEventData) *ExamEvent {
	return newEvent(EventBookingCancelled, data)
}

func NewAttemptStartedEvent(data AttemptEventData) *ExamEvent {
	return newEvent(EventAttemptStarted, data)
}

func NewSectionLockedEvent(data SectionEventData) *ExamEvent {
	return newEvent(EventSectionLocked, data)
}

func NewSectionExpiredEvent(data SectionEventData) *ExamEvent {
	return newEvent(EventSectionExpired, data)
}

func NewAttemptSubmittedEvent(data AttemptEventData) *ExamEvent {
	return newEvent(EventAttemptSubmitted, data)
}

func NewSectionGradedEvent(data SectionEventData) *ExamEvent {
	return newEvent(EventSectionGraded, data)
}

func NewAttemptGradedEvent(data AttemptEventData) *ExamEvent {
	return newEvent(EventAttemptGraded, data)
}
