package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMockPublisherRecordsEvents(t *testing.T) {
	pub := NewMockEventPublisher(nil)
	ctx := context.Background()

	if err := pub.Publish(ctx, NewBookingCreatedEvent(BookingEventData{
		BookingID: 1,
		StudentID: "student-1",
		TeacherID: "teacher-1",
		ExamID:    7,
		StartAt:   time.Now(),
	})); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(ctx, NewAttemptStartedEvent(AttemptEventData{
		AttemptID: 2,
		BookingID: 1,
		StudentID: "student-1",
		ExamID:    7,
	})); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	events := pub.GetPublishedEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 recorded events, got %d", len(events))
	}
	if events[0].Type != EventBookingCreated {
		t.Errorf("first event type = %s, want %s", events[0].Type, EventBookingCreated)
	}
	if events[1].Type != EventAttemptStarted {
		t.Errorf("second event type = %s, want %s", events[1].Type, EventAttemptStarted)
	}

	pub.ClearEvents()
	if got := len(pub.GetPublishedEvents()); got != 0 {
		t.Errorf("expected no events after clear, got %d", got)
	}
}

func TestEventEnvelope(t *testing.T) {
	band := 7.5
	event := NewSectionGradedEvent(SectionEventData{
		AttemptID:        3,
		AttemptSectionID: 11,
		SectionID:        5,
		StudentID:        "student-1",
		SectionType:      "WRITING",
		BandScore:        &band,
	})

	if event.ID == "" {
		t.Error("event ID is empty")
	}
	if event.Source != "exam-service" {
		t.Errorf("source = %q", event.Source)
	}
	if event.Version != "1.0" {
		t.Errorf("version = %q", event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			AttemptSectionID uint     `json:"attempt_section_id"`
			BandScore        *float64 `json:"band_score"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != string(EventSectionGraded) {
		t.Errorf("type = %q, want %q", decoded.Type, EventSectionGraded)
	}
	if decoded.Data.AttemptSectionID != 11 {
		t.Errorf("attempt_section_id = %d", decoded.Data.AttemptSectionID)
	}
	if decoded.Data.BandScore == nil || *decoded.Data.BandScore != 7.5 {
		t.Errorf("band_score = %v", decoded.Data.BandScore)
	}
}

func TestAttemptGradedEventCarriesBand(t *testing.T) {
	band := 6.5
	event := NewAttemptGradedEvent(AttemptEventData{
		AttemptID: 9,
		StudentID: "student-2",
		ExamID:    4,
		Band:      &band,
	})

	if event.Type != EventAttemptGraded {
		t.Fatalf("type = %s", event.Type)
	}
	data, ok := event.Data.(AttemptEventData)
	if !ok {
		t.Fatalf("data has type %T", event.Data)
	}
	if data.Band == nil || *data.Band != 6.5 {
		t.Errorf("band = %v", data.Band)
	}
}
