package services

import (
	"context"
	"testing"
	"time"

	"github.com/prepdesk/exam-service/internal/events"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

func newBookingFixture(t *testing.T) (*fakeRepo, BookingService) {
	t.Helper()
	repo := newFakeRepo()

	repo.exams[1] = &models.Exam{
		ID:             1,
		Title:          "Academic Mock",
		Category:       models.CategoryIELTS,
		NavigationMode: models.NavigationLinear,
		IsActive:       true,
		CreatedBy:      "teacher-1",
		Sections: []models.Section{
			{ID: 10, ExamID: 1, Type: models.SectionReading, Title: "Reading", DurationMin: 60, Position: 0},
			{ID: 11, ExamID: 1, Type: models.SectionWriting, Title: "Writing", DurationMin: 60, Position: 1},
		},
	}
	repo.users[testStudentID] = &models.User{
		ID:       testStudentID,
		FullName: "Test Student",
		Email:    "student@example.com",
		Role:     models.RoleStudent,
	}

	svc := NewBookingService(
		repo,
		validator.New(),
		validator.NewBusinessValidator(),
		events.NewMockEventPublisher(nil),
		utils.NewDefaultLogger("error"),
	)
	return repo, svc
}

func TestCreateBookingConflictWindow(t *testing.T) {
	base := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		startAt time.Time
		wantErr error
	}{
		{"same slot", base, ErrBookingConflict},
		{"one minute inside the window", base.Add(2*time.Hour - time.Minute), ErrBookingConflict},
		{"inside the window before", base.Add(-90 * time.Minute), ErrBookingConflict},
		{"exactly two hours later", base.Add(2 * time.Hour), nil},
		{"well clear of the window", base.Add(5 * time.Hour), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := newBookingFixture(t)
			repo.bookings[1] = &models.Booking{
				ID:        1,
				StudentID: testStudentID,
				TeacherID: "teacher-1",
				ExamID:    1,
				StartAt:   base,
				Status:    models.BookingConfirmed,
			}

			_, err := svc.Create(context.Background(), CreateBookingRequest{
				StudentID: testStudentID,
				ExamID:    1,
				StartAt:   tt.startAt,
			}, "teacher-1")
			if err != tt.wantErr {
				t.Fatalf("Create at %v: err = %v, want %v", tt.startAt.Sub(base), err, tt.wantErr)
			}
		})
	}
}

func TestCreateBookingIgnoresCancelledClash(t *testing.T) {
	repo, svc := newBookingFixture(t)
	start := time.Now().Add(24 * time.Hour)
	repo.bookings[1] = &models.Booking{
		ID:        1,
		StudentID: testStudentID,
		TeacherID: "teacher-1",
		ExamID:    1,
		StartAt:   start,
		Status:    models.BookingCancelled,
	}

	if _, err := svc.Create(context.Background(), CreateBookingRequest{
		StudentID: testStudentID,
		ExamID:    1,
		StartAt:   start,
	}, "teacher-1"); err != nil {
		t.Fatalf("Create over a cancelled booking: %v", err)
	}
}

func TestActivateBookingCreatesAttemptSections(t *testing.T) {
	repo, svc := newBookingFixture(t)
	repo.bookings[1] = &models.Booking{
		ID:        1,
		StudentID: testStudentID,
		TeacherID: "teacher-1",
		ExamID:    1,
		StartAt:   time.Now(),
		Status:    models.BookingConfirmed,
	}

	attempt, err := svc.Activate(context.Background(), 1, testStudentID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if attempt.Status != models.AttemptNotStarted {
		t.Errorf("attempt status = %q, want %q", attempt.Status, models.AttemptNotStarted)
	}

	count, err := repo.AttemptSection().CountNotFinal(context.Background(), nil, attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("attempt sections = %d, want 2", count)
	}

	// Activating again returns the same attempt instead of a duplicate.
	again, err := svc.Activate(context.Background(), 1, testStudentID)
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if again.ID != attempt.ID {
		t.Errorf("second activate created attempt %d, want %d", again.ID, attempt.ID)
	}
}

func TestActivateBookingRechecksConflict(t *testing.T) {
	repo, svc := newBookingFixture(t)
	start := time.Now()
	repo.bookings[1] = &models.Booking{
		ID:        1,
		StudentID: testStudentID,
		TeacherID: "teacher-1",
		ExamID:    1,
		StartAt:   start,
		Status:    models.BookingConfirmed,
	}
	// A clashing booking confirmed after this one was scheduled.
	repo.bookings[2] = &models.Booking{
		ID:        2,
		StudentID: testStudentID,
		TeacherID: "teacher-2",
		ExamID:    1,
		StartAt:   start.Add(30 * time.Minute),
		Status:    models.BookingConfirmed,
	}

	_, err := svc.Activate(context.Background(), 1, testStudentID)
	if err != ErrBookingConflict {
		t.Fatalf("activate with a clashing booking: err = %v, want ErrBookingConflict", err)
	}
}

func TestActivateForeignBookingIsHidden(t *testing.T) {
	repo, svc := newBookingFixture(t)
	repo.bookings[1] = &models.Booking{
		ID:        1,
		StudentID: testStudentID,
		TeacherID: "teacher-1",
		ExamID:    1,
		StartAt:   time.Now(),
		Status:    models.BookingConfirmed,
	}

	_, err := svc.Activate(context.Background(), 1, "someone-else")
	if err != ErrBookingNotFound {
		t.Fatalf("foreign activate: err = %v, want ErrBookingNotFound", err)
	}
}
