package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/datatypes"

	"github.com/prepdesk/exam-service/internal/events"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

type bookingService struct {
	repo      repositories.Repository
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
	logger    utils.Logger
}

func NewBookingService(repo repositories.Repository, v *validator.Validator, bv *validator.BusinessValidator, publisher events.EventPublisher, logger utils.Logger) BookingService {
	return &bookingService{
		repo:      repo,
		validator: v,
		business:  bv,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *bookingService) Create(ctx context.Context, req CreateBookingRequest, teacherID string) (*models.Booking, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.business.ValidateBookingStart(req.StartAt); err != nil {
		return nil, err
	}

	student, err := s.repo.User().GetByID(ctx, req.StudentID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	exam, err := s.repo.Exam().GetWithSections(ctx, nil, req.ExamID)
	if err != nil {
		return nil, ErrExamNotFound
	}
	if !exam.IsActive {
		return nil, ErrExamInactive
	}
	if err := validateBookedSections(exam, req.SectionIDs); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		StudentID: student.ID,
		TeacherID: teacherID,
		ExamID:    req.ExamID,
		StartAt:   req.StartAt,
		Status:    models.BookingConfirmed,
	}
	if len(req.SectionIDs) > 0 {
		raw, err := json.Marshal(req.SectionIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode section ids: %w", err)
		}
		booking.SectionIDs = datatypes.JSON(raw)
	}

	// Conflict check and insert share one transaction so two concurrent
	// bookings cannot both pass the window check.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		conflict, err := txRepo.Booking().HasConflict(ctx, nil, student.ID, req.StartAt, nil)
		if err != nil {
			return fmt.Errorf("failed to check booking conflicts: %w", err)
		}
		if conflict {
			return ErrBookingConflict
		}
		return txRepo.Booking().Create(ctx, nil, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking created",
		"booking_id", booking.ID,
		"student_id", student.ID,
		"exam_id", req.ExamID,
		"start_at", req.StartAt)

	s.publish(ctx, events.NewBookingCreatedEvent(events.BookingEventData{
		BookingID: booking.ID,
		StudentID: booking.StudentID,
		TeacherID: booking.TeacherID,
		ExamID:    booking.ExamID,
		StartAt:   booking.StartAt,
	}))

	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id uint, userID string) (*models.Booking, error) {
	booking, err := s.repo.Booking().GetByIDWithExam(ctx, nil, id)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if err := s.authorizeBookingRead(ctx, booking, userID); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filters repositories.BookingFilters, userID string, role models.UserRole) ([]*models.Booking, int64, error) {
	// Scope the listing to what the caller may see.
	switch role {
	case models.RoleStudent:
		filters.StudentID = &userID
	case models.RoleTeacher, models.RoleProctor:
		if filters.StudentID == nil {
			filters.TeacherID = &userID
		}
	}
	return s.repo.Booking().List(ctx, nil, filters)
}

func (s *bookingService) Cancel(ctx context.Context, id uint, userID string) error {
	booking, err := s.repo.Booking().GetByID(ctx, nil, id)
	if err != nil {
		return ErrBookingNotFound
	}
	if err := s.authorizeBookingRead(ctx, booking, userID); err != nil {
		return err
	}
	if err := s.business.ValidateBookingTransition(booking.Status, models.BookingCancelled); err != nil {
		return err
	}

	if err := s.repo.Booking().UpdateStatus(ctx, nil, id, models.BookingCancelled); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	s.logger.InfoContext(ctx, "booking cancelled", "booking_id", id, "cancelled_by", userID)

	s.publish(ctx, events.NewBookingCancelledEvent(events.BookingEventData{
		BookingID: booking.ID,
		StudentID: booking.StudentID,
		TeacherID: booking.TeacherID,
		ExamID:    booking.ExamID,
		StartAt:   booking.StartAt,
	}))

	return nil
}

// Activate turns a confirmed booking into a live attempt. Each booked section
// becomes one attempt section with its presentation position snapshotted, so
// later edits to the exam do not reshuffle a running attempt. Re-activating a
// booking returns the existing attempt.
func (s *bookingService) Activate(ctx context.Context, id uint, studentID string) (*models.Attempt, error) {
	booking, err := s.repo.Booking().GetByIDWithExam(ctx, nil, id)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if booking.StudentID != studentID {
		// Students must not learn about other students' bookings.
		return nil, ErrBookingNotFound
	}

	if existing, err := s.repo.Attempt().GetByBookingID(ctx, nil, id); err == nil {
		return existing, nil
	}

	switch booking.Status {
	case models.BookingCancelled:
		return nil, ErrBookingCancelled
	case models.BookingConfirmed:
		// proceed
	default:
		return nil, ErrBookingNotConfirmed
	}

	// A clashing booking may have been confirmed after this one was made, so
	// the window check runs again before the sitting opens.
	conflict, err := s.repo.Booking().HasConflict(ctx, nil, booking.StudentID, booking.StartAt, &booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check booking conflicts: %w", err)
	}
	if conflict {
		return nil, ErrBookingConflict
	}

	exam, err := s.repo.Exam().GetWithSections(ctx, nil, booking.ExamID)
	if err != nil {
		return nil, ErrExamNotFound
	}
	if !exam.IsActive {
		return nil, ErrExamInactive
	}

	sections, err := bookedSections(exam, booking)
	if err != nil {
		return nil, err
	}

	attempt := &models.Attempt{
		BookingID: booking.ID,
		StudentID: booking.StudentID,
		ExamID:    booking.ExamID,
		Status:    models.AttemptNotStarted,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Attempt().Create(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		attemptSections := make([]*models.AttemptSection, 0, len(sections))
		for i, section := range sections {
			attemptSections = append(attemptSections, &models.AttemptSection{
				AttemptID: attempt.ID,
				SectionID: section.ID,
				Position:  i,
				Status:    models.SectionNotStarted,
			})
		}
		if err := txRepo.AttemptSection().CreateBatch(ctx, nil, attemptSections); err != nil {
			return fmt.Errorf("failed to create attempt sections: %w", err)
		}

		return txRepo.Booking().UpdateStatus(ctx, nil, booking.ID, models.BookingInProgress)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking activated",
		"booking_id", booking.ID,
		"attempt_id", attempt.ID,
		"sections", len(sections))

	return s.repo.Attempt().GetWithSections(ctx, nil, attempt.ID)
}

// ===== HELPERS =====

func (s *bookingService) authorizeBookingRead(ctx context.Context, booking *models.Booking, userID string) error {
	if booking.StudentID == userID || booking.TeacherID == userID {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if user.Role == models.RoleAdmin {
		return nil
	}
	return NewPermissionError(userID, fmt.Sprintf("%d", booking.ID), "booking", "read", "booking belongs to another student")
}

func (s *bookingService) publish(ctx context.Context, event *events.ExamEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.Type, "error", err)
	}
}

func validateBookedSections(exam *models.Exam, sectionIDs []uint) error {
	if len(sectionIDs) == 0 {
		return nil
	}
	known := make(map[uint]bool, len(exam.Sections))
	for _, s := range exam.Sections {
		known[s.ID] = true
	}
	for _, id := range sectionIDs {
		if !known[id] {
			return NewBusinessRuleError("booking_sections", fmt.Sprintf("section %d does not belong to exam %d", id, exam.ID))
		}
	}
	return nil
}

// bookedSections resolves the booking's section selection against the exam in
// presentation order. An empty selection means the whole exam.
func bookedSections(exam *models.Exam, booking *models.Booking) ([]models.Section, error) {
	var wanted map[uint]bool
	if len(booking.SectionIDs) > 0 {
		var ids []uint
		if err := json.Unmarshal(booking.SectionIDs, &ids); err != nil {
			return nil, fmt.Errorf("failed to decode booked section ids: %w", err)
		}
		if len(ids) > 0 {
			wanted = make(map[uint]bool, len(ids))
			for _, id := range ids {
				wanted[id] = true
			}
		}
	}

	ordered := orderExamSections(exam)
	var result []models.Section
	for _, section := range ordered {
		if wanted == nil || wanted[section.ID] {
			result = append(result, section)
		}
	}
	if len(result) == 0 {
		return nil, NewBusinessRuleError("booking_sections", "booking selects no sections of the exam")
	}
	return result, nil
}

// orderExamSections applies the exam's navigation mode to its section order,
// mirroring how the attempt runner will present them.
func orderExamSections(exam *models.Exam) []models.Section {
	ordered := make([]models.Section, len(exam.Sections))
	copy(ordered, exam.Sections)

	if exam.NavigationMode == models.NavigationTypeGrouped {
		sortSectionsByTypeOrder(ordered)
	}
	return ordered
}

func sortSectionsByTypeOrder(sections []models.Section) {
	rank := func(s models.Section) int {
		if r, ok := models.SectionTypeOrder[s.Type]; ok {
			return r
		}
		return len(models.SectionTypeOrder)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		ri, rj := rank(sections[i]), rank(sections[j])
		if ri != rj {
			return ri < rj
		}
		return sections[i].Position < sections[j].Position
	})
}
