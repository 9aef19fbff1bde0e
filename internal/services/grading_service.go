package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/prepdesk/exam-service/internal/events"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
	logger    utils.Logger
}

func NewGradingService(repo repositories.Repository, v *validator.Validator, bv *validator.BusinessValidator, publisher events.EventPublisher, logger utils.Logger) GradingService {
	return &gradingService{
		repo:      repo,
		validator: v,
		business:  bv,
		publisher: publisher,
		logger:    logger,
	}
}

// Queue lists finalized sections still waiting for a human band score,
// oldest first.
func (s *gradingService) Queue(ctx context.Context, filters repositories.GradingQueueFilters, graderID string) ([]*GradingQueueItem, int64, error) {
	if err := s.requireStaff(ctx, graderID, "grading_queue"); err != nil {
		return nil, 0, err
	}

	sections, total, err := s.repo.AttemptSection().ListPendingGrading(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load grading queue: %w", err)
	}

	items := make([]*GradingQueueItem, 0, len(sections))
	for _, as := range sections {
		item := &GradingQueueItem{
			AttemptSectionID: as.ID,
			AttemptID:        as.AttemptID,
			SectionID:        as.SectionID,
			LockedAt:         as.EndedAt,
		}
		if as.Section != nil {
			item.SectionType = as.Section.Type
			item.SectionTitle = as.Section.Title
		}
		items = append(items, item)
	}
	return items, total, nil
}

// GradeSection records a manual band score for a finalized section. Once the
// attempt's last section is graded the overall band reconciles automatically.
func (s *gradingService) GradeSection(ctx context.Context, attemptSectionID uint, req GradeSectionRequest, graderID string) (*models.AttemptSection, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireStaff(ctx, graderID, "grade_section"); err != nil {
		return nil, err
	}

	as, err := s.repo.AttemptSection().GetByIDWithSection(ctx, nil, attemptSectionID)
	if err != nil {
		return nil, ErrAttemptSectionNotFound
	}
	if err := s.business.ValidateSectionTransition(as.Status, models.SectionGraded); err != nil {
		return nil, ErrSectionNotGradable
	}

	grade := repositories.SectionGrade{
		BandScore: req.BandScore,
		Feedback:  req.Feedback,
		GraderID:  graderID,
	}
	if req.Rubric != nil {
		raw, err := json.Marshal(req.Rubric)
		if err != nil {
			return nil, fmt.Errorf("failed to encode rubric: %w", err)
		}
		grade.Rubric = raw
	}

	if err := s.repo.AttemptSection().SaveGrade(ctx, nil, attemptSectionID, grade); err != nil {
		return nil, fmt.Errorf("failed to save grade: %w", err)
	}

	s.logger.InfoContext(ctx, "section graded",
		"attempt_section_id", attemptSectionID,
		"band", req.BandScore,
		"graded_by", graderID)

	if s.publisher != nil {
		attempt, attemptErr := s.repo.Attempt().GetByID(ctx, nil, as.AttemptID)
		studentID := ""
		if attemptErr == nil {
			studentID = attempt.StudentID
		}
		event := events.NewSectionGradedEvent(events.SectionEventData{
			AttemptID:        as.AttemptID,
			AttemptSectionID: as.ID,
			SectionID:        as.SectionID,
			StudentID:        studentID,
			SectionType:      sectionTypeOf(as),
			BandScore:        &req.BandScore,
			GradedBy:         &graderID,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.Type, "error", err)
		}
	}

	if err := ReconcileAttempt(ctx, s.repo, s.publisher, s.logger, as.AttemptID); err != nil {
		s.logger.WarnContext(ctx, "failed to reconcile attempt", "attempt_id", as.AttemptID, "error", err)
	}

	return s.repo.AttemptSection().GetByIDWithSection(ctx, nil, attemptSectionID)
}

func (s *gradingService) Stats(ctx context.Context, graderID string) (*repositories.GradingStats, error) {
	if err := s.requireStaff(ctx, graderID, "grading_stats"); err != nil {
		return nil, err
	}
	return s.repo.AttemptSection().GetGradingStats(ctx, nil)
}

func (s *gradingService) requireStaff(ctx context.Context, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.Role.IsStaff() {
		return NewPermissionError(userID, "", "grading", action, "grading requires a teacher or admin role")
	}
	return nil
}

// ===== RECONCILIATION =====

// ReconcileAttempt computes the overall band once every section of a
// submitted attempt carries a band score: the mean of section bands rounded
// to the nearest half step, halves rounding up. No-op while sections are
// still ungraded or the attempt is not yet submitted.
func ReconcileAttempt(ctx context.Context, repo repositories.Repository, publisher events.EventPublisher, logger utils.Logger, attemptID uint) error {
	attempt, err := repo.Attempt().GetWithSections(ctx, nil, attemptID)
	if err != nil {
		return ErrAttemptNotFound
	}
	if attempt.Status != models.AttemptSubmitted {
		return nil
	}

	ungraded, err := repo.AttemptSection().CountUngraded(ctx, nil, attemptID)
	if err != nil {
		return fmt.Errorf("failed to count ungraded sections: %w", err)
	}
	if ungraded > 0 {
		return nil
	}

	var sum float64
	var count int
	for _, as := range attempt.Sections {
		if as.BandScore != nil {
			sum += *as.BandScore
			count++
		}
	}
	if count == 0 {
		return nil
	}

	overall := RoundToHalfBand(sum / float64(count))
	if err := repo.Attempt().SetBandOverall(ctx, nil, attemptID, overall); err != nil {
		return fmt.Errorf("failed to set overall band: %w", err)
	}

	logger.InfoContext(ctx, "attempt graded",
		"attempt_id", attemptID,
		"band_overall", overall,
		"sections", count)

	if publisher != nil {
		event := events.NewAttemptGradedEvent(events.AttemptEventData{
			AttemptID: attempt.ID,
			BookingID: attempt.BookingID,
			StudentID: attempt.StudentID,
			ExamID:    attempt.ExamID,
			Band:      &overall,
		})
		if err := publisher.Publish(ctx, event); err != nil {
			logger.WarnContext(ctx, "failed to publish event", "event_type", event.Type, "error", err)
		}
	}

	return nil
}

// RoundToHalfBand rounds to the nearest 0.5 step, with exact quarters
// rounding up (6.25 -> 6.5).
func RoundToHalfBand(band float64) float64 {
	return math.Floor(band*2+0.5) / 2
}
