package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/events"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/scheduler"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

// AutosavePayload is what lands on the retry queue when a debounced write
// fails: the autosave worker picks it up and persists it.
type AutosavePayload struct {
	AttemptSectionID uint            `json:"attempt_section_id"`
	Answers          json.RawMessage `json:"answers"`
	SavedAt          time.Time       `json:"saved_at"`
	Attempts         int             `json:"attempts,omitempty"`
}

type attemptService struct {
	repo      repositories.Repository
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
	logger    utils.Logger

	debouncer *scheduler.Debouncer
	redis     *redis.Client
	queueKey  string

	now func() time.Time
}

func NewAttemptService(
	repo repositories.Repository,
	v *validator.Validator,
	bv *validator.BusinessValidator,
	publisher events.EventPublisher,
	debouncer *scheduler.Debouncer,
	redisClient *redis.Client,
	queueKey string,
	logger utils.Logger,
) AttemptService {
	return &attemptService{
		repo:      repo,
		validator: v,
		business:  bv,
		publisher: publisher,
		debouncer: debouncer,
		redis:     redisClient,
		queueKey:  queueKey,
		logger:    logger,
		now:       time.Now,
	}
}

// ===== BOOTSTRAP =====

// Bootstrap assembles everything the attempt runner needs in one load: the
// exam content with answer keys stripped, previously saved answers, and the
// per-section runtime state. The first load stamps the attempt's start time.
func (s *attemptService) Bootstrap(ctx context.Context, attemptID uint, studentID string) (*AttemptBootstrap, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if attempt.StartedAt == nil && attempt.Status == models.AttemptNotStarted {
		if err := s.repo.Attempt().SetStarted(ctx, nil, attempt.ID, now); err != nil {
			return nil, fmt.Errorf("failed to mark attempt started: %w", err)
		}
		attempt.StartedAt = &now
		attempt.Status = models.AttemptInProgress

		s.publish(ctx, events.NewAttemptStartedEvent(events.AttemptEventData{
			AttemptID: attempt.ID,
			BookingID: attempt.BookingID,
			StudentID: attempt.StudentID,
			ExamID:    attempt.ExamID,
		}))
	}

	exam, err := s.repo.Exam().GetWithSections(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, ErrExamNotFound
	}
	SanitizeExamForStudent(exam)

	// Question counts per section feed the progress indicators.
	questionTotals := make(map[uint]int, len(exam.Sections))
	for _, sec := range exam.Sections {
		questionTotals[sec.ID] = len(sec.Questions)
	}

	// A save still sitting in the debounce window must be visible to the
	// very next bootstrap: flush it and re-read the row.
	for i := range attempt.Sections {
		as := &attempt.Sections[i]
		key := autosaveKey(as.ID)
		if !s.debouncer.Pending(key) {
			continue
		}
		s.debouncer.Flush(key)
		if fresh, err := s.repo.AttemptSection().GetByID(ctx, nil, as.ID); err == nil {
			as.Answers = fresh.Answers
		}
	}

	savedAnswers := make(map[uint]map[string]json.RawMessage, len(attempt.Sections))
	for _, as := range attempt.Sections {
		if answers := decodeAnswers(as.Answers); answers != nil {
			savedAnswers[as.SectionID] = answers
		}
	}

	return &AttemptBootstrap{
		Attempt:      attempt,
		Exam:         exam,
		SavedAnswers: savedAnswers,
		Sections:     s.sectionStates(attempt, questionTotals, now),
		ServerTime:   now,
	}, nil
}

// ===== SECTION ENTRY =====

func (s *attemptService) EnterSection(ctx context.Context, attemptID, sectionID uint, studentID string) (*SectionState, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptSubmitted || attempt.Status == models.AttemptGraded {
		return nil, ErrAttemptAlreadySubmitted
	}

	as := findAttemptSection(attempt, sectionID)
	if as == nil {
		return nil, ErrAttemptSectionNotFound
	}

	now := s.now()
	if as.Status.IsFinal() {
		return nil, ErrSectionFinalized
	}
	if sectionExpired(as, now) {
		// Touching a dead clock closes the section right here instead of
		// waiting for the sweeper.
		if err := s.HandleSectionExpiry(ctx, as.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to lock expired section", "attempt_section_id", as.ID, "error", err)
		}
		return nil, ErrSectionTimeExpired
	}

	ordered := OrderSections(attempt.Exam.NavigationMode, attempt.Sections)
	selectable := SelectableSections(attempt.Exam.NavigationMode, ordered, attempt.UnlockedIndex)
	if !selectable[as.ID] {
		return nil, ErrSectionNotSelectable
	}

	// Jumping to the next type group is a one-way door: open sections of
	// earlier groups finalize like a timeout.
	if attempt.Exam != nil && attempt.Exam.NavigationMode == models.NavigationTypeGrouped {
		if err := s.closeEarlierGroups(ctx, attempt, as); err != nil {
			return nil, err
		}
	}

	if as.Status == models.SectionNotStarted {
		if err := s.startSectionClock(ctx, as, now); err != nil {
			return nil, err
		}
	}

	total, err := s.repo.Question().CountBySection(ctx, nil, as.SectionID)
	if err != nil {
		total = 0
	}
	state := s.sectionState(as, int(total), now, true)
	return &state, nil
}

// ===== AUTOSAVE =====

// SaveAnswers stores a full answer snapshot for one section, last writer
// wins. Debounced saves coalesce bursts of keystrokes; immediate saves land
// synchronously (used before navigation and submits).
func (s *attemptService) SaveAnswers(ctx context.Context, attemptID, sectionID uint, req SaveAnswersRequest, studentID string, immediate bool) (*SaveResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptSubmitted || attempt.Status == models.AttemptGraded {
		return nil, ErrAttemptAlreadySubmitted
	}

	as := findAttemptSection(attempt, sectionID)
	if as == nil {
		return nil, ErrAttemptSectionNotFound
	}

	now := s.now()
	if as.Status.IsFinal() {
		return nil, ErrSectionFinalized
	}
	if sectionExpired(as, now) {
		// Touching a dead clock closes the section right here instead of
		// waiting for the sweeper.
		if err := s.HandleSectionExpiry(ctx, as.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to lock expired section", "attempt_section_id", as.ID, "error", err)
		}
		return nil, ErrSectionTimeExpired
	}

	ordered := OrderSections(attempt.Exam.NavigationMode, attempt.Sections)
	selectable := SelectableSections(attempt.Exam.NavigationMode, ordered, attempt.UnlockedIndex)
	if !selectable[as.ID] {
		return nil, ErrSectionNotSelectable
	}

	// Clients that skip the enter call still get a running clock.
	if as.Status == models.SectionNotStarted {
		if err := s.startSectionClock(ctx, as, now); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	if immediate {
		if err := s.persistAnswers(ctx, as.ID, datatypes.JSON(raw)); err != nil {
			return nil, err
		}
		return &SaveResult{SectionID: sectionID, Persisted: true, SavedAt: now}, nil
	}

	// Background failures stay silent toward the client; the write is
	// parked on the retry queue for the autosave worker instead.
	sectionRef := as.ID
	s.debouncer.Schedule(autosaveKey(sectionRef), func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.persistAnswers(bgCtx, sectionRef, datatypes.JSON(raw)); err != nil {
			if errors.Is(err, ErrSectionFinalized) {
				return // section closed while the save was pending
			}
			s.enqueueRetry(bgCtx, AutosavePayload{
				AttemptSectionID: sectionRef,
				Answers:          raw,
				SavedAt:          now,
			})
		}
	})

	return &SaveResult{SectionID: sectionID, Persisted: false, SavedAt: now}, nil
}

func (s *attemptService) persistAnswers(ctx context.Context, attemptSectionID uint, answers datatypes.JSON) error {
	err := s.repo.AttemptSection().SaveAnswers(ctx, nil, attemptSectionID, answers)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSectionFinalized
	}
	return err
}

func (s *attemptService) enqueueRetry(ctx context.Context, payload AutosavePayload) {
	if s.redis == nil {
		s.logger.WarnContext(ctx, "autosave dropped, no retry queue",
			"attempt_section_id", payload.AttemptSectionID)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.redis.RPush(ctx, s.queueKey, data).Err(); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue autosave retry",
			"attempt_section_id", payload.AttemptSectionID, "error", err)
	}
}

// ===== SUBMIT =====

func (s *attemptService) SubmitSection(ctx context.Context, attemptID, sectionID uint, studentID string) (*SectionSubmitResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptSubmitted || attempt.Status == models.AttemptGraded {
		return nil, ErrAttemptAlreadySubmitted
	}

	as := findAttemptSection(attempt, sectionID)
	if as == nil {
		return nil, ErrAttemptSectionNotFound
	}
	if as.Status.IsFinal() {
		return nil, ErrSectionFinalized
	}
	if sectionExpired(as, s.now()) {
		if err := s.HandleSectionExpiry(ctx, as.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to lock expired section", "attempt_section_id", as.ID, "error", err)
		}
		return nil, ErrSectionTimeExpired
	}

	// Lock-step modes reject submits for sections the student cannot even
	// enter yet.
	ordered := OrderSections(attempt.Exam.NavigationMode, attempt.Sections)
	selectable := SelectableSections(attempt.Exam.NavigationMode, ordered, attempt.UnlockedIndex)
	if !selectable[as.ID] {
		return nil, ErrSectionNotSelectable
	}

	// Pending debounced answers must land before the lock closes the row.
	s.debouncer.Flush(autosaveKey(as.ID))

	return s.finalizeSection(ctx, attempt, as, models.SectionSubmitted, s.now())
}

func (s *attemptService) SubmitAttempt(ctx context.Context, attemptID uint, studentID string) (*models.Attempt, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptSubmitted || attempt.Status == models.AttemptGraded {
		return nil, ErrAttemptAlreadySubmitted
	}

	open, err := s.repo.AttemptSection().CountNotFinal(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count open sections: %w", err)
	}
	if open > 0 {
		return nil, ErrAttemptIncomplete
	}

	now := s.now()
	if err := s.repo.Attempt().SetSubmitted(ctx, nil, attempt.ID, now); err != nil {
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}

	if err := s.repo.Booking().UpdateStatus(ctx, nil, attempt.BookingID, models.BookingCompleted); err != nil {
		s.logger.WarnContext(ctx, "failed to complete booking", "booking_id", attempt.BookingID, "error", err)
	}

	s.publish(ctx, events.NewAttemptSubmittedEvent(events.AttemptEventData{
		AttemptID: attempt.ID,
		BookingID: attempt.BookingID,
		StudentID: attempt.StudentID,
		ExamID:    attempt.ExamID,
	}))

	s.logger.InfoContext(ctx, "attempt submitted", "attempt_id", attempt.ID, "student_id", studentID)

	// Fully objective attempts finish grading right here.
	if err := ReconcileAttempt(ctx, s.repo, s.publisher, s.logger, attempt.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to reconcile attempt", "attempt_id", attempt.ID, "error", err)
	}

	return s.repo.Attempt().GetWithSections(ctx, nil, attempt.ID)
}

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string, role models.UserRole) ([]*models.Attempt, int64, error) {
	if role == models.RoleStudent {
		filters.StudentID = &userID
	}
	return s.repo.Attempt().List(ctx, nil, filters)
}

// ===== TIMEOUTS =====

// HandleSectionExpiry force-locks a section whose clock ran out. The guarded
// lock makes concurrent sweeps and student submits race safely: whichever
// lands first wins and the loser is a no-op.
func (s *attemptService) HandleSectionExpiry(ctx context.Context, attemptSectionID uint) error {
	as, err := s.repo.AttemptSection().GetByIDWithSection(ctx, nil, attemptSectionID)
	if err != nil {
		return ErrAttemptSectionNotFound
	}
	if as.Status != models.SectionInProgress {
		return nil
	}

	attempt, err := s.repo.Attempt().GetWithSections(ctx, nil, as.AttemptID)
	if err != nil {
		return ErrAttemptNotFound
	}

	endedAt := s.now()
	if as.ExpiresAt != nil {
		endedAt = *as.ExpiresAt
	}

	target := findAttemptSection(attempt, as.SectionID)
	if target == nil {
		return ErrAttemptSectionNotFound
	}

	result, err := s.finalizeSection(ctx, attempt, target, models.SectionLocked, endedAt)
	if errors.Is(err, ErrSectionFinalized) {
		return nil
	}
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewSectionExpiredEvent(events.SectionEventData{
		AttemptID:        attempt.ID,
		AttemptSectionID: target.ID,
		SectionID:        target.SectionID,
		StudentID:        attempt.StudentID,
		SectionType:      sectionTypeOf(target),
		RawScore:         result.RawScore,
		BandScore:        result.BandScore,
	}))

	s.logger.InfoContext(ctx, "section expired and locked",
		"attempt_id", attempt.ID,
		"attempt_section_id", target.ID)

	// An attempt whose last open section just timed out submits itself.
	s.autoSubmitIfComplete(ctx, attempt)

	return nil
}

// closeEarlierGroups force-locks every open section of a type rank before
// the target's rank.
func (s *attemptService) closeEarlierGroups(ctx context.Context, attempt *models.Attempt, target *models.AttemptSection) error {
	rank := typeRank(*target)
	now := s.now()
	for i := range attempt.Sections {
		prev := &attempt.Sections[i]
		if prev.ID == target.ID || prev.Status.IsFinal() || typeRank(*prev) >= rank {
			continue
		}
		if _, err := s.finalizeSection(ctx, attempt, prev, models.SectionLocked, now); err != nil && !errors.Is(err, ErrSectionFinalized) {
			return err
		}
	}
	return nil
}

func (s *attemptService) autoSubmitIfComplete(ctx context.Context, attempt *models.Attempt) {
	if attempt.Status != models.AttemptInProgress {
		return
	}

	open, err := s.repo.AttemptSection().CountNotFinal(ctx, nil, attempt.ID)
	if err != nil || open > 0 {
		return
	}

	if err := s.repo.Attempt().SetSubmitted(ctx, nil, attempt.ID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to auto-submit attempt", "attempt_id", attempt.ID, "error", err)
		return
	}

	if err := s.repo.Booking().UpdateStatus(ctx, nil, attempt.BookingID, models.BookingCompleted); err != nil {
		s.logger.WarnContext(ctx, "failed to complete booking", "booking_id", attempt.BookingID, "error", err)
	}

	s.publish(ctx, events.NewAttemptSubmittedEvent(events.AttemptEventData{
		AttemptID: attempt.ID,
		BookingID: attempt.BookingID,
		StudentID: attempt.StudentID,
		ExamID:    attempt.ExamID,
	}))

	s.logger.InfoContext(ctx, "attempt auto-submitted after timeout", "attempt_id", attempt.ID)

	if err := ReconcileAttempt(ctx, s.repo, s.publisher, s.logger, attempt.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to reconcile attempt", "attempt_id", attempt.ID, "error", err)
	}
}

// ===== FINALIZATION =====

// finalizeSection closes one section: guarded lock, auto-scoring, band
// lookup, and navigation pointer advance.
func (s *attemptService) finalizeSection(ctx context.Context, attempt *models.Attempt, as *models.AttemptSection, status models.AttemptSectionStatus, endedAt time.Time) (*SectionSubmitResult, error) {
	err := s.repo.AttemptSection().Lock(ctx, nil, as.ID, status, endedAt)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSectionFinalized
	}
	if err != nil {
		return nil, err
	}
	as.Status = status
	as.EndedAt = &endedAt

	result := &SectionSubmitResult{
		AttemptSectionID: as.ID,
		Status:           status,
	}

	// Reload: a flushed autosave may have landed after this snapshot.
	fresh, err := s.repo.AttemptSection().GetByID(ctx, nil, as.ID)
	if err == nil {
		as.Answers = fresh.Answers
	}

	questions, err := s.repo.Question().GetBySection(ctx, nil, as.SectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load section questions: %w", err)
	}

	score := ScoreSection(questions, decodeAnswers(as.Answers))
	if score.AutoGradable {
		band := s.lookupBand(ctx, attempt, as, score.Raw)
		if err := s.repo.AttemptSection().SaveAutoScore(ctx, nil, as.ID, score.Raw, score.Max, band); err != nil {
			return nil, fmt.Errorf("failed to save auto score: %w", err)
		}
		result.RawScore = &score.Raw
		result.MaxRawScore = &score.Max
		result.BandScore = band
		if band != nil {
			result.Status = models.SectionGraded
			as.Status = models.SectionGraded
		}
	} else {
		result.PendingManual = true
	}

	// Advance the unlock pointer past the run of finalized sections.
	ordered := OrderSections(attempt.Exam.NavigationMode, attempt.Sections)
	newIndex := AdvanceUnlockedIndex(ordered, attempt.UnlockedIndex)
	if newIndex != attempt.UnlockedIndex {
		if err := s.repo.Attempt().SetUnlockedIndex(ctx, nil, attempt.ID, newIndex); err != nil {
			return nil, fmt.Errorf("failed to advance section pointer: %w", err)
		}
		attempt.UnlockedIndex = newIndex
	}
	result.UnlockedIndex = attempt.UnlockedIndex

	if status == models.SectionSubmitted {
		s.publish(ctx, events.NewSectionLockedEvent(events.SectionEventData{
			AttemptID:        attempt.ID,
			AttemptSectionID: as.ID,
			SectionID:        as.SectionID,
			StudentID:        attempt.StudentID,
			SectionType:      sectionTypeOf(as),
			RawScore:         result.RawScore,
			BandScore:        result.BandScore,
		}))
	}

	return result, nil
}

// lookupBand resolves the band for an auto-scored section. A missing mapping
// leaves the section ungraded so it surfaces in the manual queue instead of
// silently scoring zero.
func (s *attemptService) lookupBand(ctx context.Context, attempt *models.Attempt, as *models.AttemptSection, raw float64) *float64 {
	if attempt.Exam == nil || as.Section == nil {
		return nil
	}
	rounded := int(math.Round(raw))
	entry, err := s.repo.BandMap().Lookup(ctx, nil, attempt.Exam.Category, as.Section.Type, attempt.Exam.Track, rounded)
	if err != nil {
		s.logger.WarnContext(ctx, "no band mapping for raw score",
			"category", attempt.Exam.Category,
			"section_type", as.Section.Type,
			"raw", rounded)
		return nil
	}
	return &entry.Band
}

// ===== HELPERS =====

// ownedAttempt loads the attempt with its runtime state and hides its
// existence from anyone but the owning student.
func (s *attemptService) ownedAttempt(ctx context.Context, attemptID uint, studentID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetWithSections(ctx, nil, attemptID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *attemptService) startSectionClock(ctx context.Context, as *models.AttemptSection, now time.Time) error {
	duration := time.Duration(sectionDurationMin(as)) * time.Minute
	expiresAt := now.Add(duration)
	if err := s.repo.AttemptSection().MarkStarted(ctx, nil, as.ID, now, expiresAt); err != nil {
		return fmt.Errorf("failed to start section clock: %w", err)
	}
	as.Status = models.SectionInProgress
	as.StartedAt = &now
	as.ExpiresAt = &expiresAt
	return nil
}

func (s *attemptService) sectionStates(attempt *models.Attempt, questionTotals map[uint]int, now time.Time) []SectionState {
	ordered := OrderSections(attempt.Exam.NavigationMode, attempt.Sections)
	selectable := SelectableSections(attempt.Exam.NavigationMode, ordered, attempt.UnlockedIndex)

	states := make([]SectionState, 0, len(ordered))
	for i := range ordered {
		as := &ordered[i]
		state := s.sectionState(as, questionTotals[as.SectionID], now, selectable[as.ID])
		states = append(states, state)
	}
	return states
}

func (s *attemptService) sectionState(as *models.AttemptSection, total int, now time.Time, selectable bool) SectionState {
	state := SectionState{
		AttemptSectionID: as.ID,
		SectionID:        as.SectionID,
		Position:         as.Position,
		Status:           as.Status,
		Selectable:       selectable,
		Total:            total,
	}
	if as.Section != nil {
		state.Type = as.Section.Type
		state.Title = as.Section.Title
		state.DurationMin = as.Section.DurationMin
	}

	switch {
	case as.Status == models.SectionInProgress && as.ExpiresAt != nil:
		remaining := as.ExpiresAt.Sub(now)
		if remaining <= 0 {
			state.IsExpired = true
			state.Selectable = false
		} else {
			state.TimeRemaining = int(remaining.Seconds())
		}
	case as.Status == models.SectionNotStarted:
		state.TimeRemaining = state.DurationMin * 60
	}

	if answers := decodeAnswers(as.Answers); answers != nil {
		state.Answered = len(answers)
	}
	if state.Total > 0 {
		state.Percentage = float64(state.Answered) / float64(state.Total) * 100
	}
	return state
}

func findAttemptSection(attempt *models.Attempt, sectionID uint) *models.AttemptSection {
	for i := range attempt.Sections {
		if attempt.Sections[i].SectionID == sectionID {
			return &attempt.Sections[i]
		}
	}
	return nil
}

func sectionExpired(as *models.AttemptSection, now time.Time) bool {
	return as.Status == models.SectionInProgress && as.ExpiresAt != nil && !now.Before(*as.ExpiresAt)
}

func sectionDurationMin(as *models.AttemptSection) int {
	if as.Section != nil {
		return as.Section.DurationMin
	}
	return 0
}

func sectionTypeOf(as *models.AttemptSection) string {
	if as.Section != nil {
		return string(as.Section.Type)
	}
	return ""
}

func decodeAnswers(raw datatypes.JSON) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var answers map[string]json.RawMessage
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil
	}
	return answers
}

func autosaveKey(attemptSectionID uint) string {
	return fmt.Sprintf("attempt_section:%d", attemptSectionID)
}

func (s *attemptService) publish(ctx context.Context, event *events.ExamEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.Type, "error", err)
	}
}
