package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/events"
	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/scheduler"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

// fakeRepo is an in-memory Repository for service tests. Writes mirror the
// postgres layer's guards so the services see the same status semantics.
type fakeRepo struct {
	mu sync.Mutex

	exams     map[uint]*models.Exam
	questions map[uint][]*models.Question // keyed by section ID
	bookings  map[uint]*models.Booking
	attempts  map[uint]*models.Attempt
	sections  map[uint]*models.AttemptSection
	bandMaps  []*models.BandMap
	users     map[string]*models.User

	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		exams:     make(map[uint]*models.Exam),
		questions: make(map[uint][]*models.Question),
		bookings:  make(map[uint]*models.Booking),
		attempts:  make(map[uint]*models.Attempt),
		sections:  make(map[uint]*models.AttemptSection),
		users:     make(map[string]*models.User),
		nextID:    100,
	}
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) Exam() repositories.ExamRepository                   { return &fakeExamRepo{f: f} }
func (f *fakeRepo) Question() repositories.QuestionRepository           { return &fakeQuestionRepo{f: f} }
func (f *fakeRepo) Booking() repositories.BookingRepository             { return &fakeBookingRepo{f: f} }
func (f *fakeRepo) Attempt() repositories.AttemptRepository             { return &fakeAttemptRepo{f: f} }
func (f *fakeRepo) AttemptSection() repositories.AttemptSectionRepository {
	return &fakeAttemptSectionRepo{f: f}
}
func (f *fakeRepo) BandMap() repositories.BandMapRepository { return &fakeBandMapRepo{f: f} }
func (f *fakeRepo) User() repositories.UserRepository       { return &fakeUserRepo{f: f} }

func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// Unused interface methods panic through the nil embedded interface, which
// keeps the fakes small and loudly flags paths a test did not stub.

type fakeExamRepo struct {
	repositories.ExamRepository
	f *fakeRepo
}

func (r *fakeExamRepo) GetWithSections(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *exam
	return &cp, nil
}

type fakeQuestionRepo struct {
	repositories.QuestionRepository
	f *fakeRepo
}

func (r *fakeQuestionRepo) GetBySection(ctx context.Context, tx *gorm.DB, sectionID uint) ([]*models.Question, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return r.f.questions[sectionID], nil
}

func (r *fakeQuestionRepo) CountBySection(ctx context.Context, tx *gorm.DB, sectionID uint) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return int64(len(r.f.questions[sectionID])), nil
}

type fakeBookingRepo struct {
	repositories.BookingRepository
	f *fakeRepo
}

func (r *fakeBookingRepo) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if booking.ID == 0 {
		booking.ID = r.f.id()
	}
	cp := *booking
	r.f.bookings[booking.ID] = &cp
	return nil
}

func (r *fakeBookingRepo) GetByIDWithExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	booking, ok := r.f.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *booking
	cp.Exam = r.f.exams[booking.ExamID]
	return &cp, nil
}

func (r *fakeBookingRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.BookingStatus) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	booking, ok := r.f.bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	booking.Status = status
	return nil
}

func (r *fakeBookingRepo) HasConflict(ctx context.Context, tx *gorm.DB, studentID string, startAt time.Time, excludeID *uint) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	windowStart := startAt.Add(-models.BookingConflictWindow)
	windowEnd := startAt.Add(models.BookingConflictWindow)
	for _, b := range r.f.bookings {
		if b.StudentID != studentID {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Status != models.BookingConfirmed && b.Status != models.BookingInProgress {
			continue
		}
		if b.StartAt.After(windowStart) && b.StartAt.Before(windowEnd) {
			return true, nil
		}
	}
	return false, nil
}

type fakeAttemptRepo struct {
	repositories.AttemptRepository
	f *fakeRepo
}

func (r *fakeAttemptRepo) GetWithSections(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *attempt
	cp.Exam = r.f.exams[attempt.ExamID]

	var sections []models.AttemptSection
	for _, as := range r.f.sections {
		if as.AttemptID != id {
			continue
		}
		sc := *as
		sc.Section = r.findSection(cp.Exam, as.SectionID)
		sections = append(sections, sc)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Position < sections[j].Position })
	cp.Sections = sections
	return &cp, nil
}

func (r *fakeAttemptRepo) findSection(exam *models.Exam, sectionID uint) *models.Section {
	if exam == nil {
		return nil
	}
	for i := range exam.Sections {
		if exam.Sections[i].ID == sectionID {
			return &exam.Sections[i]
		}
	}
	return nil
}

func (r *fakeAttemptRepo) GetByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Attempt, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, a := range r.f.attempts {
		if a.BookingID == bookingID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if attempt.ID == 0 {
		attempt.ID = r.f.id()
	}
	cp := *attempt
	cp.Sections = nil
	cp.Exam = nil
	r.f.attempts[attempt.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) SetStarted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if attempt.StartedAt == nil {
		attempt.StartedAt = &at
		attempt.Status = models.AttemptInProgress
	}
	return nil
}

func (r *fakeAttemptRepo) SetUnlockedIndex(ctx context.Context, tx *gorm.DB, id uint, index int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.UnlockedIndex = index
	return nil
}

func (r *fakeAttemptRepo) SetSubmitted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.SubmittedAt = &at
	attempt.Status = models.AttemptSubmitted
	return nil
}

func (r *fakeAttemptRepo) SetBandOverall(ctx context.Context, tx *gorm.DB, id uint, band float64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.BandOverall = &band
	attempt.Status = models.AttemptGraded
	return nil
}

type fakeAttemptSectionRepo struct {
	repositories.AttemptSectionRepository
	f *fakeRepo
}

func (r *fakeAttemptSectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptSection, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	as, ok := r.f.sections[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *as
	return &cp, nil
}

func (r *fakeAttemptSectionRepo) GetByIDWithSection(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptSection, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	as, ok := r.f.sections[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *as
	if attempt := r.f.attempts[as.AttemptID]; attempt != nil {
		cp.Section = (&fakeAttemptRepo{f: r.f}).findSection(r.f.exams[attempt.ExamID], as.SectionID)
	}
	return &cp, nil
}

func (r *fakeAttemptSectionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, sections []*models.AttemptSection) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, as := range sections {
		if as.ID == 0 {
			as.ID = r.f.id()
		}
		cp := *as
		cp.Section = nil
		r.f.sections[as.ID] = &cp
	}
	return nil
}

func (r *fakeAttemptSectionRepo) SaveAnswers(ctx context.Context, tx *gorm.DB, id uint, answers datatypes.JSON) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	as, ok := r.f.sections[id]
	if !ok || as.Status.IsFinal() {
		return gorm.ErrRecordNotFound
	}
	as.Answers = answers
	return nil
}

func (r *fakeAttemptSectionRepo) MarkStarted(ctx context.Context, tx *gorm.DB, id uint, startedAt, expiresAt time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	as, ok := r.f.sections[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if as.Status == models.SectionNotStarted {
		as.Status = models.SectionInProgress
		as.StartedAt = &startedAt
		as.ExpiresAt = &expiresAt
	}
	return nil
}

func (r *fakeAttemptSectionRepo) Lock(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptSectionStatus, endedAt time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	as, ok := r.f.sections[id]
	if !ok || as.Status.IsFinal() {
		return gorm.ErrRecordNotFound
	}
	as.Status = status
	as.EndedAt = &endedAt
	return nil
}

func (r *fakeAttemptSectionRepo) CountNotFinal(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, as := range r.f.sections {
		if as.AttemptID == attemptID && !as.Status.IsFinal() {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptSectionRepo) CountUngraded(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, as := range r.f.sections {
		if as.AttemptID == attemptID && as.BandScore == nil {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptSectionRepo) SaveAutoScore(ctx context.Context, tx *gorm.DB, id uint, rawScore, maxRawScore float64, band *float64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	as, ok := r.f.sections[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	as.RawScore = &rawScore
	as.MaxRawScore = &maxRawScore
	if band != nil {
		b := *band
		now := time.Now()
		as.BandScore = &b
		as.Status = models.SectionGraded
		as.GradedAt = &now
	}
	return nil
}

type fakeBandMapRepo struct {
	repositories.BandMapRepository
	f *fakeRepo
}

func (r *fakeBandMapRepo) Lookup(ctx context.Context, tx *gorm.DB, category models.ExamCategory, sectionType models.SectionType, track *string, raw int) (*models.BandMap, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var fallback *models.BandMap
	for _, entry := range r.f.bandMaps {
		if entry.Category != category || entry.SectionType != sectionType {
			continue
		}
		if raw < entry.MinRaw || raw > entry.MaxRaw {
			continue
		}
		if entry.Track == nil {
			fallback = entry
			continue
		}
		if track != nil && *entry.Track == *track {
			return entry, nil
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeUserRepo struct {
	repositories.UserRepository
	f *fakeRepo
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

// ===== FIXTURES =====

const testStudentID = "student-1"

type attemptFixture struct {
	repo      *fakeRepo
	service   *attemptService
	publisher *events.MockEventPublisher
	debouncer *scheduler.Debouncer
	attemptID uint
}

// newAttemptFixture builds an in-progress attempt over an exam with one
// section per given type, each holding two single-choice questions keyed to
// choice "a".
func newAttemptFixture(t *testing.T, nav models.NavigationMode, types ...models.SectionType) *attemptFixture {
	t.Helper()
	repo := newFakeRepo()

	exam := &models.Exam{
		ID:             1,
		Title:          "Fixture Mock",
		Category:       models.CategoryIELTS,
		NavigationMode: nav,
		IsActive:       true,
		CreatedBy:      "teacher-1",
	}
	for i, st := range types {
		sectionID := uint(10 + i)
		exam.Sections = append(exam.Sections, models.Section{
			ID:          sectionID,
			ExamID:      exam.ID,
			Type:        st,
			Title:       string(st),
			DurationMin: 30,
			Position:    i,
		})
		repo.questions[sectionID] = []*models.Question{
			fixtureQuestion(t, sectionID*100+1, models.QTypeMCQSingle, models.MCQSingleKey{Correct: "a"}),
			fixtureQuestion(t, sectionID*100+2, models.QTypeMCQSingle, models.MCQSingleKey{Correct: "a"}),
		}
	}
	repo.exams[exam.ID] = exam

	booking := &models.Booking{
		ID:        5,
		StudentID: testStudentID,
		TeacherID: "teacher-1",
		ExamID:    exam.ID,
		StartAt:   time.Now(),
		Status:    models.BookingInProgress,
	}
	repo.bookings[booking.ID] = booking

	started := time.Now().Add(-time.Minute)
	attempt := &models.Attempt{
		ID:        7,
		BookingID: booking.ID,
		StudentID: testStudentID,
		ExamID:    exam.ID,
		Status:    models.AttemptInProgress,
		StartedAt: &started,
	}
	repo.attempts[attempt.ID] = attempt

	for i, sec := range exam.Sections {
		asID := uint(50 + i)
		repo.sections[asID] = &models.AttemptSection{
			ID:        asID,
			AttemptID: attempt.ID,
			SectionID: sec.ID,
			Position:  i,
			Status:    models.SectionNotStarted,
		}
	}

	publisher := events.NewMockEventPublisher(nil)
	debouncer := scheduler.NewDebouncer(time.Hour)
	t.Cleanup(debouncer.Shutdown)

	svc := NewAttemptService(
		repo,
		validator.New(),
		validator.NewBusinessValidator(),
		publisher,
		debouncer,
		nil,
		"autosave:answers",
		utils.NewDefaultLogger("error"),
	).(*attemptService)

	return &attemptFixture{
		repo:      repo,
		service:   svc,
		publisher: publisher,
		debouncer: debouncer,
		attemptID: attempt.ID,
	}
}

func fixtureQuestion(t *testing.T, id uint, qtype models.QType, key interface{}) *models.Question {
	t.Helper()
	raw, err := json.Marshal(key)
	if err != nil {
		t.Fatal(err)
	}
	return &models.Question{
		ID:        id,
		QType:     qtype,
		MaxScore:  1,
		AnswerKey: datatypes.JSON(raw),
	}
}

func (fx *attemptFixture) section(t *testing.T, id uint) *models.AttemptSection {
	t.Helper()
	fx.repo.mu.Lock()
	defer fx.repo.mu.Unlock()
	as, ok := fx.repo.sections[id]
	if !ok {
		t.Fatalf("attempt section %d not found", id)
	}
	return as
}

func (fx *attemptFixture) startSection(id uint, expiresIn time.Duration) {
	now := time.Now()
	expires := now.Add(expiresIn)
	fx.repo.mu.Lock()
	defer fx.repo.mu.Unlock()
	as := fx.repo.sections[id]
	as.Status = models.SectionInProgress
	as.StartedAt = &now
	as.ExpiresAt = &expires
}

func (fx *attemptFixture) eventCount(eventType events.EventType) int {
	count := 0
	for _, ev := range fx.publisher.GetPublishedEvents() {
		if ev.Type == eventType {
			count++
		}
	}
	return count
}

// ===== ANSWER IMMUTABILITY =====

func TestSaveAnswersRejectedAfterSectionFinal(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, 30*time.Minute)
	before := datatypes.JSON(`{"1001":"a"}`)
	fx.section(t, 50).Answers = before
	fx.section(t, 50).Status = models.SectionSubmitted

	req := SaveAnswersRequest{Answers: map[string]json.RawMessage{
		"1001": rawAnswer(t, "b"),
	}}
	_, err := fx.service.SaveAnswers(ctx, fx.attemptID, 10, req, testStudentID, true)
	if err != ErrSectionFinalized {
		t.Fatalf("SaveAnswers after submit: err = %v, want ErrSectionFinalized", err)
	}
	if string(fx.section(t, 50).Answers) != string(before) {
		t.Errorf("answers changed after the section was finalized")
	}

	// The repository guard holds even when the service-level status check is
	// bypassed, as a racing debounced write would be.
	err = fx.repo.AttemptSection().SaveAnswers(ctx, nil, 50, datatypes.JSON(`{"1001":"b"}`))
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("repo SaveAnswers on final section: err = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestSubmitSectionTwiceReturnsConflict(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, 30*time.Minute)
	if _, err := fx.service.SubmitSection(ctx, fx.attemptID, 10, testStudentID); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := fx.service.SubmitSection(ctx, fx.attemptID, 10, testStudentID); err != ErrSectionFinalized {
		t.Fatalf("second submit: err = %v, want ErrSectionFinalized", err)
	}
}

// ===== EXPIRY =====

func TestHandleSectionExpiryLocksExactlyOnce(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionWriting, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, -time.Minute) // writing, already past its deadline

	if err := fx.service.HandleSectionExpiry(ctx, 50); err != nil {
		t.Fatalf("first expiry: %v", err)
	}
	as := fx.section(t, 50)
	if as.Status != models.SectionLocked {
		t.Fatalf("status after expiry = %q, want %q", as.Status, models.SectionLocked)
	}
	if as.EndedAt == nil {
		t.Error("ended_at not stamped on expiry")
	}

	firstEnded := *as.EndedAt
	if err := fx.service.HandleSectionExpiry(ctx, 50); err != nil {
		t.Fatalf("second expiry: %v", err)
	}
	if got := *fx.section(t, 50).EndedAt; !got.Equal(firstEnded) {
		t.Errorf("ended_at moved on repeat expiry: %v -> %v", firstEnded, got)
	}
	if got := fx.eventCount(events.EventSectionExpired); got != 1 {
		t.Errorf("section expired events = %d, want 1", got)
	}
}

func TestExpiredSectionRejectsLateSave(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, -time.Second)

	req := SaveAnswersRequest{Answers: map[string]json.RawMessage{
		"1001": rawAnswer(t, "a"),
	}}
	_, err := fx.service.SaveAnswers(ctx, fx.attemptID, 10, req, testStudentID, true)
	if err != ErrSectionTimeExpired {
		t.Fatalf("save on expired clock: err = %v, want ErrSectionTimeExpired", err)
	}
	// Touching the dead clock locks the section immediately.
	if got := fx.section(t, 50).Status; !got.IsFinal() {
		t.Errorf("section status after expired touch = %q, want a final status", got)
	}
}

// ===== BOOTSTRAP / AUTOSAVE =====

func TestBootstrapFlushesPendingAutosave(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, 30*time.Minute)

	req := SaveAnswersRequest{Answers: map[string]json.RawMessage{
		"1001": rawAnswer(t, "a"),
	}}
	res, err := fx.service.SaveAnswers(ctx, fx.attemptID, 10, req, testStudentID, false)
	if err != nil {
		t.Fatalf("debounced save: %v", err)
	}
	if res.Persisted {
		t.Fatal("debounced save reported persisted")
	}

	// A reload inside the debounce window must still see the answer.
	boot, err := fx.service.Bootstrap(ctx, fx.attemptID, testStudentID)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	saved, ok := boot.SavedAnswers[10]
	if !ok {
		t.Fatal("bootstrap is missing answers saved moments before")
	}
	if got := string(saved["1001"]); got != `"a"` {
		t.Errorf("saved answer = %s, want %q", got, `"a"`)
	}
}

func TestBootstrapStampsStartOnce(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationLinear, models.SectionReading)
	ctx := context.Background()

	fx.repo.mu.Lock()
	attempt := fx.repo.attempts[fx.attemptID]
	attempt.Status = models.AttemptNotStarted
	attempt.StartedAt = nil
	fx.repo.mu.Unlock()

	boot, err := fx.service.Bootstrap(ctx, fx.attemptID, testStudentID)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if boot.Attempt.StartedAt == nil {
		t.Fatal("first bootstrap did not stamp started_at")
	}
	first := *boot.Attempt.StartedAt

	boot, err = fx.service.Bootstrap(ctx, fx.attemptID, testStudentID)
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if !boot.Attempt.StartedAt.Equal(first) {
		t.Errorf("started_at moved on reload: %v -> %v", first, *boot.Attempt.StartedAt)
	}
	if got := fx.eventCount(events.EventAttemptStarted); got != 1 {
		t.Errorf("attempt started events = %d, want 1", got)
	}
}

func TestBootstrapHidesForeignAttempt(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading)

	_, err := fx.service.Bootstrap(context.Background(), fx.attemptID, "someone-else")
	if err != ErrAttemptNotFound {
		t.Fatalf("foreign bootstrap: err = %v, want ErrAttemptNotFound", err)
	}
}

// ===== NAVIGATION =====

func TestEnterNextTypeGroupLocksEarlierSections(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationTypeGrouped,
		models.SectionListening, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, 30*time.Minute) // listening group active

	state, err := fx.service.EnterSection(ctx, fx.attemptID, 11, testStudentID)
	if err != nil {
		t.Fatalf("enter reading while listening open: %v", err)
	}
	if state.Status != models.SectionInProgress {
		t.Errorf("reading status = %q, want %q", state.Status, models.SectionInProgress)
	}

	// Moving up a type group is one-way: the open listening section locks.
	if got := fx.section(t, 50).Status; got != models.SectionLocked {
		t.Errorf("listening status after jump = %q, want %q", got, models.SectionLocked)
	}
}

func TestLinearModeRejectsJumpAhead(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationLinear,
		models.SectionReading, models.SectionWriting)

	_, err := fx.service.EnterSection(context.Background(), fx.attemptID, 11, testStudentID)
	if err != ErrSectionNotSelectable {
		t.Fatalf("enter second section first: err = %v, want ErrSectionNotSelectable", err)
	}
}

// ===== SUBMIT AND GRADING PIPELINE =====

func TestSubmitAttemptGradesObjectiveSections(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationLinear, models.SectionReading)
	ctx := context.Background()

	fx.repo.bandMaps = []*models.BandMap{
		{Category: models.CategoryIELTS, SectionType: models.SectionReading, MinRaw: 0, MaxRaw: 1, Band: 4.5},
		{Category: models.CategoryIELTS, SectionType: models.SectionReading, MinRaw: 2, MaxRaw: 2, Band: 9},
	}

	if _, err := fx.service.EnterSection(ctx, fx.attemptID, 10, testStudentID); err != nil {
		t.Fatalf("enter: %v", err)
	}
	req := SaveAnswersRequest{Answers: map[string]json.RawMessage{
		"1001": rawAnswer(t, "a"),
		"1002": rawAnswer(t, "a"),
	}}
	if _, err := fx.service.SaveAnswers(ctx, fx.attemptID, 10, req, testStudentID, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := fx.service.SubmitSection(ctx, fx.attemptID, 10, testStudentID)
	if err != nil {
		t.Fatalf("submit section: %v", err)
	}
	if result.RawScore == nil || *result.RawScore != 2 {
		t.Fatalf("raw score = %v, want 2", result.RawScore)
	}
	if result.BandScore == nil || *result.BandScore != 9 {
		t.Fatalf("band score = %v, want 9", result.BandScore)
	}
	if result.Status != models.SectionGraded {
		t.Errorf("section status = %q, want %q", result.Status, models.SectionGraded)
	}

	attempt, err := fx.service.SubmitAttempt(ctx, fx.attemptID, testStudentID)
	if err != nil {
		t.Fatalf("submit attempt: %v", err)
	}
	if attempt.Status != models.AttemptGraded {
		t.Errorf("attempt status = %q, want %q", attempt.Status, models.AttemptGraded)
	}
	if attempt.BandOverall == nil || *attempt.BandOverall != 9 {
		t.Errorf("overall band = %v, want 9", attempt.BandOverall)
	}
	if got := fx.eventCount(events.EventAttemptGraded); got != 1 {
		t.Errorf("attempt graded events = %d, want 1", got)
	}
}

func TestSubmitAttemptWithOpenSections(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading, models.SectionWriting)
	ctx := context.Background()

	fx.startSection(50, 30*time.Minute)
	if _, err := fx.service.SubmitSection(ctx, fx.attemptID, 10, testStudentID); err != nil {
		t.Fatalf("submit first section: %v", err)
	}

	_, err := fx.service.SubmitAttempt(ctx, fx.attemptID, testStudentID)
	if err != ErrAttemptIncomplete {
		t.Fatalf("submit with an open section: err = %v, want ErrAttemptIncomplete", err)
	}
}

func TestMissingBandMapLeavesSectionUngraded(t *testing.T) {
	fx := newAttemptFixture(t, models.NavigationFree, models.SectionReading)
	ctx := context.Background()

	fx.startSection(50, 30*time.Minute)
	result, err := fx.service.SubmitSection(ctx, fx.attemptID, 10, testStudentID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.BandScore != nil {
		t.Errorf("band score = %v, want nil without a mapping", *result.BandScore)
	}
	if result.Status != models.SectionSubmitted {
		t.Errorf("section status = %q, want %q", result.Status, models.SectionSubmitted)
	}
}
