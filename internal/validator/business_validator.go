package validator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prepdesk/exam-service/internal/models"
)

// BusinessValidator enforces domain rules that go beyond struct tags: question
// payload shapes, state machine transitions and booking windows.
type BusinessValidator struct{}

func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

// ===== QUESTION PAYLOAD VALIDATION =====

// ValidateQuestionPayload checks that a question's options and answer key
// match the shape its qtype demands. A nil answer key is always allowed and
// routes the question to manual grading.
func (bv *BusinessValidator) ValidateQuestionPayload(qtype models.QType, options, answerKey []byte) error {
	if !qtype.IsValid() {
		return fmt.Errorf("unknown question type %q", qtype)
	}

	switch qtype {
	case models.QTypeMCQSingle:
		return bv.validateMCQSingle(options, answerKey)
	case models.QTypeMCQMulti:
		return bv.validateMCQMulti(options, answerKey)
	case models.QTypeTF:
		return bv.validateTF(answerKey)
	case models.QTypeGap:
		return bv.validateGap(answerKey)
	case models.QTypeSelect:
		return bv.validateSelect(options, answerKey)
	case models.QTypeOrderSentence:
		return bv.validateOrder(options, answerKey)
	case models.QTypeDnDGap:
		return bv.validateDnDGap(options, answerKey)
	case models.QTypeDnDMatch:
		return bv.validateDnDMatch(options, answerKey)
	case models.QTypeShortText:
		return bv.validateShortText(answerKey)
	case models.QTypeEssay:
		if len(answerKey) > 0 {
			return fmt.Errorf("essay questions cannot carry an answer key")
		}
		return nil
	}
	return nil
}

func (bv *BusinessValidator) validateMCQSingle(options, answerKey []byte) error {
	var opts models.MCQOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("invalid MCQ options: %w", err)
	}
	if len(opts.Choices) < 2 {
		return fmt.Errorf("MCQ questions need at least 2 choices")
	}
	if len(answerKey) == 0 {
		return nil
	}

	var key models.MCQSingleKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid MCQ_SINGLE answer key: %w", err)
	}
	if !containsChoice(opts.Choices, key.Correct) {
		return fmt.Errorf("answer key references unknown choice %q", key.Correct)
	}
	return nil
}

func (bv *BusinessValidator) validateMCQMulti(options, answerKey []byte) error {
	var opts models.MCQOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("invalid MCQ options: %w", err)
	}
	if len(opts.Choices) < 2 {
		return fmt.Errorf("MCQ questions need at least 2 choices")
	}
	if len(answerKey) == 0 {
		return nil
	}

	var key models.MCQMultiKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid MCQ_MULTI answer key: %w", err)
	}
	if len(key.Correct) == 0 {
		return fmt.Errorf("MCQ_MULTI answer key must name at least one correct choice")
	}
	for _, id := range key.Correct {
		if !containsChoice(opts.Choices, id) {
			return fmt.Errorf("answer key references unknown choice %q", id)
		}
	}
	return nil
}

func (bv *BusinessValidator) validateTF(answerKey []byte) error {
	if len(answerKey) == 0 {
		return nil
	}
	var key models.MCQSingleKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid TF answer key: %w", err)
	}
	switch key.Correct {
	case models.TFTrue, models.TFFalse, models.TFNotGiven:
		return nil
	}
	return fmt.Errorf("TF answer must be TRUE, FALSE or NOT_GIVEN, got %q", key.Correct)
}

func (bv *BusinessValidator) validateGap(answerKey []byte) error {
	if len(answerKey) == 0 {
		return nil
	}
	var key models.GapKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid GAP answer key: %w", err)
	}
	if len(key.Blanks) == 0 {
		return fmt.Errorf("GAP answer key needs at least one blank")
	}
	for i, accepted := range key.Blanks {
		if len(accepted) == 0 {
			return fmt.Errorf("GAP blank %d has no accepted answers", i)
		}
	}
	return nil
}

func (bv *BusinessValidator) validateSelect(options, answerKey []byte) error {
	var opts models.SelectOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("invalid SELECT options: %w", err)
	}
	if len(opts.Blanks) == 0 {
		return fmt.Errorf("SELECT questions need at least one blank")
	}
	if len(answerKey) == 0 {
		return nil
	}

	var key models.SelectKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid SELECT answer key: %w", err)
	}
	if len(key.Correct) != len(opts.Blanks) {
		return fmt.Errorf("SELECT answer key has %d entries for %d blanks", len(key.Correct), len(opts.Blanks))
	}
	return nil
}

func (bv *BusinessValidator) validateOrder(options, answerKey []byte) error {
	var opts models.OrderOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("invalid ORDER_SENTENCE options: %w", err)
	}
	if len(opts.Tokens) < 2 {
		return fmt.Errorf("ORDER_SENTENCE needs at least 2 tokens")
	}
	if len(answerKey) == 0 {
		return nil
	}

	var key models.OrderKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid ORDER_SENTENCE answer key: %w", err)
	}
	if len(key.Order) != len(opts.Tokens) {
		return fmt.Errorf("ORDER_SENTENCE key must order every token")
	}
	for _, id := range key.Order {
		if !containsChoice(opts.Tokens, id) {
			return fmt.Errorf("answer key references unknown token %q", id)
		}
	}
	return nil
}

func (bv *BusinessValidator) validateDnDGap(options, answerKey []byte) error {
	var opts models.DnDGapOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("invalid DND_GAP options: %w", err)
	}
	if opts.GapCount < 1 {
		return fmt.Errorf("DND_GAP needs at least one gap")
	}
	if len(opts.Tokens) < opts.GapCount {
		return fmt.Errorf("DND_GAP token pool smaller than gap count")
	}
	if len(answerKey) == 0 {
		return nil
	}

	var key models.DnDGapKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid DND_GAP answer key: %w", err)
	}
	if len(key.Correct) != opts.GapCount {
		return fmt.Errorf("DND_GAP key has %d entries for %d gaps", len(key.Correct), opts.GapCount)
	}
	for _, id := range key.Correct {
		if !containsChoice(opts.Tokens, id) {
			return fmt.Errorf("answer key references unknown token %q", id)
		}
	}
	return nil
}

func (bv *BusinessValidator) validateDnDMatch(options, answerKey []byte) error {
	var opts models.DnDMatchOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("invalid DND_MATCH options: %w", err)
	}
	if len(opts.Left) == 0 || len(opts.Right) == 0 {
		return fmt.Errorf("DND_MATCH needs items in both columns")
	}
	if len(answerKey) == 0 {
		return nil
	}

	var key models.DnDMatchKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid DND_MATCH answer key: %w", err)
	}
	if len(key.Pairs) == 0 {
		return fmt.Errorf("DND_MATCH key needs at least one pair")
	}
	for _, pair := range key.Pairs {
		if !containsChoice(opts.Left, pair.Left) {
			return fmt.Errorf("answer key references unknown left item %q", pair.Left)
		}
		if !containsChoice(opts.Right, pair.Right) {
			return fmt.Errorf("answer key references unknown right item %q", pair.Right)
		}
	}
	return nil
}

func (bv *BusinessValidator) validateShortText(answerKey []byte) error {
	if len(answerKey) == 0 {
		return nil // Manual grading
	}
	var key models.ShortTextKey
	if err := json.Unmarshal(answerKey, &key); err != nil {
		return fmt.Errorf("invalid SHORT_TEXT answer key: %w", err)
	}
	if len(key.Accepted) == 0 {
		return fmt.Errorf("SHORT_TEXT key needs at least one accepted answer")
	}
	return nil
}

func containsChoice(choices []models.Choice, id string) bool {
	for _, c := range choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// ===== STATE MACHINE TRANSITIONS =====

var allowedSectionTransitions = map[models.AttemptSectionStatus][]models.AttemptSectionStatus{
	models.SectionNotStarted: {models.SectionInProgress, models.SectionLocked},
	models.SectionInProgress: {models.SectionLocked, models.SectionSubmitted},
	models.SectionLocked:     {models.SectionGraded},
	models.SectionSubmitted:  {models.SectionGraded},
	models.SectionGraded:     {},
}

// ValidateSectionTransition checks an attempt-section status change.
func (bv *BusinessValidator) ValidateSectionTransition(from, to models.AttemptSectionStatus) error {
	for _, allowed := range allowedSectionTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid section transition from %s to %s", from, to)
}

var allowedAttemptTransitions = map[models.AttemptStatus][]models.AttemptStatus{
	models.AttemptNotStarted: {models.AttemptInProgress},
	models.AttemptInProgress: {models.AttemptSubmitted},
	models.AttemptSubmitted:  {models.AttemptGraded},
	models.AttemptGraded:     {},
}

// ValidateAttemptTransition checks an attempt status change.
func (bv *BusinessValidator) ValidateAttemptTransition(from, to models.AttemptStatus) error {
	for _, allowed := range allowedAttemptTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid attempt transition from %s to %s", from, to)
}

var allowedBookingTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingConfirmed:  {models.BookingInProgress, models.BookingCancelled},
	models.BookingInProgress: {models.BookingCompleted},
	models.BookingCompleted:  {},
	models.BookingCancelled:  {},
}

// ValidateBookingTransition checks a booking status change.
func (bv *BusinessValidator) ValidateBookingTransition(from, to models.BookingStatus) error {
	for _, allowed := range allowedBookingTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid booking transition from %s to %s", from, to)
}

// ===== BOOKING RULES =====

// ValidateBookingStart rejects bookings scheduled in the past beyond a small
// grace period for clock skew.
func (bv *BusinessValidator) ValidateBookingStart(startAt time.Time) error {
	if startAt.Before(time.Now().Add(-5 * time.Minute)) {
		return fmt.Errorf("booking start time is in the past")
	}
	return nil
}
