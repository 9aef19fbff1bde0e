package validator

import (
	"testing"
	"time"

	"github.com/prepdesk/exam-service/internal/models"
)

func TestValidateQuestionPayload(t *testing.T) {
	bv := NewBusinessValidator()

	mcqOptions := []byte(`{"choices":[{"id":"a","text":"Alpha"},{"id":"b","text":"Beta"},{"id":"c","text":"Gamma"}]}`)

	tests := []struct {
		name      string
		qtype     models.QType
		options   []byte
		answerKey []byte
		wantErr   bool
	}{
		{
			name:      "mcq single valid",
			qtype:     models.QTypeMCQSingle,
			options:   mcqOptions,
			answerKey: []byte(`{"correct":"b"}`),
		},
		{
			name:      "mcq single unknown choice",
			qtype:     models.QTypeMCQSingle,
			options:   mcqOptions,
			answerKey: []byte(`{"correct":"z"}`),
			wantErr:   true,
		},
		{
			name:    "mcq single too few choices",
			qtype:   models.QTypeMCQSingle,
			options: []byte(`{"choices":[{"id":"a","text":"Only"}]}`),
			wantErr: true,
		},
		{
			name:      "mcq single nil key allowed",
			qtype:     models.QTypeMCQSingle,
			options:   mcqOptions,
			answerKey: nil,
		},
		{
			name:      "mcq multi valid",
			qtype:     models.QTypeMCQMulti,
			options:   mcqOptions,
			answerKey: []byte(`{"correct":["a","c"]}`),
		},
		{
			name:      "mcq multi empty correct set",
			qtype:     models.QTypeMCQMulti,
			options:   mcqOptions,
			answerKey: []byte(`{"correct":[]}`),
			wantErr:   true,
		},
		{
			name:      "tf true",
			qtype:     models.QTypeTF,
			answerKey: []byte(`{"correct":"TRUE"}`),
		},
		{
			name:      "tf not given",
			qtype:     models.QTypeTF,
			answerKey: []byte(`{"correct":"NOT_GIVEN"}`),
		},
		{
			name:      "tf bad value",
			qtype:     models.QTypeTF,
			answerKey: []byte(`{"correct":"MAYBE"}`),
			wantErr:   true,
		},
		{
			name:      "gap valid",
			qtype:     models.QTypeGap,
			answerKey: []byte(`{"blanks":[["harbour","harbor"],["ship"]]}`),
		},
		{
			name:      "gap blank with no accepted answers",
			qtype:     models.QTypeGap,
			answerKey: []byte(`{"blanks":[[]]}`),
			wantErr:   true,
		},
		{
			name:      "select valid",
			qtype:     models.QTypeSelect,
			options:   []byte(`{"blanks":[["yes","no"],["up","down"]]}`),
			answerKey: []byte(`{"correct":["yes","down"]}`),
		},
		{
			name:      "select key length mismatch",
			qtype:     models.QTypeSelect,
			options:   []byte(`{"blanks":[["yes","no"],["up","down"]]}`),
			answerKey: []byte(`{"correct":["yes"]}`),
			wantErr:   true,
		},
		{
			name:      "order valid",
			qtype:     models.QTypeOrderSentence,
			options:   []byte(`{"tokens":[{"id":"t1","text":"I"},{"id":"t2","text":"run"}]}`),
			answerKey: []byte(`{"order":["t1","t2"]}`),
		},
		{
			name:      "order key misses a token",
			qtype:     models.QTypeOrderSentence,
			options:   []byte(`{"tokens":[{"id":"t1","text":"I"},{"id":"t2","text":"run"}]}`),
			answerKey: []byte(`{"order":["t1"]}`),
			wantErr:   true,
		},
		{
			name:      "dnd gap valid",
			qtype:     models.QTypeDnDGap,
			options:   []byte(`{"tokens":[{"id":"t1","text":"red"},{"id":"t2","text":"blue"}],"gap_count":1}`),
			answerKey: []byte(`{"correct":["t2"]}`),
		},
		{
			name:    "dnd gap pool smaller than gaps",
			qtype:   models.QTypeDnDGap,
			options: []byte(`{"tokens":[{"id":"t1","text":"red"}],"gap_count":3}`),
			wantErr: true,
		},
		{
			name:      "dnd match valid",
			qtype:     models.QTypeDnDMatch,
			options:   []byte(`{"left":[{"id":"l1","text":"cat"}],"right":[{"id":"r1","text":"meow"}]}`),
			answerKey: []byte(`{"pairs":[{"left":"l1","right":"r1"}]}`),
		},
		{
			name:      "dnd match unknown right item",
			qtype:     models.QTypeDnDMatch,
			options:   []byte(`{"left":[{"id":"l1","text":"cat"}],"right":[{"id":"r1","text":"meow"}]}`),
			answerKey: []byte(`{"pairs":[{"left":"l1","right":"r9"}]}`),
			wantErr:   true,
		},
		{
			name:      "short text valid",
			qtype:     models.QTypeShortText,
			answerKey: []byte(`{"accepted":["photosynthesis"]}`),
		},
		{
			name:      "short text empty accepted list",
			qtype:     models.QTypeShortText,
			answerKey: []byte(`{"accepted":[]}`),
			wantErr:   true,
		},
		{
			name:      "short text nil key routes to manual",
			qtype:     models.QTypeShortText,
			answerKey: nil,
		},
		{
			name:  "essay without key",
			qtype: models.QTypeEssay,
		},
		{
			name:      "essay with key rejected",
			qtype:     models.QTypeEssay,
			answerKey: []byte(`{"accepted":["anything"]}`),
			wantErr:   true,
		},
		{
			name:    "unknown qtype",
			qtype:   models.QType("RIDDLE"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bv.ValidateQuestionPayload(tt.qtype, tt.options, tt.answerKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuestionPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSectionTransition(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		from    models.AttemptSectionStatus
		to      models.AttemptSectionStatus
		wantErr bool
	}{
		{models.SectionNotStarted, models.SectionInProgress, false},
		{models.SectionNotStarted, models.SectionLocked, false},
		{models.SectionInProgress, models.SectionSubmitted, false},
		{models.SectionInProgress, models.SectionLocked, false},
		{models.SectionLocked, models.SectionGraded, false},
		{models.SectionSubmitted, models.SectionGraded, false},
		{models.SectionGraded, models.SectionInProgress, true},
		{models.SectionSubmitted, models.SectionInProgress, true},
		{models.SectionNotStarted, models.SectionGraded, true},
	}

	for _, tt := range tests {
		err := bv.ValidateSectionTransition(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSectionTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestValidateAttemptTransition(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		from    models.AttemptStatus
		to      models.AttemptStatus
		wantErr bool
	}{
		{models.AttemptNotStarted, models.AttemptInProgress, false},
		{models.AttemptInProgress, models.AttemptSubmitted, false},
		{models.AttemptSubmitted, models.AttemptGraded, false},
		{models.AttemptGraded, models.AttemptInProgress, true},
		{models.AttemptNotStarted, models.AttemptSubmitted, true},
	}

	for _, tt := range tests {
		err := bv.ValidateAttemptTransition(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAttemptTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestValidateBookingTransition(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		from    models.BookingStatus
		to      models.BookingStatus
		wantErr bool
	}{
		{models.BookingConfirmed, models.BookingInProgress, false},
		{models.BookingConfirmed, models.BookingCancelled, false},
		{models.BookingInProgress, models.BookingCompleted, false},
		{models.BookingCancelled, models.BookingInProgress, true},
		{models.BookingCompleted, models.BookingConfirmed, true},
	}

	for _, tt := range tests {
		err := bv.ValidateBookingTransition(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBookingTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestValidateBookingStart(t *testing.T) {
	bv := NewBusinessValidator()

	if err := bv.ValidateBookingStart(time.Now().Add(time.Hour)); err != nil {
		t.Errorf("future start rejected: %v", err)
	}
	if err := bv.ValidateBookingStart(time.Now().Add(-time.Minute)); err != nil {
		t.Errorf("start within grace period rejected: %v", err)
	}
	if err := bv.ValidateBookingStart(time.Now().Add(-time.Hour)); err == nil {
		t.Error("past start accepted")
	}
}
