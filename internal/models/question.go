package models

import (
	"time"

	"gorm.io/datatypes"
)

// QType discriminates the shape of a question's prompt, options and answer key.
type QType string

const (
	QTypeMCQSingle     QType = "MCQ_SINGLE"
	QTypeMCQMulti      QType = "MCQ_MULTI"
	QTypeTF            QType = "TF"
	QTypeGap           QType = "GAP"
	QTypeSelect        QType = "SELECT"
	QTypeOrderSentence QType = "ORDER_SENTENCE"
	QTypeDnDGap        QType = "DND_GAP"
	QTypeDnDMatch      QType = "DND_MATCH"
	QTypeShortText     QType = "SHORT_TEXT"
	QTypeEssay         QType = "ESSAY"
)

func (t QType) IsValid() bool {
	switch t {
	case QTypeMCQSingle, QTypeMCQMulti, QTypeTF, QTypeGap, QTypeSelect,
		QTypeOrderSentence, QTypeDnDGap, QTypeDnDMatch, QTypeShortText, QTypeEssay:
		return true
	}
	return false
}

// AutoGradeableTypes lists the qtypes scored by key comparison at submit time.
// Anything else (or a NULL answer key) goes to the manual grading queue.
var AutoGradeableTypes = map[QType]bool{
	QTypeMCQSingle:     true,
	QTypeMCQMulti:      true,
	QTypeTF:            true,
	QTypeGap:           true,
	QTypeSelect:        true,
	QTypeOrderSentence: true,
	QTypeDnDGap:        true,
	QTypeDnDMatch:      true,
	QTypeShortText:     true,
}

type Question struct {
	ID        uint  `json:"id" gorm:"primaryKey"`
	SectionID uint  `json:"section_id" gorm:"not null;index"`
	QType     QType `json:"qtype" gorm:"not null;size:20"`
	Position  int   `json:"position" gorm:"not null;default:0"`

	// Prompt holds the question text plus any passage/transcript/image payload.
	Prompt datatypes.JSON `json:"prompt" gorm:"type:jsonb;not null"`
	// Options holds choices, tokens or pairs; shape depends on QType.
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	// AnswerKey is NULL for manually graded questions.
	AnswerKey datatypes.JSON `json:"answer_key,omitempty" gorm:"type:jsonb"`

	MaxScore    float64 `json:"max_score" gorm:"not null;default:1"`
	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// RequiresManualGrading reports whether this question must be graded by a teacher.
func (q *Question) RequiresManualGrading() bool {
	return len(q.AnswerKey) == 0 || !AutoGradeableTypes[q.QType]
}

// ===== PROMPT PAYLOAD =====

type QuestionPrompt struct {
	Text       string  `json:"text"`
	Passage    *string `json:"passage,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
	ImageURL   *string `json:"image_url,omitempty"`
	AudioURL   *string `json:"audio_url,omitempty"`
}

// ===== OPTION PAYLOADS (per qtype) =====

// Choice is a selectable option for MCQ questions and DND token pools.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MCQOptions is the options payload for MCQ_SINGLE and MCQ_MULTI.
type MCQOptions struct {
	Choices []Choice `json:"choices"`
}

// SelectOptions holds one dropdown choice list per blank, in blank order.
type SelectOptions struct {
	Blanks [][]string `json:"blanks"`
}

// OrderOptions is the shuffled token pool for ORDER_SENTENCE.
type OrderOptions struct {
	Tokens []Choice `json:"tokens"`
}

// DnDGapOptions is a draggable token pool plus the number of gaps to fill.
type DnDGapOptions struct {
	Tokens   []Choice `json:"tokens"`
	GapCount int      `json:"gap_count"`
}

// DnDMatchOptions holds the two columns to be paired up.
type DnDMatchOptions struct {
	Left  []Choice `json:"left"`
	Right []Choice `json:"right"`
}

// EssayOptions carries authoring metadata for manually graded writing tasks.
type EssayOptions struct {
	MinWords *int    `json:"min_words,omitempty"`
	MaxWords *int    `json:"max_words,omitempty"`
	TaskType *string `json:"task_type,omitempty"`
}

// ===== ANSWER KEY PAYLOADS (per qtype) =====

// TF answer values.
const (
	TFTrue     = "TRUE"
	TFFalse    = "FALSE"
	TFNotGiven = "NOT_GIVEN"
)

// MCQSingleKey holds the single correct choice ID. Also used for TF where
// Correct is one of TRUE/FALSE/NOT_GIVEN.
type MCQSingleKey struct {
	Correct string `json:"correct"`
}

// MCQMultiKey holds the full set of correct choice IDs; graded all-or-nothing.
type MCQMultiKey struct {
	Correct []string `json:"correct"`
}

// GapKey holds accepted strings per blank, in blank order.
type GapKey struct {
	Blanks        [][]string `json:"blanks"`
	CaseSensitive bool       `json:"case_sensitive,omitempty"`
}

// SelectKey holds the correct dropdown value per blank, in blank order.
type SelectKey struct {
	Correct []string `json:"correct"`
}

// OrderKey holds the correct token ID sequence; requires a full-sequence match.
type OrderKey struct {
	Order []string `json:"order"`
}

// DnDGapKey holds the correct token ID per gap; graded per gap.
type DnDGapKey struct {
	Correct []string `json:"correct"`
}

// MatchPair links a left-column ID to its right-column ID.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// DnDMatchKey holds the correct pairings; graded per matched pair.
type DnDMatchKey struct {
	Pairs []MatchPair `json:"pairs"`
}

// ShortTextKey holds accepted free-text answers. A SHORT_TEXT question with a
// NULL key instead goes to manual grading (speaking transcriptions and the like).
type ShortTextKey struct {
	Accepted      []string `json:"accepted"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
}
