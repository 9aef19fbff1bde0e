package services

import (
	"encoding/json"
	"math"
	"testing"

	"gorm.io/datatypes"

	"github.com/prepdesk/exam-service/internal/models"
)

func scoringQuestion(id uint, qtype models.QType, key interface{}, maxScore float64) *models.Question {
	q := &models.Question{
		ID:       id,
		QType:    qtype,
		MaxScore: maxScore,
	}
	if key != nil {
		raw, err := json.Marshal(key)
		if err != nil {
			panic(err)
		}
		q.AnswerKey = datatypes.JSON(raw)
	}
	return q
}

func rawAnswer(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestScoreQuestion(t *testing.T) {
	tests := []struct {
		name       string
		qtype      models.QType
		key        interface{}
		answer     interface{}
		maxScore   float64
		wantEarned float64
		wantManual bool
	}{
		// MCQ_SINGLE
		{
			name:       "mcq single correct",
			qtype:      models.QTypeMCQSingle,
			key:        models.MCQSingleKey{Correct: "b"},
			answer:     "b",
			maxScore:   1,
			wantEarned: 1,
		},
		{
			name:       "mcq single wrong",
			qtype:      models.QTypeMCQSingle,
			key:        models.MCQSingleKey{Correct: "b"},
			answer:     "a",
			maxScore:   1,
			wantEarned: 0,
		},
		// TF
		{
			name:       "tf not given correct",
			qtype:      models.QTypeTF,
			key:        models.MCQSingleKey{Correct: models.TFNotGiven},
			answer:     models.TFNotGiven,
			maxScore:   1,
			wantEarned: 1,
		},
		{
			name:       "tf false vs not given",
			qtype:      models.QTypeTF,
			key:        models.MCQSingleKey{Correct: models.TFNotGiven},
			answer:     models.TFFalse,
			maxScore:   1,
			wantEarned: 0,
		},
		// MCQ_MULTI: all or nothing
		{
			name:       "mcq multi exact set any order",
			qtype:      models.QTypeMCQMulti,
			key:        models.MCQMultiKey{Correct: []string{"a", "c"}},
			answer:     []string{"c", "a"},
			maxScore:   2,
			wantEarned: 2,
		},
		{
			name:       "mcq multi partial set scores zero",
			qtype:      models.QTypeMCQMulti,
			key:        models.MCQMultiKey{Correct: []string{"a", "c"}},
			answer:     []string{"a"},
			maxScore:   2,
			wantEarned: 0,
		},
		{
			name:       "mcq multi superset scores zero",
			qtype:      models.QTypeMCQMulti,
			key:        models.MCQMultiKey{Correct: []string{"a"}},
			answer:     []string{"a", "b"},
			maxScore:   2,
			wantEarned: 0,
		},
		// GAP: per-blank share, case and whitespace normalized
		{
			name:       "gap case insensitive match",
			qtype:      models.QTypeGap,
			key:        models.GapKey{Blanks: [][]string{{"Nitrogen"}}},
			answer:     []string{"  nitrogen "},
			maxScore:   1,
			wantEarned: 1,
		},
		{
			name:       "gap case sensitive mismatch",
			qtype:      models.QTypeGap,
			key:        models.GapKey{Blanks: [][]string{{"Nitrogen"}}, CaseSensitive: true},
			answer:     []string{"nitrogen"},
			maxScore:   1,
			wantEarned: 0,
		},
		{
			name:       "gap half the blanks",
			qtype:      models.QTypeGap,
			key:        models.GapKey{Blanks: [][]string{{"one"}, {"two", "2"}}},
			answer:     []string{"one", "three"},
			maxScore:   2,
			wantEarned: 1,
		},
		// SELECT: per-blank share
		{
			name:       "select one of two dropdowns",
			qtype:      models.QTypeSelect,
			key:        models.SelectKey{Correct: []string{"x", "y"}},
			answer:     []string{"x", "z"},
			maxScore:   2,
			wantEarned: 1,
		},
		// ORDER_SENTENCE: full sequence only
		{
			name:       "order exact sequence",
			qtype:      models.QTypeOrderSentence,
			key:        models.OrderKey{Order: []string{"t1", "t2", "t3"}},
			answer:     []string{"t1", "t2", "t3"},
			maxScore:   1,
			wantEarned: 1,
		},
		{
			name:       "order one swap scores zero",
			qtype:      models.QTypeOrderSentence,
			key:        models.OrderKey{Order: []string{"t1", "t2", "t3"}},
			answer:     []string{"t1", "t3", "t2"},
			maxScore:   1,
			wantEarned: 0,
		},
		// DND_GAP: per-gap share
		{
			name:       "dnd gap two of three gaps",
			qtype:      models.QTypeDnDGap,
			key:        models.DnDGapKey{Correct: []string{"a", "b", "c"}},
			answer:     []string{"a", "b", "x"},
			maxScore:   3,
			wantEarned: 2,
		},
		// DND_MATCH: per-pair share
		{
			name:  "dnd match one of two pairs",
			qtype: models.QTypeDnDMatch,
			key: models.DnDMatchKey{Pairs: []models.MatchPair{
				{Left: "l1", Right: "r1"},
				{Left: "l2", Right: "r2"},
			}},
			answer: []models.MatchPair{
				{Left: "l1", Right: "r1"},
				{Left: "l2", Right: "r1"},
			},
			maxScore:   2,
			wantEarned: 1,
		},
		{
			name:  "dnd match unknown left with empty right earns nothing",
			qtype: models.QTypeDnDMatch,
			key: models.DnDMatchKey{Pairs: []models.MatchPair{
				{Left: "l1", Right: "r1"},
			}},
			answer: []models.MatchPair{
				{Left: "bogus", Right: ""},
			},
			maxScore:   1,
			wantEarned: 0,
		},
		// SHORT_TEXT
		{
			name:       "short text accepted variant",
			qtype:      models.QTypeShortText,
			key:        models.ShortTextKey{Accepted: []string{"World War II", "WWII"}},
			answer:     "wwii",
			maxScore:   1,
			wantEarned: 1,
		},
		{
			name:       "short text internal whitespace collapsed",
			qtype:      models.QTypeShortText,
			key:        models.ShortTextKey{Accepted: []string{"carbon dioxide"}},
			answer:     "carbon   dioxide",
			maxScore:   1,
			wantEarned: 1,
		},
		// Manual routing
		{
			name:       "essay routes to manual",
			qtype:      models.QTypeEssay,
			key:        nil,
			answer:     "my essay text",
			maxScore:   9,
			wantManual: true,
		},
		{
			name:       "short text without key routes to manual",
			qtype:      models.QTypeShortText,
			key:        nil,
			answer:     "spoken response transcript",
			maxScore:   1,
			wantManual: true,
		},
		// Garbage answers score zero, never error
		{
			name:       "malformed answer scores zero",
			qtype:      models.QTypeMCQMulti,
			key:        models.MCQMultiKey{Correct: []string{"a"}},
			answer:     "not-an-array",
			maxScore:   1,
			wantEarned: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := scoringQuestion(1, tt.qtype, tt.key, tt.maxScore)
			got := ScoreQuestion(q, rawAnswer(t, tt.answer))

			if got.Manual != tt.wantManual {
				t.Fatalf("Manual = %v, want %v", got.Manual, tt.wantManual)
			}
			if tt.wantManual {
				return
			}
			if math.Abs(got.Earned-tt.wantEarned) > 1e-9 {
				t.Errorf("Earned = %v, want %v", got.Earned, tt.wantEarned)
			}
			if got.Max != tt.maxScore {
				t.Errorf("Max = %v, want %v", got.Max, tt.maxScore)
			}
		})
	}
}

func TestScoreQuestionUnanswered(t *testing.T) {
	q := scoringQuestion(1, models.QTypeMCQSingle, models.MCQSingleKey{Correct: "a"}, 1)

	got := ScoreQuestion(q, nil)
	if got.Answered {
		t.Error("nil answer should not count as answered")
	}
	if got.Earned != 0 {
		t.Errorf("Earned = %v, want 0", got.Earned)
	}
	if got.Max != 1 {
		t.Errorf("Max = %v, want 1; unanswered questions still count toward the maximum", got.Max)
	}
}

func TestScoreSection(t *testing.T) {
	questions := []*models.Question{
		scoringQuestion(10, models.QTypeMCQSingle, models.MCQSingleKey{Correct: "a"}, 1),
		scoringQuestion(11, models.QTypeMCQSingle, models.MCQSingleKey{Correct: "c"}, 1),
	}
	answers := map[string]json.RawMessage{
		"10": json.RawMessage(`"a"`),
		"11": json.RawMessage(`"c"`),
	}

	got := ScoreSection(questions, answers)
	if !got.AutoGradable {
		t.Fatal("objective-only section should be auto gradable")
	}
	if got.Raw != 2 || got.Max != 2 {
		t.Errorf("Raw/Max = %v/%v, want 2/2", got.Raw, got.Max)
	}
	if got.Answered != 2 || got.Total != 2 {
		t.Errorf("Answered/Total = %d/%d, want 2/2", got.Answered, got.Total)
	}
}

func TestScoreSectionWithEssayRoutesToManual(t *testing.T) {
	questions := []*models.Question{
		scoringQuestion(1, models.QTypeMCQSingle, models.MCQSingleKey{Correct: "a"}, 1),
		scoringQuestion(2, models.QTypeEssay, nil, 9),
	}
	answers := map[string]json.RawMessage{
		"1": json.RawMessage(`"a"`),
		"2": json.RawMessage(`"essay body"`),
	}

	got := ScoreSection(questions, answers)
	if got.AutoGradable {
		t.Error("a section with an essay must route to manual grading")
	}
}

func TestRoundToHalfBand(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{6.0, 6.0},
		{6.1, 6.0},
		{6.25, 6.5},
		{6.4, 6.5},
		{6.5, 6.5},
		{6.74, 6.5},
		{6.75, 7.0},
		{0, 0},
		{9, 9},
	}
	for _, tt := range tests {
		if got := RoundToHalfBand(tt.in); got != tt.want {
			t.Errorf("RoundToHalfBand(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
