package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prepdesk/exam-service/internal/models"
)

// ===== AUTO-SCORING ENGINE =====
//
// Objective question types are scored by comparing the student's stored
// answer value against the question's answer key. Questions without a key
// and essays always route to manual grading.

// QuestionScore is the outcome of scoring one question.
type QuestionScore struct {
	Earned   float64
	Max      float64
	Manual   bool // true when the question needs a human grade
	Answered bool
}

// SectionScore aggregates question scores for one attempt section.
type SectionScore struct {
	Raw          float64
	Max          float64
	AutoGradable bool // false when any question routes to manual grading
	Answered     int
	Total        int
}

// ScoreSection scores every question against the answers map (keyed by
// question ID as a decimal string). Unanswered objective questions earn zero.
func ScoreSection(questions []*models.Question, answers map[string]json.RawMessage) SectionScore {
	score := SectionScore{AutoGradable: true, Total: len(questions)}
	for _, q := range questions {
		answer := answers[fmt.Sprintf("%d", q.ID)]
		qs := ScoreQuestion(q, answer)
		if qs.Answered {
			score.Answered++
		}
		if qs.Manual {
			score.AutoGradable = false
			continue
		}
		score.Raw += qs.Earned
		score.Max += qs.Max
	}
	return score
}

// ScoreQuestion scores a single answer. A malformed answer value scores zero
// rather than erroring: the client controls that payload and a broken one is
// simply a wrong answer.
func ScoreQuestion(q *models.Question, answer json.RawMessage) QuestionScore {
	score := QuestionScore{Max: q.MaxScore, Answered: len(answer) > 0 && string(answer) != "null"}
	if q.RequiresManualGrading() {
		score.Manual = true
		return score
	}
	if !score.Answered {
		return score
	}

	var fraction float64
	switch q.QType {
	case models.QTypeMCQSingle, models.QTypeTF:
		fraction = scoreSingleChoice(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeMCQMulti:
		fraction = scoreMultiChoice(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeGap:
		fraction = scoreGap(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeSelect:
		fraction = scoreSelect(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeOrderSentence:
		fraction = scoreOrder(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeDnDGap:
		fraction = scoreDnDGap(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeDnDMatch:
		fraction = scoreDnDMatch(json.RawMessage(q.AnswerKey), answer)
	case models.QTypeShortText:
		fraction = scoreShortText(json.RawMessage(q.AnswerKey), answer)
	default:
		score.Manual = true
		return score
	}

	score.Earned = fraction * q.MaxScore
	return score
}

// ===== PER-TYPE SCORERS =====
// Each returns the earned fraction of the question's max score.

func scoreSingleChoice(key, answer json.RawMessage) float64 {
	var k models.MCQSingleKey
	var given string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if given == k.Correct {
		return 1
	}
	return 0
}

// scoreMultiChoice requires the exact correct set: all-or-nothing.
func scoreMultiChoice(key, answer json.RawMessage) float64 {
	var k models.MCQMultiKey
	var given []string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if len(given) != len(k.Correct) {
		return 0
	}
	want := make(map[string]bool, len(k.Correct))
	for _, id := range k.Correct {
		want[id] = true
	}
	seen := make(map[string]bool, len(given))
	for _, id := range given {
		if !want[id] || seen[id] {
			return 0
		}
		seen[id] = true
	}
	return 1
}

// scoreGap awards an equal share per blank.
func scoreGap(key, answer json.RawMessage) float64 {
	var k models.GapKey
	var given []string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if len(k.Blanks) == 0 {
		return 0
	}
	correct := 0
	for i, accepted := range k.Blanks {
		if i >= len(given) {
			break
		}
		if matchesAny(given[i], accepted, k.CaseSensitive) {
			correct++
		}
	}
	return float64(correct) / float64(len(k.Blanks))
}

// scoreSelect awards an equal share per dropdown blank.
func scoreSelect(key, answer json.RawMessage) float64 {
	var k models.SelectKey
	var given []string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if len(k.Correct) == 0 {
		return 0
	}
	correct := 0
	for i, want := range k.Correct {
		if i < len(given) && given[i] == want {
			correct++
		}
	}
	return float64(correct) / float64(len(k.Correct))
}

// scoreOrder requires the full sequence to match: all-or-nothing.
func scoreOrder(key, answer json.RawMessage) float64 {
	var k models.OrderKey
	var given []string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if len(given) != len(k.Order) || len(k.Order) == 0 {
		return 0
	}
	for i, want := range k.Order {
		if given[i] != want {
			return 0
		}
	}
	return 1
}

// scoreDnDGap awards an equal share per gap.
func scoreDnDGap(key, answer json.RawMessage) float64 {
	var k models.DnDGapKey
	var given []string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if len(k.Correct) == 0 {
		return 0
	}
	correct := 0
	for i, want := range k.Correct {
		if i < len(given) && given[i] == want {
			correct++
		}
	}
	return float64(correct) / float64(len(k.Correct))
}

// scoreDnDMatch awards an equal share per correctly matched pair.
func scoreDnDMatch(key, answer json.RawMessage) float64 {
	var k models.DnDMatchKey
	var given []models.MatchPair
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if len(k.Pairs) == 0 {
		return 0
	}
	want := make(map[string]string, len(k.Pairs))
	for _, p := range k.Pairs {
		want[p.Left] = p.Right
	}
	correct := 0
	seen := make(map[string]bool, len(given))
	for _, p := range given {
		if seen[p.Left] {
			continue
		}
		seen[p.Left] = true
		if r, ok := want[p.Left]; ok && r == p.Right {
			correct++
		}
	}
	return float64(correct) / float64(len(k.Pairs))
}

func scoreShortText(key, answer json.RawMessage) float64 {
	var k models.ShortTextKey
	var given string
	if json.Unmarshal(key, &k) != nil || json.Unmarshal(answer, &given) != nil {
		return 0
	}
	if matchesAny(given, k.Accepted, k.CaseSensitive) {
		return 1
	}
	return 0
}

func matchesAny(given string, accepted []string, caseSensitive bool) bool {
	given = normalizeAnswer(given, caseSensitive)
	for _, want := range accepted {
		if given == normalizeAnswer(want, caseSensitive) {
			return true
		}
	}
	return false
}

// normalizeAnswer trims surrounding whitespace and collapses internal runs to
// a single space before comparing.
func normalizeAnswer(s string, caseSensitive bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}
