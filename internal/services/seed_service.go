package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/utils"
)

const seedCreator = "system-seed"

type seedService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewSeedService(repo repositories.Repository, logger utils.Logger) SeedService {
	return &seedService{repo: repo, logger: logger}
}

// SeedDemoExams inserts demo fixtures for local development and smoke tests.
// Idempotent: exams that already exist by title are skipped.
func (s *seedService) SeedDemoExams(ctx context.Context) ([]uint, error) {
	var created []uint
	for _, build := range []func() *models.Exam{demoReadingExam, demoIELTSMock, demoSATLinear} {
		exam := build()
		exists, err := s.repo.Exam().ExistsByTitle(ctx, nil, exam.Title, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to check seed exam: %w", err)
		}
		if exists {
			continue
		}
		if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
			return nil, fmt.Errorf("failed to seed exam %q: %w", exam.Title, err)
		}
		created = append(created, exam.ID)
		s.logger.InfoContext(ctx, "seeded demo exam", "exam_id", exam.ID, "title", exam.Title)
	}
	return created, nil
}

// SeedBandMaps installs a band table per seeded category unless one exists.
func (s *seedService) SeedBandMaps(ctx context.Context) (int, error) {
	existing, err := s.repo.BandMap().List(ctx, nil, models.CategoryIELTS)
	if err != nil {
		return 0, fmt.Errorf("failed to check band maps: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	entries := demoBandMaps()
	if err := s.repo.BandMap().ReplaceCategory(ctx, nil, models.CategoryIELTS, entries); err != nil {
		return 0, fmt.Errorf("failed to seed band maps: %w", err)
	}
	s.logger.InfoContext(ctx, "seeded band maps", "category", models.CategoryIELTS, "rows", len(entries))
	return len(entries), nil
}

// ===== FIXTURES =====

// demoReadingExam is a minimal two-question reading drill: both answers
// correct maps straight to band 9 through the seeded table.
func demoReadingExam() *models.Exam {
	return &models.Exam{
		Title:          "IELTS Reading Quick Drill",
		Description:    strPtr("Two-question reading warmup used for platform walkthroughs."),
		Category:       models.CategoryIELTS,
		Track:          strPtr("ACADEMIC"),
		NavigationMode: models.NavigationFree,
		IsActive:       true,
		CreatedBy:      seedCreator,
		Sections: []models.Section{
			{
				Type:        models.SectionReading,
				Title:       "Short Passage",
				DurationMin: 10,
				Position:    0,
				Questions: []models.Question{
					mcqSingle(0, "What is the main idea of the passage?",
						[]models.Choice{
							{ID: "a", Text: "Urban farming is expanding"},
							{ID: "b", Text: "Cities are shrinking"},
							{ID: "c", Text: "Farms resist technology"},
						}, "a"),
					mcqSingle(1, "According to the author, rooftop gardens primarily reduce what?",
						[]models.Choice{
							{ID: "a", Text: "Rent"},
							{ID: "b", Text: "Heat"},
							{ID: "c", Text: "Noise"},
						}, "b"),
				},
			},
		},
	}
}

// demoIELTSMock exercises the type-grouped navigation path with a manually
// graded writing task.
func demoIELTSMock() *models.Exam {
	return &models.Exam{
		Title:          "IELTS Academic Mock A",
		Description:    strPtr("Listening, reading and writing mock in exam order."),
		Category:       models.CategoryIELTS,
		Track:          strPtr("ACADEMIC"),
		NavigationMode: models.NavigationTypeGrouped,
		IsActive:       true,
		CreatedBy:      seedCreator,
		Sections: []models.Section{
			{
				Type:        models.SectionListening,
				Title:       "Listening Part 1",
				DurationMin: 30,
				Position:    0,
				Questions: []models.Question{
					tfQuestion(0, "The caller wants to book a double room.", models.TFTrue),
					gapQuestion(1, "The booking reference is ____.", [][]string{{"KX42", "kx 42"}}),
				},
			},
			{
				Type:        models.SectionReading,
				Title:       "Reading Passage 1",
				DurationMin: 20,
				Position:    1,
				Questions: []models.Question{
					tfQuestion(0, "The study covered more than ten countries.", models.TFNotGiven),
				},
			},
			{
				Type:        models.SectionWriting,
				Title:       "Writing Task 2",
				DurationMin: 40,
				Position:    2,
				Questions: []models.Question{
					essayQuestion(0, "Some believe universities should focus on employment skills. To what extent do you agree?", 250),
				},
			},
		},
	}
}

// demoSATLinear exercises lock-step navigation: each module must be
// submitted before the next one opens.
func demoSATLinear() *models.Exam {
	return &models.Exam{
		Title:          "SAT Practice Modules",
		Description:    strPtr("Two lock-step reading and writing modules."),
		Category:       models.CategorySAT,
		NavigationMode: models.NavigationLinear,
		IsActive:       true,
		CreatedBy:      seedCreator,
		Sections: []models.Section{
			{
				Type:        models.SectionReading,
				Title:       "Module 1: Reading",
				DurationMin: 32,
				Position:    0,
				Questions: []models.Question{
					mcqSingle(0, "As used in line 12, \"current\" most nearly means",
						[]models.Choice{
							{ID: "a", Text: "flow"},
							{ID: "b", Text: "present"},
							{ID: "c", Text: "electric"},
						}, "b"),
				},
			},
			{
				Type:        models.SectionGrammar,
				Title:       "Module 2: Writing and Language",
				DurationMin: 35,
				Position:    1,
				Questions: []models.Question{
					mcqSingle(0, "Which choice best maintains the sentence pattern established earlier in the paragraph?",
						[]models.Choice{
							{ID: "a", Text: "NO CHANGE"},
							{ID: "b", Text: "they designed it"},
							{ID: "c", Text: "having been designed"},
						}, "a"),
				},
			},
		},
	}
}

// demoBandMaps covers the seeded reading drill: a perfect raw score of 2
// maps to band 9.
func demoBandMaps() []*models.BandMap {
	rows := []struct {
		sectionType models.SectionType
		minRaw      int
		maxRaw      int
		band        float64
	}{
		{models.SectionReading, 0, 0, 4.0},
		{models.SectionReading, 1, 1, 6.5},
		{models.SectionReading, 2, 2, 9.0},
		{models.SectionListening, 0, 0, 4.0},
		{models.SectionListening, 1, 1, 6.0},
		{models.SectionListening, 2, 2, 9.0},
	}

	entries := make([]*models.BandMap, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, &models.BandMap{
			Category:    models.CategoryIELTS,
			SectionType: r.sectionType,
			MinRaw:      r.minRaw,
			MaxRaw:      r.maxRaw,
			Band:        r.band,
		})
	}
	return entries
}

// ===== QUESTION BUILDERS =====

func mcqSingle(position int, text string, choices []models.Choice, correct string) models.Question {
	return models.Question{
		QType:     models.QTypeMCQSingle,
		Position:  position,
		Prompt:    mustJSON(models.QuestionPrompt{Text: text}),
		Options:   mustJSON(models.MCQOptions{Choices: choices}),
		AnswerKey: mustJSON(models.MCQSingleKey{Correct: correct}),
		MaxScore:  1,
	}
}

func tfQuestion(position int, text, correct string) models.Question {
	return models.Question{
		QType:     models.QTypeTF,
		Position:  position,
		Prompt:    mustJSON(models.QuestionPrompt{Text: text}),
		AnswerKey: mustJSON(models.MCQSingleKey{Correct: correct}),
		MaxScore:  1,
	}
}

func gapQuestion(position int, text string, blanks [][]string) models.Question {
	return models.Question{
		QType:     models.QTypeGap,
		Position:  position,
		Prompt:    mustJSON(models.QuestionPrompt{Text: text}),
		AnswerKey: mustJSON(models.GapKey{Blanks: blanks}),
		MaxScore:  1,
	}
}

func essayQuestion(position int, text string, minWords int) models.Question {
	return models.Question{
		QType:    models.QTypeEssay,
		Position: position,
		Prompt:   mustJSON(models.QuestionPrompt{Text: text}),
		Options:  mustJSON(models.EssayOptions{MinWords: &minWords}),
		MaxScore: 9,
	}
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(raw)
}

func strPtr(s string) *string { return &s }
