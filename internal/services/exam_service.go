package services

import (
	"context"
	"fmt"

	"gorm.io/datatypes"

	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	validator *validator.Validator
	business  *validator.BusinessValidator
	logger    utils.Logger
}

func NewExamService(repo repositories.Repository, v *validator.Validator, bv *validator.BusinessValidator, logger utils.Logger) ExamService {
	return &examService{
		repo:      repo,
		validator: v,
		business:  bv,
		logger:    logger,
	}
}

// ===== EXAM CRUD =====

func (s *examService) Create(ctx context.Context, req CreateExamRequest, creatorID string) (*models.Exam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	for _, sec := range req.Sections {
		for _, q := range sec.Questions {
			if err := s.business.ValidateQuestionPayload(models.QType(q.QType), q.Options, q.AnswerKey); err != nil {
				return nil, err
			}
		}
	}

	exists, err := s.repo.Exam().ExistsByTitle(ctx, nil, req.Title, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam title: %w", err)
	}
	if exists {
		return nil, ErrExamTitleExists
	}

	exam := &models.Exam{
		Title:       req.Title,
		Description: req.Description,
		Category:    models.ExamCategory(req.Category),
		Track:       req.Track,
		CreatedBy:   creatorID,
		IsActive:    true,
	}
	if req.NavigationMode != "" {
		exam.NavigationMode = models.NavigationMode(req.NavigationMode)
	} else {
		exam.NavigationMode = models.NavigationFree
	}
	for i, sec := range req.Sections {
		exam.Sections = append(exam.Sections, buildSection(sec, i))
	}

	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.InfoContext(ctx, "exam created",
		"exam_id", exam.ID,
		"category", exam.Category,
		"sections", len(exam.Sections),
		"created_by", creatorID)

	return exam, nil
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

// GetWithContent loads the exam with its sections and questions. Answer keys
// and explanations are stripped for non-staff callers.
func (s *examService) GetWithContent(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetWithSections(ctx, nil, id)
	if err != nil {
		return nil, ErrExamNotFound
	}

	staff, err := s.isStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !staff {
		SanitizeExamForStudent(exam)
	}
	return exam, nil
}

func (s *examService) Update(ctx context.Context, id uint, req UpdateExamRequest, userID string) (*models.Exam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return nil, ErrExamNotFound
	}
	if err := s.authorizeExamWrite(ctx, exam, userID, "update"); err != nil {
		return nil, err
	}

	if req.Title != nil && *req.Title != exam.Title {
		exists, err := s.repo.Exam().ExistsByTitle(ctx, nil, *req.Title, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check exam title: %w", err)
		}
		if exists {
			return nil, ErrExamTitleExists
		}
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.Track != nil {
		exam.Track = req.Track
	}
	if req.NavigationMode != nil {
		exam.NavigationMode = models.NavigationMode(*req.NavigationMode)
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}

	if err := s.repo.Exam().Update(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}
	return exam, nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return ErrExamNotFound
	}
	if err := s.authorizeExamWrite(ctx, exam, userID, "delete"); err != nil {
		return err
	}

	hasBookings, err := s.repo.Exam().HasActiveBookings(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check bookings: %w", err)
	}
	if hasBookings {
		return ErrExamHasBookings
	}

	if err := s.repo.Exam().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.InfoContext(ctx, "exam deleted", "exam_id", id, "deleted_by", userID)
	return nil
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) ([]*models.Exam, int64, error) {
	staff, err := s.isStaff(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if !staff {
		// Students only see what they can book.
		active := true
		filters.IsActive = &active
	}
	return s.repo.Exam().List(ctx, nil, filters)
}

func (s *examService) SetActive(ctx context.Context, id uint, active bool, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		return ErrExamNotFound
	}
	if err := s.authorizeExamWrite(ctx, exam, userID, "set_active"); err != nil {
		return err
	}
	if err := s.repo.Exam().SetActive(ctx, nil, id, active); err != nil {
		return fmt.Errorf("failed to update exam status: %w", err)
	}
	return nil
}

// ===== SECTION OPERATIONS =====

func (s *examService) AddSection(ctx context.Context, examID uint, req CreateSectionRequest, userID string) (*models.Section, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	for _, q := range req.Questions {
		if err := s.business.ValidateQuestionPayload(models.QType(q.QType), q.Options, q.AnswerKey); err != nil {
			return nil, err
		}
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		return nil, ErrExamNotFound
	}
	if err := s.authorizeExamWrite(ctx, exam, userID, "add_section"); err != nil {
		return nil, err
	}

	section := buildSection(req, req.Position)
	section.ExamID = examID
	if err := s.repo.Exam().CreateSection(ctx, nil, &section); err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}
	return &section, nil
}

func (s *examService) UpdateSection(ctx context.Context, sectionID uint, req UpdateSectionRequest, userID string) (*models.Section, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	section, err := s.repo.Exam().GetSectionByID(ctx, nil, sectionID)
	if err != nil {
		return nil, ErrSectionNotFound
	}
	if err := s.authorizeSectionWrite(ctx, section, userID, "update_section"); err != nil {
		return nil, err
	}

	if req.Title != nil {
		section.Title = *req.Title
	}
	if req.Instructions != nil {
		section.Instructions = req.Instructions
	}
	if req.DurationMin != nil {
		section.DurationMin = *req.DurationMin
	}
	if req.Position != nil {
		section.Position = *req.Position
	}

	if err := s.repo.Exam().UpdateSection(ctx, nil, section); err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}
	return section, nil
}

func (s *examService) DeleteSection(ctx context.Context, sectionID uint, userID string) error {
	section, err := s.repo.Exam().GetSectionByID(ctx, nil, sectionID)
	if err != nil {
		return ErrSectionNotFound
	}
	if err := s.authorizeSectionWrite(ctx, section, userID, "delete_section"); err != nil {
		return err
	}
	if err := s.repo.Exam().DeleteSection(ctx, nil, sectionID); err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	return nil
}

// ===== QUESTION OPERATIONS =====

func (s *examService) AddQuestion(ctx context.Context, sectionID uint, req CreateQuestionRequest, userID string) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.business.ValidateQuestionPayload(models.QType(req.QType), req.Options, req.AnswerKey); err != nil {
		return nil, err
	}

	section, err := s.repo.Exam().GetSectionByID(ctx, nil, sectionID)
	if err != nil {
		return nil, ErrSectionNotFound
	}
	if err := s.authorizeSectionWrite(ctx, section, userID, "add_question"); err != nil {
		return nil, err
	}

	question := buildQuestion(req)
	question.SectionID = sectionID
	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

func (s *examService) UpdateQuestion(ctx context.Context, questionID uint, req UpdateQuestionRequest, userID string) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, ErrQuestionNotFound
	}
	section, err := s.repo.Exam().GetSectionByID(ctx, nil, question.SectionID)
	if err != nil {
		return nil, ErrSectionNotFound
	}
	if err := s.authorizeSectionWrite(ctx, section, userID, "update_question"); err != nil {
		return nil, err
	}

	if req.Prompt != nil {
		question.Prompt = datatypes.JSON(req.Prompt)
	}
	if req.Options != nil {
		question.Options = datatypes.JSON(req.Options)
	}
	if req.AnswerKey != nil {
		question.AnswerKey = datatypes.JSON(req.AnswerKey)
	}
	if req.MaxScore != nil {
		question.MaxScore = *req.MaxScore
	}
	if req.Explanation != nil {
		question.Explanation = req.Explanation
	}
	if req.Position != nil {
		question.Position = *req.Position
	}

	// Re-check the payload as a whole after partial updates.
	if err := s.business.ValidateQuestionPayload(question.QType, question.Options, question.AnswerKey); err != nil {
		return nil, err
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return question, nil
}

func (s *examService) DeleteQuestion(ctx context.Context, questionID uint, userID string) error {
	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		return ErrQuestionNotFound
	}
	section, err := s.repo.Exam().GetSectionByID(ctx, nil, question.SectionID)
	if err != nil {
		return ErrSectionNotFound
	}
	if err := s.authorizeSectionWrite(ctx, section, userID, "delete_question"); err != nil {
		return err
	}
	if err := s.repo.Question().Delete(ctx, nil, questionID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

func (s *examService) ReorderQuestions(ctx context.Context, sectionID uint, orders []repositories.QuestionOrder, userID string) error {
	section, err := s.repo.Exam().GetSectionByID(ctx, nil, sectionID)
	if err != nil {
		return ErrSectionNotFound
	}
	if err := s.authorizeSectionWrite(ctx, section, userID, "reorder_questions"); err != nil {
		return err
	}
	if err := s.repo.Question().Reorder(ctx, nil, sectionID, orders); err != nil {
		return fmt.Errorf("failed to reorder questions: %w", err)
	}
	return nil
}

// ===== HELPERS =====

func (s *examService) isStaff(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, ErrUserNotFound
	}
	return user.Role.IsStaff(), nil
}

func (s *examService) authorizeExamWrite(ctx context.Context, exam *models.Exam, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if user.Role == models.RoleAdmin || exam.CreatedBy == userID {
		return nil
	}
	return NewPermissionError(userID, fmt.Sprintf("%d", exam.ID), "exam", action, "only the exam owner or an admin may modify it")
}

func (s *examService) authorizeSectionWrite(ctx context.Context, section *models.Section, userID, action string) error {
	exam, err := s.repo.Exam().GetByID(ctx, nil, section.ExamID)
	if err != nil {
		return ErrExamNotFound
	}
	return s.authorizeExamWrite(ctx, exam, userID, action)
}

func buildSection(req CreateSectionRequest, position int) models.Section {
	section := models.Section{
		Type:         models.SectionType(req.Type),
		Title:        req.Title,
		Instructions: req.Instructions,
		DurationMin:  req.DurationMin,
		Position:     position,
	}
	if req.Position != 0 {
		section.Position = req.Position
	}
	for i, q := range req.Questions {
		question := buildQuestion(q)
		if question.Position == 0 {
			question.Position = i
		}
		section.Questions = append(section.Questions, *question)
	}
	return section
}

func buildQuestion(req CreateQuestionRequest) *models.Question {
	question := &models.Question{
		QType:       models.QType(req.QType),
		Position:    req.Position,
		Prompt:      datatypes.JSON(req.Prompt),
		MaxScore:    req.MaxScore,
		Explanation: req.Explanation,
	}
	if question.MaxScore == 0 {
		question.MaxScore = 1
	}
	if req.Options != nil {
		question.Options = datatypes.JSON(req.Options)
	}
	if req.AnswerKey != nil {
		question.AnswerKey = datatypes.JSON(req.AnswerKey)
	}
	return question
}

// SanitizeExamForStudent strips grading material from exam content before it
// reaches a student client.
func SanitizeExamForStudent(exam *models.Exam) {
	for i := range exam.Sections {
		SanitizeSectionForStudent(&exam.Sections[i])
	}
}

func SanitizeSectionForStudent(section *models.Section) {
	for i := range section.Questions {
		section.Questions[i].AnswerKey = nil
		section.Questions[i].Explanation = nil
	}
}
