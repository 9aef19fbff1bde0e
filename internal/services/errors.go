package services

import (
	"errors"
	"fmt"

	apperrors "github.com/prepdesk/exam-service/internal/errors"
)

// ===== SENTINEL ERRORS =====

var (
	// Exam content
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamInactive     = errors.New("exam is not active")
	ErrExamTitleExists  = errors.New("an exam with this title already exists")
	ErrExamHasBookings  = errors.New("exam has active bookings and cannot be deleted")
	ErrSectionNotFound  = errors.New("section not found")
	ErrQuestionNotFound = errors.New("question not found")

	// Booking
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingConflict     = errors.New("student already has a booking within the conflict window")
	ErrBookingNotConfirmed = errors.New("booking is not in a confirmed state")
	ErrBookingCancelled    = errors.New("booking has been cancelled")

	// Attempt runtime
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrAttemptIncomplete       = errors.New("attempt has sections that are not yet finalized")
	ErrSectionNotSelectable    = errors.New("section is not currently selectable")
	ErrSectionFinalized        = errors.New("section is locked and no longer accepts answers")
	ErrSectionTimeExpired      = errors.New("section time has expired")
	ErrAttemptSectionNotFound  = errors.New("attempt section not found")

	// Grading
	ErrSectionNotGradable = errors.New("section is not awaiting a grade")
	ErrInvalidBandScore   = errors.New("band score must be between 0 and 9 in steps of 0.5")
	ErrBandMapNotFound    = errors.New("no band mapping covers this raw score")

	// Generic
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUserNotFound = errors.New("user not found")
)

// ===== CUSTOM ERROR TYPES =====

// BusinessRuleError carries a named rule violation with context.
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation [%s]: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func NewBusinessRuleErrorWithContext(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// PermissionError describes a denied action on a resource.
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// ===== CLASSIFICATION HELPERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrAttemptSectionNotFound) ||
		errors.Is(err, ErrBandMapNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

func IsForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	var permErr *PermissionError
	return errors.As(err, &permErr)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrBookingConflict) ||
		errors.Is(err, ErrExamTitleExists) ||
		errors.Is(err, ErrExamHasBookings) ||
		errors.Is(err, ErrAttemptAlreadySubmitted) ||
		errors.Is(err, ErrSectionFinalized)
}

func IsValidation(err error) bool {
	var verrs apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	var ruleErr *BusinessRuleError
	return errors.As(err, &ruleErr)
}

func IsGone(err error) bool {
	return errors.Is(err, ErrSectionTimeExpired)
}
