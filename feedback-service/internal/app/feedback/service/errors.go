package service

import "errors"

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrFeedbackNotFound    = errors.New("feedback not found")
	ErrConflictingDecision = errors.New("feedback already has a conflicting decision")
)

// ValidationError возвращается при отклонении отправки валидатором.
// Содержит конкретные причины для ответа клиенту
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Reasons[0]
}

// IsValidationError сообщает, является ли err ошибкой валидации,
// и возвращает её причины
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
