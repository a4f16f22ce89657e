package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const defaultUserMessage = "⚠️ Algo deu errado. Tente novamente em instantes."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: fmt.Sprintf("Dados inválidos. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewConfigError(setting string, cause error) *AppError {
	return &AppError{
		Code:      "E150",
		Message:   fmt.Sprintf("Configuration error: %s", setting),
		Severity:  SeverityCritical,
		Retryable: false,
		cause:     cause,
	}
}

func NewStorageError(cause error) *AppError {
	return &AppError{
		Code:        "E200",
		Message:     "Session storage error",
		UserMessage: defaultUserMessage,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("External API error: %s", apiName),
		UserMessage: "⚠️ Não consegui gerar o pagamento agora. Tente novamente em instantes.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewDeliveryError(target int64, cause error) *AppError {
	return &AppError{
		Code:        "E350",
		Message:     fmt.Sprintf("Telegram delivery to %d failed", target),
		UserMessage: defaultUserMessage,
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Operação indisponível neste momento. Use /start para recomeçar.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewInternalError(cause error) *AppError {
	return &AppError{
		Code:        "E900",
		Message:     "Internal error",
		UserMessage: defaultUserMessage,
		Severity:    SeverityCritical,
		Retryable:   false,
		cause:       cause,
	}
}
