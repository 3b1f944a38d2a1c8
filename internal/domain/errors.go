package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code and message so sentinels wrapped via WithCause still
// satisfy errors.Is against the bare sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithCause returns a copy of the sentinel carrying an underlying cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidSourceType    = NewDomainError(ErrCodeValidation, "source_type must be 'url' or 'text'")
	ErrInvalidPosition      = NewDomainError(ErrCodeValidation, "invalid widget position")
	ErrInvalidAccentColor   = NewDomainError(ErrCodeValidation, "accent color must be a hex code like #3B82F6")
	ErrInvalidMessageRole   = NewDomainError(ErrCodeValidation, "message role must be 'user' or 'assistant'")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrBotNotFound          = NewDomainError(ErrCodeNotFound, "bot not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrSessionNotFound      = NewDomainError(ErrCodeNotFound, "admin session not found or expired")
)

// Conflict errors
var (
	ErrBotAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "bot already exists")
)

// Authorization errors
var (
	ErrInvalidAPIKey      = NewDomainError(ErrCodeUnauthorized, "invalid bot_id or api_key")
	ErrInvalidCredentials = NewDomainError(ErrCodeUnauthorized, "invalid username or password")
)

// Rate limit and exclusion errors. Quota and throttle are distinct so the
// widget can show different remediation messages.
var (
	ErrBotQuotaExceeded = NewDomainError(ErrCodeRateLimited, "bot has reached its message limit")
	ErrSessionThrottled = NewDomainError(ErrCodeRateLimited, "too many messages, please wait a moment")
	ErrSessionBusy      = NewDomainError(ErrCodeConflict, "a request is already in progress for this session")
	ErrTrainingInFlight = NewDomainError(ErrCodeConflict, "retrain already in progress for this bot")
)

// Scrape errors
var (
	ErrScrapeTimeout      = NewDomainError(ErrCodeUpstream, "source fetch timed out")
	ErrScrapeBlocked      = NewDomainError(ErrCodeValidation, "source URL is not allowed")
	ErrScrapeTooLarge     = NewDomainError(ErrCodeValidation, "source content exceeds size limit")
	ErrScrapeEmptyContent = NewDomainError(ErrCodeValidation, "source contains too little text to ingest")
)

// Embedding and generation errors
var (
	ErrEmbeddingTransient   = NewDomainError(ErrCodeUpstream, "embedding service temporarily unavailable")
	ErrEmbeddingFatal       = NewDomainError(ErrCodeUpstream, "embedding request rejected")
	ErrRetrievalUnavailable = NewDomainError(ErrCodeUpstream, "context retrieval unavailable")
	ErrGenerationTimeout    = NewDomainError(ErrCodeUpstream, "response generation timed out")
	ErrGenerationUpstream   = NewDomainError(ErrCodeUpstream, "response generation failed")
)

// Vector store errors
var (
	ErrVectorStoreUnavailable  = NewDomainError(ErrCodeInternalError, "vector store unavailable")
	ErrVectorStoreInconsistent = NewDomainError(ErrCodeInternalError, "vector store returned inconsistent data")
)
