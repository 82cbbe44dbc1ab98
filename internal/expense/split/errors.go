package split

import "errors"

// Reason is a machine-readable validation failure code
type Reason string

const (
	ReasonMissingFields         Reason = "MISSING_FIELDS"
	ReasonInvalidInput          Reason = "INVALID_INPUT"
	ReasonMissingParticipants   Reason = "MISSING_PARTICIPANTS"
	ReasonDuplicateParticipant  Reason = "DUPLICATE_PARTICIPANT"
	ReasonPercentageSumMismatch Reason = "PERCENTAGE_SUM_MISMATCH"
	ReasonCustomSumMismatch     Reason = "CUSTOM_SUM_MISMATCH"
	ReasonPayerNotMember        Reason = "PAYER_NOT_MEMBER"
	ReasonParticipantNotMember  Reason = "PARTICIPANT_NOT_MEMBER"
)

// ValidationError reports a rejected expense payload. Callers can
// recover it with errors.As even when it has been wrapped.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for the given reason
func NewValidationError(reason Reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// ReasonOf extracts the reason from err, if it is a validation failure
func ReasonOf(err error) (Reason, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}

var (
	ErrMissingFields            = NewValidationError(ReasonMissingFields, "missing required fields")
	ErrInvalidInput             = NewValidationError(ReasonInvalidInput, "invalid input")
	ErrNegativeAmount           = NewValidationError(ReasonInvalidInput, "amount cannot be negative")
	ErrNegativeShare            = NewValidationError(ReasonInvalidInput, "shares cannot be negative")
	ErrNoParticipants           = NewValidationError(ReasonMissingParticipants, "at least one participant is required")
	ErrDuplicateParticipant     = NewValidationError(ReasonDuplicateParticipant, "participant listed more than once")
	ErrPercentageSumMismatch    = NewValidationError(ReasonPercentageSumMismatch, "percentages must sum to 100")
	ErrCustomSumMismatch        = NewValidationError(ReasonCustomSumMismatch, "custom shares must sum to the expense amount")
	ErrPercentagesExceedHundred = NewValidationError(ReasonPercentageSumMismatch, "entered percentages exceed 100")
	ErrSharesExceedAmount       = NewValidationError(ReasonCustomSumMismatch, "entered shares exceed the expense amount")
	ErrPayerNotMember           = NewValidationError(ReasonPayerNotMember, "payer is not a member of the group")
	ErrParticipantNotMember     = NewValidationError(ReasonParticipantNotMember, "participant is not a member of the group")
)
