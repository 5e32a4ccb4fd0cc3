package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidStatus  ErrCode = "INVALID_STATUS"
	ErrInvalidAction  ErrCode = "INVALID_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrSessionExpired      ErrCode = "SESSION_EXPIRED"
	ErrSessionActive       ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionNotResumable ErrCode = "SESSION_NOT_RESUMABLE"
	ErrSessionTerminal     ErrCode = "SESSION_TERMINAL"

	// ─── Player callback ───────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidStatus:
		return "Unknown session status value."
	case ErrInvalidAction:
		return "Unknown action."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrSessionExpired:
		return "This session has expired."
	case ErrSessionActive:
		return "An active session already exists for this student."
	case ErrSessionNotResumable:
		return "This session cannot be resumed."
	case ErrSessionTerminal:
		return "This session has already finished."

	// ─── Player callback ───────────────────────────────────────────────
	case ErrTokenRequired:
		return "A launch token is required."
	case ErrTokenInvalid:
		return "The launch token is invalid."
	case ErrTokenExpired:
		return "The launch token has expired."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
