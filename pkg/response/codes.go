package response

const (
	ErrCodeSuccess      = 4001 // Success
	ErrCodeParamInvalid = 4003 // Request body or query invalid

	ErrCodeUnauthorized = 4010 // Missing or bad token
	ErrCodeForbidden    = 4030 // Admin only
	ErrCodeNotFound     = 4040 // Notification or session not found
	ErrCodeSessionGone  = 4100 // Polling session closed
	ErrCodeInternal     = 5000
)

// message
var msg = map[int]string{
	ErrCodeSuccess:      "success",
	ErrCodeParamInvalid: "invalid request",

	// Auth
	ErrCodeUnauthorized: "unauthorized",
	ErrCodeForbidden:    "forbidden",

	ErrCodeNotFound:    "not found",
	ErrCodeSessionGone: "session closed",
	ErrCodeInternal:    "internal error",
}

// Message returns the message for code, or "" for an unknown code.
func Message(code int) string {
	return msg[code]
}
