package i18n

// Common errors
var (
	ErrNotFound       = NewErrorWithCode("ErrorResourceNotFound", ErrorNotFound)
	ErrUnauthorized   = NewErrorWithCode("ErrorUnauthorized", ErrorUnauthorized)
	ErrForbidden      = NewErrorWithCode("ErrorForbidden", ErrorForbidden)
	ErrBadRequest     = NewErrorWithCode("ErrorBadRequest", ErrorBadRequest)
	ErrInternalServer = NewErrorWithCode("ErrorInternalServer", ErrorInternalServer)
)

// Auth related errors
var (
	ErrorInvalidCredentials = NewErrorWithCode("ErrorInvalidCredentials", ErrorUnauthorized)
	ErrorUserDisabled       = NewErrorWithCode("ErrorUserDisabled", ErrorForbidden)
	ErrorInvalidOldPassword = NewErrorWithCode("ErrorInvalidOldPassword", ErrorForbidden)
)

// Chat related errors
var (
	ErrorSessionNotFound = NewErrorWithCode("ErrorSessionNotFound", ErrorNotFound)
	ErrorSessionExists   = NewErrorWithCode("ErrorSessionExists", ErrorConflict)
	ErrorSessionBlocked  = NewErrorWithCode("ErrorSessionBlocked", ErrorForbidden)
)

// Success message IDs
const (
	SuccessLogin            = "SuccessLogin"
	SuccessPasswordChanged  = "SuccessPasswordChanged"
	SuccessChatSessions     = "SuccessChatSessions"
	SuccessChatMessages     = "SuccessChatMessages"
	SuccessSessionCreated   = "SuccessSessionCreated"
	SuccessSessionDeleted   = "SuccessSessionDeleted"
	SuccessSessionBlocked   = "SuccessSessionBlocked"
	SuccessSessionUnblocked = "SuccessSessionUnblocked"
	SuccessMessagesRead     = "SuccessMessagesRead"
	SuccessMessageSent      = "SuccessMessageSent"
)
