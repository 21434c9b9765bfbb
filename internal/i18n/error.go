package i18n

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an HTTP status code.
type ErrorCode int

const (
	ErrorBadRequest     ErrorCode = http.StatusBadRequest
	ErrorUnauthorized   ErrorCode = http.StatusUnauthorized
	ErrorForbidden      ErrorCode = http.StatusForbidden
	ErrorNotFound       ErrorCode = http.StatusNotFound
	ErrorConflict       ErrorCode = http.StatusConflict
	ErrorInternalServer ErrorCode = http.StatusInternalServerError
)

// I18nError is an error whose message is a translation lookup key.
type I18nError struct {
	MessageID string
	Data      map[string]interface{}
}

// New creates an I18nError with the given message ID.
func New(messageID string) *I18nError {
	return &I18nError{
		MessageID: messageID,
		Data:      make(map[string]interface{}),
	}
}

// WithParam adds a single template parameter to the error.
func (e *I18nError) WithParam(key string, value interface{}) *I18nError {
	e.Data[key] = value
	return e
}

// Error implements the error interface using the default language.
func (e *I18nError) Error() string {
	if t := GetTranslator(); t != nil {
		if translated := t.Translate(e.MessageID, defaultLang, e.Data); translated != e.MessageID {
			return translated
		}
	}
	msg := e.MessageID
	for k, v := range e.Data {
		msg = strings.Replace(msg, fmt.Sprintf("{{.%s}}", k), fmt.Sprintf("%v", v), -1)
	}
	return msg
}

// TranslateByContext translates the error for the request's language.
func (e *I18nError) TranslateByContext(c *gin.Context) string {
	if t := GetTranslator(); t != nil {
		if translated := t.Translate(e.MessageID, contextLang(c), e.Data); translated != e.MessageID {
			return translated
		}
	}
	return e.Error()
}

// ErrorWithCode pairs an I18nError with an HTTP status code.
type ErrorWithCode struct {
	*I18nError
	Code ErrorCode
}

// NewErrorWithCode creates a coded error.
func NewErrorWithCode(messageID string, code ErrorCode) *ErrorWithCode {
	return &ErrorWithCode{
		I18nError: New(messageID),
		Code:      code,
	}
}

// WithParam adds a single template parameter to the error.
func (e *ErrorWithCode) WithParam(key string, value interface{}) *ErrorWithCode {
	// Copy so the package-level sentinel errors stay immutable.
	data := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	return &ErrorWithCode{
		I18nError: &I18nError{MessageID: e.MessageID, Data: data},
		Code:      e.Code,
	}
}

// GetCode returns the HTTP status code.
func (e *ErrorWithCode) GetCode() ErrorCode {
	return e.Code
}

// TranslateError translates any error using the request's language.
func TranslateError(c *gin.Context, err error) string {
	if err == nil {
		return ""
	}

	// errors.As does not see through the embedded *I18nError, so coded
	// errors need their own branch.
	var errWithCode *ErrorWithCode
	if errors.As(err, &errWithCode) {
		return errWithCode.TranslateByContext(c)
	}

	var i18nErr *I18nError
	if errors.As(err, &i18nErr) {
		return i18nErr.TranslateByContext(c)
	}
	return err.Error()
}

// RespondWithError sends the appropriate HTTP error response for the error.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	statusCode := http.StatusInternalServerError
	var errWithCode *ErrorWithCode
	if errors.As(err, &errWithCode) {
		statusCode = int(errWithCode.GetCode())
	}

	c.JSON(statusCode, gin.H{"error": TranslateError(c, err)})
}
