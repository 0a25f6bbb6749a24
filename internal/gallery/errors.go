package gallery

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the call needs an authenticated user or the
	// credentials were wrong.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("upload not found")
	ErrTooLarge     = errors.New("file too large")
)

// Messages shown to clients.
const (
	MsgNoFile            = "No file uploaded"
	MsgImagesOnly        = "Only image uploads are allowed"
	MsgIncorrectPassword = "Incorrect current password"
	MsgPasswordUpdated   = "Password updated"
)

// ValidationError is a client mistake. Field names the offending input when
// there is one.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Message: msg, Field: field}
}

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
