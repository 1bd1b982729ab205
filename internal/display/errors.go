package display

import "errors"

var (
	// ErrEnumeration means the platform could not list displays.
	ErrEnumeration = errors.New("display enumeration failed")
	// ErrWindowCreation means an overlay window could not be created.
	ErrWindowCreation = errors.New("overlay window creation failed")
	// ErrCaptureUnsupported is returned by windows whose platform has no way
	// to hide content from screen capture.
	ErrCaptureUnsupported = errors.New("capture protection not supported")
	// ErrUnknownDisplay means no display with the given id is registered.
	ErrUnknownDisplay = errors.New("unknown display")
)

// DisplayError represents a display-related error.
type DisplayError struct {
	Message string
	Cause   error
}

func (e *DisplayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DisplayError) Unwrap() error {
	return e.Cause
}

// enumerationError wraps cause so that errors.Is(err, ErrEnumeration) holds.
func enumerationError(message string, cause error) error {
	if cause == nil {
		return &DisplayError{Message: message, Cause: ErrEnumeration}
	}
	return &DisplayError{Message: message, Cause: errors.Join(ErrEnumeration, cause)}
}
