package generation

import (
	"errors"
	"fmt"
)

// Machine-readable error codes recorded on failed video records.
const (
	// CodeAudioMissing indicates the audio input is absent or unreadable.
	CodeAudioMissing = "audio_missing"
	// CodeBackgroundMissing indicates the background clip is required or
	// referenced but unreadable.
	CodeBackgroundMissing = "background_missing"
	// CodeDurationInvalid indicates the computed composition duration was
	// not positive.
	CodeDurationInvalid = "duration_invalid"
	// CodeCompositionMissing indicates the composition capability could
	// not be loaded or initialised.
	CodeCompositionMissing = "composition_missing"
	// CodeOutputMissing indicates the render returned without producing a
	// readable artifact.
	CodeOutputMissing = "output_missing"
	// CodeGeneric is the fallback for unexpected errors.
	CodeGeneric = "generation_error"
)

// ErrGenerationInProgress is returned when Generate is invoked for a video
// that already has an attempt in flight.
var ErrGenerationInProgress = errors.New("generation already in progress for this video")

// Error describes a failed generation step. It is always converted into a
// terminal failed state on the record rather than propagated to callers.
type Error struct {
	// Code is the machine-readable tag recorded as error_code.
	Code string
	// Message is the human-readable cause recorded as error_message.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// asError normalises any error into an *Error, tagging unexpected ones
// with the generic fallback code.
func asError(err error) *Error {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr
	}
	return &Error{Code: CodeGeneric, Message: fmt.Sprintf("unexpected error: %v", err), Err: err}
}
