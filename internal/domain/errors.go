package domain

import "errors"

// ErrNotFound is returned by repo, engine and service functions when the
// requested trip does not exist in the owner's collection.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. missing title).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrAuth is returned when an operation needs a bound account and none is bound.
// Handlers should map this to HTTP 401.
var ErrAuth = errors.New("not authenticated")

// ErrStore is returned when the remote collection fails for a reason other
// than a missing id (connection loss, constraint failure, ...).
// Handlers should map this to HTTP 503.
var ErrStore = errors.New("store error")

// ErrUpload matches every *UploadError via errors.Is.
// Handlers should map this to HTTP 502.
var ErrUpload = errors.New("upload failed")

// UploadError is returned by the image upload pipeline. Cause is the
// underlying network, host or input error.
type UploadError struct {
	Cause error
}

func (e *UploadError) Error() string {
	if e.Cause == nil {
		return ErrUpload.Error()
	}
	return ErrUpload.Error() + ": " + e.Cause.Error()
}

func (e *UploadError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrUpload) match any UploadError.
func (e *UploadError) Is(target error) bool { return target == ErrUpload }
