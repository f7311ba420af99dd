package core

import "errors"

// Error taxonomy shared by every service. Handlers map these to HTTP status codes;
// services wrap them with context using fmt.Errorf("%w: ...").
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("not allowed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrDependency      = errors.New("service unavailable")
)
