package document

import "errors"

var (
	// ErrValidation marks a malformed correction or request input; no
	// mutation is applied.
	ErrValidation = errors.New("validation failed")

	// ErrPrecondition marks an operation attempted against a document in
	// the wrong state (checkout before the core fields exist, edits to a
	// locked field or a paid document).
	ErrPrecondition = errors.New("precondition failed")

	// ErrNotFound covers both a token lookup miss and an expired token, so
	// responses never leak whether a document exists.
	ErrNotFound = errors.New("not found or expired")
)
