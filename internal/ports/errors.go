package ports

import "errors"

// Store-level sentinel errors. Repositories translate driver failures into
// these so services can map them without knowing the backend.
var (
	ErrDuplicate    = errors.New("duplicate record")
	ErrNotFound     = errors.New("record not found")
	ErrPrecondition = errors.New("store precondition failed")
)
