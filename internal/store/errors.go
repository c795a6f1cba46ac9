package store

import "errors"

// ErrNotFound is returned when a requested record does not exist or has
// been deleted.
var ErrNotFound = errors.New("not found")
