package store

import "errors"

// ErrNotFound is returned when the row a call targets does not exist.
var ErrNotFound = errors.New("not found")
