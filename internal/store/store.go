package store

import "errors"

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates a uniqueness conflict.
var ErrDuplicate = errors.New("record already exists")
