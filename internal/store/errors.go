package store

import (
	"github.com/moodtune/moodtune-sync/internal/errors"
)

// Sentinel errors. Match with errors.Is; the comparison is by code, so any
// NOT_FOUND error matches ErrNotFound.
var (
	ErrNotFound      = errors.NotFound("resource not found")
	ErrAlreadyExists = errors.AlreadyExists("resource already exists")
)

// LocalWrite wraps a failed local write. Callers surface it unchanged;
// it is never retried automatically.
func LocalWrite(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return errors.Wrap(err, errors.CodeLocalWrite, op)
}

// IsLocalWrite reports whether err is a wrapped local write failure.
func IsLocalWrite(err error) bool {
	return errors.Is(err, errors.ErrLocalWrite)
}
