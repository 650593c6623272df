package remote

import (
	stderrors "errors"
	"fmt"

	"github.com/moodtune/moodtune-sync/internal/errors"
)

// Kind classifies a remote failure.
type Kind int

const (
	// KindTransient failures (unavailable, timeout, throttled) are retried.
	KindTransient Kind = iota + 1
	// KindPermanent failures (rejected, invalid) are not retried.
	KindPermanent
	// KindNotFound is returned by Get for a missing document.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified remote failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets coded sentinels such as errors.ErrRemoteTransient match.
func (e *Error) Is(target error) bool {
	var coded *errors.Error
	if !stderrors.As(target, &coded) {
		return false
	}
	return coded.Code == e.Code()
}

// Code maps the kind onto the application error codes.
func (e *Error) Code() errors.Code {
	switch e.Kind {
	case KindTransient:
		return errors.CodeRemoteTransient
	case KindNotFound:
		return errors.CodeNotFound
	default:
		return errors.CodeRemotePermanent
	}
}

// Transient builds a retryable error.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent builds a non-retryable error.
func Permanent(op string, err error) error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// NotFound builds the error Get returns for a missing document.
func NotFound(collection, id string) error {
	return &Error{Kind: KindNotFound, Op: "get", Err: fmt.Errorf("%s/%s", collection, id)}
}

// KindOf classifies err. Unclassified errors count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var re *Error
	if stderrors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// IsTransient reports whether err should be retried later.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsPermanent reports whether err will fail again on retry.
func IsPermanent(err error) bool {
	return KindOf(err) == KindPermanent
}

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
