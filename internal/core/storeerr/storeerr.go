// Package storeerr classifies persistence failures that are expected to
// succeed on a later attempt.
package storeerr

import (
	"errors"
	"fmt"
)

// Transient wraps a store error that is safe to retry: a busy database, a
// dropped connection, a serialization failure.
type Transient struct {
	Op  string
	Err error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("%s: transient store error: %v", e.Op, e.Err)
}

func (e *Transient) Unwrap() error { return e.Err }

// Wrap marks err as transient. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Op: op, Err: err}
}

// IsTransient reports whether any error in err's chain is a *Transient.
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}
