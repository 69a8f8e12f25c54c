package store

import "fmt"

// Error wraps a storage failure with the operation that produced it, the
// taxonomy-level "Storage" error kind from spec.md §7: fatal for the
// current operation, state left unmutated.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// NotFoundError reports that a requested row does not exist, distinct
// from a transport/schema failure.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s %q not found", e.Entity, e.Key)
}
