// Package gitpack reads Git packfiles and loose objects and resolves delta
// chains into fully materialized objects.
package gitpack

import (
	"errors"
	"fmt"
)

// ErrObjectBroken is returned when a Git object fails structural validation.
// Compare with errors.Is, not type assertion.
var ErrObjectBroken = errors.New("git object broken")

// ErrPackBroken is returned when a pack references an offset or sha1 that
// cannot be resolved.
var ErrPackBroken = errors.New("git pack broken")

// ObjectBrokenError carries the sha1 (when known) and reason for a structural
// failure decoding a single Git object.
type ObjectBrokenError struct {
	Sha1   string
	Reason string
	Err    error
}

func (e *ObjectBrokenError) Error() string {
	if e.Sha1 == "" {
		return fmt.Sprintf("object broken: %s", e.Reason)
	}
	return fmt.Sprintf("object %s broken: %s", e.Sha1, e.Reason)
}

func (e *ObjectBrokenError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrObjectBroken
}

func (e *ObjectBrokenError) Is(target error) bool {
	return target == ErrObjectBroken
}

// NewObjectBrokenError builds an ObjectBrokenError for the given sha1 (may be
// empty if not yet known) and reason.
func NewObjectBrokenError(sha1, reason string, err error) *ObjectBrokenError {
	return &ObjectBrokenError{Sha1: sha1, Reason: reason, Err: err}
}

// PackBrokenError carries the pack path and offset (when known) for a
// failure resolving a reference inside a pack.
type PackBrokenError struct {
	Pack   string
	Offset int64
	Reason string
	Err    error
}

func (e *PackBrokenError) Error() string {
	if e.Pack == "" {
		return fmt.Sprintf("pack broken at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("pack %s broken at offset %d: %s", e.Pack, e.Offset, e.Reason)
}

func (e *PackBrokenError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrPackBroken
}

func (e *PackBrokenError) Is(target error) bool {
	return target == ErrPackBroken
}

// NewPackBrokenError builds a PackBrokenError for the given pack path and offset.
func NewPackBrokenError(pack string, offset int64, reason string, err error) *PackBrokenError {
	return &PackBrokenError{Pack: pack, Offset: offset, Reason: reason, Err: err}
}
