// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfserr defines the error kinds carried across every Matryoshka
// operation and the helpers for attaching and inspecting them.
//
// Every exported error from lib/store, lib/chunk, and lib/vfs carries
// one of the Kinds declared here, so callers (and eventually the C-ABI
// Status surface) can classify a failure with [KindOf] or [Is] without
// parsing a message string.
package vfserr

import (
	"errors"
	"fmt"
)

// Kind classifies the reason an operation failed. The zero Kind is
// never produced by this package; [KindOf] returns it for errors that
// were never wrapped with one.
type Kind int

const (
	// Unknown is returned by [KindOf] when the error carries no Kind.
	Unknown Kind = iota

	// NotFound indicates an open/pull/size/read-range targeted a path
	// or handle with no backing row. Delete of a missing row is not an
	// error.
	NotFound

	// AlreadyExists indicates a push targeted a path that already has
	// a files row.
	AlreadyExists

	// IO indicates a host-filesystem read (push) or write (pull)
	// failure.
	IO

	// Storage indicates a backing-store failure: schema creation,
	// query execution, or a constraint violation not otherwise
	// classified.
	Storage

	// InvalidArgument indicates a malformed input, such as an empty
	// container path or a nil required parameter.
	InvalidArgument
)

// String renders the Kind the way it appears in wrapped error messages
// and, eventually, Status messages.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case IO:
		return "io"
	case Storage:
		return "storage"
	case InvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// kindError pairs a Kind with an underlying cause. It implements Unwrap
// so errors.Is/errors.As see through to the wrapped cause; its Kind is
// read back with errors.As by [KindOf] and [Is] below.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *kindError) Unwrap() error { return e.cause }

// New returns an error of the given Kind wrapping cause. If cause is
// nil, the returned error's message is just the Kind's string form.
func New(kind Kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

// Newf is a convenience for New(kind, fmt.Errorf(format, args...)).
func Newf(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, cause: fmt.Errorf(format, args...)}
}

// KindOf walks err's Unwrap chain and returns the first [Kind] it
// finds, or [Unknown] if none of the errors in the chain were
// constructed with [New] or [Newf].
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// Is reports whether err's chain carries the given Kind. Equivalent
// to KindOf(err) == kind but reads naturally at call sites that only
// care about one Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
