// Package failure defines the error taxonomy shared by the orchestrators and the batch scheduler.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies why a job did not complete.
type Kind int

const (
	KindOther Kind = iota
	KindToolFailed
	KindCancelled
	KindNoNetwork
	KindInsufficientDiskSpace
	KindUnauthorizedAccess
	KindDirectoryNotFound
	KindPathTooLong
)

func (k Kind) String() string {
	switch k {
	case KindToolFailed:
		return "tool_failed"
	case KindCancelled:
		return "cancelled"
	case KindNoNetwork:
		return "no_network"
	case KindInsufficientDiskSpace:
		return "insufficient_disk_space"
	case KindUnauthorizedAccess:
		return "unauthorized_access"
	case KindDirectoryNotFound:
		return "directory_not_found"
	case KindPathTooLong:
		return "path_too_long"
	default:
		return "other"
	}
}

// Fatal reports whether the kind points at a misconfigured destination rather
// than a transient condition. Fatal kinds are propagated, never absorbed.
func (k Kind) Fatal() bool {
	switch k {
	case KindUnauthorizedAccess, KindPathTooLong, KindDirectoryNotFound:
		return true
	}
	return false
}

// Error is a classified error carrying the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, failure.Cancelled).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ToolFailed            = &Error{Kind: KindToolFailed}
	Cancelled             = &Error{Kind: KindCancelled}
	NoNetwork             = &Error{Kind: KindNoNetwork}
	InsufficientDiskSpace = &Error{Kind: KindInsufficientDiskSpace}
	UnauthorizedAccess    = &Error{Kind: KindUnauthorizedAccess}
	DirectoryNotFound     = &Error{Kind: KindDirectoryNotFound}
	PathTooLong           = &Error{Kind: KindPathTooLong}
)

// New wraps err with the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap classifies err and wraps it with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return &Error{Kind: fe.Kind, Op: op, Err: err}
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// Classify maps an arbitrary error onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if isDiskFull(err) {
		return KindInsufficientDiskSpace
	}
	if isNameTooLong(err) {
		return KindPathTooLong
	}
	if errors.Is(err, fs.ErrPermission) {
		return KindUnauthorizedAccess
	}
	if isPathNotFound(err) {
		return KindDirectoryNotFound
	}
	return KindOther
}

// KindOf is Classify under a shorter name for call sites that read better with it.
func KindOf(err error) Kind { return Classify(err) }

// IsCancelled reports whether err represents cancellation.
func IsCancelled(err error) bool {
	return Classify(err) == KindCancelled
}
