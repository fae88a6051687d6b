// Package cmn provides common low-level types shared by all wprs packages.
package cmn

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error at an API boundary. Recovery policy is keyed off
// the kind: Transport may reconnect; InvalidState, BadInput and Codec drop
// the affected frame and proceed; everything else is fatal for the
// containing endpoint (see Fatal).
type Kind uint8

const (
	Transport Kind = iota + 1
	ProtocolMismatch
	Codec
	InvalidState
	ResourceExhaustion
	BadInput
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case ProtocolMismatch:
		return "protocol-mismatch"
	case Codec:
		return "codec"
	case InvalidState:
		return "invalid-state"
	case ResourceExhaustion:
		return "resource-exhaustion"
	case BadInput:
		return "bad-input"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Err is the tagged result type surfaced at wprs API boundaries.
type Err struct {
	kind  Kind
	msg   string
	cause error
}

func NewErr(kind Kind, format string, a ...any) *Err {
	return &Err{kind: kind, msg: fmt.Sprintf(format, a...)}
}

func WrapErr(kind Kind, cause error, format string, a ...any) *Err {
	return &Err{kind: kind, msg: fmt.Sprintf(format, a...), cause: pkgerrors.WithStack(cause)}
}

func (e *Err) Kind() Kind    { return e.kind }
func (e *Err) Unwrap() error { return e.cause }

func (e *Err) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
}

// IsKind reports whether err or anything it wraps is an *Err of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Err
	return errors.As(err, &e) && e.kind == kind
}

// Fatal reports whether the error must tear down the containing endpoint.
// Transport errors may reconnect; invalid-state, bad-input, and codec errors
// cost only the affected frame (the surface resynchronizes on its next
// commit); everything else propagates.
func Fatal(err error) bool {
	var e *Err
	if !errors.As(err, &e) {
		return true
	}
	switch e.kind {
	case Transport, InvalidState, BadInput, Codec:
		return false
	}
	return true
}
