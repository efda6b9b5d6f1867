// Package fault defines the error taxonomy of the surface engine. Every fault is fatal: it is returned
// up the call chain unchanged in kind, reported once at the process entry point, and terminates the program.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a fault by the phase that produced it.
type Kind int

const (
	// KindInitialization covers platform/device discovery, context and queue creation,
	// buffer registration, and kernel entry-point resolution.
	KindInitialization Kind = iota + 1

	// KindLink covers graphics program build and attribute/uniform resolution failures.
	KindLink

	// KindBuild covers compute program build failures.
	KindBuild

	// KindRuntimeDispatch covers any per-frame enqueue call that did not succeed.
	KindRuntimeDispatch

	// KindProtocol covers violations of the buffer ownership protocol or frame pump reentrancy.
	KindProtocol
)

var (
	// ErrInitialization matches any fault of KindInitialization via errors.Is.
	ErrInitialization = errors.New("initialization error")
	// ErrLink matches any fault of KindLink via errors.Is.
	ErrLink = errors.New("link error")
	// ErrBuild matches any fault of KindBuild via errors.Is.
	ErrBuild = errors.New("build error")
	// ErrRuntimeDispatch matches any fault of KindRuntimeDispatch via errors.Is.
	ErrRuntimeDispatch = errors.New("runtime dispatch error")
	// ErrProtocolViolation matches any fault of KindProtocol via errors.Is.
	ErrProtocolViolation = errors.New("protocol violation")
)

// String returns the human readable name of the kind.
func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("fault kind %d", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case KindInitialization:
		return ErrInitialization
	case KindLink:
		return ErrLink
	case KindBuild:
		return ErrBuild
	case KindRuntimeDispatch:
		return ErrRuntimeDispatch
	case KindProtocol:
		return ErrProtocolViolation
	}
	return nil
}

// Error is the concrete fault type. Op names the operation that failed, Diagnostics carries
// compiler or linker output when the underlying toolchain produced any.
type Error struct {
	Kind        Kind
	Op          string
	Diagnostics string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Op
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this fault's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Initialization wraps err as a KindInitialization fault for op.
//
// Parameters:
//   - op: the operation that failed
//   - err: the underlying cause, may be nil
//
// Returns:
//   - error: the classified fault
func Initialization(op string, err error) error {
	return &Error{Kind: KindInitialization, Op: op, Err: err}
}

// Link wraps err as a KindLink fault carrying the linker diagnostics.
//
// Parameters:
//   - op: the operation that failed
//   - diagnostics: linker or validator output, may be empty
//   - err: the underlying cause, may be nil
//
// Returns:
//   - error: the classified fault
func Link(op, diagnostics string, err error) error {
	return &Error{Kind: KindLink, Op: op, Diagnostics: diagnostics, Err: err}
}

// Build wraps err as a KindBuild fault carrying the compiler diagnostics.
//
// Parameters:
//   - op: the operation that failed
//   - diagnostics: compiler output, may be empty
//   - err: the underlying cause, may be nil
//
// Returns:
//   - error: the classified fault
func Build(op, diagnostics string, err error) error {
	return &Error{Kind: KindBuild, Op: op, Diagnostics: diagnostics, Err: err}
}

// Dispatch wraps err as a KindRuntimeDispatch fault.
func Dispatch(op string, err error) error {
	return &Error{Kind: KindRuntimeDispatch, Op: op, Err: err}
}

// Protocol returns a KindProtocol fault with the given message.
func Protocol(op, msg string) error {
	return &Error{Kind: KindProtocol, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind of the first fault in err's chain, or 0 if there is none.
func KindOf(err error) Kind {
	var f *Error
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// DiagnosticsOf returns the diagnostics attached to the first fault in err's chain.
func DiagnosticsOf(err error) string {
	var f *Error
	if errors.As(err, &f) {
		return f.Diagnostics
	}
	return ""
}
