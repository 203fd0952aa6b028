package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Error is a classified failure tied to an operation and, optionally, to the
// work item it happened on.
type Error struct {
	Code ErrorCode
	Op   string
	Item string
	Err  error
}

// New creates a classified error with a plain message.
func New(code ErrorCode, op, msg string) *Error {
	return &Error{Code: code, Op: op, Err: stderrors.New(msg)}
}

// Wrap classifies err under code. A nil err yields nil.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// WithItem returns a copy of e bound to the given work item.
func (e *Error) WithItem(item string) *Error {
	c := *e
	c.Item = item
	return &c
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Item != "" {
		msg += fmt.Sprintf(" (item=%s)", e.Item)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: c}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code && t.Op == "" && t.Item == ""
}

// Coder is implemented by errors from other packages that know their class.
type Coder interface {
	ErrorCode() ErrorCode
}

// CodeOf returns the classification of err. The outermost *Error or Coder in
// the chain wins; context errors map to CodeCanceled and CodeTimeout.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		switch v := e.(type) {
		case *Error:
			return v.Code
		case Coder:
			return v.ErrorCode()
		}
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return CodeCanceled
	case stderrors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeUnknown
}

// HasCode reports whether err is classified as code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Is, As and Join re-export the standard helpers so callers need only one
// errors import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
