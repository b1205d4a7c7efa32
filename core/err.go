package core

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

const (
	ErrCodeUnknownError    string = "UNKNOWN_ERROR"
	ErrCodeIllegalArgument string = "ILLEGAL_ARGUMENT"
	ErrCodeNotFound        string = "NOT_FOUND"
)

var (
	ErrUnknownError    *AppErr = NewErrfCode(ErrCodeUnknownError, "Unknown Error")
	ErrIllegalArgument *AppErr = NewErrfCode(ErrCodeIllegalArgument, "Illegal Argument")
	ErrNotFound        *AppErr = NewErrfCode(ErrCodeNotFound, "Record Not Found")
)

// App Error.
//
//	Use NewErrf(...), NewErrfCode(...) or WrapErrf(...) to instantiate.
type AppErr struct {
	code        string // error code.
	msg         string // error message returned to the client.
	internalMsg string // internal message that is only logged on server.
	stack       string
	err         error
}

func (e *AppErr) Code() string {
	return e.code
}

func (e *AppErr) Msg() string {
	return e.msg
}

func (e *AppErr) InternalMsg() string {
	return e.internalMsg
}

func (e *AppErr) HasCode() bool {
	return !IsBlankStr(e.code)
}

func (e *AppErr) Error() string {
	tok := make([]string, 0, 3)
	if e.msg != "" {
		tok = append(tok, e.msg)
	}
	if e.internalMsg != "" {
		tok = append(tok, e.internalMsg)
	}
	if e.err != nil {
		tok = append(tok, e.err.Error())
	}
	return strings.Join(tok, ", ")
}

func (e *AppErr) Unwrap() error {
	return e.err
}

// Implements *AppErr Is check.
//
// Returns true, if both are *AppErr and the code matches.
//
//	var e1 = ErrNotFound.WithInternalMsg(...)
//	errors.Is(e1, ErrNotFound) // true
func (e *AppErr) Is(target error) bool {
	if tme, ok := target.(*AppErr); ok && e.code != "" && e.code == tme.code {
		return true
	}
	return false
}

func (e *AppErr) WithInternalMsg(msg string, args ...any) *AppErr {
	ne := e.copyNew()
	ne.withStack()
	if len(args) > 0 {
		ne.internalMsg = fmt.Sprintf(msg, args...)
	} else {
		ne.internalMsg = msg
	}
	return ne
}

// Create new *AppErr that wraps the cause error, keeping the code and message.
//
// If cause is nil, nil is returned.
func (e *AppErr) Wrap(cause error) error {
	if cause == nil {
		return nil
	}
	n := e.copyNew()
	n.err = cause
	n.withStack()
	return n
}

func (e *AppErr) copyNew() *AppErr {
	n := new(AppErr)
	n.code = e.code
	n.msg = e.msg
	n.internalMsg = e.internalMsg
	n.stack = e.stack
	n.err = e.err
	return n
}

func (e *AppErr) withStack() *AppErr {
	e.stack = stack(4)
	return e
}

// Create new *AppErr with message.
func NewErrf(msg string, args ...any) *AppErr {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	me := &AppErr{msg: msg}
	me.withStack()
	return me
}

// Create new *AppErr with message and error code.
func NewErrfCode(code string, msg string, args ...any) *AppErr {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	me := &AppErr{msg: msg, code: code}
	me.withStack()
	return me
}

// Wrap an error to create new *AppErr with stacktrace.
//
// If err is nil, nil is returned. If err is *AppErr, err is returned directly.
func WrapErr(err error) error {
	if err == nil {
		return nil
	}
	if me, ok := err.(*AppErr); ok {
		return me
	}
	me := &AppErr{err: err}
	me.withStack()
	return me
}

// Wrap an error to create new *AppErr with message.
//
// If the wrapped err is nil, nil is returned.
func WrapErrf(err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	me := &AppErr{msg: msg, err: err}
	me.withStack()
	return me
}

// Find the outermost stacktrace carried by the error chain.
func UnwrapErrStack(err error) (string, bool) {
	var ue error = err
	for ue != nil {
		if me, ok := ue.(*AppErr); ok && me != nil && me.stack != "" {
			return me.stack, true
		}
		ue = errors.Unwrap(ue)
	}
	return "", false
}

var stackPool = sync.Pool{
	New: func() any {
		v := make([]uintptr, 50)
		return &v
	},
}

func stack(n int) string {
	pcs := stackPool.Get().(*[]uintptr)
	defer func() {
		clear(*pcs)
		stackPool.Put(pcs)
	}()

	length := runtime.Callers(n, *pcs)
	if length < 1 {
		return ""
	}
	frames := runtime.CallersFrames((*pcs)[:length])
	b := strings.Builder{}
	for {
		f, next := frames.Next()
		b.WriteString(fmt.Sprintf("\n\t%v\n\t\t%v:%v", f.Function, f.File, f.Line))
		if !next {
			break
		}
	}
	return b.String()
}
