package core

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const (
	XTraceId = "X-B3-TraceId"
	XSpanId  = "X-B3-SpanId"
)

var (
	// keys of values that are propagated across process boundaries, e.g., through AMQP message headers.
	propagationKeys = []string{XTraceId}
)

// Rail, an object that carries trace infromation along with the execution.
type Rail struct {
	ctx context.Context
}

func (r Rail) ErrorIf(err error, op string, args ...any) {
	if err != nil {
		r.Errorf(fmt.Sprintf("%v - %v, %v", getCallerFn(), op, err), args...)
	}
}

func (r Rail) WarnIf(err error, op string, args ...any) {
	if err != nil {
		r.Warnf(fmt.Sprintf("%v - %v, %v", getCallerFn(), op, err), args...)
	}
}

func (r Rail) Context() context.Context {
	return r.ctx
}

func (r Rail) CtxValStr(key string) string {
	if s, ok := GetCtxStr(r.ctx, key); ok {
		return s
	}
	return ""
}

func (r Rail) TraceId() string {
	return r.CtxValStr(XTraceId)
}

func (r Rail) fields() logrus.Fields {
	return logrus.Fields{XSpanId: r.ctx.Value(XSpanId), XTraceId: r.ctx.Value(XTraceId), callerField: getCallerFnDepth(4)}
}

func (r Rail) Debugf(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logrus.WithFields(r.fields()).Debugf(format, args...)
}

func (r Rail) Infof(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	logrus.WithFields(r.fields()).Infof(format, args...)
}

func (r Rail) Warnf(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.WarnLevel) {
		return
	}
	logrus.WithFields(r.fields()).Warn(appendErrStack(format, args...))
}

func (r Rail) Errorf(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.ErrorLevel) {
		return
	}
	logrus.WithFields(r.fields()).Error(appendErrStack(format, args...))
}

func (r Rail) Fatalf(format string, args ...interface{}) {
	logrus.WithFields(r.fields()).Fatalf(format, args...)
}

func (r Rail) Debug(args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logrus.WithFields(r.fields()).Debug(args...)
}

func (r Rail) Info(args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	logrus.WithFields(r.fields()).Info(args...)
}

func (r Rail) Warn(args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.WarnLevel) {
		return
	}
	logrus.WithFields(r.fields()).Warn(args...)
}

func (r Rail) Error(args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.ErrorLevel) {
		return
	}
	if len(args) == 1 {
		if err, ok := args[0].(error); ok && err != nil {
			logrus.WithFields(r.fields()).Error(appendErrStack("%v", err))
			return
		}
	}
	logrus.WithFields(r.fields()).Error(args...)
}

// the last error in args carries the stacktrace, if any.
func appendErrStack(format string, args ...any) string {
	if format != "" && len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	for i := len(args) - 1; i > -1; i-- {
		if er, ok := args[i].(error); ok {
			if st, withStack := UnwrapErrStack(er); withStack {
				format += st
			}
			break
		}
	}
	return format
}

func (r Rail) WithCtxVal(key string, val any) Rail {
	ctx := context.WithValue(r.ctx, key, val) //lint:ignore SA1029 keys must be exposed for user to use
	return NewRail(ctx)
}

// Create a new Rail with a new SpanId and a new Context
func (r Rail) NextSpan() Rail {
	prev := r.ctx
	r.ctx = context.Background() // avoid using the cancelled context in a new goroutine

	for _, k := range propagationKeys {
		if v := prev.Value(k); v != nil {
			r.ctx = context.WithValue(r.ctx, k, v) //lint:ignore SA1029 keys must be exposed for user to use
		}
	}
	return r.WithCtxVal(XSpanId, NewSpanId())
}

// Create empty Rail.
func EmptyRail() Rail {
	return NewRail(context.Background())
}

// Iterate keys that should be propagated to downstream services.
func UsePropagationKeys(f func(key string)) {
	for _, k := range propagationKeys {
		f(k)
	}
}

// Create new TraceId.
func NewTraceId() string {
	t := [8]byte{}
	binary.NativeEndian.PutUint64(t[:], rand.Uint64())
	return hex.EncodeToString(t[:])
}

// Create new SpanId.
func NewSpanId() string {
	s := [8]byte{}
	binary.NativeEndian.PutUint64(s[:], rand.Uint64())
	return hex.EncodeToString(s[:])
}

// Create new Rail from context.
func NewRail(ctx context.Context) Rail {
	if ctx.Value(XSpanId) == nil {
		ctx = context.WithValue(ctx, XSpanId, NewSpanId()) //lint:ignore SA1029 keys must be exposed for user to use
	}
	if ctx.Value(XTraceId) == nil {
		ctx = context.WithValue(ctx, XTraceId, NewTraceId()) //lint:ignore SA1029 keys must be exposed for user to use
	}
	return Rail{ctx: ctx}
}

// Get value from context as a string
func GetCtxStr(ctx context.Context, key string) (string, bool) {
	v := ctx.Value(key)
	if v == nil {
		return "", false
	}
	return cast.ToString(v), true
}
