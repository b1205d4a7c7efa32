package core

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

const (
	callerField = "caller"
)

const (
	traceSpanIdWidth = 16
	fnWidth          = 30
	levelWidth       = 5
)

func init() {
	logrus.SetReportCaller(false) // it's set manually using Rail
	logrus.SetFormatter(CustomFormatter())
}

var (
	logBufPool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}
)

type CTFormatter struct {
}

func (c *CTFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var fn string
	if caller, ok := entry.Data[callerField].(string); ok {
		fn = caller
	}

	var traceId string
	var spanId string
	if v, ok := entry.Data[XTraceId].(string); ok {
		traceId = v
	}
	if v, ok := entry.Data[XSpanId].(string); ok {
		spanId = v
	}

	levelstr := toLevelStr(entry.Level)

	b := logBufPool.Get().(*bytes.Buffer)
	defer putLogBuf(b)

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(levelstr)
	b.WriteString(Spaces(levelWidth - len(levelstr)))
	b.WriteString(" [")
	b.WriteString(traceId)
	b.WriteString(Spaces(traceSpanIdWidth - len(traceId)))
	b.WriteByte(',')
	b.WriteString(spanId)
	b.WriteString(Spaces(traceSpanIdWidth - len(spanId)))
	b.WriteString("]  ")
	b.WriteString(fn)
	b.WriteString(Spaces(fnWidth - len(fn)))
	b.WriteString(" : ")
	b.WriteString(entry.Message)
	b.WriteByte('\n')

	// the buffer is reused, logrus writes the returned bytes before Format is called again
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out, nil
}

func putLogBuf(b *bytes.Buffer) {
	b.Reset()
	logBufPool.Put(b)
}

type NewRollingLogFileParam struct {
	Filename   string // filename
	MaxSize    int    // max file size in mb
	MaxAge     int    // max age in day
	MaxBackups int    // max number of files
}

// Create rolling file based logger
func BuildRollingLogFileWriter(p NewRollingLogFileParam) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   p.Filename,
		MaxSize:    p.MaxSize,    // megabytes
		MaxAge:     p.MaxAge,     // days
		MaxBackups: p.MaxBackups, // num of files
		LocalTime:  true,
		Compress:   false,
	}
}

// Configure logrus using props.
//
// This func looks for following props:
//
//	"logging.level"
//	"logging.rolling.file"
func ConfigureLogging() {
	SetLogLevel(GetPropStr(PropLoggingLevel))

	var out io.Writer = os.Stdout
	if f := GetPropStr(PropLoggingRollingFile); f != "" {
		out = BuildRollingLogFileWriter(NewRollingLogFileParam{
			Filename:   f,
			MaxSize:    GetPropInt(PropLoggingRollingFileMaxSize),
			MaxAge:     GetPropInt(PropLoggingRollingFileMaxAge),
			MaxBackups: GetPropInt(PropLoggingRollingFileMaxBackups),
		})
		if !GetPropBool(PropProdMode) {
			out = io.MultiWriter(os.Stdout, out)
		}
	}
	logrus.SetOutput(out)
}

func toLevelStr(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel:
		return "TRACE"
	case logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel:
		return "ERROR"
	case logrus.FatalLevel:
		return "FATAL"
	case logrus.PanicLevel:
		return "PANIC"
	}
	return "UNKNOWN"
}

// Get custom formatter logrus
func CustomFormatter() logrus.Formatter {
	return &CTFormatter{}
}

// Check whether current log level is DEBUG
func IsDebugLevel() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

// Parse log level
func ParseLogLevel(logLevel string) (logrus.Level, bool) {
	switch strings.ToUpper(logLevel) {
	case "INFO":
		return logrus.InfoLevel, true
	case "DEBUG":
		return logrus.DebugLevel, true
	case "WARN":
		return logrus.WarnLevel, true
	case "ERROR":
		return logrus.ErrorLevel, true
	case "TRACE":
		return logrus.TraceLevel, true
	case "FATAL":
		return logrus.FatalLevel, true
	case "PANIC":
		return logrus.PanicLevel, true
	}
	return logrus.InfoLevel, false
}

func SetLogLevel(level string) {
	ll, ok := ParseLogLevel(level)
	if !ok {
		return
	}
	logrus.SetLevel(ll)
}

func Debugf(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logrus.WithField(callerField, getCallerFn()).Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	logrus.WithField(callerField, getCallerFn()).Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.WarnLevel) {
		return
	}
	logrus.WithField(callerField, getCallerFn()).Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.ErrorLevel) {
		return
	}
	logrus.WithField(callerField, getCallerFn()).Error(appendErrStack(format, args...))
}

func Debug(args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logrus.WithField(callerField, getCallerFn()).Debug(args...)
}

func Info(args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	logrus.WithField(callerField, getCallerFn()).Info(args...)
}

// reduce alloc, logger calls getCallerFn very frequently.
var callerUintptrPool = sync.Pool{
	New: func() any {
		p := make([]uintptr, 4)
		return &p
	},
}

func getCallerFn() string {
	return getCallerFnDepth(4)
}

func getCallerFnDepth(skip int) string {
	pcs := callerUintptrPool.Get().(*[]uintptr)
	defer func() {
		clear(*pcs)
		callerUintptrPool.Put(pcs)
	}()

	depth := runtime.Callers(skip, *pcs)
	if depth < 1 {
		return ""
	}
	f, _ := runtime.CallersFrames((*pcs)[:depth]).Next()
	return shortFnName(f.Function)
}

func shortFnName(fn string) string {
	j := strings.LastIndexByte(fn, '/')
	if j < 0 {
		return fn
	}
	return fn[j+1:]
}
