package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// loggerPackage is this package's import path, taken from a function in it.
var loggerPackage = func() string {
	pc, _, _, _ := runtime.Caller(0)
	return funcPackage(runtime.FuncForPC(pc).Name())
}()

// callerHook reports the first frame outside logrus and the Entry wrappers,
// so the caller field names the component that logged.
type callerHook struct{}

func (callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (callerHook) Fire(entry *logrus.Entry) error {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !loggingFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func loggingFrame(function string) bool {
	pkg := funcPackage(function)
	return pkg == loggerPackage || pkg == "github.com/sirupsen/logrus"
}

// funcPackage strips the function and receiver from a fully qualified name,
// e.g. "pairflow/logger.(*Entry).Warn" gives "pairflow/logger".
func funcPackage(function string) string {
	slash := strings.LastIndex(function, "/")
	dot := strings.Index(function[slash+1:], ".")
	if dot < 0 {
		return function
	}
	return function[:slash+1+dot]
}
