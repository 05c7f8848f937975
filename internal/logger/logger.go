package logger

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	WarnLogger  *log.Logger

	debug atomic.Bool
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// SetDebug включает DEBUG-вывод (environment=development).
func SetDebug(on bool) {
	debug.Store(on)
}

func Info(format string, v ...interface{}) {
	_ = InfoLogger.Output(2, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	_ = ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if debug.Load() {
		_ = DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	_ = WarnLogger.Output(2, fmt.Sprintf(format, v...))
}

// WithRequest добавляет request id к сообщению.
func WithRequest(requestID, format string, v ...interface{}) string {
	if requestID == "" {
		return fmt.Sprintf(format, v...)
	}
	return fmt.Sprintf("[%s] %s", requestID, fmt.Sprintf(format, v...))
}
