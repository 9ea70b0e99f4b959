package utils

import (
	"io"
	"log"
	"os"
)

type Logger struct {
	debug       bool
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	fatalLogger *log.Logger
}

// NewLogger writes info and debug lines to stdout and the rest to stderr. Any
// extra writers (e.g. a log file) receive every line.
func NewLogger(debug bool, extra ...io.Writer) *Logger {
	out := io.MultiWriter(append([]io.Writer{os.Stdout}, extra...)...)
	errOut := io.MultiWriter(append([]io.Writer{os.Stderr}, extra...)...)
	flags := log.Ldate | log.Ltime | log.Lshortfile

	return &Logger{
		debug:       debug,
		infoLogger:  log.New(out, "INFO: ", flags),
		warnLogger:  log.New(errOut, "WARN: ", flags),
		errorLogger: log.New(errOut, "ERROR: ", flags),
		debugLogger: log.New(out, "DEBUG: ", flags),
		fatalLogger: log.New(errOut, "FATAL: ", flags),
	}
}

// NewDiscardLogger is used by tests.
func NewDiscardLogger() *Logger {
	l := log.New(io.Discard, "", 0)
	return &Logger{infoLogger: l, warnLogger: l, errorLogger: l, debugLogger: l, fatalLogger: l}
}

func (l *Logger) Info(v ...interface{}) {
	l.infoLogger.Println(v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.warnLogger.Println(v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.errorLogger.Println(v...)
}

func (l *Logger) Debug(v ...interface{}) {
	if l.debug {
		l.debugLogger.Println(v...)
	}
}

func (l *Logger) Fatal(v ...interface{}) {
	l.fatalLogger.Fatalln(v...)
}
