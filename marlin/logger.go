package main

import "log/slog"

// Logger sends informative messages to stdout and errors to stderr.
type Logger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func (l Logger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l Logger) Error(message string) {
	l.ErrorLog.Error(message)
}
