/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package logger wraps logrus with the leveled, package-global convenience
// functions the rest of this module calls for ambient diagnostics. Nothing
// here is on the hot path: the reactor loop never logs per-event, only
// lifecycle transitions (listen, shutdown, worker respawn, protocol errors).
package logger

import (
	"github.com/sirupsen/logrus"
)

// Level mirrors logrus.Level but gives every severity a Logf/LogErrorCtxf pair so
// call sites read as "InfoLevel.Logf(...)" rather than threading a *Logger.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	NilLevel
)

func (l Level) String() string {
	switch l {
	case PanicLevel:
		return "panic"
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warning"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case NilLevel:
		return ""
	}
	return "unknown"
}

func (l Level) logrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// Logf emits a formatted message at this level through the package logger.
func (l Level) Logf(format string, args ...interface{}) {
	if l == NilLevel {
		return
	}
	std.WithField("level", l.String()).Logf(l.logrus(), format, args...)
}

// LogErrorCtxf logs err alongside a formatted context message, dropping the
// call entirely when err is nil so guard-free call sites stay terse.
func (l Level) LogErrorCtxf(ctx Level, format string, err error, args ...interface{}) {
	if err == nil {
		return
	}
	_ = ctx
	std.WithField("level", l.String()).WithError(err).Logf(l.logrus(), format, args...)
}
