// The MIT License (MIT)
//
// Copyright (c) 2013-2016 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// The oryx logger package provides connection-oriented log service.
//		logger.Info.Println(Context, ...)
//		logger.Trace.Println(Context, ...)
//		logger.Warn.Println(Context, ...)
//		logger.Error.Println(Context, ...)
// @remark the Context is optional thus can be nil.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// the context for current goroutine.
type Context interface {
	// get current goroutine cid.
	Cid() int
}

// the LOG+ which provides connection-based log, backed by zerolog.
type loggerPlus struct {
	level zerolog.Level
}

func newLoggerPlus(level zerolog.Level) Logger {
	return &loggerPlus{level: level}
}

func (v *loggerPlus) event(ctx Context) *zerolog.Event {
	mu.RLock()
	ev := base.WithLevel(v.level)
	mu.RUnlock()

	if ctx == nil {
		return ev.Int("pid", os.Getpid())
	}
	return ev.Int("pid", os.Getpid()).Int("cid", ctx.Cid())
}

func (v *loggerPlus) Println(ctx Context, a ...interface{}) {
	v.event(ctx).Msg(fmt.Sprint(a...))
}

func (v *loggerPlus) Printf(ctx Context, format string, a ...interface{}) {
	v.event(ctx).Msg(fmt.Sprintf(format, a...))
}

// Info, the verbose info level, very detail log, the lowest level, written at zerolog debug level to the shared sink.
var Info Logger

// Alias for Info level println.
func I(ctx Context, a ...interface{}) {
	Info.Println(ctx, a...)
}

// Alias for Info level formatted println.
func If(ctx Context, format string, a ...interface{}) {
	Info.Printf(ctx, format, a...)
}

// Trace, the trace level, something important, the default log level, to stdout.
var Trace Logger

// Alias for Trace level println.
func T(ctx Context, a ...interface{}) {
	Trace.Println(ctx, a...)
}

// Alias for Trace level formatted println.
func Tf(ctx Context, format string, a ...interface{}) {
	Trace.Printf(ctx, format, a...)
}

// Warn, the warning level, dangerous information, to the same sink as the other levels.
var Warn Logger

// Alias for Warn level println.
func W(ctx Context, a ...interface{}) {
	Warn.Println(ctx, a...)
}

// Alias for Warn level formatted println.
func Wf(ctx Context, format string, a ...interface{}) {
	Warn.Printf(ctx, format, a...)
}

// Error, the error level, fatal error things, to the same sink as the other levels.
var Error Logger

// Alias for Error level println.
func E(ctx Context, a ...interface{}) {
	Error.Println(ctx, a...)
}

// Alias for Error level formatted println.
func Ef(ctx Context, format string, a ...interface{}) {
	Error.Printf(ctx, format, a...)
}

// The logger for oryx.
type Logger interface {
	// Println for logger plus,
	// @param ctx the connection-oriented context, or nil to ignore.
	Println(ctx Context, a ...interface{})
	// Printf is the formatted variant of Println.
	Printf(ctx Context, format string, a ...interface{})
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

func init() {
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()

	Info = newLoggerPlus(zerolog.DebugLevel)
	Trace = newLoggerPlus(zerolog.InfoLevel)
	Warn = newLoggerPlus(zerolog.WarnLevel)
	Error = newLoggerPlus(zerolog.ErrorLevel)
}

// Switch the underlayer io.
// @remark user must close previous io for logger never close it.
func Switch(w io.Writer) {
	mu.Lock()
	base = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()

	if c, ok := w.(io.Closer); ok {
		previousIo = c
	}
}

// The previous underlayer io for logger.
var previousIo io.Closer

// The interface io.Closer
// Cleanup the logger, discard any log util switch to fresh writer.
func Close() (err error) {
	mu.Lock()
	base = zerolog.New(io.Discard).With().Timestamp().Logger()
	mu.Unlock()

	if previousIo != nil {
		err = previousIo.Close()
		previousIo = nil
	}

	return
}
