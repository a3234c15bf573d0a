// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package log provides a utility to log timestamped messages to an io.Writer.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Tool Logger verbosity constants.
const (
	Always = iota
	Info
	DebugLow
	DebugHigh
)

const (
	ToolTimeFormat = "2006-01-02T15:04:05.000-0700"
)

// VerbosityLevel is implemented by anything that can report how chatty the
// logger should be. options.Verbosity satisfies it.
type VerbosityLevel interface {
	Level() int
	IsQuiet() bool
}

// ToolLogger writes timestamped lines whose verbosity does not exceed the
// configured level.
type ToolLogger struct {
	mutex      *sync.Mutex
	writer     io.Writer
	format     string
	verbosity  int
	timeSource func() time.Time
}

func (tl *ToolLogger) SetVerbosity(verbosity VerbosityLevel) {
	if verbosity == nil {
		tl.verbosity = 0
		return
	}
	if verbosity.IsQuiet() {
		tl.verbosity = -1
	} else {
		tl.verbosity = verbosity.Level()
	}
}

func (tl *ToolLogger) SetWriter(writer io.Writer) {
	tl.writer = writer
}

func (tl *ToolLogger) SetDateFormat(dateFormat string) {
	tl.format = dateFormat
}

func (tl *ToolLogger) Logvf(minVerb int, format string, a ...interface{}) {
	if minVerb < 0 {
		panic("cannot set a minimum log verbosity that is less than 0")
	}

	if minVerb <= tl.verbosity {
		tl.mutex.Lock()
		defer tl.mutex.Unlock()
		tl.log(fmt.Sprintf(format, a...))
	}
}

func (tl *ToolLogger) Logv(minVerb int, msg string) {
	if minVerb < 0 {
		panic("cannot set a minimum log verbosity that is less than 0")
	}

	if minVerb <= tl.verbosity {
		tl.mutex.Lock()
		defer tl.mutex.Unlock()
		tl.log(msg)
	}
}

func (tl *ToolLogger) log(msg string) {
	fmt.Fprintf(tl.writer, "%v\t%v\n", tl.timeSource().Format(tl.format), strings.TrimRight(msg, "\n"))
}

// NewToolLogger returns a logger writing to stderr at the given verbosity.
func NewToolLogger(verbosity VerbosityLevel) *ToolLogger {
	tl := &ToolLogger{
		mutex:      &sync.Mutex{},
		writer:     os.Stderr,
		format:     ToolTimeFormat,
		timeSource: time.Now,
	}
	tl.SetVerbosity(verbosity)
	return tl
}

// toolLogWriter adapts a ToolLogger to io.Writer at a fixed verbosity.
type toolLogWriter struct {
	logger       *ToolLogger
	minVerbosity int
}

func (tlw *toolLogWriter) Write(message []byte) (int, error) {
	tlw.logger.Logv(tlw.minVerbosity, string(message))
	return len(message), nil
}

// Writer returns an io.Writer that logs every write at minVerb.
func (tl *ToolLogger) Writer(minVerb int) io.Writer {
	return &toolLogWriter{
		logger:       tl,
		minVerbosity: minVerb,
	}
}

// IsInVerbosity reports whether a message at minVerb would be written.
func (tl *ToolLogger) IsInVerbosity(minVerb int) bool {
	return minVerb <= tl.verbosity
}

//// Log Writer Interface

var globalToolLogger *ToolLogger

func init() {
	if globalToolLogger == nil {
		// initialize tool logger with verbosity level = 0
		globalToolLogger = NewToolLogger(nil)
	}
}

// IsInVerbosity reports whether the global logger would write at minVerb.
func IsInVerbosity(minVerb int) bool {
	return globalToolLogger.IsInVerbosity(minVerb)
}

func Logvf(minVerb int, format string, a ...interface{}) {
	globalToolLogger.Logvf(minVerb, format, a...)
}

func Logv(minVerb int, msg string) {
	globalToolLogger.Logv(minVerb, msg)
}

func SetVerbosity(verbosity VerbosityLevel) {
	globalToolLogger.SetVerbosity(verbosity)
}

func SetWriter(writer io.Writer) {
	globalToolLogger.SetWriter(writer)
}

func SetDateFormat(dateFormat string) {
	globalToolLogger.SetDateFormat(dateFormat)
}

func Writer(minVerb int) io.Writer {
	return globalToolLogger.Writer(minVerb)
}
