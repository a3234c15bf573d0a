// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package progress

import (
	"io"
	"strings"
	"sync"
)

const (
	DefaultBarWidth = 90

	BarLeft    = "["
	BarRight   = "]"
	BarFilling = "="
	BarMarker  = ">"
	BarEmpty   = " "
)

// drawBar renders width columns between the brackets. The number of filled
// sections is width*current/total; the last filled section is drawn as the
// marker, and an empty bar still shows the marker in the first column.
func drawBar(width int, current, total int64) string {
	sections := 0
	if total > 0 && current > 0 {
		sections = int(int64(width) * min(current, total) / total)
	}

	var b strings.Builder
	b.Grow(width + len(BarLeft) + len(BarRight))
	b.WriteString(BarLeft)
	if sections > 1 {
		b.WriteString(strings.Repeat(BarFilling, sections-1))
	}
	b.WriteString(BarMarker)
	if sections == 0 {
		b.WriteString(strings.Repeat(BarEmpty, width-1))
	} else {
		b.WriteString(strings.Repeat(BarEmpty, width-sections))
	}
	b.WriteString(BarRight)
	return b.String()
}

// BarWriter redraws a tracker's bar in place on a writer. Renders from
// concurrent goroutines are serialised and read the counter under the lock,
// so the output never moves backwards. A nil *BarWriter renders nothing.
type BarWriter struct {
	mutex  sync.Mutex
	writer io.Writer
}

// NewBarWriter returns a BarWriter drawing on w.
func NewBarWriter(w io.Writer) *BarWriter {
	return &BarWriter{writer: w}
}

// Render draws the current state of t followed by a carriage return.
func (bw *BarWriter) Render(t *Tracker) {
	if bw == nil || t == nil {
		return
	}
	bw.mutex.Lock()
	defer bw.mutex.Unlock()
	//nolint:errcheck
	io.WriteString(bw.writer, t.Bar()+"\r")
}

// Finish moves the cursor past the last rendered bar.
func (bw *BarWriter) Finish() {
	if bw == nil {
		return
	}
	bw.mutex.Lock()
	defer bw.mutex.Unlock()
	//nolint:errcheck
	io.WriteString(bw.writer, "\n")
}
