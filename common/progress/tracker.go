// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package progress tracks how much of a fixed amount of work is done and
// renders it as a textual progress bar.
package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidTotal   = errors.New("progress total must be greater than zero")
	ErrExceedsTotal   = errors.New("progress can not be larger than total")
	ErrNegativeAmount = errors.New("progress can only move forward")
)

// Tracker is a counter towards a fixed total plus a stopwatch that stops
// the moment the counter first reaches the total. It is safe for concurrent
// use.
type Tracker struct {
	total   int64
	current atomic.Int64

	now      func() time.Time
	started  time.Time
	stopOnce sync.Once
	stopped  atomic.Bool
	frozen   atomic.Int64
}

// Start returns a running Tracker for total units of work.
func Start(total int64) (*Tracker, error) {
	return startWithClock(total, time.Now)
}

func startWithClock(total int64, now func() time.Time) (*Tracker, error) {
	if total <= 0 {
		return nil, errors.Wrapf(ErrInvalidTotal, "got %d", total)
	}
	return &Tracker{
		total:   total,
		now:     now,
		started: now(),
	}, nil
}

// Tick adds amount to the counter and returns the new value. It fails,
// leaving the counter untouched, if the result would exceed the total.
func (t *Tracker) Tick(amount int64) (int64, error) {
	if amount < 0 {
		return t.current.Load(), errors.Wrapf(ErrNegativeAmount, "tick of %d", amount)
	}
	for {
		current := t.current.Load()
		next := current + amount
		if next > t.total {
			return current, errors.Wrapf(ErrExceedsTotal, "%d + %d > %d", current, amount, t.total)
		}
		if !t.current.CompareAndSwap(current, next) {
			continue
		}
		if next == t.total {
			t.stop()
		}
		return next, nil
	}
}

func (t *Tracker) stop() {
	t.stopOnce.Do(func() {
		t.frozen.Store(int64(t.now().Sub(t.started)))
		t.stopped.Store(true)
	})
}

// Current returns the amount of work done so far.
func (t *Tracker) Current() int64 {
	return t.current.Load()
}

// Total returns the amount of work the tracker was started with.
func (t *Tracker) Total() int64 {
	return t.total
}

// Done reports whether the counter has reached the total.
func (t *Tracker) Done() bool {
	return t.current.Load() == t.total
}

// Elapsed is the time since Start, frozen once the tracker is done.
func (t *Tracker) Elapsed() time.Duration {
	if t.stopped.Load() {
		return time.Duration(t.frozen.Load())
	}
	return t.now().Sub(t.started)
}

// Status formats the tracker as "current/total in N ms".
func (t *Tracker) Status() string {
	return fmt.Sprintf("%d/%d in %d ms", t.current.Load(), t.total, t.Elapsed().Milliseconds())
}

// Bar renders a DefaultBarWidth wide bar followed by "current/total".
func (t *Tracker) Bar() string {
	current := t.current.Load()
	return fmt.Sprintf("%s %d/%d", drawBar(DefaultBarWidth, current, t.total), current, t.total)
}
