// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/vadyalex/mongoportal/common/failpoint"
	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/options"
	"github.com/vadyalex/mongoportal/common/progress"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Range is the half-open interval [Low, High) of document positions in the
// source collection.
type Range struct {
	Low  int64
	High int64
}

// Size returns the number of positions in the range.
func (r Range) Size() int64 {
	return r.High - r.Low
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Low, r.High)
}

// halve splits the range at its midpoint.
func (r Range) halve() (Range, Range) {
	mid := (r.Low + r.High) / 2
	return Range{r.Low, mid}, Range{mid, r.High}
}

// Split returns the leaves the copier processes for r, in order. A range is
// halved while it holds more than threshold positions.
func Split(r Range, threshold int64) []Range {
	threshold = max(threshold, 1)
	if r.Size() <= threshold {
		return []Range{r}
	}
	left, right := r.halve()
	return append(Split(left, threshold), Split(right, threshold)...)
}

// Copier moves a range of the source collection into the target collection.
// Ranges above BatchSize are halved and copied concurrently; each leaf is one
// read and one unordered bulk insert, run while holding a Workers slot.
type Copier struct {
	Source   Store
	SourceNS options.Namespace
	Target   Store
	TargetNS options.Namespace

	BatchSize    int64
	QueryTimeout time.Duration

	// Workers bounds the number of leaves in flight. Only leaves hold a slot.
	Workers *semaphore.Weighted

	Tracker  *progress.Tracker
	Renderer *progress.BarWriter
}

// Copy copies r and returns once every leaf under it finished. The first
// failing leaf cancels the rest of its subtree.
func (c *Copier) Copy(ctx context.Context, r Range) error {
	if r.Size() <= max(c.BatchSize, 1) {
		return c.copyLeaf(ctx, r)
	}

	left, right := r.halve()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.Copy(groupCtx, left)
	})
	group.Go(func() error {
		return c.Copy(groupCtx, right)
	})
	return group.Wait()
}

func (c *Copier) copyLeaf(ctx context.Context, r Range) error {
	if r.Size() <= 0 {
		return nil
	}

	if err := c.Workers.Acquire(ctx, 1); err != nil {
		return errors.Wrapf(err, "range %v was not started", r)
	}
	defer c.Workers.Release(1)

	docs, err := c.Source.RangeScan(ctx, c.SourceNS, r.Low, r.Size(), c.QueryTimeout)
	if err != nil {
		return errors.Wrapf(err, "error reading range %v", r)
	}
	if n := int64(len(docs)); n < r.Size() {
		log.Logvf(log.Info, "range %v of '%v' yielded %d documents instead of %d", r, c.SourceNS, n, r.Size())
	}

	if low, ok := failpoint.Get(failpoint.FailLeafWrite); ok && low == strconv.FormatInt(r.Low, 10) {
		return errors.Errorf("error writing range %v: failpoint %v is set", r, failpoint.FailLeafWrite)
	}

	if err := c.Target.BulkInsert(ctx, c.TargetNS, docs); err != nil {
		return errors.Wrapf(err, "error writing range %v", r)
	}
	log.Logvf(log.DebugHigh, "copied range %v into '%v'", r, c.TargetNS)

	if c.Tracker == nil {
		return nil
	}
	if _, err := c.Tracker.Tick(r.Size()); err != nil {
		return errors.Wrapf(err, "error counting range %v", r)
	}
	c.Renderer.Render(c.Tracker)
	return nil
}
