// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongoportal moves the contents of one collection into another
// through a staging collection that is renamed over the destination once the
// copy is complete.
package mongoportal

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/vadyalex/mongoportal/common/db"
	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/options"
	"github.com/vadyalex/mongoportal/common/progress"
	"github.com/vadyalex/mongoportal/common/util"
	"golang.org/x/sync/semaphore"
)

// MongoPortal runs a teleport of SourceNS into DestinationNS.
type MongoPortal struct {
	CopyOptions *CopyOptions

	Source        Store
	SourceNS      options.Namespace
	Destination   Store
	DestinationNS options.Namespace

	// ProgressWriter draws the live bar; nil keeps the run quiet.
	ProgressWriter *progress.BarWriter

	providers     []*db.SessionProvider
	renameBackoff time.Duration

	cancelMutex sync.Mutex
	cancel      context.CancelFunc
	interrupted atomic.Bool
}

// New connects to the source and destination endpoints. The destination
// reuses the source connection when no destination endpoint was given.
func New(opts Options) (*MongoPortal, error) {
	source, err := db.NewSessionProvider(*opts.ToolOptions)
	if err != nil {
		return nil, util.SetupError{Err: errors.Wrap(err, "error connecting to source"), Code: util.ExitFailure}
	}

	mp := &MongoPortal{
		CopyOptions:   opts.CopyOptions,
		Source:        db.NewCollectionStore(source),
		SourceNS:      opts.SourceNamespace(),
		Destination:   db.NewCollectionStore(source),
		DestinationNS: opts.DestinationNamespace(),
		providers:     []*db.SessionProvider{source},
		renameBackoff: defaultRenameBackoff,
	}

	destOpts, err := opts.DestinationOptions()
	if err != nil {
		mp.Close()
		return nil, util.SetupError{Err: err, Code: util.ExitBadOptions}
	}
	if destOpts != nil {
		destination, err := db.NewSessionProvider(*destOpts)
		if err != nil {
			mp.Close()
			return nil, util.SetupError{Err: errors.Wrap(err, "error connecting to destination"), Code: util.ExitFailure}
		}
		mp.providers = append(mp.providers, destination)
		mp.Destination = db.NewCollectionStore(destination)
	}

	if !opts.IsQuiet() {
		mp.ProgressWriter = progress.NewBarWriter(os.Stdout)
	}
	return mp, nil
}

// Close disconnects from both endpoints.
func (mp *MongoPortal) Close() {
	for _, provider := range mp.providers {
		provider.Close()
	}
	mp.providers = nil
}

// HandleInterrupt cancels a running teleport. The staging collection is
// removed as for any other failure.
func (mp *MongoPortal) HandleInterrupt() {
	mp.interrupted.Store(true)

	mp.cancelMutex.Lock()
	defer mp.cancelMutex.Unlock()
	if mp.cancel != nil {
		mp.cancel()
	}
}

func (mp *MongoPortal) setCancel(cancel context.CancelFunc) {
	mp.cancelMutex.Lock()
	defer mp.cancelMutex.Unlock()
	mp.cancel = cancel
}

// Teleport copies the source collection into a staging collection, recreates
// the source indexes on the destination and renames the staging collection
// over the destination. It returns true once the destination holds the
// copied documents. A missing or empty source returns (false, nil).
//
// On a failure before the rename the staging collection is dropped and the
// destination is left untouched. A failed rename returns a *SwapError and
// keeps the staging collection.
func (mp *MongoPortal) Teleport(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	mp.setCancel(cancel)
	defer mp.setCancel(nil)

	if mp.interrupted.Load() {
		return false, util.ErrTerminated
	}

	total, err := mp.countSource(ctx)
	if err != nil || total == 0 {
		return false, mp.abort(err)
	}
	log.Logvf(log.Always, "there are %d documents in '%v' to teleport", total, mp.SourceNS)

	destinationExists, err := mp.destinationExists(ctx)
	if err != nil {
		return false, mp.abort(err)
	}

	staging := stagingNamespace(mp.DestinationNS)
	log.Logvf(log.Always, "teleporting documents to '%v'", staging)

	if err := mp.copy(ctx, staging, total); err != nil {
		log.Logvf(log.Always, "teleporting documents failed: %v", err)
		mp.dropStaging(staging)
		return false, mp.abort(err)
	}

	indexes, err := mp.sourceIndexes(ctx)
	if err == nil && len(indexes) > 0 {
		log.Logvf(log.Always, "creating %d indexes on '%v'", len(indexes), mp.DestinationNS)
		err = mp.createIndexes(ctx, indexes)
	}
	if err != nil {
		log.Logvf(log.Always, "index creation failed: %v", err)
		mp.dropStaging(staging)
		if !destinationExists {
			// the first index build created the destination
			mp.dropCollection(mp.DestinationNS)
		}
		return false, mp.abort(errors.Wrap(err, "error replicating indexes"))
	}

	if destinationExists {
		log.Logvf(log.Always, "collection '%v' already exists and will be overwritten", mp.DestinationNS)
	}
	if err := mp.swap(ctx, staging); err != nil {
		return false, err
	}

	// the rename dropped the target along with the indexes built on it
	if err := mp.createIndexes(ctx, indexes); err != nil {
		log.Logvf(log.Always, "warning: %v on '%v' after the rename", err, mp.DestinationNS)
	}

	log.Logv(log.Always, "Done.")
	return true, nil
}

// countSource returns the number of documents to copy, or 0 when there is
// nothing to teleport.
func (mp *MongoPortal) countSource(ctx context.Context) (int64, error) {
	databases, err := mp.Source.ListDatabaseNames(ctx)
	if err != nil {
		return 0, err
	}
	if !databases.Contains(mp.SourceNS.DB) {
		log.Logvf(log.Always, "Nothing to teleport. Database '%v' does not exist", mp.SourceNS.DB)
		return 0, nil
	}

	collections, err := mp.Source.ListCollectionNames(ctx, mp.SourceNS.DB)
	if err != nil {
		return 0, err
	}
	if !collections.Contains(mp.SourceNS.Collection) {
		log.Logvf(log.Always, "Nothing to teleport. Collection '%v' does not exist in database '%v'",
			mp.SourceNS.Collection, mp.SourceNS.DB)
		return 0, nil
	}

	total, err := mp.Source.Count(ctx, mp.SourceNS)
	if err != nil {
		return 0, err
	}
	if total <= 0 {
		log.Logvf(log.Always, "Nothing to teleport. Collection '%v' is empty", mp.SourceNS)
		return 0, nil
	}
	return total, nil
}

func (mp *MongoPortal) destinationExists(ctx context.Context) (bool, error) {
	collections, err := mp.Destination.ListCollectionNames(ctx, mp.DestinationNS.DB)
	if err != nil {
		return false, err
	}
	return collections.Contains(mp.DestinationNS.Collection), nil
}

// copy runs the copier over [0, total) into staging and waits for it up to
// the copy timeout.
func (mp *MongoPortal) copy(ctx context.Context, staging options.Namespace, total int64) error {
	tracker, err := progress.Start(total)
	if err != nil {
		return err
	}

	copier := &Copier{
		Source:       mp.Source,
		SourceNS:     mp.SourceNS,
		Target:       mp.Destination,
		TargetNS:     staging,
		BatchSize:    mp.CopyOptions.BatchSize,
		QueryTimeout: mp.CopyOptions.QueryTimeout,
		Workers:      semaphore.NewWeighted(int64(max(mp.CopyOptions.NumParallelBatches, 1))),
		Tracker:      tracker,
		Renderer:     mp.ProgressWriter,
	}

	log.Logvf(log.DebugLow, "copying %d documents in %d batches of at most %d",
		total, len(Split(Range{0, total}, copier.BatchSize)), copier.BatchSize)

	copyCtx, cancel := context.WithTimeout(ctx, mp.CopyOptions.CopyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- copier.Copy(copyCtx, Range{0, total})
	}()

	select {
	case err = <-done:
	case <-copyCtx.Done():
		// leaves still writing could recreate staging after it is dropped
		if err = <-done; err != nil {
			err = errors.Errorf("copy did not finish within %v", mp.CopyOptions.CopyTimeout)
			if ctx.Err() != nil {
				err = ctx.Err()
			}
		}
	}
	mp.ProgressWriter.Finish()
	if err != nil {
		return err
	}

	log.Logv(log.Always, tracker.Status())
	if n, err := mp.Destination.Count(ctx, staging); err == nil {
		log.Logvf(log.Always, "staging collection '%v' now contains %d documents", staging, n)
	}
	return nil
}

// abort marks err as caused by an interrupt when the run was interrupted.
func (mp *MongoPortal) abort(err error) error {
	if err == nil || !mp.interrupted.Load() {
		return err
	}
	return errors.Wrap(util.ErrTerminated, err.Error())
}
