// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"fmt"
	"runtime"
	"time"

	"github.com/samber/lo"
	"github.com/vadyalex/mongoportal/common/options"
	"github.com/vadyalex/mongoportal/common/util"
)

var Usage = `<options> <connection-string>

Teleport the contents of one collection into another collection, possibly in
another database or on another deployment. Documents are copied into a
staging collection that replaces the destination in a single rename once the
copy is complete.

Connection strings must begin with mongodb:// or mongodb+srv://.`

// Options holds the parsed command line of a teleport.
type Options struct {
	*options.ToolOptions
	*CopyOptions
}

// CopyOptions defines the set of options for tuning the copy engine.
type CopyOptions struct {
	BatchSize          int64         `long:"batchSize" value-name:"<count>" default:"500" description:"largest number of documents read and written as one batch"`
	NumParallelBatches int           `short:"j" long:"numParallelBatches" value-name:"<count>" description:"number of batches to copy concurrently (defaults to the number of CPUs)"`
	CopyTimeout        time.Duration `long:"copyTimeout" value-name:"<duration>" default:"1h" description:"time allowed for copying every document before the teleport is abandoned"`
	QueryTimeout       time.Duration `long:"queryTimeout" value-name:"<duration>" default:"10s" description:"time allowed for reading one batch or listing the source indexes"`
	RenameRetries      int           `long:"renameRetries" value-name:"<count>" default:"2" description:"number of times a failed rename of the staging collection is retried"`
}

// Name returns a human-readable group name for copy options.
func (*CopyOptions) Name() string {
	return "copy"
}

// Validate checks the copy options and fills in the ones that default at
// runtime.
func (co *CopyOptions) Validate() error {
	if co.BatchSize <= 0 {
		return fmt.Errorf("--batchSize must be positive, got %d", co.BatchSize)
	}
	if co.NumParallelBatches < 0 {
		return fmt.Errorf("--numParallelBatches must not be negative, got %d", co.NumParallelBatches)
	}
	if co.NumParallelBatches == 0 {
		co.NumParallelBatches = runtime.NumCPU()
	}
	if co.CopyTimeout <= 0 {
		return fmt.Errorf("--copyTimeout must be positive, got %v", co.CopyTimeout)
	}
	if co.QueryTimeout <= 0 {
		return fmt.Errorf("--queryTimeout must be positive, got %v", co.QueryTimeout)
	}
	if co.RenameRetries < 0 {
		return fmt.Errorf("--renameRetries must not be negative, got %d", co.RenameRetries)
	}
	return nil
}

// ParseOptions reads the command line and returns validated options. The
// destination namespace is filled in from the source one where omitted.
func ParseOptions(rawArgs []string, versionStr, gitCommit string) (Options, error) {
	opts := options.New("mongoportal", versionStr, gitCommit, Usage, true,
		options.EnabledOptions{Auth: true, Connection: true, Namespace: true, URI: true, Destination: true})

	copyOpts := &CopyOptions{}
	opts.AddOptions(copyOpts)

	extraArgs, err := opts.ParseArgs(rawArgs)
	if err != nil {
		return Options{}, err
	}

	if len(extraArgs) > 0 {
		return Options{}, fmt.Errorf("error parsing positional arguments: " +
			"provide only one MongoDB connection string. " +
			"Connection strings must begin with mongodb:// or mongodb+srv:// schemes",
		)
	}

	parsed := Options{opts, copyOpts}
	if opts.Help || opts.Version {
		return parsed, nil
	}
	if err := parsed.validate(); err != nil {
		return Options{}, err
	}
	return parsed, nil
}

func (opts Options) validate() error {
	if opts.Namespace.DB == "" {
		return fmt.Errorf("a source database must be given with --db")
	}
	if opts.Namespace.Collection == "" {
		return fmt.Errorf("a source collection must be given with --collection")
	}

	opts.Destination.DB = lo.CoalesceOrEmpty(opts.Destination.DB, opts.Namespace.DB)
	opts.Destination.Collection = lo.CoalesceOrEmpty(opts.Destination.Collection, opts.Namespace.Collection)

	for _, database := range []string{opts.Namespace.DB, opts.Destination.DB} {
		if err := util.ValidateDBName(database); err != nil {
			return fmt.Errorf("invalid database name '%v': %v", database, err)
		}
	}
	for _, collection := range []string{opts.Namespace.Collection, opts.Destination.Collection} {
		if err := util.ValidateCollectionName(collection); err != nil {
			return fmt.Errorf("invalid collection name '%v': %v", collection, err)
		}
	}

	if !opts.Destination.HasEndpoint() && opts.SourceNamespace() == opts.DestinationNamespace() {
		return fmt.Errorf("cannot teleport '%v' onto itself; set --toDb, --toCollection or a destination endpoint",
			opts.SourceNamespace())
	}

	return opts.CopyOptions.Validate()
}

// SourceNamespace is the collection the documents are read from.
func (opts Options) SourceNamespace() options.Namespace {
	return *opts.Namespace
}

// DestinationNamespace is the collection that holds the documents once the
// teleport succeeds.
func (opts Options) DestinationNamespace() options.Namespace {
	return options.Namespace{
		DB:         lo.CoalesceOrEmpty(opts.Destination.DB, opts.Namespace.DB),
		Collection: lo.CoalesceOrEmpty(opts.Destination.Collection, opts.Namespace.Collection),
	}
}
