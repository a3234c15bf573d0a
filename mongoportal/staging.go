// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/options"
)

// StagingPrefix starts the name of every staging collection.
const StagingPrefix = "mngtlprt"

const stagingDropTimeout = 30 * time.Second

// stagingNamespace returns a fresh collection name next to dst.
func stagingNamespace(dst options.Namespace) options.Namespace {
	return options.Namespace{
		DB:         dst.DB,
		Collection: StagingPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

// IsStagingCollection reports whether name looks like a staging collection,
// e.g. one retained after a failed swap.
func IsStagingCollection(name string) bool {
	suffix, ok := strings.CutPrefix(name, StagingPrefix)
	if !ok || len(suffix) != 32 {
		return false
	}
	return strings.Trim(suffix, "0123456789abcdef") == ""
}

// dropStaging removes the staging collection. It runs on its own context so
// that it still happens after the run was cancelled.
func (mp *MongoPortal) dropStaging(staging options.Namespace) {
	log.Logvf(log.Always, "removing staging collection '%v'", staging)
	mp.dropCollection(staging)
}

func (mp *MongoPortal) dropCollection(ns options.Namespace) {
	ctx, cancel := context.WithTimeout(context.Background(), stagingDropTimeout)
	defer cancel()
	if err := mp.Destination.Drop(ctx, ns); err != nil {
		log.Logvf(log.Always, "failed to remove collection '%v': %v", ns, err)
		return
	}
	log.Logvf(log.Info, "removed collection '%v'", ns)
}
