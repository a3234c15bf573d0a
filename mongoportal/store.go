// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/vadyalex/mongoportal/common/db"
	"github.com/vadyalex/mongoportal/common/idx"
	"github.com/vadyalex/mongoportal/common/options"
	"go.mongodb.org/mongo-driver/bson"
)

// Store is what a teleport needs from one endpoint.
type Store interface {
	ListDatabaseNames(ctx context.Context) (mapset.Set[string], error)
	ListCollectionNames(ctx context.Context, database string) (mapset.Set[string], error)
	Count(ctx context.Context, ns options.Namespace) (int64, error)

	// RangeScan reads at most limit documents starting at offset, giving up
	// after budget.
	RangeScan(ctx context.Context, ns options.Namespace, offset, limit int64, budget time.Duration) ([]bson.Raw, error)

	// BulkInsert writes docs unordered with validation bypassed. Per-document
	// failures are tolerated; an error means the batch as a whole failed.
	BulkInsert(ctx context.Context, ns options.Namespace, docs []bson.Raw) error

	ListIndexes(ctx context.Context, ns options.Namespace, budget time.Duration) ([]*idx.IndexDocument, error)
	CreateIndexBackground(ctx context.Context, ns options.Namespace, index *idx.IndexDocument) error
	RenameCollection(ctx context.Context, from, to options.Namespace, dropTarget bool) error
	Drop(ctx context.Context, ns options.Namespace) error
}

var _ Store = (*db.CollectionStore)(nil)
