// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

// DeferredQuery represents a positional range query over a whole collection.
// A zero Limit reads to the end of the collection.
type DeferredQuery struct {
	Coll    *mongo.Collection
	Skip    int64
	Limit   int64
	MaxTime time.Duration
}

// Count issues an EstimatedDocumentCount command; the collection metadata
// count is what the range partition is computed from.
func (q *DeferredQuery) Count(ctx context.Context) (int64, error) {
	opt := mopt.EstimatedDocumentCount()
	if q.MaxTime > 0 {
		opt.SetMaxTime(q.MaxTime)
	}
	return q.Coll.EstimatedDocumentCount(ctx, opt)
}

// Iter executes a find query and returns a cursor. The first batch holds the
// whole range when a limit is set.
func (q *DeferredQuery) Iter(ctx context.Context) (*mongo.Cursor, error) {
	opts := mopt.Find()
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
		opts.SetBatchSize(int32(min(q.Limit, math.MaxInt32)))
	}
	if q.MaxTime > 0 {
		opts.SetMaxTime(q.MaxTime)
	}
	return q.Coll.Find(ctx, bson.D{}, opts)
}

// All runs the query and returns a copy of every document it yields.
func (q *DeferredQuery) All(ctx context.Context) ([]bson.Raw, error) {
	cursor, err := q.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(context.Background())

	docs := make([]bson.Raw, 0, q.Limit)
	for cursor.Next(ctx) {
		// cursor.Current is only valid until the next call to Next
		doc := make(bson.Raw, len(cursor.Current))
		copy(doc, cursor.Current)
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
