// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/vadyalex/mongoportal/common/idx"
	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/options"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionStore runs the collection-level operations of a teleport against
// one deployment.
type CollectionStore struct {
	provider *SessionProvider
}

// NewCollectionStore wraps a connected session provider. Closing the provider
// remains the caller's job.
func NewCollectionStore(provider *SessionProvider) *CollectionStore {
	return &CollectionStore{provider: provider}
}

func (s *CollectionStore) collection(ns options.Namespace) (*mongo.Collection, error) {
	client, err := s.provider.GetSession()
	if err != nil {
		return nil, err
	}
	return client.Database(ns.DB).Collection(ns.Collection), nil
}

// ListDatabaseNames returns the names of every database on the deployment.
func (s *CollectionStore) ListDatabaseNames(ctx context.Context) (mapset.Set[string], error) {
	client, err := s.provider.GetSession()
	if err != nil {
		return nil, err
	}
	names, err := client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrap(err, "error listing databases")
	}
	return mapset.NewSet(names...), nil
}

// ListCollectionNames returns the names of every collection in the database.
func (s *CollectionStore) ListCollectionNames(ctx context.Context, database string) (mapset.Set[string], error) {
	client, err := s.provider.GetSession()
	if err != nil {
		return nil, err
	}
	names, err := client.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrapf(err, "error listing collections of '%v'", database)
	}
	return mapset.NewSet(names...), nil
}

// Count returns the number of documents in the collection.
func (s *CollectionStore) Count(ctx context.Context, ns options.Namespace) (int64, error) {
	coll, err := s.collection(ns)
	if err != nil {
		return 0, err
	}
	n, err := (&DeferredQuery{Coll: coll}).Count(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "error counting documents in '%v'", ns)
	}
	return n, nil
}

// RangeScan reads up to limit documents starting at position offset in
// natural order. Both the server and the client abort the query once budget
// is spent.
func (s *CollectionStore) RangeScan(ctx context.Context, ns options.Namespace, offset, limit int64, budget time.Duration) ([]bson.Raw, error) {
	coll, err := s.collection(ns)
	if err != nil {
		return nil, err
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	q := &DeferredQuery{Coll: coll, Skip: offset, Limit: limit, MaxTime: budget}
	docs, err := q.All(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading [%d, %d) from '%v'", offset, offset+limit, ns)
	}
	return docs, nil
}

// BulkInsert writes the documents as one unordered bulk insert with document
// validation bypassed. Failures of individual documents are logged and do
// not fail the call.
func (s *CollectionStore) BulkInsert(ctx context.Context, ns options.Namespace, docs []bson.Raw) error {
	if len(docs) == 0 {
		return nil
	}
	coll, err := s.collection(ns)
	if err != nil {
		return err
	}

	inserter := NewUnorderedBufferedBulkInserter(coll, len(docs)).SetBypassDocumentValidation(true)
	for _, doc := range docs {
		if _, err := inserter.InsertRaw(ctx, doc); FilterBatchError(err) != nil {
			return errors.Wrapf(err, "error inserting documents into '%v'", ns)
		}
	}
	if _, err := inserter.Flush(ctx); FilterBatchError(err) != nil {
		return errors.Wrapf(err, "error inserting documents into '%v'", ns)
	}
	return nil
}

// ListIndexes returns the index specs of the collection. The server aborts
// the listing once budget is spent.
func (s *CollectionStore) ListIndexes(ctx context.Context, ns options.Namespace, budget time.Duration) ([]*idx.IndexDocument, error) {
	coll, err := s.collection(ns)
	if err != nil {
		return nil, err
	}

	listOpts := mopt.ListIndexes()
	if budget > 0 {
		listOpts.SetMaxTime(budget)
	}
	cursor, err := coll.Indexes().List(ctx, listOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "error listing indexes of '%v'", ns)
	}
	defer cursor.Close(context.Background())

	var indexes []*idx.IndexDocument
	for cursor.Next(ctx) {
		var spec bson.D
		if err := cursor.Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "error decoding index of '%v'", ns)
		}
		index, err := idx.NewIndexDocumentFromD(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid index of '%v'", ns)
		}
		indexes = append(indexes, index)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrapf(err, "error listing indexes of '%v'", ns)
	}
	return indexes, nil
}

// CreateIndexBackground asks the server to build the index on the collection
// without blocking reads and writes. The collection need not exist yet.
func (s *CollectionStore) CreateIndexBackground(ctx context.Context, ns options.Namespace, index *idx.IndexDocument) error {
	client, err := s.provider.GetSession()
	if err != nil {
		return err
	}
	cmd := bson.D{
		{"createIndexes", ns.Collection},
		{"indexes", bson.A{index.CreateSpec(true)}},
	}
	if err := client.Database(ns.DB).RunCommand(ctx, cmd).Err(); err != nil {
		return errors.Wrapf(err, "error creating index '%v' on '%v'", index.Name(), ns)
	}
	return nil
}

// RenameCollection renames from into to, which may live in another database
// of the same deployment. With dropTarget an existing collection named to is
// replaced in the same operation.
func (s *CollectionStore) RenameCollection(ctx context.Context, from, to options.Namespace, dropTarget bool) error {
	client, err := s.provider.GetSession()
	if err != nil {
		return err
	}
	cmd := bson.D{
		{"renameCollection", from.String()},
		{"to", to.String()},
		{"dropTarget", dropTarget},
	}
	if err := client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return errors.Wrapf(err, "error renaming '%v' to '%v'", from, to)
	}
	return nil
}

// Drop removes the collection. Dropping a missing collection is not an error.
func (s *CollectionStore) Drop(ctx context.Context, ns options.Namespace) error {
	coll, err := s.collection(ns)
	if err != nil {
		return err
	}
	if err := coll.Drop(ctx); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Message == ErrNsNotFound {
			return nil
		}
		return errors.Wrapf(err, "error dropping '%v'", ns)
	}
	log.Logvf(log.DebugLow, "dropped collection '%v'", ns)
	return nil
}
