// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/vadyalex/mongoportal/common/idx"
	"github.com/vadyalex/mongoportal/common/options"
	"go.mongodb.org/mongo-driver/bson"
)

// memStore is an in-memory Store whose failures can be scripted.
type memStore struct {
	mutex       sync.Mutex
	collections map[options.Namespace][]bson.Raw
	indexes     map[options.Namespace][]*idx.IndexDocument

	// countSkew is added to every count, like stale collection metadata.
	countSkew int64
	// scanDelay stalls every range scan until it elapses or ctx is done.
	scanDelay time.Duration
	// insertHook runs before every bulk insert; an error fails the batch.
	insertHook     func(ns options.Namespace, docs []bson.Raw) error
	listIndexesErr error
	createIndexErr error
	// createIndexFailAt fails only the n-th index build, counting from 1.
	createIndexFailAt int
	// renameFailures is the number of renames that fail before one succeeds.
	renameFailures int

	renameCalls  int
	indexTargets []options.Namespace
	scans        int
	maxScans     int
}

func newMemStore() *memStore {
	return &memStore{
		collections: map[options.Namespace][]bson.Raw{},
		indexes:     map[options.Namespace][]*idx.IndexDocument{},
	}
}

// seed replaces ns with n documents shaped {_id: prefix-i, n: i}.
func (s *memStore) seed(ns options.Namespace, prefix string, n int) {
	docs := make([]bson.Raw, 0, n)
	for i := 0; i < n; i++ {
		raw, err := bson.Marshal(bson.D{{"_id", fmt.Sprintf("%s-%d", prefix, i)}, {"n", int32(i)}})
		if err != nil {
			panic(err)
		}
		docs = append(docs, raw)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.collections[ns] = docs
	s.indexes[ns] = []*idx.IndexDocument{
		{Key: bson.D{{"_id", int32(1)}}, Options: bson.M{"name": idx.DefaultIdIndexName, "v": int32(2)}},
	}
}

func (s *memStore) addIndex(ns options.Namespace, index *idx.IndexDocument) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.indexes[ns] = append(s.indexes[ns], index)
}

func (s *memStore) docs(ns options.Namespace) ([]bson.Raw, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	docs, ok := s.collections[ns]
	return docs, ok
}

func (s *memStore) ids(ns options.Namespace) mapset.Set[string] {
	docs, _ := s.docs(ns)
	return mapset.NewSet(lo.Map(docs, func(doc bson.Raw, _ int) string {
		return doc.Lookup("_id").StringValue()
	})...)
}

func (s *memStore) indexNames(ns options.Namespace) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return lo.Map(s.indexes[ns], func(index *idx.IndexDocument, _ int) string {
		return index.Name()
	})
}

// stagingCollections returns the names of leftover staging collections.
func (s *memStore) stagingCollections() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var names []string
	for ns := range s.collections {
		if IsStagingCollection(ns.Collection) {
			names = append(names, ns.Collection)
		}
	}
	return names
}

func (s *memStore) ListDatabaseNames(ctx context.Context) (mapset.Set[string], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	names := mapset.NewSet[string]()
	for ns := range s.collections {
		names.Add(ns.DB)
	}
	return names, nil
}

func (s *memStore) ListCollectionNames(ctx context.Context, database string) (mapset.Set[string], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	names := mapset.NewSet[string]()
	for ns := range s.collections {
		if ns.DB == database {
			names.Add(ns.Collection)
		}
	}
	return names, nil
}

func (s *memStore) Count(ctx context.Context, ns options.Namespace) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return int64(len(s.collections[ns])) + s.countSkew, nil
}

func (s *memStore) RangeScan(ctx context.Context, ns options.Namespace, offset, limit int64, _ time.Duration) ([]bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	s.scans++
	s.maxScans = max(s.maxScans, s.scans)
	delay := s.scanDelay
	s.mutex.Unlock()
	defer func() {
		s.mutex.Lock()
		s.scans--
		s.mutex.Unlock()
	}()

	// give concurrent leaves a chance to overlap
	if delay == 0 {
		delay = time.Millisecond
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	docs := s.collections[ns]
	low := min(offset, int64(len(docs)))
	high := min(offset+limit, int64(len(docs)))
	return append([]bson.Raw(nil), docs[low:high]...), nil
}

func (s *memStore) BulkInsert(ctx context.Context, ns options.Namespace, docs []bson.Raw) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.insertHook != nil {
		if err := s.insertHook(ns, docs); err != nil {
			return err
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.collections[ns] = append(s.collections[ns], docs...)
	return nil
}

func (s *memStore) ListIndexes(ctx context.Context, ns options.Namespace, _ time.Duration) ([]*idx.IndexDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.listIndexesErr != nil {
		return nil, s.listIndexesErr
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]*idx.IndexDocument(nil), s.indexes[ns]...), nil
}

func (s *memStore) CreateIndexBackground(ctx context.Context, ns options.Namespace, index *idx.IndexDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.indexTargets = append(s.indexTargets, ns)
	if s.createIndexErr != nil {
		return s.createIndexErr
	}
	if s.createIndexFailAt == len(s.indexTargets) {
		return fmt.Errorf("index build %d failed", s.createIndexFailAt)
	}

	if _, ok := s.collections[ns]; !ok {
		s.collections[ns] = []bson.Raw{}
		s.indexes[ns] = []*idx.IndexDocument{
			{Key: bson.D{{"_id", int32(1)}}, Options: bson.M{"name": idx.DefaultIdIndexName}},
		}
	}
	for _, existing := range s.indexes[ns] {
		if existing.Name() == index.Name() {
			return nil
		}
	}
	s.indexes[ns] = append(s.indexes[ns], index)
	return nil
}

func (s *memStore) RenameCollection(ctx context.Context, from, to options.Namespace, dropTarget bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.renameCalls++
	if s.renameFailures > 0 {
		s.renameFailures--
		return fmt.Errorf("rename of %v is not allowed right now", from)
	}

	docs, ok := s.collections[from]
	if !ok {
		return fmt.Errorf("source namespace %v does not exist", from)
	}
	if _, exists := s.collections[to]; exists && !dropTarget {
		return fmt.Errorf("target namespace %v exists", to)
	}
	s.collections[to] = docs
	s.indexes[to] = s.indexes[from]
	delete(s.collections, from)
	delete(s.indexes, from)
	return nil
}

func (s *memStore) Drop(_ context.Context, ns options.Namespace) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.collections, ns)
	delete(s.indexes, ns)
	return nil
}
