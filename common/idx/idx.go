// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package idx describes collection indexes as listed by the server and turns
// them back into index specs for another collection.
package idx

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultIdIndexName is the name the server gives the implicit _id index.
const DefaultIdIndexName = "_id_"

// recreatableIndexOptions are the listIndexes fields that may be sent back in
// a createIndexes spec. "v" and "ns" are server-managed and are dropped.
var recreatableIndexOptions = map[string]bool{
	"2dsphereIndexVersion": true,
	"bits":                 true,
	"bucketSize":           true,
	"coarsestIndexedLevel": true,
	"collation":            true,
	"default_language":     true,
	"expireAfterSeconds":   true,
	"finestIndexedLevel":   true,
	"hidden":               true,
	"language_override":    true,
	"max":                  true,
	"min":                  true,
	"sparse":               true,
	"storageEngine":        true,
	"textIndexVersion":     true,
	"unique":               true,
	"weights":              true,
	"wildcardProjection":   true,
}

// IndexDocument holds information about a collection's index.
type IndexDocument struct {
	Options                 bson.M `bson:",inline"`
	Key                     bson.D `bson:"key"`
	PartialFilterExpression bson.D `bson:"partialFilterExpression,omitempty"`
}

// NewIndexDocumentFromD converts a bson.D index spec into an IndexDocument
func NewIndexDocumentFromD(doc bson.D) (*IndexDocument, error) {
	indexDoc := IndexDocument{Options: bson.M{}}

	for _, elem := range doc {
		switch elem.Key {
		case "key":
			val, ok := elem.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("index key could not type assert to bson.D")
			}
			indexDoc.Key = val
		case "partialFilterExpression":
			val, ok := elem.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("index partialFilterExpression could not type assert to bson.D")
			}
			indexDoc.PartialFilterExpression = val
		default:
			indexDoc.Options[elem.Key] = elem.Value
		}
	}

	return &indexDoc, nil
}

// Name returns the index name, or "" when the spec has none.
func (id *IndexDocument) Name() string {
	name, _ := id.Options["name"].(string)
	return name
}

// IsDefaultIdIndex reports whether this is the implicit {_id: 1} index that
// every collection gets on creation.
func (id *IndexDocument) IsDefaultIdIndex() bool {
	if id.Name() == DefaultIdIndexName {
		return true
	}
	if len(id.Key) != 1 || id.Key[0].Key != "_id" {
		return false
	}
	// legacy specs used any non-string value, or "", for an ascending key
	switch v := id.Key[0].Value.(type) {
	case string:
		return v == ""
	default:
		return true
	}
}

// CreateSpec builds the createIndexes spec that recreates this index on
// another collection, requesting a background build when asked to.
func (id *IndexDocument) CreateSpec(background bool) bson.D {
	spec := bson.D{{Key: "key", Value: id.Key}}
	if name := id.Name(); name != "" {
		spec = append(spec, bson.E{Key: "name", Value: name})
	}

	options := lo.Filter(lo.Keys(id.Options), func(key string, _ int) bool {
		return recreatableIndexOptions[key]
	})
	sort.Strings(options)
	for _, key := range options {
		spec = append(spec, bson.E{Key: key, Value: id.Options[key]})
	}

	if len(id.PartialFilterExpression) > 0 {
		spec = append(spec, bson.E{Key: "partialFilterExpression", Value: id.PartialFilterExpression})
	}
	if background {
		spec = append(spec, bson.E{Key: "background", Value: true})
	}
	return spec
}
