// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vadyalex/mongoportal/common/idx"
	"github.com/vadyalex/mongoportal/common/log"
)

// sourceIndexes lists the indexes of the source collection that have to be
// recreated; the implicit _id index and specs without a key are left out.
func (mp *MongoPortal) sourceIndexes(ctx context.Context) ([]*idx.IndexDocument, error) {
	indexes, err := mp.Source.ListIndexes(ctx, mp.SourceNS, mp.CopyOptions.QueryTimeout)
	if err != nil {
		return nil, err
	}
	return lo.Filter(indexes, func(index *idx.IndexDocument, _ int) bool {
		return len(index.Key) > 0 && !index.IsDefaultIdIndex()
	}), nil
}

// createIndexes requests a background build of every index on the
// destination collection.
func (mp *MongoPortal) createIndexes(ctx context.Context, indexes []*idx.IndexDocument) error {
	for _, index := range indexes {
		log.Logvf(log.Info, "creating index '%v' %v on '%v' in background", index.Name(), index.Key, mp.DestinationNS)
		if err := mp.Destination.CreateIndexBackground(ctx, mp.DestinationNS, index); err != nil {
			return errors.Wrapf(err, "index '%v' could not be created", index.Name())
		}
	}
	return nil
}
