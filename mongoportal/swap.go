// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/vadyalex/mongoportal/common/failpoint"
	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/options"
)

const defaultRenameBackoff = 500 * time.Millisecond

// SwapError is returned when every document was copied but the staging
// collection could not be renamed into place. The staging collection is
// kept so its contents can be reconciled by hand.
type SwapError struct {
	Staging     options.Namespace
	Destination options.Namespace
	Err         error
}

func (se *SwapError) Error() string {
	return fmt.Sprintf("swap failed, staging collection retained at %v: %v", se.Staging, se.Err)
}

func (se *SwapError) Unwrap() error {
	return se.Err
}

// swap renames staging over the destination collection, retrying with a
// linear back-off.
func (mp *MongoPortal) swap(ctx context.Context, staging options.Namespace) error {
	log.Logvf(log.Always, "renaming staging collection '%v' to '%v'", staging, mp.DestinationNS)

	var err error
	for attempt := 0; attempt <= mp.CopyOptions.RenameRetries; attempt++ {
		if attempt > 0 {
			log.Logvf(log.Always, "retrying rename of '%v' (%d of %d)", staging, attempt, mp.CopyOptions.RenameRetries)
			select {
			case <-ctx.Done():
				return &SwapError{Staging: staging, Destination: mp.DestinationNS, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * mp.renameBackoff):
			}
		}

		if err = mp.rename(ctx, staging); err == nil {
			return nil
		}
		log.Logvf(log.Always, "rename of '%v' to '%v' failed: %v", staging, mp.DestinationNS, err)
	}
	return &SwapError{Staging: staging, Destination: mp.DestinationNS, Err: err}
}

func (mp *MongoPortal) rename(ctx context.Context, staging options.Namespace) error {
	if failpoint.Enabled(failpoint.FailRename) {
		return errors.Errorf("failpoint %v is set", failpoint.FailRename)
	}
	return mp.Destination.RenameCollection(ctx, staging, mp.DestinationNS, true)
}
