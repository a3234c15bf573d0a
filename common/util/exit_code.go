// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"errors"
)

const (
	ExitSuccess    int = 0
	ExitFailure    int = 1
	ExitBadOptions int = 3
	ExitKill       int = 4
	// ExitSwapFailed means the data was copied but could not be renamed into
	// place; the staging collection was kept for manual reconciliation.
	ExitSwapFailed int = 5
	// Go reserves exit code 2 for its own use
)

var (
	ErrTerminated = errors.New("received termination signal")
)

// SetupError is the error thrown by "New" functions used to convey what error occurred and the appropriate exit code.
type SetupError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (se SetupError) Error() string {
	return se.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (se SetupError) Unwrap() error {
	return se.Err
}

// ShortUsage returns the one-line hint printed after an option error.
func ShortUsage(tool string) string {
	return "try '" + tool + " --help' for more information"
}
