// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package testtype gates tests on environment variables so that unit tests
// and tests needing a live server can be selected independently.
package testtype

import (
	"os"
	"testing"
)

const (
	// Integration tests require a mongod running on localhost:33333 (or the
	// server named by TOOLS_TESTING_MONGOD). If your mongod uses SSL you must
	// also set SSLTestType; auth-enabled servers need AuthTestType.
	IntegrationTestType = "TOOLS_TESTING_INTEGRATION"

	// Unit tests don't require a real mongod. They may still do file I/O.
	UnitTestType = "TOOLS_TESTING_UNIT"

	// SSL tests connect to the mongod with TLS enabled.
	SSLTestType = "TOOLS_TESTING_SSL"

	// Auth tests authenticate with the credentials in
	// TOOLS_TESTING_AUTH_USERNAME and TOOLS_TESTING_AUTH_PASSWORD.
	AuthTestType = "TOOLS_TESTING_AUTH"

	// ReplSet tests require the integration server to be a replica set.
	ReplSetTestType = "TOOLS_TESTING_REPLSET"
)

// HasTestType reports whether the given test type was requested through its
// environment variable.
func HasTestType(testType string) bool {
	envVal := os.Getenv(testType)
	return envVal == "true"
}

// SkipUnlessTestType skips the test unless the test type is enabled.
func SkipUnlessTestType(t *testing.T, testType string) {
	if !HasTestType(testType) {
		t.SkipNow()
	}
}
