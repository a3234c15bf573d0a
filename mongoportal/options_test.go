// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongoportal

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadyalex/mongoportal/common/options"
	"github.com/vadyalex/mongoportal/common/testtype"
)

func TestParseOptionsDefaults(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	opts, err := ParseOptions([]string{"--db", "shop", "--collection", "orders", "--toDb", "archive"}, "", "")
	require.NoError(t, err)

	assert.Equal(t, int64(500), opts.BatchSize)
	assert.Equal(t, runtime.NumCPU(), opts.NumParallelBatches)
	assert.Equal(t, time.Hour, opts.CopyTimeout)
	assert.Equal(t, 10*time.Second, opts.QueryTimeout)
	assert.Equal(t, 2, opts.RenameRetries)

	assert.Equal(t, options.Namespace{DB: "shop", Collection: "orders"}, opts.SourceNamespace())
	assert.Equal(t, options.Namespace{DB: "archive", Collection: "orders"}, opts.DestinationNamespace())
}

func TestParseOptionsCopyFlags(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	opts, err := ParseOptions([]string{
		"-d", "shop", "-c", "orders", "--toCollection", "orders_v2",
		"--batchSize", "250",
		"-j", "3",
		"--copyTimeout", "90m",
		"--queryTimeout", "30s",
		"--renameRetries", "0",
	}, "", "")
	require.NoError(t, err)

	assert.Equal(t, int64(250), opts.BatchSize)
	assert.Equal(t, 3, opts.NumParallelBatches)
	assert.Equal(t, 90*time.Minute, opts.CopyTimeout)
	assert.Equal(t, 30*time.Second, opts.QueryTimeout)
	assert.Equal(t, 0, opts.RenameRetries)
	assert.Equal(t, options.Namespace{DB: "shop", Collection: "orders_v2"}, opts.DestinationNamespace())
}

func TestParseOptionsRejects(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	cases := map[string][]string{
		"missing database":   {"--collection", "orders", "--toDb", "archive"},
		"missing collection": {"--db", "shop", "--toDb", "archive"},
		"same namespace":     {"--db", "shop", "--collection", "orders"},
		"same namespace spelled out": {
			"--db", "shop", "--collection", "orders", "--toDb", "shop", "--toCollection", "orders",
		},
		"invalid destination database": {"--db", "shop", "--collection", "orders", "--toDb", "ar/chive"},
		"invalid collection":           {"--db", "shop", "--collection", "or$ders", "--toDb", "archive"},
		"zero batch size":              {"-d", "shop", "-c", "orders", "--toDb", "a", "--batchSize", "0"},
		"negative parallelism":         {"-d", "shop", "-c", "orders", "--toDb", "a", "-j", "-1"},
		"zero copy timeout":            {"-d", "shop", "-c", "orders", "--toDb", "a", "--copyTimeout", "0s"},
		"negative rename retries":      {"-d", "shop", "-c", "orders", "--toDb", "a", "--renameRetries", "-1"},
		"unparseable duration":         {"-d", "shop", "-c", "orders", "--toDb", "a", "--queryTimeout", "soon"},
		"extra positional argument": {
			"-d", "shop", "-c", "orders", "--toDb", "a", "mongodb://localhost", "mongodb://elsewhere",
		},
		"both destination host and uri": {
			"-d", "shop", "-c", "orders", "--toHost", "elsewhere", "--toUri", "mongodb://elsewhere",
		},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			opts, err := ParseOptions(args, "", "")
			if err == nil {
				_, err = opts.DestinationOptions()
			}
			assert.Error(t, err)
		})
	}
}

func TestParseOptionsDestinationEndpoint(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	t.Run("another host may keep the namespace", func(t *testing.T) {
		opts, err := ParseOptions([]string{
			"--host", "localhost:27017", "-d", "shop", "-c", "orders", "--toHost", "replica.example.net:27018",
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, opts.SourceNamespace(), opts.DestinationNamespace())

		dest, err := opts.DestinationOptions()
		require.NoError(t, err)
		require.NotNil(t, dest)
		assert.Equal(t, []string{"replica.example.net:27018"}, dest.ConnString.Hosts)
	})

	t.Run("no destination endpoint reuses the source", func(t *testing.T) {
		opts, err := ParseOptions([]string{"-d", "shop", "-c", "orders", "--toDb", "archive"}, "", "")
		require.NoError(t, err)

		dest, err := opts.DestinationOptions()
		require.NoError(t, err)
		assert.Nil(t, dest)
	})

	t.Run("the source may be given as a positional uri", func(t *testing.T) {
		opts, err := ParseOptions([]string{
			"mongodb://localhost:27017/", "-d", "shop", "-c", "orders", "--toUri", "mongodb://localhost:27018/",
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, "mongodb://localhost:27017/", opts.URI.ConnectionString)
		assert.Equal(t, "mongodb://localhost:27018/", opts.Destination.ConnectionString)
	})
}

func TestParseOptionsHelp(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	// help skips namespace validation
	opts, err := ParseOptions([]string{"--help"}, "", "")
	require.NoError(t, err)
	assert.True(t, opts.Help)
}
