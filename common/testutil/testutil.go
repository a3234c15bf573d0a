// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package testutil implements functions for filtering and configuring tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vadyalex/mongoportal/common/db"
	"github.com/vadyalex/mongoportal/common/options"
	"github.com/vadyalex/mongoportal/common/testtype"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

var (
	CreatedUserNameEnv     = "TOOLS_TESTING_AUTH_USERNAME"
	CreatedUserPasswordEnv = "TOOLS_TESTING_AUTH_PASSWORD"
)

const uriEnvVar = "TOOLS_TESTING_MONGOD"

// GetAuthOptions returns the credentials of the test user when auth testing
// is enabled.
func GetAuthOptions() options.Auth {
	if testtype.HasTestType(testtype.AuthTestType) {
		return options.Auth{
			Username: os.Getenv(CreatedUserNameEnv),
			Password: os.Getenv(CreatedUserPasswordEnv),
			Source:   "admin",
		}
	}

	return options.Auth{}
}

func GetAuthArgs() []string {
	authOpts := GetAuthOptions()
	if authOpts.IsSet() {
		return []string{
			"--username", authOpts.Username,
			"--password", authOpts.Password,
			"--authenticationDatabase", authOpts.Source,
		}
	}
	return nil
}

// GetSSLOptions enables tls without certificate checks when ssl testing is
// enabled.
func GetSSLOptions() options.SSL {
	if testtype.HasTestType(testtype.SSLTestType) {
		return options.SSL{
			UseSSL:      true,
			TLSInsecure: true,
		}
	}

	return options.SSL{}
}

func GetSSLArgs() []string {
	if testtype.HasTestType(testtype.SSLTestType) {
		return []string{"--ssl", "--tlsInsecure"}
	}
	return nil
}

// GetBareSession returns a client from the environment or from a default
// host and port.
func GetBareSession() (*mongo.Client, error) {
	sessionProvider, _, err := GetBareSessionProvider()
	if err != nil {
		return nil, err
	}
	session, err := sessionProvider.GetSession()
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetBareSessionProvider returns a session provider from the environment or
// from a default host and port.
func GetBareSessionProvider() (*db.SessionProvider, *options.ToolOptions, error) {
	toolOptions, err := GetToolOptions()
	if err != nil {
		return nil, nil, fmt.Errorf(
			"error getting tool options to create a bare session provider: %w",
			err,
		)
	}

	sessionProvider, err := db.NewSessionProvider(*toolOptions)
	if err != nil {
		return nil, nil, err
	}

	return sessionProvider, toolOptions, nil
}

// GetToolOptions builds connection options from the TOOLS_TESTING_MONGOD
// env var, or from the default test host and port when it is unset.
func GetToolOptions() (*options.ToolOptions, error) {
	var toolOptions *options.ToolOptions
	if uri := os.Getenv(uriEnvVar); uri != "" {
		parse, err := connstring.ParseAndValidate(uri)
		if err != nil {
			return nil, fmt.Errorf(
				"%#q from the %#q env var is not a valid connection string: %w",
				uri,
				uriEnvVar,
				err,
			)
		}

		fakeArgs := []string{"--uri=" + uri}
		opts := options.EnabledOptions{Auth: parse.UsernameSet, URI: true}
		toolOptions = options.New("mongoportal", "", "", "", true, opts)

		_, err = toolOptions.ParseArgs(fakeArgs)
		if err != nil {
			return nil, fmt.Errorf(
				"could not create toolOptions with %#q from the %#q env var: %w",
				uri,
				uriEnvVar,
				err,
			)
		}
		return toolOptions, nil
	}

	ssl := GetSSLOptions()
	auth := GetAuthOptions()
	toolOptions = &options.ToolOptions{
		AppName: "mongoportal",
		SSL:     &ssl,
		Connection: &options.Connection{
			Host:    "localhost",
			Port:    db.DefaultTestPort,
			Timeout: 10,
		},
		Auth:        &auth,
		General:     &options.General{},
		Verbosity:   &options.Verbosity{},
		URI:         &options.URI{},
		Namespace:   &options.Namespace{},
		Destination: &options.Destination{},
	}

	if err := toolOptions.NormalizeOptionsAndURI(); err != nil {
		return nil, err
	}
	return toolOptions, nil
}

// GetBareArgs returns the command line args that connect to the test
// deployment.
func GetBareArgs() []string {
	args := []string{}

	args = append(args, GetSSLArgs()...)
	args = append(args, GetAuthArgs()...)
	if uri := os.Getenv(uriEnvVar); uri != "" {
		args = append(args, "--uri", uri)
	} else {
		args = append(args, "--host", "localhost", "--port", db.DefaultTestPort)
	}

	return args
}

// SeedCollection drops the collection and fills it with n documents shaped
// {_id: i, n: i}.
func SeedCollection(t *testing.T, client *mongo.Client, ns options.Namespace, n int) {
	ctx := context.Background()
	coll := client.Database(ns.DB).Collection(ns.Collection)
	require.NoError(t, coll.Drop(ctx), "can drop %s", ns)

	const chunk = 1000
	for low := 0; low < n; low += chunk {
		docs := make([]interface{}, 0, chunk)
		for i := low; i < n && i < low+chunk; i++ {
			docs = append(docs, bson.D{{"_id", i}, {"n", i}})
		}
		_, err := coll.InsertMany(ctx, docs)
		require.NoError(t, err, "can seed %s", ns)
	}
}

// DropDatabaseOnCleanup drops the database when the test finishes unless
// TOOLS_TESTING_NO_CLEANUP is set.
func DropDatabaseOnCleanup(t *testing.T, client *mongo.Client, database string) {
	t.Cleanup(func() {
		if os.Getenv("TOOLS_TESTING_NO_CLEANUP") != "" {
			return
		}
		if err := client.Database(database).Drop(context.Background()); err != nil {
			t.Errorf("Failed to drop database %s: %v", database, err)
		}
	})
}

var atlasDomains = []string{
	".mongo.com",
	".mongodb.net",
	".mongodb-qa.net",
	".mongodb-dev.net",
	".mmscloudteam.com",
	".mmscloudtest.com",
	".mongodbgov.net",
	".mongodbgov-local.net",
	".mongodbgov-dev.net",
	".mongodbgov-qa.net",
}

// SkipForAtlasCluster will skip the test if `TOOLS_TESTING_MONGOD` is an Atlas URI.
func SkipForAtlasCluster(t *testing.T, reason string) {
	uri := os.Getenv(uriEnvVar)
	if uri == "" {
		return
	}

	for _, d := range atlasDomains {
		if strings.Contains(uri, d) {
			t.Skipf(
				"The %#q env var is for an Atlas cluster: %s",
				uriEnvVar,
				reason,
			)
		}
	}
}
