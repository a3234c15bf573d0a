// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"fmt"
	"strings"
)

const (
	InvalidDBChars         = "/\\. \"\x00$"
	InvalidCollectionChars = "$\x00"
	DefaultHost            = "localhost"
)

// SplitHostArg extracts the replica set name from a "setname/host1,host2"
// style --host value. The returned hosts are never empty.
func SplitHostArg(connString string) ([]string, string) {
	slashIndex := strings.Index(connString, "/")
	setName := ""
	if slashIndex != -1 {
		setName = connString[:slashIndex]
		if slashIndex == len(connString)-1 {
			return []string{""}, setName
		}
		connString = connString[slashIndex+1:]
	}
	return strings.Split(connString, ","), setName
}

// CreateConnectionAddrs appends the port to every host that lacks one.
func CreateConnectionAddrs(host, port string) []string {
	hosts, _ := SplitHostArg(host)
	if port == "" {
		return hosts
	}

	addrs := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h == "" {
			h = DefaultHost
		}
		if !strings.Contains(h, ":") {
			h = h + ":" + port
		}
		addrs = append(addrs, h)
	}
	return addrs
}

// BuildURI turns a --host/--port pair into a mongodb:// connection string.
func BuildURI(host, port string) string {
	hosts, setName := SplitHostArg(host)
	addrs := CreateConnectionAddrs(host, port)
	if len(hosts) == 1 && hosts[0] == "" && port == "" {
		addrs = []string{DefaultHost}
	}

	uri := "mongodb://" + strings.Join(addrs, ",") + "/"
	if setName != "" {
		uri += "?replicaSet=" + setName
	}
	return uri
}

// ValidateDBName checks that a database name can exist on a server.
func ValidateDBName(database string) error {
	// must be < 64 characters
	if len([]byte(database)) > 63 {
		return fmt.Errorf("db name '%v' is longer than 63 characters", database)
	}

	for _, invalidRune := range InvalidDBChars {
		if strings.ContainsRune(database, invalidRune) {
			return fmt.Errorf("db name '%v' contains invalid character '%c'", database, invalidRune)
		}
	}

	return nil
}

// ValidateCollectionName checks that a collection name is legal, system
// collections included.
func ValidateCollectionName(collection string) error {
	if collection == "" {
		return fmt.Errorf("collection name cannot be an empty string")
	}

	for _, invalidRune := range InvalidCollectionChars {
		if strings.ContainsRune(collection, invalidRune) {
			return fmt.Errorf("collection name '%v' contains invalid character '%c'", collection, invalidRune)
		}
	}

	return nil
}
