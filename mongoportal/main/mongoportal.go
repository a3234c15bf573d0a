// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Main package for the mongoportal tool.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/signals"
	"github.com/vadyalex/mongoportal/common/util"
	"github.com/vadyalex/mongoportal/mongoportal"
)

var (
	VersionStr = "built-without-version-string"
	GitCommit  = "build-without-git-commit"
)

func main() {
	os.Exit(run())
}

func run() int {
	// initialize command-line opts
	opts, err := mongoportal.ParseOptions(os.Args[1:], VersionStr, GitCommit)
	if err != nil {
		log.Logvf(log.Always, "error parsing command line options: %s", err.Error())
		log.Logvf(log.Always, util.ShortUsage("mongoportal"))
		return util.ExitBadOptions
	}

	// print help, if specified
	if opts.PrintHelp(false) {
		return util.ExitSuccess
	}

	// print version, if specified
	if opts.PrintVersion() {
		return util.ExitSuccess
	}

	// init logger
	log.SetVerbosity(opts.Verbosity)

	// verify uri options and log them
	opts.URI.LogUnsupportedOptions()

	portal, err := mongoportal.New(opts)
	if err != nil {
		log.Logvf(log.Always, "Failed: %v", err)
		var setupErr util.SetupError
		if errors.As(err, &setupErr) {
			return setupErr.Code
		}
		return util.ExitFailure
	}
	defer portal.Close()

	finishedChan := signals.HandleWithInterrupt(portal.HandleInterrupt)
	defer close(finishedChan)

	ok, err := portal.Teleport(context.Background())
	if err != nil {
		log.Logvf(log.Always, "Failed: %v", err)

		var swapErr *mongoportal.SwapError
		switch {
		case errors.As(err, &swapErr):
			return util.ExitSwapFailed
		case errors.Is(err, util.ErrTerminated):
			return util.ExitKill
		default:
			return util.ExitFailure
		}
	}
	if !ok {
		log.Logv(log.Info, "nothing was teleported")
	}
	return util.ExitSuccess
}
