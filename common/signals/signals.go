// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package signals turns SIGINT/SIGTERM into a callback so a running tool can
// clean up before it exits.
package signals

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/vadyalex/mongoportal/common/log"
	"github.com/vadyalex/mongoportal/common/util"
)

// HandleWithInterrupt starts a goroutine which listens for SIGTERM, SIGINT,
// SIGKILL and SIGPIPE. It calls interruptFunc in a new goroutine on the first
// signal; a second signal exits the program immediately with ExitKill.
// Closing the returned channel stops the listener.
func HandleWithInterrupt(interruptFunc func()) chan struct{} {
	finishedChan := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGKILL, syscall.SIGPIPE)
	log.Logv(log.DebugHigh, "will listen for SIGTERM, SIGINT, SIGKILL, and SIGPIPE")
	go handleSignals(interruptFunc, sigChan, finishedChan)
	return finishedChan
}

func handleSignals(interruptFunc func(), sigChan chan os.Signal, finishedChan chan struct{}) {
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Logvf(log.Always, "signal '%s' received; attempting to shut down", sig)
		if interruptFunc != nil {
			go interruptFunc()
		} else {
			os.Exit(util.ExitKill)
		}
	case <-finishedChan:
		return
	}

	select {
	case sig := <-sigChan:
		log.Logvf(log.Always, "signal '%s' received; forcefully terminating", sig)
		os.Exit(util.ExitKill)
	case <-finishedChan:
	}
}
