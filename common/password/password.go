// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package password reads a credential for one of the endpoints of a
// migration, either from the terminal or piped in on standard input.
package password

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/vadyalex/mongoportal/common/log"
)

// key constants
const (
	backspaceKey = 8
	deleteKey    = 127
	etxKey       = 3
	eotKey       = 4
)

// Prompt asks for the password of the named endpoint credential on stderr
// and returns what the user typed.
func Prompt(what string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter password for %s:", what)
	defer fmt.Fprintln(os.Stderr)

	if IsTerminal() {
		log.Logv(log.DebugLow, "standard input is a terminal; reading password from terminal")
		return readPassInteractively()
	}
	log.Logv(log.Always, "reading password from standard input")
	return readPassNonInteractively(os.Stdin)
}

// readPassNonInteractively reads one line from a pipe. Erase keys remove the
// previous character and ETX/EOT end the input early.
func readPassNonInteractively(reader io.Reader) (string, error) {
	r := bufio.NewReader(reader)
	pass := make([]byte, 0, 32)
	for {
		ch, err := r.ReadByte()
		if err == io.EOF {
			return string(pass), nil
		}
		if err != nil {
			return "", err
		}
		switch ch {
		case backspaceKey, deleteKey:
			if len(pass) > 0 {
				pass = pass[:len(pass)-1]
			}
		case '\r', '\n', etxKey, eotKey:
			return string(pass), nil
		case 0:
		default:
			pass = append(pass, ch)
		}
	}
}
