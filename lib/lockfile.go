/*
Copyright 2014 Google Inc. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package lib

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LockfileRecord is the parsed form of the five colon-separated fields the
// game launcher writes to its lockfile (spec.md §6).
type LockfileRecord struct {
	Name     string
	PID      int
	Port     int
	Password string
	Protocol string
}

// DefaultLockfilePath returns the conventional Riot Games lockfile
// location for the current platform.
func DefaultLockfilePath() string {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		base, _ = os.UserConfigDir()
	}
	return filepath.Join(base, "Riot Games", "Riot Client", "Config", "lockfile")
}

// ReadLockfile reads and parses a lockfile at path. An empty path falls
// back to DefaultLockfilePath.
func ReadLockfile(path string) (*LockfileRecord, error) {
	if path == "" {
		path = DefaultLockfilePath()
	}

	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile %s: %s", path, err)
	}

	fields := strings.Split(strings.TrimSpace(string(b)), ":")
	if len(fields) != 5 {
		return nil, fmt.Errorf("lockfile %s has %d fields, want 5", path, len(fields))
	}

	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("lockfile %s has non-numeric pid %q", path, fields[1])
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("lockfile %s has non-numeric port %q", path, fields[2])
	}

	return &LockfileRecord{
		Name:     fields[0],
		PID:      pid,
		Port:     port,
		Password: fields[3],
		Protocol: fields[4],
	}, nil
}

// BasicAuthValue returns the HTTP Basic username and password the
// launcher's loopback API expects; SetBasicAuth on the request encodes them
// as base64("riot:" + password).
func (l *LockfileRecord) BasicAuthValue() (username, password string) {
	return "riot", l.Password
}
