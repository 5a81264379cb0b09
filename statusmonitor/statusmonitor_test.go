/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package statusmonitor

import (
	"io/ioutil"
	"net"
	"path/filepath"
	"testing"
)

func TestGetStatsWithNilSourcesReturnsZeroes(t *testing.T) {
	m := &Monitor{source: StatsSource{}}
	got := m.getStats()
	want := "messages-narrated=0\ncharacters-narrated=0\njoined-rooms=0\nactive-proxy-pairs=0\n"
	if got != want {
		t.Errorf("getStats() = %q, want %q", got, want)
	}
}

func TestGetStatsUsesCounters(t *testing.T) {
	m := &Monitor{source: StatsSource{
		JoinedRoomCount:  func() int { return 3 },
		ActivePairsCount: func() int { return 2 },
	}}
	got := m.getStats()
	want := "messages-narrated=0\ncharacters-narrated=0\njoined-rooms=3\nactive-proxy-pairs=2\n"
	if got != want {
		t.Errorf("getStats() = %q, want %q", got, want)
	}
}

func TestMonitorServesStatsOverSocket(t *testing.T) {
	dir, err := ioutil.TempDir("", "statusmonitor-test")
	if err != nil {
		t.Fatal(err)
	}
	socketPath := filepath.Join(dir, "status.sock")

	mon, err := New(StatsSource{ActivePairsCount: func() int { return 7 }}, socketPath)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer mon.Quit()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %s", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	got := string(buf[:n])
	if got != mon.getStats() {
		t.Errorf("socket response = %q, want %q", got, mon.getStats())
	}
}
