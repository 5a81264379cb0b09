/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package supervisor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/lib"
)

func TestWatchStartupWindowDetectsFatalCode(t *testing.T) {
	bus := events.NewBus()
	s := New(&lib.Config{StartupWindowSec: 1}, bus)

	resultCh := make(chan struct {
		code  int
		fatal bool
	}, 1)
	go func() {
		code, fatal := s.watchStartupWindow()
		resultCh <- struct {
			code  int
			fatal bool
		}{code, fatal}
	}()

	time.Sleep(50 * time.Millisecond)
	bus.Publish(events.Error(events.ErrRiotAlreadyRunning, "already running"))

	select {
	case r := <-resultCh:
		if !r.fatal || r.code != events.ErrRiotAlreadyRunning {
			t.Errorf("got (code=%d, fatal=%v), want (code=%d, fatal=true)", r.code, r.fatal, events.ErrRiotAlreadyRunning)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchStartupWindow did not return")
	}
}

func TestWatchStartupWindowTimesOutClean(t *testing.T) {
	bus := events.NewBus()
	s := New(&lib.Config{StartupWindowSec: 0}, bus) // falls back to the default window

	start := time.Now()
	code, fatal := s.watchStartupWindow()
	if fatal {
		t.Errorf("fatal = true with no error events published, want false")
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
	if elapsed := time.Since(start); elapsed < 1*time.Second {
		t.Errorf("returned after %s, want at least the default startup window", elapsed)
	}
}

func TestWatchStartupWindowIgnoresNonFatalErrors(t *testing.T) {
	bus := events.NewBus()
	s := New(&lib.Config{StartupWindowSec: 1}, bus)

	go func() {
		time.Sleep(50 * time.Millisecond)
		bus.Publish(events.Error(502, "transient upstream error"))
	}()

	_, fatal := s.watchStartupWindow()
	if fatal {
		t.Error("a non-fatal error code was treated as a startup-fatal condition")
	}
}

func TestSelfPUUIDFuncMITMMode(t *testing.T) {
	bus := events.NewBus()
	s := New(&lib.Config{}, bus)

	if got := s.selfPUUIDFunc()(); got != "" {
		t.Errorf("selfPUUID before discovery = %q, want empty", got)
	}

	s.selfPUUID.Store("puuid-123")
	if got := s.selfPUUIDFunc()(); got != "puuid-123" {
		t.Errorf("selfPUUID after store = %q, want puuid-123", got)
	}
}

func TestGoRecoversPanicAndRestarts(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()

	var calls int32
	done := make(chan struct{})
	Go(bus, "flaky", func() {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			panic("boom")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervised function never completed its second run")
	}

	select {
	case e := <-sub:
		if e.Type != events.TypeError || e.Code != events.ErrInternal {
			t.Errorf("event = %+v, want an internal error event", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event published for the panic")
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2 (one panic, one clean run)", calls)
	}
}
