/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package voice

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valnarrator/connector/events"
)

func TestWatchdogForMinimumFloor(t *testing.T) {
	if got := watchdogFor(""); got != 2*time.Second {
		t.Errorf("watchdogFor(\"\") = %s, want 2s", got)
	}
	if got := watchdogFor("hi"); got != 2*time.Second {
		t.Errorf("watchdogFor(short) = %s, want 2s floor", got)
	}
}

func TestWatchdogForScalesWithLength(t *testing.T) {
	text := make([]byte, 40)
	for i := range text {
		text[i] = 'a'
	}
	got := watchdogFor(string(text))
	want := 40 * 150 * time.Millisecond
	if got != want {
		t.Errorf("watchdogFor(40 chars) = %s, want %s", got, want)
	}
}

type fakeKeyController struct {
	mu     sync.Mutex
	events []string
}

func (k *fakeKeyController) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.events = append(k.events, "release")
	return nil
}

func (k *fakeKeyController) Press() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.events = append(k.events, "press")
	return nil
}

func TestRefreshPTTSequence(t *testing.T) {
	k := &fakeKeyController{}
	var slept []time.Duration
	fakeSleep := func(d time.Duration) { slept = append(slept, d) }

	if err := refreshPTT(k, fakeSleep); err != nil {
		t.Fatalf("refreshPTT: %s", err)
	}

	want := []string{"release", "press"}
	if len(k.events) != len(want) {
		t.Fatalf("events = %v, want %v", k.events, want)
	}
	for i := range want {
		if k.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, k.events[i], want[i])
		}
	}
	if len(slept) != 2 || slept[0] != pttRefreshDelay || slept[1] != pttRefreshDelay {
		t.Errorf("sleeps = %v, want two %s delays", slept, pttRefreshDelay)
	}
}

// fakeSynth records concurrent Speak invocations so the "at most one
// synthesis active" invariant from spec.md §8 can be checked directly.
type fakeSynth struct {
	active    int32
	maxSeen   int32
	processed int32
	delay     time.Duration
}

func (f *fakeSynth) Speak(u Utterance) error {
	n := atomic.AddInt32(&f.active, 1)
	for {
		old := atomic.LoadInt32(&f.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxSeen, old, n) {
			break
		}
	}
	time.Sleep(f.delay)
	atomic.AddInt32(&f.active, -1)
	atomic.AddInt32(&f.processed, 1)
	return nil
}

func TestQueueSerializesSynthesis(t *testing.T) {
	bus := events.NewBus()
	synth := &fakeSynth{delay: 20 * time.Millisecond}
	q := NewQueue(bus, synth, nil, false, 0)
	q.sleep = func(time.Duration) {}

	for i := 0; i < 5; i++ {
		q.Enqueue("hello")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&synth.processed) < 5 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for queue to drain")
		}
		time.Sleep(10 * time.Millisecond)
	}

	q.Stop()

	if synth.maxSeen > 1 {
		t.Errorf("max concurrent Speak calls = %d, want at most 1", synth.maxSeen)
	}
}

func TestQueueStopReleasesPTT(t *testing.T) {
	bus := events.NewBus()
	k := &fakeKeyController{}
	q := NewQueue(bus, &fakeSynth{}, k, true, 0)
	q.sleep = func(time.Duration) {}

	q.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()
	found := false
	for _, e := range k.events {
		if e == "release" {
			found = true
		}
	}
	if !found {
		t.Error("Stop did not release the PTT key")
	}
}
