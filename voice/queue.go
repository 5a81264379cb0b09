/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package voice

import (
	"time"

	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
)

// Queue is the single-writer TTS job queue from spec.md §4.5: at most
// one synthesis is in progress at any time, additional jobs wait FIFO.
// Waiting jobs are held in a 256-slot buffer; once it is full, Enqueue
// drops the new utterance with a warning instead of blocking the router.
type Queue struct {
	bus   *events.Bus
	synth Synth
	ptt   KeyController
	pttOn bool
	rate  int
	jobs  chan Utterance
	slot  *lib.Semaphore
	sleep func(time.Duration)
	quit  chan struct{}
}

// NewQueue builds a Queue. pttEnabled selects whether the refresh
// protocol runs before each utterance; when false, ptt may be nil.
func NewQueue(bus *events.Bus, synth Synth, ptt KeyController, pttEnabled bool, rate int) *Queue {
	q := &Queue{
		bus:   bus,
		synth: synth,
		ptt:   ptt,
		pttOn: pttEnabled,
		rate:  rate,
		jobs:  make(chan Utterance, 256),
		slot:  lib.NewSemaphore(1),
		sleep: time.Sleep,
		quit:  make(chan struct{}),
	}
	go q.consume()
	return q
}

// Enqueue implements router.Enqueuer. It never blocks the router: jobs
// are buffered and drained FIFO by the sole consumer goroutine.
func (q *Queue) Enqueue(text string) {
	select {
	case q.jobs <- Utterance{Text: text, Rate: q.rate}:
	default:
		log.WarningCf("voice", "TTS queue saturated, dropping utterance")
	}
}

// Stop unconditionally releases the PTT key and stops the consumer, per
// spec.md §4.5's shutdown behavior.
func (q *Queue) Stop() {
	close(q.quit)
	if q.pttOn && q.ptt != nil {
		if err := q.ptt.Release(); err != nil {
			log.WarningCf("voice", "PTT release on shutdown failed: %s", err)
		}
	}
}

func (q *Queue) consume() {
	for {
		select {
		case u := <-q.jobs:
			q.process(u)
		case <-q.quit:
			return
		}
	}
}

// process runs the four-step per-utterance protocol from spec.md §4.5.
// Audio/TTS failures never propagate to the router; they are dropped
// with an info event.
func (q *Queue) process(u Utterance) {
	q.slot.Acquire()
	defer q.slot.Release()

	if q.pttOn && q.ptt != nil {
		if err := refreshPTT(q.ptt, q.sleep); err != nil {
			log.WarningCf("voice", "PTT refresh failed, proceeding anyway: %s", err)
		}
	}

	if err := q.speakWithWatchdog(u); err != nil {
		q.bus.Publish(events.Info("TTS utterance dropped: " + err.Error()))
	}

	q.sleep(pttTrailDelay)
}

// speakWithWatchdog invokes the synth engine and bounds the wait by
// watchdogFor(u.Text): max(2s, 150ms * character count).
func (q *Queue) speakWithWatchdog(u Utterance) error {
	done := make(chan error, 1)
	go func() { done <- q.synth.Speak(u) }()

	select {
	case err := <-done:
		return err
	case <-time.After(watchdogFor(u.Text)):
		return errWatchdogTimeout
	}
}

var errWatchdogTimeout = &timeoutError{"TTS synthesis watchdog timeout"}

type timeoutError struct{ msg string }

func (e *timeoutError) Error() string { return e.msg }
