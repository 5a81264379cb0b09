/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package voice converts routed ChatMessages into audible utterances
// (spec.md §4.5): a single-writer TTS queue, a push-to-talk refresh
// protocol, and an audio-routing capability the OS TTS engine plugs into.
package voice

import "time"

// Utterance is one job accepted by the queue.
type Utterance struct {
	Text string
	Rate int
}

// Synth is the OS text-to-speech engine. Speak blocks until the engine
// reports end-of-utterance or the watchdog in Queue.process fires first.
// Implementations are expected to wrap a platform speech API (SAPI,
// NSSpeechSynthesizer, speech-dispatcher) behind this single method.
type Synth interface {
	Speak(u Utterance) error
}

// watchdogFor returns the bound on how long a single utterance's Speak
// call may run before the queue gives up waiting on it: max(2s, 150ms *
// character count), per spec.md §4.5.
func watchdogFor(text string) time.Duration {
	min := 2 * time.Second
	scaled := time.Duration(len(text)) * 150 * time.Millisecond
	if scaled > min {
		return scaled
	}
	return min
}
