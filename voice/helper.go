/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package voice

import (
	"fmt"
	"os/exec"
)

// HelperBinarySynth is a Synth backed by the same external helper
// convention as HelperBinaryRouter (spec.md §9's design note on audio
// routing applies equally here: the OS TTS engine is a plug-in choice,
// not a core concern).
type HelperBinarySynth struct {
	HelperPath string
}

func NewHelperBinarySynth(helperPath string) *HelperBinarySynth {
	return &HelperBinarySynth{HelperPath: helperPath}
}

// Speak shells out to "<helper> speak <text> <rate>" and blocks until it
// exits. The helper is responsible for actually driving the OS speech
// API; this type only defines the calling convention.
func (h *HelperBinarySynth) Speak(u Utterance) error {
	return exec.Command(h.HelperPath, "speak", u.Text, fmt.Sprintf("%d", u.Rate)).Run()
}

// HelperBinaryKeyController is a KeyController backed by the same helper
// binary, issuing synthetic push-to-talk key events.
type HelperBinaryKeyController struct {
	HelperPath string
}

func NewHelperBinaryKeyController(helperPath string) *HelperBinaryKeyController {
	return &HelperBinaryKeyController{HelperPath: helperPath}
}

func (h *HelperBinaryKeyController) Release() error {
	return exec.Command(h.HelperPath, "key-release").Run()
}

func (h *HelperBinaryKeyController) Press() error {
	return exec.Command(h.HelperPath, "key-press").Run()
}

// NoopSynth is used when no audio helper is configured, so the queue
// still drains instead of blocking forever on an unreachable engine.
type NoopSynth struct{}

func (NoopSynth) Speak(Utterance) error { return nil }

// NoopKeyController mirrors NoopSynth for push-to-talk.
type NoopKeyController struct{}

func (NoopKeyController) Release() error { return nil }
func (NoopKeyController) Press() error   { return nil }
