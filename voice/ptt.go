/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package voice

import "time"

const (
	pttRefreshDelay = 150 * time.Millisecond
	pttTrailDelay   = 200 * time.Millisecond
)

// KeyController issues synthetic key events for push-to-talk. Simulated
// input can be filtered by anti-cheat; the core must not assume the key
// reached the game (spec.md §9), so callers never treat these as
// guaranteed-delivered.
type KeyController interface {
	Release() error
	Press() error
}

// refreshPTT performs the release/press refresh pattern spec.md §4.5
// requires before each utterance: the key is nominally held continuously
// between utterances, and this pair is what the game's voice stack
// reliably interprets as a new transmission start.
func refreshPTT(k KeyController, sleep func(time.Duration)) error {
	if err := k.Release(); err != nil {
		return err
	}
	sleep(pttRefreshDelay)
	if err := k.Press(); err != nil {
		return err
	}
	sleep(pttRefreshDelay)
	return nil
}
