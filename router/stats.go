/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package router

import (
	"sync/atomic"

	"github.com/valnarrator/connector/lib"
)

// Stats holds the two monotonically increasing counters spec.md §4.4
// requires: messages narrated and characters narrated. Surfaced to the
// GUI collaborator via statusmonitor; never persisted by the core.
type Stats struct {
	messages    uint64
	characters  uint64
}

// StatsSnapshot is an immutable point-in-time read of Stats.
type StatsSnapshot struct {
	MessagesNarrated   uint64
	CharactersNarrated uint64
}

func (s *Stats) record(kind lib.MessageKind, bodyLen int) {
	atomic.AddUint64(&s.messages, 1)
	atomic.AddUint64(&s.characters, uint64(bodyLen))
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		MessagesNarrated:   atomic.LoadUint64(&s.messages),
		CharactersNarrated: atomic.LoadUint64(&s.characters),
	}
}
