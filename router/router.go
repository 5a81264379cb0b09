/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package router

import (
	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
)

// shouldNarrate is the pure routing predicate from spec.md §4.4. It
// depends only on its two arguments, never on ambient state, so it can be
// exercised directly in tests without standing up a Router.
func shouldNarrate(c lib.ChatConfig, m ChatMessage) bool {
	if c.Disabled {
		return false
	}
	if c.IgnoredPlayerIDs[m.SenderID] {
		return false
	}
	if m.Kind == lib.WHISPER {
		return c.WhispersEnabled
	}
	if m.IsOwn {
		return c.IncludeOwnMessages
	}
	return c.EnabledChannels[m.Kind]
}

// Enqueuer is the narrow interface the Router needs from the voice
// generator: hand it text and move on. Kept separate from the voice
// package's full Queue type so router_test.go can exercise Router without
// importing voice.
type Enqueuer interface {
	Enqueue(text string)
}

// Router subscribes to the event bus, extracts and classifies every
// <message> stanza, and forwards narration-worthy bodies to an Enqueuer.
// It never holds a lock across the enqueue call, per spec.md §5.
type Router struct {
	configs   *lib.ChatConfigStore
	selfPUUID func() string
	queue     Enqueuer
	stats     *Stats
}

// New builds a Router. selfPUUID is called lazily on each message because
// the Bridge/MITM may not have resolved the local puuid at Router
// construction time.
func New(configs *lib.ChatConfigStore, selfPUUID func() string, queue Enqueuer) *Router {
	return &Router{
		configs:   configs,
		selfPUUID: selfPUUID,
		queue:     queue,
		stats:     &Stats{},
	}
}

// Run consumes events from ch until it is closed, feeding every
// incoming/outgoing event's data through extraction, classification, and
// the routing predicate.
func (r *Router) Run(ch <-chan events.Event) {
	for e := range ch {
		if e.Type != events.TypeIncoming && e.Type != events.TypeOutgoing {
			continue
		}
		r.handle(e.Data)
	}
}

func (r *Router) handle(data string) {
	for _, raw := range ExtractMessages(data) {
		msg, ok := ParseMessage(raw, r.selfPUUID())
		if !ok {
			continue
		}

		cfg := r.configs.Snapshot()
		if !shouldNarrate(cfg, msg) {
			continue
		}

		r.stats.record(msg.Kind, len(msg.Body))
		log.DebugCf("router", "narrating %s message from %s: %q", msg.Kind, msg.SenderID, msg.Body)
		r.queue.Enqueue(msg.Body)
	}
}

// Stats exposes the Router's snapshot for statusmonitor.
func (r *Router) Stats() StatsSnapshot { return r.stats.snapshot() }
