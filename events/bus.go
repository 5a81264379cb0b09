/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package events

import (
	"sync"

	"github.com/valnarrator/connector/log"
)

// subscriberBuffer bounds each subscriber's backlog. Publish never blocks:
// a saturated subscriber drops events rather than stall the publisher,
// since stdout (via Writer) is the event sink of record and a stalled
// internal consumer must never be able to stall XMPP relaying.
const subscriberBuffer = 64

// Bus is a single in-process publish/subscribe point. Subsystems publish
// events here instead of calling a singleton controller directly; the
// event-stream Writer and the statusmonitor are both just subscribers.
// This generalizes the ancestor xmpp.XMPP.Notifications() channel (one
// producer, one consumer) to many producers, many consumers.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel that receives every event published after
// this call. The caller should range over it until the bus is torn down.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish fans e out to every current subscriber. Never blocks.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.WarningCf("events.Bus", "subscriber channel saturated, dropping %s event", e.Type)
		}
	}
}

// Close closes every subscriber channel. Subsequent Publish calls panic if
// any subscriber is still registered and its channel has been closed by a
// consumer elsewhere; Close is meant to be called once at shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
