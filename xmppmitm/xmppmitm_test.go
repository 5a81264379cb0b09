/*
Copyright 2016 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppmitm

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/valnarrator/connector/events"
)

// TestRelayVerbatimAndEvents checks that relay copies bytes unmodified to
// the peer side while also emitting one incoming/outgoing event per
// completed stanza.
func TestRelayVerbatimAndEvents(t *testing.T) {
	src, srcPeer := net.Pipe()
	dst, dstPeer := net.Pipe()

	bus := events.NewBus()
	sub := bus.Subscribe()

	p := &ProxyPair{id: 1, bus: bus}

	done := make(chan struct{})
	go func() {
		p.relay(src, dst, events.TypeOutgoing)
		close(done)
	}()

	payload := []byte(`<stream:stream xmlns:stream="http://etherx.jabber.org/streams"><presence/>`)
	go func() {
		srcPeer.Write(payload)
		srcPeer.Close()
	}()

	received := make([]byte, len(payload))
	if _, err := io.ReadFull(dstPeer, received); err != nil {
		t.Fatalf("reading relayed bytes: %s", err)
	}
	if string(received) != string(payload) {
		t.Errorf("relayed bytes = %q, want %q", received, payload)
	}

	select {
	case e := <-sub:
		if e.Type != events.TypeOutgoing {
			t.Errorf("event type = %s, want outgoing", e.Type)
		}
		if e.Data != "<presence/>" {
			t.Errorf("event data = %q, want <presence/>", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stanza event")
	}

	dstPeer.Close()
	<-done
}

func TestRegistryAssignsMonotonicIDs(t *testing.T) {
	r := newRegistry()
	a := r.add(&ProxyPair{})
	b := r.add(&ProxyPair{})
	if b <= a {
		t.Errorf("second id %d did not exceed first id %d", b, a)
	}
	if len(r.pairs) != 2 {
		t.Errorf("registry has %d pairs, want 2", len(r.pairs))
	}
	r.remove(a)
	if _, ok := r.pairs[a]; ok {
		t.Error("pair was not removed from registry")
	}
}
