/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppbridge

import "testing"

func TestRoomJIDConstruction(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"party", partyJID("party1", "jp1"), "party1@ares-parties.jp1.pvp.net"},
		{"pregame", pregameJID("pre1", "jp1"), "pre1@ares-pregame.jp1.pvp.net"},
		{"team", teamJID("match1", "jp1"), "match1@ares-coregame.jp1.pvp.net"},
		{"all", allJID("match1", "jp1"), "match1all@ares-coregame.jp1.pvp.net"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s JID = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestDedupKeyDiffersByLoopStateAndID(t *testing.T) {
	a := presencePayload{SessionLoopState: "INGAME", CoreGameID: "m1"}
	b := presencePayload{SessionLoopState: "INGAME", CoreGameID: "m2"}
	c := presencePayload{SessionLoopState: "PREGAME", CoreGameID: "m1"}

	if a.dedupKey() == b.dedupKey() {
		t.Error("dedup keys for different match ids collided")
	}
	if a.dedupKey() == c.dedupKey() {
		t.Error("dedup keys for different loop states collided")
	}
}

// TestReobservingSamePayloadProducesNoNewJoins covers spec.md §8's
// round-trip property: re-observing an identical self-presence payload
// between polls produces zero new room joins.
func TestReobservingSamePayloadProducesNoNewJoins(t *testing.T) {
	b := &Bridge{
		seenTransitions: map[string]bool{},
		joinedRooms:     map[string]bool{},
	}
	payload := presencePayload{SessionLoopState: "INGAME", CoreGameID: "m1"}
	key := payload.dedupKey()

	b.mu.Lock()
	first := b.seenTransitions[key]
	b.seenTransitions[key] = true
	b.mu.Unlock()
	if first {
		t.Fatal("first observation was already marked seen")
	}

	b.mu.Lock()
	second := b.seenTransitions[key]
	b.mu.Unlock()
	if !second {
		t.Fatal("second observation of the same payload was not deduped")
	}
}

func TestExtractJID(t *testing.T) {
	resp := `<iq id="_xmpp_bind1" type="result"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>puuid123@jp1.pvp.net/resource</jid></bind></iq>`
	got := extractJID(resp)
	want := "puuid123@jp1.pvp.net/resource"
	if got != want {
		t.Errorf("extractJID = %q, want %q", got, want)
	}
}

func TestExtractJIDMissing(t *testing.T) {
	if got := extractJID(`<iq type="error"/>`); got != "" {
		t.Errorf("extractJID = %q, want empty", got)
	}
}
