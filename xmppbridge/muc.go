/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppbridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/log"
)

const joinRetryAttempts = 3

var observedFrom = regexp.MustCompile(`from=(?:"([^"]*)"|'([^']*)')`)

// presencePayload is the decoded form of a self-presence stanza's base64
// payload attribute (spec.md §4.3's second MUC-join trigger).
type presencePayload struct {
	SessionLoopState string `json:"sessionLoopState"`
	PartyID          string `json:"partyId"`
	PregameID        string `json:"pregameId"`
	MatchID          string `json:"matchId"`
	CoreGameID       string `json:"coreGameId"`
}

func (p presencePayload) primaryID() string {
	switch p.SessionLoopState {
	case "INGAME":
		if p.CoreGameID != "" {
			return p.CoreGameID
		}
		return p.MatchID
	case "PREGAME":
		return p.PregameID
	default:
		return p.PartyID
	}
}

// dedupKey returns the (loopState, primaryId) key the Bridge uses to
// avoid reacting twice to the same state transition.
func (p presencePayload) dedupKey() string {
	return p.SessionLoopState + "|" + p.primaryID()
}

// partyJID, pregameJID, teamJID, and allJID build the four MUC room JIDs
// spec.md §4.3 names.
func partyJID(partyID, region string) string  { return fmt.Sprintf("%s@ares-parties.%s.pvp.net", partyID, region) }
func pregameJID(pregameID, region string) string {
	return fmt.Sprintf("%s@ares-pregame.%s.pvp.net", pregameID, region)
}
func teamJID(coreGameID, region string) string {
	return fmt.Sprintf("%s@ares-coregame.%s.pvp.net", coreGameID, region)
}
func allJID(coreGameID, region string) string {
	return fmt.Sprintf("%sall@ares-coregame.%s.pvp.net", coreGameID, region)
}

// roomsForPayload returns every room the current presence payload implies
// should be joined, given the Bridge's region.
func roomsForPayload(p presencePayload, region string) []string {
	var rooms []string
	if p.PartyID != "" {
		rooms = append(rooms, partyJID(p.PartyID, region))
	}
	if p.PregameID != "" {
		rooms = append(rooms, pregameJID(p.PregameID, region))
	}
	coreGameID := p.CoreGameID
	if coreGameID == "" {
		coreGameID = p.MatchID
	}
	if coreGameID != "" {
		rooms = append(rooms, teamJID(coreGameID, region), allJID(coreGameID, region))
	}
	return rooms
}

// handleSelfPresence decodes a self-presence stanza's base64 state
// attribute and joins any room implied by an unseen (loopState,
// primaryId) transition.
func (b *Bridge) handleSelfPresence(encoded string) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.WarningCf("xmppbridge", "self-presence payload undecodable: %s", err)
		return
	}

	var payload presencePayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		log.WarningCf("xmppbridge", "self-presence payload not JSON: %s", err)
		return
	}

	key := payload.dedupKey()
	b.mu.Lock()
	seen := b.seenTransitions[key]
	b.seenTransitions[key] = true
	b.mu.Unlock()
	if seen {
		return
	}

	for _, room := range roomsForPayload(payload, b.creds.Region) {
		b.joinRoom(room)
	}
}

// handleObservedPresence mines an arbitrary incoming stanza's "from"
// attribute for a bare MUC JID and joins it if unseen, per spec.md
// §4.3's first trigger.
func (b *Bridge) handleObservedPresence(stanza string) {
	m := observedFrom.FindStringSubmatch(stanza)
	if m == nil {
		return
	}
	from := m[1]
	if from == "" {
		from = m[2]
	}
	if !strings.Contains(from, "@ares-parties") && !strings.Contains(from, "@ares-pregame") && !strings.Contains(from, "@ares-coregame") {
		return
	}

	bare := from
	if i := strings.IndexByte(from, '/'); i >= 0 {
		bare = from[:i]
	}

	b.mu.Lock()
	seen := b.joinedRooms[bare]
	b.mu.Unlock()
	if seen {
		return
	}
	b.joinRoom(bare)
}

// joinRoom sends the MUC join presence, retrying up to 3 times with
// exponential backoff (1s * 2^n) on write failure, per spec.md §4.3.
func (b *Bridge) joinRoom(roomJID string) {
	b.mu.Lock()
	if b.joinedRooms[roomJID] {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	nick := b.creds.PUUID
	if len(nick) > 8 {
		nick = nick[:8]
	}
	presence := fmt.Sprintf(`<presence to="%s/%s"><x xmlns="http://jabber.org/protocol/muc"><history maxstanzas="0"/></x></presence>`, roomJID, nick)

	var lastErr error
	for attempt := 0; attempt < joinRetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}
		if err := writeRaw(b.conn, presence); err == nil {
			b.mu.Lock()
			b.joinedRooms[roomJID] = true
			b.mu.Unlock()
			b.bus.Publish(events.RoomJoined(roomJID))
			return
		} else {
			lastErr = err
		}
	}
	log.ErrorCf("xmppbridge", "failed to join room %s after %d attempts: %s", roomJID, joinRetryAttempts, lastErr)
}
