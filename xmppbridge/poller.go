/*
Copyright 2014 Google Inc. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package xmppbridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/valnarrator/connector/log"
)

const gameStatePollInterval = 5 * time.Second

// pollGameStatePeriodically is the third MUC-join trigger: every 5
// seconds, query the launcher's presence list for the local player's
// state. The game process's own loopback APIs (core-game, pregame) are not
// queried. The same (loopState,
// primaryId) dedup key as the presence-payload trigger applies, so a
// state already reacted to via presence never double-joins here.
func (b *Bridge) pollGameStatePeriodically(quit <-chan struct{}) {
	for {
		select {
		case <-time.After(gameStatePollInterval):
			b.pollGameStateOnce()
		case <-quit:
			return
		}
	}
}

func (b *Bridge) pollGameStateOnce() {
	payload, err := b.fetchPresencePayload()
	if err != nil {
		log.DebugCf("xmppbridge", "game-state poll failed: %s", err)
		return
	}
	if payload == nil {
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

	for _, room := range roomsForPayload(*payload, b.creds.Region) {
		b.joinRoom(room)
	}
}

// fetchPresencePayload queries the launcher's /chat/v4/presences
// endpoint for the local player's self-presence entry. Returns (nil,
// nil) when the endpoint has nothing authoritative to say yet, which is
// routine during champion select and lobby screens.
func (b *Bridge) fetchPresencePayload() (*presencePayload, error) {
	if b.lock == nil {
		return nil, fmt.Errorf("no lockfile credentials available")
	}

	url := fmt.Sprintf("https://127.0.0.1:%d/chat/v4/presences", b.lock.Port)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	username, password := b.lock.BasicAuthValue()
	req.SetBasicAuth(username, password)

	resp, err := launcherClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Presences []struct {
			PUUID   string `json:"puuid"`
			Private string `json:"private"`
		} `json:"presences"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("presences response is not JSON: %s", err)
	}

	for _, entry := range parsed.Presences {
		if entry.PUUID != b.creds.PUUID || entry.Private == "" {
			continue
		}
		raw := []byte(entry.Private)
		var payload presencePayload
		if json.Unmarshal(raw, &payload) != nil {
			decoded, decErr := base64.StdEncoding.DecodeString(entry.Private)
			if decErr != nil || json.Unmarshal(decoded, &payload) != nil {
				continue
			}
		}
		return &payload, nil
	}
	return nil, nil
}
