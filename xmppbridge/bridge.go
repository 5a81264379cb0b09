/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppbridge

import (
	"crypto/tls"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
	"github.com/valnarrator/connector/xmppmitm"
)

const (
	reconnectDelay  = 10 * time.Second
	keepaliveEvery  = 150 * time.Second
	idleTimeout     = 5 * time.Minute
	readChunkSize   = 4096
)

// Bridge is the authenticating XMPP client from spec.md §4.3. Unlike
// XmppMITM, it owns a single logical connection at a time; joinedRooms
// and seenTransitions belong to this struct alone and are cleared on
// every (re)connect, never shared across connections.
type Bridge struct {
	bus          *events.Bus
	lockfilePath string

	lock  *lib.LockfileRecord
	creds *lib.ClientCredentials

	affinity *lib.AffinityBinding
	pasToken string

	conn     *tls.Conn
	socketID uint64

	mu              sync.Mutex
	joinedRooms     map[string]bool
	seenTransitions map[string]bool

	nextSocketID uint64
	quit         chan struct{}
}

// New builds a Bridge that will discover its own credentials from the
// lockfile at lockfilePath (empty uses the platform default).
func New(bus *events.Bus, lockfilePath string) *Bridge {
	return &Bridge{
		bus:          bus,
		lockfilePath: lockfilePath,
		quit:         make(chan struct{}),
	}
}

// Run discovers credentials once, then connects and reconnects
// indefinitely until Stop is called. It returns only after Stop.
func (b *Bridge) Run() {
	creds, err := discoverCredentials(b.lockfilePath)
	if err != nil {
		b.bus.Publish(events.Error(events.ErrInternal, "credential discovery failed: "+err.Error()))
		return
	}
	b.creds = creds
	b.lock, _ = lib.ReadLockfile(b.lockfilePath)

	for {
		select {
		case <-b.quit:
			return
		default:
		}

		if err := b.connectOnce(); err != nil {
			log.ErrorCf("xmppbridge", "connection attempt failed: %s", err)
			b.bus.Publish(events.Info("xmppbridge reconnecting after error: " + err.Error()))
		}

		select {
		case <-time.After(reconnectDelay):
		case <-b.quit:
			return
		}
	}
}

// Stop signals Run to exit after its current connection attempt ends.
func (b *Bridge) Stop() { close(b.quit) }

// SelfPUUID returns the account puuid discovered at startup, or "" before
// discovery completes. Safe to call concurrently: creds is set once by
// Run before the reconnect loop starts and never mutated afterward.
func (b *Bridge) SelfPUUID() string {
	if b.creds == nil {
		return ""
	}
	return b.creds.PUUID
}

// JoinedRoomCount reports the number of MUC rooms currently joined, for
// statusmonitor.
func (b *Bridge) JoinedRoomCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.joinedRooms)
}

// connectOnce resolves a fresh PAS token and affinity, performs the
// handshake, and serves the connection until it breaks. joinedRooms and
// seenTransitions are reset before every attempt per spec.md §8's
// invariant that joinedRooms is cleared on every (re)connect.
func (b *Bridge) connectOnce() error {
	pasToken, err := fetchPASToken(b.creds.AccessToken, b.creds.EntitlementToken)
	if err != nil {
		return err
	}
	b.pasToken = pasToken

	affinityTag := decodeAffinity(pasToken, b.creds.Region)
	affinity, err := fetchAffinityBinding(affinityTag)
	if err != nil {
		return err
	}
	b.affinity = affinity

	conn, err := dialXMPP(affinity.XmppHost)
	if err != nil {
		return err
	}
	b.conn = conn
	defer conn.Close()

	b.mu.Lock()
	b.joinedRooms = map[string]bool{}
	b.seenTransitions = map[string]bool{}
	b.mu.Unlock()

	if _, err := b.handshake(); err != nil {
		return err
	}

	b.socketID = atomic.AddUint64(&b.nextSocketID, 1)
	b.bus.Publish(events.OpenValorant(affinity.XmppHost, 5223, b.socketID))
	if err := b.postHandshake(); err != nil {
		return err
	}

	connDone := make(chan struct{})
	keepaliveQuit := make(chan struct{})
	pollQuit := make(chan struct{})

	go b.keepalivePeriodically(keepaliveQuit)
	go b.pollGameStatePeriodically(pollQuit)

	b.readLoop(connDone)

	close(keepaliveQuit)
	close(pollQuit)
	b.bus.Publish(events.CloseRiot(b.socketID))
	return nil
}

// readLoop consumes stanzas until the connection errors or idles out for
// idleTimeout, dispatching each one to the event bus and the MUC-join
// triggers.
func (b *Bridge) readLoop(done chan<- struct{}) {
	defer close(done)

	tok := xmppmitm.NewStanzaState()
	buf := make([]byte, readChunkSize)

	for {
		b.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		n, err := b.conn.Read(buf)
		if n > 0 {
			for _, stanza := range tok.Feed(buf[:n]) {
				b.bus.Publish(events.Incoming(stanza))
				b.handleObservedPresence(stanza)
				if payload, ok := selfPresencePayload(stanza); ok {
					b.handleSelfPresence(payload)
				}
			}
		}
		if err != nil {
			log.InfoCf("xmppbridge", "connection ended: %s", err)
			return
		}
	}
}

// selfPresencePayload extracts the base64 state payload attribute from a
// self-presence stanza, if present.
func selfPresencePayload(stanza string) (string, bool) {
	if !strings.HasPrefix(stanza, "<presence") {
		return "", false
	}
	const attr = `riot_state="`
	i := strings.Index(stanza, attr)
	if i < 0 {
		return "", false
	}
	i += len(attr)
	end := strings.IndexByte(stanza[i:], '"')
	if end < 0 {
		return "", false
	}
	return stanza[i : i+end], true
}

func (b *Bridge) keepalivePeriodically(quit <-chan struct{}) {
	t := time.NewTicker(keepaliveEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := writeRaw(b.conn, " "); err != nil {
				log.WarningCf("xmppbridge", "keepalive write failed: %s", err)
			}
		case <-quit:
			return
		}
	}
}
