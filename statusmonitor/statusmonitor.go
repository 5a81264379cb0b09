/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package statusmonitor is the Unix-domain-socket stats server from
// spec.md's expanded §4.9: a plain-text snapshot the GUI collaborator
// can poll without parsing the NDJSON event stream.
package statusmonitor

import (
	"fmt"
	"net"
	"os"

	"github.com/golang/glog"

	"github.com/valnarrator/connector/router"
)

const statsFormat = `messages-narrated=%d
characters-narrated=%d
joined-rooms=%d
active-proxy-pairs=%d
`

// StatsSource is the narrow view the monitor needs of whichever
// subsystems are running; either or both counter methods may be
// hardwired to 0 depending on deployment mode (MITM has no joined-room
// concept of its own, Bridge mode has no proxy pairs).
type StatsSource struct {
	Router           *router.Router
	JoinedRoomCount  func() int
	ActivePairsCount func() int
}

// Monitor is the socket listener itself, mirroring the ancestor
// monitor.Monitor's accept-then-reply-then-close shape.
type Monitor struct {
	source       StatsSource
	listenerQuit chan bool
}

// New binds a Unix-domain socket at socketPath and starts serving stats
// requests. socketPath is removed first if a stale file is left over
// from an unclean shutdown.
func New(source StatsSource, socketPath string) (*Monitor, error) {
	os.Remove(socketPath)
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("statusmonitor failed to bind %s: %s", socketPath, err)
	}

	m := &Monitor{source: source, listenerQuit: make(chan bool)}
	go m.listen(listener)
	return m, nil
}

func (m *Monitor) listen(listener *net.UnixListener) {
	ch := make(chan net.Conn)
	quitReq := make(chan bool, 1)
	quitAck := make(chan bool)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-quitReq:
					quitAck <- true
					return
				default:
					glog.Errorf("Error listening to status socket: %s", err)
					return
				}
			}
			ch <- conn
		}
	}()

	for {
		select {
		case conn := <-ch:
			conn.Write([]byte(m.getStats()))
			conn.Close()

		case <-m.listenerQuit:
			quitReq <- true
			listener.Close()
			<-quitAck
			m.listenerQuit <- true
			return
		}
	}
}

// Quit stops accepting connections and blocks until the listener goroutine
// has exited.
func (m *Monitor) Quit() {
	m.listenerQuit <- true
	<-m.listenerQuit
}

func (m *Monitor) getStats() string {
	var messages, characters uint64
	if m.source.Router != nil {
		snap := m.source.Router.Stats()
		messages, characters = snap.MessagesNarrated, snap.CharactersNarrated
	}

	var joinedRooms, activePairs int
	if m.source.JoinedRoomCount != nil {
		joinedRooms = m.source.JoinedRoomCount()
	}
	if m.source.ActivePairsCount != nil {
		activePairs = m.source.ActivePairsCount()
	}

	return fmt.Sprintf(statsFormat, messages, characters, joinedRooms, activePairs)
}
