/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppbridge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/valnarrator/connector/log"
)

// command is one line of the Bridge's stdin protocol (spec.md §4.3,
// §6). Unknown or malformed lines are logged and ignored; this path is
// observer-only in MITM deployments, where the supervisor never writes
// to the MITM's stdin.
type command struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Body    string `json:"body"`
	MsgType string `json:"msgType"`
	Room    string `json:"room"`
}

// ReadCommands runs until r is closed, dispatching one command per line.
// Intended to be run in its own goroutine reading os.Stdin.
func (b *Bridge) ReadCommands(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd command
		if err := json.Unmarshal(line, &cmd); err != nil {
			log.WarningCf("xmppbridge", "malformed command, ignoring: %s", err)
			continue
		}
		b.dispatchCommand(cmd)
	}
}

func (b *Bridge) dispatchCommand(cmd command) {
	switch cmd.Type {
	case "send":
		b.sendMessage(cmd.To, cmd.Body, cmd.MsgType)
	case "join":
		b.joinRoom(cmd.Room)
	case "leave":
		b.leaveRoom(cmd.Room)
	default:
		log.WarningCf("xmppbridge", "unknown command type %q, ignoring", cmd.Type)
	}
}

func (b *Bridge) sendMessage(to, body, msgType string) {
	if msgType == "" {
		msgType = "groupchat"
	}
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(body))

	stanza := fmt.Sprintf(`<message to="%s" type="%s"><body>%s</body></message>`, to, msgType, escaped.String())
	if err := writeRaw(b.conn, stanza); err != nil {
		log.ErrorCf("xmppbridge", "send to %s failed: %s", to, err)
	}
}

func (b *Bridge) leaveRoom(roomJID string) {
	presence := fmt.Sprintf(`<presence to="%s" type="unavailable"/>`, roomJID)
	if err := writeRaw(b.conn, presence); err != nil {
		log.ErrorCf("xmppbridge", "leave %s failed: %s", roomJID, err)
		return
	}
	b.mu.Lock()
	delete(b.joinedRooms, roomJID)
	b.mu.Unlock()
}
