/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package router turns incoming/outgoing XMPP events into ChatMessages,
// classifies them, and decides which ones reach the voice generator
// (spec.md §4.4).
package router

import (
	"strings"

	"github.com/valnarrator/connector/lib"
)

const (
	markerParties  = "@ares-parties"
	markerPregame  = "@ares-pregame"
	markerCoregame = "@ares-coregame"
	allSuffix      = "all"
)

// ClassifyMUC returns the message kind for a message's "from" attribute
// and its "type" attribute, per spec.md §4.4's classification table.
//
// The "local-part ends with all" rule is a heuristic inherited as-is: a
// legitimate match id that happens to end in "all" would misclassify as
// ALL chat, and there is no way to disambiguate from the wire format
// alone.
func ClassifyMUC(from, msgType string) (kind lib.MessageKind, ok bool) {
	switch {
	case strings.Contains(from, markerParties):
		return lib.PARTY, true
	case strings.Contains(from, markerCoregame):
		if strings.HasSuffix(localPart(from), allSuffix) {
			return lib.ALL, true
		}
		return lib.TEAM, true
	case strings.Contains(from, markerPregame):
		return lib.TEAM, true
	case msgType == "chat":
		return lib.WHISPER, true
	default:
		return 0, false
	}
}

// localPart returns the substring of a JID before '@'.
func localPart(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// senderID is the substring after the rightmost '/' in from if present,
// else the bare local-part before '@'.
func senderID(from string) string {
	if i := strings.LastIndexByte(from, '/'); i >= 0 {
		return from[i+1:]
	}
	return localPart(from)
}
