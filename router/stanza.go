/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package router

import (
	"regexp"
	"strings"

	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/xmppmitm"
)

// ChatMessage is the router's internal representation of a single
// <message> stanza, already classified and entity-decoded.
type ChatMessage struct {
	From     string
	SenderID string
	Kind     lib.MessageKind
	IsOwn    bool
	Body     string
}

// ExtractMessages finds every top-level <message ...>...</message>
// element in data, tolerant of single- and double-quoted attributes and
// multi-line bodies, and tolerant of being handed either a single stanza
// (the common case, already delimited by xmppmitm's tokenizer) or a raw
// multi-stanza buffer (the XMPP Bridge's socket reads, before its own
// tokenizer has run). The stream-opening root element, if present, only
// ever matches the literal name "stream:stream" and never collides with
// a <message> tag, so reusing xmppmitm's tokenizer here needs no special
// priming.
func ExtractMessages(data string) []string {
	tok := xmppmitm.NewStanzaState()
	stanzas := tok.Feed([]byte(data))

	var messages []string
	for _, s := range stanzas {
		if strings.HasPrefix(s, "<message") {
			messages = append(messages, s)
		}
	}
	return messages
}

var (
	fromAttr = regexp.MustCompile(`from=(?:"([^"]*)"|'([^']*)')`)
	typeAttr = regexp.MustCompile(`type=(?:"([^"]*)"|'([^']*)')`)
	bodyTag  = regexp.MustCompile(`(?s)<body[^>]*>(.*?)</body>`)
	jidTag   = regexp.MustCompile(`<jid>([^<]*)</jid>`)
)

// ExtractBindJID pulls the bound JID's local part out of a resource-bind
// IQ result, for deployments (the MITM path) that never run the Bridge's
// own handshake and so have no other way to learn the account's puuid.
func ExtractBindJID(stanza string) (puuid string, ok bool) {
	m := jidTag.FindStringSubmatch(stanza)
	if m == nil || m[1] == "" {
		return "", false
	}
	return localPart(m[1]), true
}

// ParseMessage extracts the from/type/body fields from a single <message>
// element's text, per spec.md §4.4. ok is false if the element carries no
// from attribute or no body text (nothing to narrate).
func ParseMessage(raw, selfPUUID string) (ChatMessage, bool) {
	from := firstSubmatch(fromAttr, raw)
	if from == "" {
		return ChatMessage{}, false
	}
	msgType := firstSubmatch(typeAttr, raw)
	body := firstSubmatch(bodyTag, raw)
	if body == "" {
		return ChatMessage{}, false
	}
	body = decodeEntities(body)

	kind, ok := ClassifyMUC(from, msgType)
	if !ok {
		return ChatMessage{}, false
	}

	sender := senderID(from)
	return ChatMessage{
		From:     from,
		SenderID: sender,
		Kind:     kind,
		IsOwn:    sender == selfPUUID,
		Body:     body,
	}, true
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
