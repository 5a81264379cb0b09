/*
Copyright 2016 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package xmppmitm is the loopback TLS proxy described in spec.md §4.2. It
// terminates the game client's TLS session, opens a fresh upstream TLS
// session to the real chat host, and relays bytes in both directions while
// a forgiving tokenizer carves the stream into top-level stanzas for the
// event bus.
package xmppmitm

import "bytes"

// StanzaState is the per-direction tokenizer state from spec.md §4.2's
// state table. It is forgiving of partial reads: Feed can be called with
// arbitrarily small or arbitrarily fragmented chunks and will only ever
// report a stanza once its closing tag (or self-closing form) has fully
// arrived.
type StanzaState struct {
	buf   bytes.Buffer
	depth int

	// streamOpened is set once the initial non-closed <stream:stream ...>
	// root has been seen, so later top-level elements are recognized as
	// stanzas rather than mistaken for a second root.
	streamOpened bool
}

// NewStanzaState returns a tokenizer ready to Feed.
func NewStanzaState() *StanzaState {
	return &StanzaState{}
}

// Feed appends p to the internal buffer and returns every stanza (element
// text, including its tags) that became fully delimited as a result. The
// <stream:stream ...> opening tag itself is consumed but never returned,
// per spec.md's framing-only rule.
func (s *StanzaState) Feed(p []byte) []string {
	s.buf.Write(p)

	var stanzas []string
	for {
		stanza, consumed, ok := s.next()
		if !ok {
			break
		}
		if consumed == 0 {
			break
		}
		if stanza != "" {
			stanzas = append(stanzas, stanza)
		}
	}
	return stanzas
}

// next scans the buffer for the next fully-delimited top-level element. It
// returns ok=false when the buffer holds only a partial tag or partial
// element and must wait for more bytes.
func (s *StanzaState) next() (stanza string, consumed int, ok bool) {
	data := s.buf.Bytes()

	// Skip leading whitespace and any XML declaration; Riot's stream never
	// repeats one mid-stream but a defensive skip costs nothing.
	start := skipProlog(data)
	if start >= len(data) {
		if start > 0 {
			s.buf.Next(start)
		}
		return "", 0, false
	}
	if start > 0 {
		s.buf.Next(start)
		data = s.buf.Bytes()
	}

	if data[0] != '<' {
		// Non-tag byte at top level; malformed for our purposes, drop it
		// so a single stray byte can't wedge the tokenizer forever.
		s.buf.Next(1)
		return "", 1, true
	}

	end := matchTag(data)
	if end < 0 {
		return "", 0, false
	}
	tagText := string(data[:end])

	if !s.streamOpened {
		// The root <stream:stream ...> element is never closed within this
		// connection's lifetime; it is framing only and is never emitted.
		if isStreamStreamOpen(tagText) {
			s.streamOpened = true
			s.buf.Next(end)
			return "", end, true
		}
	}

	if isSelfClosing(tagText) {
		s.buf.Next(end)
		return tagText, end, true
	}

	name := tagName(tagText)
	elementEnd := matchElement(data, name)
	if elementEnd < 0 {
		return "", 0, false
	}
	full := string(data[:elementEnd])
	s.buf.Next(elementEnd)
	return full, elementEnd, true
}

// skipProlog returns the offset of the first byte that is not leading
// whitespace and not an XML declaration (`<?xml ... ?>`).
func skipProlog(data []byte) int {
	i := 0
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	if i+5 <= len(data) && string(data[i:i+2]) == "<?" {
		end := bytes.Index(data[i:], []byte("?>"))
		if end < 0 {
			return i
		}
		i += end + 2
		for i < len(data) && isSpace(data[i]) {
			i++
		}
	}
	return i
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// matchTag returns the index just past the end of the opening tag starting
// at data[0] (which must be '<'), or -1 if the tag has not fully arrived
// yet. It tolerates single and double quoted attribute values containing
// '>' or '<'.
func matchTag(data []byte) int {
	if len(data) == 0 || data[0] != '<' {
		return -1
	}
	i := 1
	var quote byte
	for i < len(data) {
		c := data[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			i++
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '>':
			return i + 1
		}
		i++
	}
	return -1
}

// isSelfClosing reports whether a fully-delimited tag (as returned by
// matchTag) is self-closing, e.g. `<presence show="dnd"/>`.
func isSelfClosing(tag string) bool {
	trimmed := tag[:len(tag)-1]
	return len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/'
}

// tagName extracts the element name from a fully-delimited opening tag.
func tagName(tag string) string {
	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' && tag[i] != '/' {
		i++
	}
	return tag[1:i]
}

// isStreamStreamOpen reports whether tag is the stream-opening root
// element, which uses the "stream" prefix bound to the XMPP streams
// namespace in every Riot handshake observed.
func isStreamStreamOpen(tag string) bool {
	name := tagName(tag)
	return name == "stream:stream"
}

// matchElement returns the index just past the closing `</name>` tag that
// balances the opening tag already consumed from data[0:], tracking
// nested same-named and differently-named child elements by depth, or -1
// if the element has not fully arrived.
func matchElement(data []byte, name string) int {
	depth := 1
	i := 0

	// Skip past the opening tag itself first.
	openEnd := matchTag(data)
	if openEnd < 0 {
		return -1
	}
	i = openEnd

	closeTag := []byte("</" + name)
	for i < len(data) {
		if data[i] != '<' {
			i++
			continue
		}

		if i+1 < len(data) && data[i+1] == '/' {
			if bytes.HasPrefix(data[i:], closeTag) {
				end := matchTag(data[i:])
				if end < 0 {
					return -1
				}
				depth--
				i += end
				if depth == 0 {
					return i
				}
				continue
			}
			// A closing tag for some other element; skip it whole.
			end := matchTag(data[i:])
			if end < 0 {
				return -1
			}
			i += end
			continue
		}

		end := matchTag(data[i:])
		if end < 0 {
			return -1
		}
		childTag := string(data[i : i+end])
		if !isSelfClosing(childTag) && tagName(childTag) == name {
			depth++
		}
		i += end
	}
	return -1
}
