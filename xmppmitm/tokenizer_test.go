/*
Copyright 2016 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppmitm

import (
	"reflect"
	"testing"
)

func TestTokenizerSuppressesStreamOpen(t *testing.T) {
	s := NewStanzaState()
	stanzas := s.Feed([]byte(`<?xml version="1.0"?><stream:stream to="na1.pvp.net" xmlns:stream="http://etherx.jabber.org/streams">`))
	if len(stanzas) != 0 {
		t.Errorf("stream open was emitted as a stanza: %v", stanzas)
	}
	if !s.streamOpened {
		t.Error("streamOpened was not set after seeing <stream:stream>")
	}
}

func TestTokenizerSelfClosing(t *testing.T) {
	s := NewStanzaState()
	s.streamOpened = true
	stanzas := s.Feed([]byte(`<presence show="dnd"/>`))
	want := []string{`<presence show="dnd"/>`}
	if !reflect.DeepEqual(stanzas, want) {
		t.Errorf("stanzas = %v, want %v", stanzas, want)
	}
}

func TestTokenizerNestedElement(t *testing.T) {
	s := NewStanzaState()
	s.streamOpened = true
	stanzas := s.Feed([]byte(`<message to="a@b/c"><body>hi <b>there</b></body></message>`))
	want := []string{`<message to="a@b/c"><body>hi <b>there</b></body></message>`}
	if !reflect.DeepEqual(stanzas, want) {
		t.Errorf("stanzas = %v, want %v", stanzas, want)
	}
}

// TestTokenizerSplitAcrossReads covers spec.md §8's boundary test: a
// stanza whose closing tag arrives in a second, independent Feed call
// must still be recognized once the bytes are complete.
func TestTokenizerSplitAcrossReads(t *testing.T) {
	s := NewStanzaState()
	s.streamOpened = true

	first := s.Feed([]byte(`<message to="a@b/c"><body>hel`))
	if len(first) != 0 {
		t.Fatalf("partial read produced a stanza early: %v", first)
	}

	second := s.Feed([]byte(`lo</body></mess`))
	if len(second) != 0 {
		t.Fatalf("partial read produced a stanza early: %v", second)
	}

	third := s.Feed([]byte(`age>`))
	want := []string{`<message to="a@b/c"><body>hello</body></message>`}
	if !reflect.DeepEqual(third, want) {
		t.Errorf("stanzas after final chunk = %v, want %v", third, want)
	}
}

func TestTokenizerSplitMidAttributeQuote(t *testing.T) {
	s := NewStanzaState()
	s.streamOpened = true

	first := s.Feed([]byte(`<presence show="d`))
	if len(first) != 0 {
		t.Fatalf("partial tag produced a stanza early: %v", first)
	}
	second := s.Feed([]byte(`nd"/>`))
	want := []string{`<presence show="dnd"/>`}
	if !reflect.DeepEqual(second, want) {
		t.Errorf("stanzas = %v, want %v", second, want)
	}
}

func TestTokenizerMultipleStanzasOneFeed(t *testing.T) {
	s := NewStanzaState()
	s.streamOpened = true

	stanzas := s.Feed([]byte(`<presence/><message to="a@b/c"><body>hi</body></message>`))
	want := []string{`<presence/>`, `<message to="a@b/c"><body>hi</body></message>`}
	if !reflect.DeepEqual(stanzas, want) {
		t.Errorf("stanzas = %v, want %v", stanzas, want)
	}
}
