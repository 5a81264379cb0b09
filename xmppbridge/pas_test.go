/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppbridge

import (
	"encoding/base64"
	"testing"
)

func TestDecodeAffinityValidToken(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"affinity":"na1"}`))
	token := "header." + payload + ".signature"

	if got := decodeAffinity(token, "jp1"); got != "na1" {
		t.Errorf("decodeAffinity = %q, want na1", got)
	}
}

// TestDecodeAffinityUndecodableFallsBackToRegion covers spec.md §8's
// boundary test: a PAS token whose middle segment is undecodable falls
// back to the session region.
func TestDecodeAffinityUndecodableFallsBackToRegion(t *testing.T) {
	token := "header.not-valid-base64!!!.signature"
	if got := decodeAffinity(token, "jp1"); got != "jp1" {
		t.Errorf("decodeAffinity = %q, want jp1 (session region fallback)", got)
	}
}

func TestDecodeAffinityMissingSegmentFallsBack(t *testing.T) {
	if got := decodeAffinity("onlyoneseg", "na1"); got != "na1" {
		t.Errorf("decodeAffinity = %q, want na1", got)
	}
}

func TestDecodeAffinityMissingFieldFallsBack(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"other":"value"}`))
	token := "header." + payload + ".signature"
	if got := decodeAffinity(token, "eu1"); got != "eu1" {
		t.Errorf("decodeAffinity = %q, want eu1", got)
	}
}
