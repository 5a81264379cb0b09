/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package configmitm

import (
	"encoding/json"
	"testing"
)

func TestRewrite(t *testing.T) {
	c := &ConfigMITM{xmppMITMPort: 35478, affinities: NewAffinityMap()}

	input := []byte(`{
		"chat.host": "na1.chat.si.riotgames.com",
		"chat.port": "5223",
		"chat.allow_bad_cert.enabled": false,
		"chat.affinities": {"na1": "na1.chat.si.riotgames.com"},
		"chat.affinity_domains": {"na1": "na1.pvp.net"},
		"unrelated.key": "unchanged"
	}`)

	out, err := c.rewrite(input)
	if err != nil {
		t.Fatalf("rewrite failed: %s", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("rewritten body is not valid JSON: %s", err)
	}

	if doc[keyChatHost] != "127.0.0.1" {
		t.Errorf("chat host = %v, want 127.0.0.1", doc[keyChatHost])
	}
	if doc[keyChatPort] != float64(35478) {
		t.Errorf("chat port = %v, want 35478", doc[keyChatPort])
	}
	if doc[keyAllowBadCert] != true {
		t.Errorf("allow bad cert = %v, want true", doc[keyAllowBadCert])
	}
	if doc["unrelated.key"] != "unchanged" {
		t.Errorf("unrelated key was modified: %v", doc["unrelated.key"])
	}

	host, domain, ok := c.affinities.Lookup("na1")
	if !ok || host != "na1.chat.si.riotgames.com" || domain != "na1.pvp.net" {
		t.Errorf("affinity lookup = (%s, %s, %v), want (na1.chat.si.riotgames.com, na1.pvp.net, true)", host, domain, ok)
	}

	primaryHost, primaryPort, ok := c.affinities.Primary()
	if !ok || primaryHost != "na1.chat.si.riotgames.com" || primaryPort != "5223" {
		t.Errorf("primary = (%s, %s, %v), want (na1.chat.si.riotgames.com, 5223, true)", primaryHost, primaryPort, ok)
	}
}

func TestRewriteUnparseableJSON(t *testing.T) {
	c := &ConfigMITM{xmppMITMPort: 35478, affinities: NewAffinityMap()}
	if _, err := c.rewrite([]byte("not json")); err == nil {
		t.Error("expected an error for unparseable JSON body")
	}
}
