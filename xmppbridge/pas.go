/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppbridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
)

const (
	pasRetryAttempts = 5
	pasRetryBase     = 3 * time.Second
	pasRetryFactor   = 1.5
	pasHTTPTimeout   = 60 * time.Second
)

// fetchPASToken calls the PAS service with the retry schedule from
// spec.md §4.3: up to 5 attempts, delay 3s * 1.5^n, retried only on the
// transient-error set.
func fetchPASToken(accessToken, entitlementToken string) (string, error) {
	client := &http.Client{Timeout: pasHTTPTimeout}

	var lastErr error
	for attempt := 0; attempt < pasRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(pasRetryBase) * math.Pow(pasRetryFactor, float64(attempt-1)))
			log.InfoCf("xmppbridge", "retrying PAS token fetch in %s (attempt %d/%d)", delay, attempt+1, pasRetryAttempts)
			time.Sleep(delay)
		}

		token, err := doPASRequest(client, accessToken, entitlementToken)
		if err == nil {
			return token, nil
		}
		lastErr = err
		if !lib.IsTransientNetworkError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("PAS token fetch exhausted %d attempts: %s", pasRetryAttempts, lastErr)
}

func doPASRequest(client *http.Client, accessToken, entitlementToken string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, lib.RiotGeoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Riot-Entitlements-JWT", entitlementToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// The response body is either a raw JSON string token or an object
	// carrying the token under "token" or "accessToken".
	var raw string
	if json.Unmarshal(body, &raw) == nil && raw != "" {
		return raw, nil
	}
	var obj struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if json.Unmarshal(body, &obj) == nil {
		if obj.Token != "" {
			return obj.Token, nil
		}
		if obj.AccessToken != "" {
			return obj.AccessToken, nil
		}
	}
	return "", fmt.Errorf("PAS response did not contain a token: %s", body)
}

// decodeAffinity extracts the affinity tag from a PAS token's middle
// base64url segment. On any decode error it falls back to
// sessionRegion, per spec.md §4.3 and the boundary test in §8.
func decodeAffinity(pasToken, sessionRegion string) string {
	parts := strings.Split(pasToken, ".")
	if len(parts) < 2 {
		return sessionRegion
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		log.WarningCf("xmppbridge", "PAS token middle segment undecodable, falling back to session region %q", sessionRegion)
		return sessionRegion
	}

	var claims struct {
		Affinity string `json:"affinity"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Affinity == "" {
		log.WarningCf("xmppbridge", "PAS token payload missing affinity, falling back to session region %q", sessionRegion)
		return sessionRegion
	}
	return claims.Affinity
}

// fetchAffinityBinding fetches clientconfig (spec.md §4.1's payload, seen
// here unmodified since this path does not go through ConfigMITM) and
// resolves affinity to its xmppHost/xmppDomain pair.
func fetchAffinityBinding(affinity string) (*lib.AffinityBinding, error) {
	client := &http.Client{Timeout: pasHTTPTimeout}
	resp, err := client.Get(lib.ClientConfigURL + "?app=Riot%20Client")
	if err != nil {
		return nil, fmt.Errorf("clientconfig fetch failed: %s", err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("clientconfig body is not a JSON object: %s", err)
	}

	var hosts, domains map[string]string
	if raw, ok := doc["chat.affinities"]; ok {
		json.Unmarshal(raw, &hosts)
	}
	if raw, ok := doc["chat.affinity_domains"]; ok {
		json.Unmarshal(raw, &domains)
	}

	host, ok := hosts[affinity]
	if !ok {
		return nil, fmt.Errorf("no chat host known for affinity %q", affinity)
	}

	return &lib.AffinityBinding{
		Affinity:   affinity,
		XmppHost:   host,
		XmppDomain: domains[affinity],
	}, nil
}
