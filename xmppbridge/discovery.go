/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package xmppbridge is the authenticating XMPP client described in
// spec.md §4.3: the reference implementation of "what the real Riot
// client does", used in deployments that do not take the TLS MITM path.
package xmppbridge

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/valnarrator/connector/lib"
	"github.com/valnarrator/connector/log"
)

const (
	entitlementsTokenPath = "/entitlements/v1/token"
	sessionPath           = "/chat/v1/session"

	discoveryHTTPTimeout = 10 * time.Second
	sessionPollCap       = 30 * time.Second
	sessionPollInterval  = 2 * time.Second
)

// launcherClient talks to the game launcher's loopback HTTPS API. The
// launcher presents a self-signed certificate, so validation is disabled
// for this client only; every other HTTP client in this program validates
// normally.
func launcherClient() *http.Client {
	return &http.Client{
		Timeout: discoveryHTTPTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

type entitlementsResponse struct {
	AccessToken      string `json:"accessToken"`
	EntitlementToken string `json:"token"`
}

// fetchEntitlements exchanges the lockfile's HTTP Basic credential for an
// access token and entitlement token.
func fetchEntitlements(lock *lib.LockfileRecord) (accessToken, entitlementToken string, err error) {
	url := fmt.Sprintf("https://127.0.0.1:%d%s", lock.Port, entitlementsTokenPath)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return "", "", err
	}
	username, password := lock.BasicAuthValue()
	req.SetBasicAuth(username, password)

	resp, err := launcherClient().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("entitlements request failed: %s", err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("entitlements response read failed: %s", err)
	}

	var parsed entitlementsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("entitlements response is not JSON: %s", err)
	}
	return parsed.AccessToken, parsed.EntitlementToken, nil
}

type sessionResponse struct {
	Loaded bool   `json:"loaded"`
	PUUID  string `json:"puuid"`
	Region string `json:"region"`
}

// pollSession polls /chat/v1/session until loaded is true or 30 seconds
// have elapsed, per spec.md §4.3.
func pollSession(lock *lib.LockfileRecord) (puuid, region string, err error) {
	url := fmt.Sprintf("https://127.0.0.1:%d%s", lock.Port, sessionPath)
	client := launcherClient()
	username, password := lock.BasicAuthValue()

	deadline := time.Now().Add(sessionPollCap)
	for {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return "", "", err
		}
		req.SetBasicAuth(username, password)

		resp, err := client.Do(req)
		if err == nil {
			body, readErr := ioutil.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil {
				var parsed sessionResponse
				if json.Unmarshal(body, &parsed) == nil && parsed.Loaded {
					return parsed.PUUID, parsed.Region, nil
				}
			}
		} else {
			log.WarningCf("xmppbridge", "session poll failed: %s", err)
		}

		if time.Now().After(deadline) {
			return "", "", fmt.Errorf("chat session did not load within %s", sessionPollCap)
		}
		time.Sleep(sessionPollInterval)
	}
}

// discoverCredentials runs the full credential-discovery sequence from
// spec.md §4.3: read the lockfile, exchange it for tokens, and wait for
// the chat session to report loaded.
func discoverCredentials(lockfilePath string) (*lib.ClientCredentials, error) {
	lock, err := lib.ReadLockfile(lockfilePath)
	if err != nil {
		return nil, err
	}

	accessToken, entitlementToken, err := fetchEntitlements(lock)
	if err != nil {
		return nil, err
	}

	puuid, region, err := pollSession(lock)
	if err != nil {
		return nil, err
	}

	return &lib.ClientCredentials{
		AccessToken:      accessToken,
		EntitlementToken: entitlementToken,
		PUUID:            puuid,
		Region:           region,
	}, nil
}
