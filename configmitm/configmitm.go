/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Package configmitm serves the rewritten clientconfig response that
// makes the Riot client resolve its chat endpoint to XmppMITM
// (spec.md §4.1).
package configmitm

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/valnarrator/connector/events"
)

const (
	upstreamConfigURL = "https://clientconfig.rpg.riotgames.com/api/v1/config/player"
	playerConfigPath  = "/api/v1/config/player"

	keyChatHost        = "chat.host"
	keyChatPort        = "chat.port"
	keyAllowBadCert    = "chat.allow_bad_cert.enabled"
	keyAffinities      = "chat.affinities"
	keyAffinityDomains = "chat.affinity_domains"

	httpTimeout = 60 * time.Second
)

// ConfigMITM is the loopback HTTP server described in spec.md §4.1.
type ConfigMITM struct {
	bus          *events.Bus
	xmppMITMPort int
	httpClient   *http.Client

	listener net.Listener

	// AffinityMap is populated from the upstream config's
	// chat.affinities/chat.affinity_domains keys on every request, for
	// XmppMITM to consult when dialing the real chat host.
	affinities *AffinityMap
}

// AffinityMap is the shared, read-mostly lookup XmppMITM consults to learn
// which host/domain an affinity tag resolves to.
type AffinityMap struct {
	mu      sync.RWMutex
	hosts   map[string]string
	domains map[string]string

	// primaryHost/primaryPort are the real chat.host/chat.port values seen
	// in the clientconfig response just before this process overwrote
	// them. Since the upstream config already named the one affinity
	// active for this account, XmppMITM dials this pair rather than
	// guessing among every region in hosts.
	primaryHost string
	primaryPort string
}

func NewAffinityMap() *AffinityMap {
	return &AffinityMap{
		hosts:   map[string]string{},
		domains: map[string]string{},
	}
}

func (a *AffinityMap) set(hosts, domains map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hosts = hosts
	a.domains = domains
}

func (a *AffinityMap) setPrimary(host, port string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.primaryHost = host
	a.primaryPort = port
}

// Lookup returns the xmppHost and xmppDomain bound to affinity.
func (a *AffinityMap) Lookup(affinity string) (host, domain string, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	host, ok = a.hosts[affinity]
	domain = a.domains[affinity]
	return host, domain, ok
}

// Primary returns the real chat host/port this process last observed
// before rewriting them to point at XmppMITM's loopback listener.
func (a *AffinityMap) Primary() (host, port string, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.primaryHost, a.primaryPort, a.primaryHost != ""
}

// New binds a loopback listener on port and returns a ConfigMITM serving
// it. Per spec.md's invariant, binding anywhere but loopback is a startup
// fatal error, enforced by the caller passing a "127.0.0.1:port" address.
func New(bus *events.Bus, addr string, xmppMITMPort int) (*ConfigMITM, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ConfigMITM failed to bind %s: %s", addr, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok || !tcpAddr.IP.IsLoopback() {
		listener.Close()
		return nil, fmt.Errorf("ConfigMITM bound to non-loopback address %s", listener.Addr())
	}
	bus.Publish(events.Security(fmt.Sprintf("ConfigMITM bound to loopback address %s", listener.Addr())))

	c := &ConfigMITM{
		bus:          bus,
		xmppMITMPort: xmppMITMPort,
		httpClient:   &http.Client{Timeout: httpTimeout},
		listener:     listener,
		affinities:   NewAffinityMap(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", c.handle)
	go func() {
		if err := http.Serve(listener, mux); err != nil {
			glog.Errorf("ConfigMITM HTTP server stopped: %s", err)
		}
	}()

	return c, nil
}

// Affinities exposes the affinity map learned from the last successful
// clientconfig fetch, for XmppMITM to consult.
func (c *ConfigMITM) Affinities() *AffinityMap { return c.affinities }

func (c *ConfigMITM) Port() int {
	return c.listener.Addr().(*net.TCPAddr).Port
}

func (c *ConfigMITM) Close() error { return c.listener.Close() }

func (c *ConfigMITM) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.URL.Path, "config/player") {
		c.proxyUnchanged(w, r)
		return
	}

	upstreamURL := upstreamConfigURL + "?" + r.URL.RawQuery
	resp, err := c.httpClient.Get(upstreamURL)
	if err != nil {
		c.bus.Publish(events.Error(502, fmt.Sprintf("clientconfig upstream fetch failed: %s", err)))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		c.bus.Publish(events.Error(502, fmt.Sprintf("clientconfig upstream read failed: %s", err)))
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	rewritten, rewriteErr := c.rewrite(body)
	if rewriteErr != nil {
		// Fail-open: emit an error event but still return the original
		// body, since a field we don't understand shouldn't block the
		// whole client-config fetch.
		c.bus.Publish(events.Error(events.ErrInternal, fmt.Sprintf("clientconfig rewrite failed: %s", rewriteErr)))
		rewritten = body
	}

	for k, v := range resp.Header {
		if k == "Content-Length" {
			continue
		}
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(rewritten)
}

// rewrite replaces the chat host/port/allow-bad-cert keys in place and
// records the affinity maps for XmppMITM.
func (c *ConfigMITM) rewrite(body []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("clientconfig body is not a JSON object: %s", err)
	}

	var originalHost, originalPort string
	if raw, ok := doc[keyChatHost]; ok {
		json.Unmarshal(raw, &originalHost)
	}
	if raw, ok := doc[keyChatPort]; ok {
		if json.Unmarshal(raw, &originalPort) != nil {
			var n int
			if json.Unmarshal(raw, &n) == nil {
				originalPort = fmt.Sprintf("%d", n)
			}
		}
	}
	if originalHost != "" {
		if originalPort == "" {
			originalPort = "5223"
		}
		c.affinities.setPrimary(originalHost, originalPort)
	}

	doc[keyChatHost], _ = json.Marshal("127.0.0.1")
	doc[keyChatPort], _ = json.Marshal(c.xmppMITMPort)
	doc[keyAllowBadCert], _ = json.Marshal(true)

	var hosts, domains map[string]string
	if raw, ok := doc[keyAffinities]; ok {
		json.Unmarshal(raw, &hosts)
	}
	if raw, ok := doc[keyAffinityDomains]; ok {
		json.Unmarshal(raw, &domains)
	}
	if hosts != nil {
		c.affinities.set(hosts, domains)
	}

	return json.Marshal(doc)
}

// proxyUnchanged passes a non-config request straight through to the real
// Riot config service (spec.md §4.1's "for any non-config path, proxy
// through unchanged").
func (c *ConfigMITM) proxyUnchanged(w http.ResponseWriter, r *http.Request) {
	target := "https://clientconfig.rpg.riotgames.com" + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	resp, err := c.httpClient.Get(target)
	if err != nil {
		c.bus.Publish(events.Error(502, fmt.Sprintf("upstream proxy fetch failed: %s", err)))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
