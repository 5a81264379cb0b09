/*
Copyright 2016 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package xmppmitm

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/valnarrator/connector/configmitm"
	"github.com/valnarrator/connector/events"
	"github.com/valnarrator/connector/log"
)

const (
	upstreamPort = "5223"

	// relayBufferSize bounds a single read from either side. Since each
	// iteration of the relay loop blocks on Write to the peer before
	// issuing its next Read, this also bounds how far the source side can
	// run ahead of a slow peer: one buffer's worth, which is comfortably
	// above a single MTU-sized frame.
	relayBufferSize = 4096

	dialTimeout = 10 * time.Second
)

// XmppMITM is the loopback TLS server from spec.md §4.2. Every accepted
// connection becomes a ProxyPair: one TLS session terminated here, one TLS
// session opened fresh to the real chat host learned from ConfigMITM's
// affinity map.
type XmppMITM struct {
	bus        *events.Bus
	affinities *configmitm.AffinityMap

	listener   net.Listener
	serverTLS  *tls.Config
	pairs      *registry
}

// registry tracks live ProxyPairs under a single mutex, the same pattern
// the ancestor privet package uses to track ports leased to active
// listeners.
type registry struct {
	mu     sync.Mutex
	pairs  map[uint64]*ProxyPair
	nextID uint64
}

func newRegistry() *registry {
	return &registry{pairs: map[uint64]*ProxyPair{}}
}

func (r *registry) add(p *ProxyPair) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.pairs[id] = p
	return id
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pairs, id)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

// New binds a loopback TLS listener on addr. Per spec.md's invariant,
// binding anywhere but loopback is a startup fatal error, enforced by the
// caller passing a "127.0.0.1:port" address.
func New(bus *events.Bus, addr string, affinities *configmitm.AffinityMap) (*XmppMITM, error) {
	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("XmppMITM failed to bind %s: %s", addr, err)
	}
	tcpAddr, ok := tcpListener.Addr().(*net.TCPAddr)
	if !ok || !tcpAddr.IP.IsLoopback() {
		tcpListener.Close()
		return nil, fmt.Errorf("XmppMITM bound to non-loopback address %s", tcpListener.Addr())
	}

	serverTLS, err := selfSignedServerConfig()
	if err != nil {
		tcpListener.Close()
		return nil, err
	}

	bus.Publish(events.Security(fmt.Sprintf("XmppMITM bound to loopback address %s", tcpListener.Addr())))

	x := &XmppMITM{
		bus:        bus,
		affinities: affinities,
		listener:   tls.NewListener(tcpListener, serverTLS),
		serverTLS:  serverTLS,
		pairs:      newRegistry(),
	}

	go x.acceptLoop()

	return x, nil
}

func (x *XmppMITM) Port() int {
	return x.listener.Addr().(*net.TCPAddr).Port
}

func (x *XmppMITM) Close() error { return x.listener.Close() }

// ActivePairs reports the number of currently relayed proxy pairs, for
// statusmonitor.
func (x *XmppMITM) ActivePairs() int { return x.pairs.count() }

func (x *XmppMITM) acceptLoop() {
	for {
		conn, err := x.listener.Accept()
		if err != nil {
			log.InfoCf("xmppmitm", "accept loop stopped: %s", err)
			return
		}
		go x.handle(conn)
	}
}

func (x *XmppMITM) handle(clientConn net.Conn) {
	tlsClientConn, ok := clientConn.(*tls.Conn)
	if !ok {
		clientConn.Close()
		return
	}
	if err := tlsClientConn.Handshake(); err != nil {
		log.WarningCf("xmppmitm", "client TLS handshake failed: %s", err)
		clientConn.Close()
		return
	}

	host, port, ok := x.affinities.Primary()
	if !ok {
		log.ErrorCf("xmppmitm", "no upstream affinity known yet, dropping connection")
		clientConn.Close()
		return
	}
	if port == "" {
		port = upstreamPort
	}

	upstreamConn, err := x.dialUpstream(host, port)
	if err != nil {
		log.ErrorCf("xmppmitm", "upstream dial to %s:%s failed: %s", host, port, err)
		clientConn.Close()
		return
	}

	pair := &ProxyPair{
		bus:      x.bus,
		client:   tlsClientConn,
		upstream: upstreamConn,
	}
	id := x.pairs.add(pair)
	pair.id = id

	x.bus.Publish(events.OpenValorant("127.0.0.1", x.Port(), id))
	x.bus.Publish(events.OpenRiot(id))

	pair.run()

	x.pairs.remove(id)
	x.bus.Publish(events.CloseValorant(id))
	x.bus.Publish(events.CloseRiot(id))
}

// dialUpstream opens the real upstream TLS session. Certificate
// validation is enabled by default; per spec.md's security invariant,
// disabling it is a last-resort fallback attempted only after a validated
// handshake fails, and is logged when it happens.
func (x *XmppMITM) dialUpstream(host, port string) (*tls.Conn, error) {
	addr := net.JoinHostPort(host, port)
	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
	if err == nil {
		return conn, nil
	}

	log.WarningCf("xmppmitm", "validated upstream handshake to %s failed (%s), retrying with certificate validation disabled", addr, err)
	return tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host, InsecureSkipVerify: true})
}

// ProxyPair is one accepted client session paired with its upstream
// session. Each pair runs independently; the only state it shares with
// its siblings is the registry and socket-id counter in XmppMITM, both
// guarded by registry.mu.
type ProxyPair struct {
	id       uint64
	bus      *events.Bus
	client   *tls.Conn
	upstream *tls.Conn
}

// run relays both directions until either side closes or errors, then
// tears down the whole pair. Reassembly buffers are per-direction and
// discarded on teardown; they are never shared between directions or
// pairs.
func (p *ProxyPair) run() {
	done := make(chan struct{}, 2)

	go func() {
		p.relay(p.client, p.upstream, events.TypeOutgoing)
		done <- struct{}{}
	}()
	go func() {
		p.relay(p.upstream, p.client, events.TypeIncoming)
		done <- struct{}{}
	}()

	<-done
	p.client.Close()
	p.upstream.Close()
	<-done
}

// relay reads from src and writes the same bytes to dst verbatim, feeding
// a private tokenizer to detect top-level stanza boundaries. direction is
// "incoming" (upstream to client) or "outgoing" (client to upstream); it
// selects which event constructor fires per completed stanza.
func (p *ProxyPair) relay(src, dst net.Conn, direction events.Type) {
	tokenizer := NewStanzaState()
	buf := make([]byte, relayBufferSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
			for _, stanza := range tokenizer.Feed(buf[:n]) {
				if direction == events.TypeIncoming {
					p.bus.Publish(events.Incoming(stanza))
				} else {
					p.bus.Publish(events.Outgoing(stanza))
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				log.DebugCf("xmppmitm", "pair %d relay ended: %s", p.id, err)
			}
			return
		}
	}
}
