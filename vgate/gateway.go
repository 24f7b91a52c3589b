//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

// Package vgate negotiates real-time voice sessions with a chat-service
// voice server and streams encrypted opus audio to it.
//
// A session is driven over two channels: a TLS websocket carrying framed
// JSON control messages, and a UDP socket carrying encrypted RTP. The
// gateway identifies itself, learns its SSRC and media endpoint from the
// ready event, reflects its external address off the media socket, selects
// the transport protocol, and installs the secret key from the session
// description. Only then may audio flow.
package vgate

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SessionEntry carries the voice session credentials delivered by the main
// gateway.
type SessionEntry struct {
	Endpoint  string
	GuildID   uint64
	SessionID string
	Token     string
}

// AudioFrame is one opus-encoded frame. FrameCount is the number of PCM
// samples the frame represents (960 for 20ms at 48kHz).
type AudioFrame struct {
	Opus       []byte
	FrameCount uint32
}

// ConnectFunc receives the outcome of Connect: nil once audio may flow, or
// the error that ended the session.
type ConnectFunc func(err error)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateResuming
	stateClosed
)

// Gateway holds the state of one voice session. All mutable session state
// lives behind mu; the receive loop, the heartbeater and the public surface
// never touch it unguarded.
type Gateway struct {
	entry  SessionEntry
	userID uint64

	mu  sync.Mutex
	wmu sync.Mutex // serializes websocket writes

	ws  frameConn
	udp datagramConn

	state        connState
	ssrc         uint32
	udpPort      uint16
	externalIP   string
	externalPort uint16
	secretKey    [secretKeySize]byte
	keySet       bool
	seq          uint16
	timestamp    uint32
	speaking     bool
	identSent    bool

	readyOnce sync.Once
	beater    *heartbeater
	onResult  ConnectFunc

	log *logrus.Entry

	dialWS  func(host string) (frameConn, error)
	dialUDP func(host string, port uint16) (datagramConn, error)
}

// New creates a gateway for one voice session. The RTP sequence number and
// timestamp start at values drawn from the system CSPRNG so sessions do not
// begin at predictable offsets.
func New(entry SessionEntry, userID uint64) *Gateway {
	var seed [6]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(err)
	}
	return &Gateway{
		entry:     entry,
		userID:    userID,
		seq:       binary.BigEndian.Uint16(seed[0:2]),
		timestamp: binary.BigEndian.Uint32(seed[2:6]),
		log:       logrus.WithField("guild", entry.GuildID),
		dialWS:    dialVoiceWS,
		dialUDP:   dialVoiceUDP,
	}
}

// Connect dials the voice websocket, identifies, and starts the event loop.
// The outcome is delivered through onResult: nil once the session key is
// installed, or the first fatal error. After a successful connect the same
// callback receives any later fatal error, such as a server close code.
func (g *Gateway) Connect(onResult ConnectFunc) {
	g.mu.Lock()
	g.onResult = onResult
	g.state = stateConnecting
	g.mu.Unlock()

	host, err := parseEndpointHost(g.entry.Endpoint)
	if err != nil {
		g.fail(err)
		return
	}
	g.log.WithField("endpoint", host).Info("connecting to voice gateway")

	ws, err := g.dialWS(host)
	if err != nil {
		g.fail(err)
		return
	}
	g.mu.Lock()
	g.ws = ws
	g.mu.Unlock()

	ident := wsRequest{Op: opIdentify, Data: identifyPayload{
		ServerID:  g.entry.GuildID,
		UserID:    g.userID,
		SessionID: g.entry.SessionID,
		Token:     g.entry.Token,
	}}
	if err := g.sendJSON(ident); err != nil {
		g.fail(errors.Wrap(err, "sending identify"))
		return
	}
	g.mu.Lock()
	g.identSent = true
	g.mu.Unlock()
	go g.receiveLoop(host)
}

// Close shuts the session down without reporting an error.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == stateClosed {
		return
	}
	g.closeLocked()
}

// Resume asks the server to revive an interrupted session; the resumed
// event restores the connected state.
func (g *Gateway) Resume() error {
	g.mu.Lock()
	g.state = stateResuming
	g.mu.Unlock()
	return g.sendJSON(wsRequest{Op: opResume, Data: resumePayload{
		ServerID:  g.entry.GuildID,
		SessionID: g.entry.SessionID,
		Token:     g.entry.Token,
	}})
}

// receiveLoop reads control messages until the socket dies. Each message is
// handled to completion before the next read.
func (g *Gateway) receiveLoop(host string) {
	for {
		g.mu.Lock()
		ws := g.ws
		closed := g.state == stateClosed
		g.mu.Unlock()
		if closed || ws == nil {
			return
		}
		_, msg, err := ws.ReadMessage()
		if err != nil {
			g.fail(closeError(err))
			return
		}
		g.handleEvent(host, msg)
	}
}

// handleEvent dispatches one control message by opcode. Unparseable events
// are logged and skipped; the session survives them.
func (g *Gateway) handleEvent(host string, msg []byte) {
	var ev wsEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		g.log.WithError(err).Warn("discarding unparseable voice event")
		return
	}
	switch ev.Op {
	case opHello:
		g.onHello(ev.Data)
	case opReady:
		g.onReady(host, ev.Data)
	case opSessionDescription:
		g.onSessionDescription(ev.Data)
	case opHeartbeatAck:
		g.mu.Lock()
		b := g.beater
		g.mu.Unlock()
		if b != nil {
			b.ack()
		}
	case opResumed:
		g.mu.Lock()
		g.state = stateConnected
		g.mu.Unlock()
	case opSpeaking, opClientDisconnect:
		// nothing to do
	default:
		g.log.WithField("op", ev.Op).Debug("ignoring voice event")
	}
}

func (g *Gateway) onHello(data json.RawMessage) {
	var p helloPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.log.WithError(err).Warn("discarding malformed hello")
		return
	}
	g.mu.Lock()
	if g.beater != nil || g.state == stateClosed {
		g.mu.Unlock()
		return
	}
	b := newHeartbeater(p.HeartbeatInterval, g.sendHeartbeat, func() {
		g.fail(ErrDisconnected)
	})
	g.beater = b
	g.mu.Unlock()
	g.log.WithField("interval", b.interval).Info("heartbeat armed")
	go b.run()
}

func (g *Gateway) sendHeartbeat(nonce int32) error {
	return g.sendJSON(wsRequest{Op: opHeartbeat, Data: nonce})
}

func (g *Gateway) onReady(host string, data json.RawMessage) {
	var p readyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.log.WithError(err).Warn("discarding malformed ready")
		return
	}
	g.mu.Lock()
	g.ssrc = p.SSRC
	g.udpPort = p.Port
	g.state = stateConnected
	g.mu.Unlock()

	// a repeated ready must not rebind the media socket or reselect
	g.readyOnce.Do(func() { g.openMedia(host, p) })
}

// openMedia connects the media socket, reflects the external address off it,
// and selects the transport. It runs at most once per session; the same
// socket carries media afterwards.
func (g *Gateway) openMedia(host string, p readyPayload) {
	conn, err := g.dialUDP(host, p.Port)
	if err != nil {
		g.fail(err)
		return
	}
	g.mu.Lock()
	g.udp = conn
	g.mu.Unlock()

	ip, port, err := discoverIP(conn, p.SSRC)
	if err != nil {
		conn.Close()
		g.fail(err)
		return
	}
	g.log.WithFields(logrus.Fields{"ip": ip, "port": port}).Info("media socket reflected")

	g.mu.Lock()
	g.externalIP = ip
	g.externalPort = port
	g.mu.Unlock()

	sel := wsRequest{Op: opSelectProtocol, Data: selectProtocolPayload{
		Protocol: "udp",
		Data:     selectProtocolData{Address: ip, Port: port, Mode: modeSalsaPoly},
	}}
	if err := g.sendJSON(sel); err != nil {
		g.fail(errors.Wrap(err, "sending select protocol"))
	}
}

func (g *Gateway) onSessionDescription(data json.RawMessage) {
	var p sessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.log.WithError(err).Warn("discarding malformed session description")
		return
	}
	if p.Mode != modeSalsaPoly {
		g.fail(ErrUnsupportedMode)
		return
	}
	if len(p.SecretKey) != secretKeySize {
		g.fail(ErrBadSecretKeyLength)
		return
	}
	g.mu.Lock()
	for i, v := range p.SecretKey {
		g.secretKey[i] = byte(v)
	}
	g.keySet = true
	cb := g.onResult
	g.mu.Unlock()
	g.log.Info("voice session established")
	if cb != nil {
		cb(nil)
	}
}

// sendJSON writes one control message. The heartbeater and the public
// surface both emit through here, so writes are serialized.
func (g *Gateway) sendJSON(req wsRequest) error {
	g.mu.Lock()
	ws := g.ws
	g.mu.Unlock()
	if ws == nil {
		return ErrDisconnected
	}
	g.wmu.Lock()
	defer g.wmu.Unlock()
	return ws.WriteJSON(&req)
}

// fail tears the session down and reports err through the connect callback.
// Failures arriving after teardown are dropped so the callback never fires
// twice with an error. A session that never got its identify out is left
// Disconnected rather than Closed.
func (g *Gateway) fail(err error) {
	g.mu.Lock()
	if g.state == stateClosed {
		g.mu.Unlock()
		return
	}
	pre := !g.identSent
	g.closeLocked()
	if pre {
		g.state = stateDisconnected
	}
	cb := g.onResult
	g.mu.Unlock()
	g.log.WithError(err).Error("voice session failed")
	if cb != nil {
		cb(err)
	}
}

// closeLocked releases the sockets and the heartbeater. Callers hold g.mu.
func (g *Gateway) closeLocked() {
	g.state = stateClosed
	if g.beater != nil {
		g.beater.stop()
	}
	if g.ws != nil {
		g.ws.Close()
	}
	if g.udp != nil {
		g.udp.Close()
	}
}
