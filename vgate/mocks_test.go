package vgate

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// recorder collects the observable side effects of a session in order, so
// tests can assert on the interleaving of control and media traffic.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// scriptConn is a frameConn fed from a channel of inbound frames. Writes are
// recorded for inspection.
type scriptConn struct {
	rec *recorder

	mu     sync.Mutex
	wrote  []wsRequest
	closed bool

	incoming chan []byte
	readErr  error
}

func newScriptConn() *scriptConn {
	return &scriptConn{
		incoming: make(chan []byte, 16),
		readErr:  &websocket.CloseError{Code: websocket.CloseNormalClosure},
	}
}

func (c *scriptConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("websocket closed")
	}
	req, ok := v.(*wsRequest)
	if !ok {
		return errors.Errorf("unexpected write type %T", v)
	}
	c.wrote = append(c.wrote, *req)
	if p, ok := req.Data.(speakingPayload); ok {
		c.rec.add(fmt.Sprintf("speaking:%t", p.Speaking))
	}
	return nil
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.incoming
	if !ok {
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		return 0, nil, err
	}
	return websocket.TextMessage, msg, nil
}

func (c *scriptConn) setReadErr(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *scriptConn) opsSent(op int) []wsRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []wsRequest
	for _, req := range c.wrote {
		if req.Op == op {
			out = append(out, req)
		}
	}
	return out
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// scriptUDP is a datagramConn whose reads are scripted: one response per
// Read call, with nil entries standing in for a deadline expiry.
type scriptUDP struct {
	rec *recorder

	mu        sync.Mutex
	sent      [][]byte
	responses [][]byte
	reads     int
	closed    bool
}

func (u *scriptUDP) Write(b []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return 0, errors.New("udp socket closed")
	}
	u.sent = append(u.sent, append([]byte(nil), b...))
	u.rec.add("udp")
	return len(b), nil
}

func (u *scriptUDP) Read(b []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	i := u.reads
	u.reads++
	if i >= len(u.responses) || u.responses[i] == nil {
		return 0, timeoutError{}
	}
	return copy(b, u.responses[i]), nil
}

func (u *scriptUDP) SetReadDeadline(time.Time) error { return nil }

func (u *scriptUDP) Close() error {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	return nil
}

func (u *scriptUDP) sentPackets() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([][]byte(nil), u.sent...)
}

// discoveryResponse builds a valid 70-byte reflection response.
func discoveryResponse(ssrc uint32, ip string, port uint16) []byte {
	b := make([]byte, discoveryPacketSize)
	binary.BigEndian.PutUint32(b[:4], ssrc)
	copy(b[4:], ip)
	binary.LittleEndian.PutUint16(b[discoveryPacketSize-2:], port)
	return b
}

func event(op int, d string) []byte {
	return []byte(fmt.Sprintf(`{"op":%d,"d":%s}`, op, d))
}

// connectedGateway returns a gateway already past session negotiation, with
// scripted sockets attached.
func connectedGateway(rec *recorder) (*Gateway, *scriptConn, *scriptUDP) {
	gw := New(SessionEntry{Endpoint: "voice.example.gg", GuildID: 4242, SessionID: "sess", Token: "tok"}, 99)
	ws := newScriptConn()
	ws.rec = rec
	udp := &scriptUDP{rec: rec}
	gw.ws = ws
	gw.udp = udp
	gw.state = stateConnected
	gw.ssrc = 0x11223344
	gw.keySet = true
	for i := range gw.secretKey {
		gw.secretKey[i] = 0x01
	}
	return gw, ws, udp
}
