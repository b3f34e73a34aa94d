// Package conn owns the terminal's socket connection to the central server:
// its lifecycle state, the reconnect policy, and the send path. Decoded
// frames and lifecycle changes are published on the dispatch bus; the socket
// handle itself never leaves this package.
package conn

import (
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retailpos/terminal/internal/bus"
	"github.com/retailpos/terminal/internal/config"
	"github.com/retailpos/terminal/internal/protocol"
)

// State is the connection lifecycle state. Transitions happen only inside
// the Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Lifecycle categories published on the dispatch bus, alongside the
// message-type categories of the protocol package.
const (
	EventConnected        = "connected"
	EventDisconnected     = "disconnected"
	EventTerminalAssigned = "terminal_assigned"
	EventError            = "error"
	EventGiveUp           = "max_reconnect_attempts_reached"
	EventUnknownMessage   = "unknown_message"
)

// DisconnectInfo is the payload of an EventDisconnected publish.
type DisconnectInfo struct {
	Code   int
	Reason string
}

// Options configures a Manager. Zero fields take the deployment defaults.
type Options struct {
	// URL is the server's websocket endpoint.
	URL string
	// TerminalID is the persisted identity announced on dial. It is
	// distinct from the session identity the server assigns via
	// connection_ack.
	TerminalID string

	BaseDelay        time.Duration
	MaxAttempts      int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// PingInterval and PongTimeout drive half-open detection: a ping goes
	// out every interval, and a connection whose peer stops answering is
	// torn down once the read deadline (refreshed on every pong) expires,
	// which hands recovery to the normal reconnect path.
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// Manager owns exactly one logical connection at a time.
type Manager struct {
	opts   Options
	bus    *bus.Bus
	dialer *websocket.Dialer

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	sessionID string
	attempts  int
	epoch     uint64
	timer     *time.Timer

	writeMu sync.Mutex // serialises all conn writes (sends, close frame)
}

// NewManager creates a manager publishing onto b. It does not connect.
func NewManager(opts Options, b *bus.Bus) *Manager {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = config.DefaultReconnectBaseDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = config.DefaultMaxReconnectAttempts
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	return &Manager{
		opts:   opts,
		bus:    b,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the server-assigned identity for the current session, or
// "" before connection_ack (and after any close).
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Connect starts a connection attempt. It is a no-op unless the manager is
// currently Disconnected; after reconnect exhaustion this is how the caller
// restarts the cycle. The attempt counter starts fresh.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	m.epoch++
	e := m.epoch
	m.attempts = 0
	m.stopTimerLocked()
	m.state = Connecting
	m.mu.Unlock()

	go m.dial(e)
}

// Disconnect closes the connection cleanly and cancels any pending
// reconnect. The epoch bump makes in-flight dials and timers stale.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	m.stopTimerLocked()
	c := m.conn
	m.conn = nil
	m.sessionID = ""
	prev := m.state
	m.state = Disconnected
	m.mu.Unlock()

	if c != nil {
		m.writeMu.Lock()
		c.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "terminal shutdown"))
		m.writeMu.Unlock()
		c.Close()
	}

	if prev != Disconnected {
		m.bus.Publish(EventDisconnected, DisconnectInfo{
			Code:   websocket.CloseNormalClosure,
			Reason: "client disconnect",
		})
	}
}

// Send encodes and transmits one message on the current session. It returns
// false, without queuing, when the manager is not Connected or the write
// fails; messages are never buffered across reconnects. The envelope is
// stamped with the session identity once connection_ack has bound one.
func (m *Manager) Send(t protocol.MessageType, payload any) bool {
	m.mu.Lock()
	if m.state != Connected || m.conn == nil {
		m.mu.Unlock()
		return false
	}
	c := m.conn
	id := m.sessionID
	m.mu.Unlock()

	data, err := protocol.Encode(t, payload, id, time.Now())
	if err != nil {
		log.Printf("conn: encode %s: %v", t, err)
		return false
	}

	m.writeMu.Lock()
	c.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
	err = c.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		log.Printf("conn: send %s: %v", t, err)
		// Unblock the read loop so handleClose drives reconnection.
		c.Close()
		return false
	}
	return true
}

func (m *Manager) dial(e uint64) {
	c, _, err := m.dialer.Dial(m.dialURL(), nil)

	m.mu.Lock()
	if m.epoch != e || m.state != Connecting {
		// A Disconnect (or newer Connect) won the race.
		m.mu.Unlock()
		if err == nil {
			c.Close()
		}
		return
	}
	if err != nil {
		m.state = Disconnected
		m.mu.Unlock()
		log.Printf("conn: dial %s: %v", m.opts.URL, err)
		m.bus.Publish(EventError, err)
		m.bus.Publish(EventDisconnected, DisconnectInfo{
			Code:   websocket.CloseAbnormalClosure,
			Reason: err.Error(),
		})
		m.scheduleReconnect(e)
		return
	}
	m.conn = c
	m.state = Connected
	m.attempts = 0
	m.mu.Unlock()

	log.Printf("conn: connected to %s", m.opts.URL)
	m.bus.Publish(EventConnected, nil)
	go m.readLoop(e, c)
	go m.pingLoop(c)
}

func (m *Manager) readLoop(e uint64, c *websocket.Conn) {
	c.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))
	})
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			m.handleClose(e, c, err)
			return
		}
		env, derr := protocol.Decode(data)
		if derr != nil {
			// Single bad frame: drop it, keep the connection.
			log.Printf("conn: dropping frame: %v", derr)
			continue
		}
		m.handleMessage(env)
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// manager has moved on to another connection or the write fails; a failed
// ping closes the socket so the read loop falls into handleClose.
func (m *Manager) pingLoop(c *websocket.Conn) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		current := m.conn
		m.mu.Unlock()
		if current != c {
			return
		}
		m.writeMu.Lock()
		c.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
		err := c.WriteMessage(websocket.PingMessage, nil)
		m.writeMu.Unlock()
		if err != nil {
			c.Close()
			return
		}
	}
}

func (m *Manager) handleMessage(env protocol.Envelope) {
	if env.Type == protocol.MsgConnectionAck {
		var ack protocol.ConnectionAck
		if err := json.Unmarshal(env.Payload, &ack); err != nil {
			log.Printf("conn: dropping connection_ack: %v", err)
			return
		}
		m.mu.Lock()
		m.sessionID = ack.TerminalID
		m.mu.Unlock()
		log.Printf("conn: session identity %s", ack.TerminalID)
		m.bus.Publish(EventTerminalAssigned, ack.TerminalID)
		return
	}

	if protocol.Known(env.Type) {
		m.bus.Publish(string(env.Type), env)
		return
	}
	// Unknown types stay observable so diagnostics can spot protocol drift.
	m.bus.Publish(EventUnknownMessage, env)
}

func (m *Manager) handleClose(e uint64, c *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != c {
		// Already replaced or closed by Disconnect.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.sessionID = ""
	m.state = Disconnected
	m.mu.Unlock()
	c.Close()

	code, reason := closeInfo(err)
	if code != websocket.CloseNormalClosure {
		log.Printf("conn: closed (%d): %v", code, err)
		m.bus.Publish(EventError, err)
	}
	m.bus.Publish(EventDisconnected, DisconnectInfo{Code: code, Reason: reason})

	if code != websocket.CloseNormalClosure {
		m.scheduleReconnect(e)
	}
}

// scheduleReconnect arms the backoff timer for the next attempt. The counter
// increments before the delay is computed, so attempt n waits base*2^(n-1).
func (m *Manager) scheduleReconnect(e uint64) {
	m.mu.Lock()
	if m.epoch != e || m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	m.attempts++
	if m.attempts > m.opts.MaxAttempts {
		m.mu.Unlock()
		log.Printf("conn: giving up after %d reconnect attempts", m.opts.MaxAttempts)
		m.bus.Publish(EventGiveUp, m.opts.MaxAttempts)
		return
	}
	attempt := m.attempts
	delay := backoffDelay(m.opts.BaseDelay, attempt)
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.epoch != e || m.state != Disconnected {
			// Stale timer: a Disconnect or manual Connect intervened.
			m.mu.Unlock()
			return
		}
		m.state = Connecting
		m.mu.Unlock()
		m.dial(e)
	})
	m.mu.Unlock()

	log.Printf("conn: reconnect attempt %d/%d in %v", attempt, m.opts.MaxAttempts, delay)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// dialURL announces the persisted terminal identity as a query parameter.
func (m *Manager) dialURL() string {
	if m.opts.TerminalID == "" {
		return m.opts.URL
	}
	u, err := url.Parse(m.opts.URL)
	if err != nil {
		return m.opts.URL
	}
	q := u.Query()
	q.Set("terminalId", m.opts.TerminalID)
	u.RawQuery = q.Encode()
	return u.String()
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func closeInfo(err error) (int, string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code, ce.Text
	}
	// Abrupt drops carry no close frame; treat them as 1006.
	return websocket.CloseAbnormalClosure, err.Error()
}
