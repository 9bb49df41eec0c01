package game

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Conn is one attached client as seen by the broadcast gateway. The transport
// layer drains Outbound and writes frames to the socket; the engine is the only
// writer and the only closer of the send channel.
type Conn struct {
	ID   string
	Role string
	Name string

	send chan []byte
}

// NewConn builds a connection handle with a buffered outbound queue.
func NewConn(id string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 32
	}
	return &Conn{ID: id, send: make(chan []byte, buffer)}
}

// Outbound is the stream of marshalled frames for this connection. It is
// closed when the engine detaches the connection.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// push enqueues a frame without ever blocking the engine. A client that cannot
// keep up loses the frame, not the connection; state catches up via
// requestGameData.
func (c *Conn) push(frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("outbound buffer full, dropping frame")
	}
}

// gateway is the fan-out half of the engine: broadcast to all connections, to
// one role, or to a single connection. Only the engine goroutine touches it,
// strictly after the corresponding state mutation is committed.
type gateway struct {
	conns map[string]*Conn
}

func newGateway() *gateway {
	return &gateway{conns: make(map[string]*Conn)}
}

func (g *gateway) add(conn *Conn) {
	g.conns[conn.ID] = conn
}

func (g *gateway) remove(connID string) {
	if conn, ok := g.conns[connID]; ok {
		delete(g.conns, connID)
		close(conn.send)
	}
}

func (g *gateway) get(connID string) (*Conn, bool) {
	conn, ok := g.conns[connID]
	return conn, ok
}

func (g *gateway) broadcast(event Event) {
	frame, ok := encode(event)
	if !ok {
		return
	}
	for _, conn := range g.conns {
		conn.push(frame)
	}
}

func (g *gateway) sendTo(connID string, event Event) {
	conn, ok := g.conns[connID]
	if !ok {
		return
	}
	frame, ok := encode(event)
	if !ok {
		return
	}
	conn.push(frame)
}

func encode(event Event) ([]byte, bool) {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("failed to marshal outbound event")
		return nil, false
	}
	return frame, true
}
