package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/doxa/graph"
	"github.com/teranos/doxa/kb"
	"github.com/teranos/doxa/kb/parser"
	"github.com/teranos/doxa/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period; must be less than pongWait.
	pingPeriod = 54 * time.Second

	// Statements and filters are short; graphs only flow outward.
	maxMessageSize = 64 * 1024

	sendQueueSize = 16
)

// message is the inbound envelope. Type selects the handler; the other
// fields apply per type.
type message struct {
	Type string `json:"type"`
	// Expr is a surface-syntax statement for type "query".
	Expr string `json:"expr,omitempty"`
	// Filter is a graph filter string for type "graph_filter".
	Filter string `json:"filter,omitempty"`
}

type client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	id     string

	closeOnce sync.Once
}

func newClient(s *Server, conn *websocket.Conn) *client {
	return &client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		id:     fmt.Sprintf("c_%d", time.Now().UnixNano()),
	}
}

// enqueue queues a message without blocking; a client that cannot keep
// up loses intermediate graphs, never the connection.
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.server.log.Debugw("Client send queue full, dropping message",
			logger.FieldClientID, c.id)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.log.Warnw("WebSocket read error",
					logger.FieldClientID, c.id,
					logger.FieldError, err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.server.log.Warnw("Bad client message",
				logger.FieldClientID, c.id,
				logger.FieldError, err)
			continue
		}
		c.routeMessage(msg)
	}
}

func (c *client) routeMessage(msg message) {
	switch msg.Type {
	case "query":
		c.handleQuery(msg.Expr)
	case "graph_filter":
		c.handleGraphFilter(msg.Filter)
	case "ping":
		// Deadline already extended by the pong handler.
	default:
		c.server.log.Debugw("Unknown message type",
			logger.FieldClientID, c.id,
			logger.FieldType, msg.Type)
	}
}

// handleQuery runs one surface-syntax statement against the session and
// answers with its result. Mutating statements additionally reach every
// client through the rebuild loop.
func (c *client) handleQuery(expr string) {
	res, err := execute(c.server.sess, expr)
	if err != nil {
		c.enqueue(errorMessage(expr, err))
		return
	}
	c.enqueue(resultMessage(expr, res))
}

func (c *client) handleGraphFilter(raw string) {
	f, err := graph.ParseFilter(raw)
	if err != nil {
		c.enqueue(errorMessage(raw, err))
		return
	}
	g := c.server.builder.BuildFiltered(c.server.sess.Now(), f)
	c.enqueue(graphMessage(g))
}

func execute(sess *kb.Session, expr string) (*kb.Result, error) {
	stmt, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	op, err := parser.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return sess.Execute(op)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.server.log.Debugw("Write failed",
					logger.FieldClientID, c.id,
					logger.FieldError, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func graphMessage(g *graph.Graph) []byte {
	return marshalEnvelope(map[string]any{"type": "graph", "graph": g})
}

func resultMessage(expr string, res *kb.Result) []byte {
	return marshalEnvelope(map[string]any{"type": "result", "expr": expr, "result": res})
}

func errorMessage(expr string, err error) []byte {
	return marshalEnvelope(map[string]any{"type": "error", "expr": expr, "error": err.Error()})
}

func marshalEnvelope(v map[string]any) []byte {
	// The envelope values all marshal cleanly; a failure here is a
	// programming error surfaced as an error frame.
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"type": "error", "error": err.Error()})
	}
	return raw
}
