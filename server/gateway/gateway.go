// Package gateway serves live sessions over websockets. A connection is
// bound to one session; every command applied to that session, from any
// connection or from the REST API, is pushed to all of its watchers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"bj-trainer/server/engine"
	"bj-trainer/server/trainer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 4096
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Sessions is the part of trainer.Service the gateway drives.
type Sessions interface {
	View(id string) (trainer.View, error)
	Do(ctx context.Context, id string, cmd trainer.Command) (trainer.View, error)
	Drill(id string, ranks ...engine.Rank) (trainer.View, error)
}

// Request is a client frame: {"cmd":"hit"}, {"cmd":"view"} or
// {"cmd":"drill","cards":["7","6","9","10"]}.
type Request struct {
	Cmd   string   `json:"cmd"`
	Cards []string `json:"cards,omitempty"`
}

// Message is a server frame. Type is "view" or "error".
type Message struct {
	Type  string        `json:"type"`
	View  *trainer.View `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Gateway   *Gateway
}

type Gateway struct {
	sessions Sessions

	mu       sync.RWMutex
	watchers map[string]map[*Connection]struct{}
}

func New(s Sessions) *Gateway {
	return &Gateway{sessions: s, watchers: make(map[string]map[*Connection]struct{})}
}

// HandleWebSocket upgrades the request and attaches it to sessionID. The
// current view is sent straight away.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request, sessionID string) {
	v, err := g.sessions.View(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Connection{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Gateway:   g,
	}
	n := g.add(c)
	log.Info().Str("conn", c.ID).Str("session", sessionID).Int("watchers", n).Msg("client connected")

	c.push(Message{Type: "view", View: &v})
	go c.writePump()
	go c.readPump()
}

// Publish pushes v to every connection watching sessionID.
func (g *Gateway) Publish(sessionID string, v trainer.View) {
	data, err := json.Marshal(Message{Type: "view", View: &v})
	if err != nil {
		log.Error().Err(err).Msg("encode view")
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.watchers[sessionID] {
		select {
		case c.Send <- data:
		default:
			log.Warn().Str("conn", c.ID).Msg("send buffer full, dropping view")
		}
	}
}

// Watchers reports how many connections follow sessionID.
func (g *Gateway) Watchers(sessionID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.watchers[sessionID])
}

func (g *Gateway) add(c *Connection) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.watchers[c.SessionID]
	if set == nil {
		set = make(map[*Connection]struct{})
		g.watchers[c.SessionID] = set
	}
	set[c] = struct{}{}
	return len(set)
}

func (g *Gateway) remove(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.watchers[c.SessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(g.watchers, c.SessionID)
	}
	close(c.Send)
	log.Info().Str("conn", c.ID).Str("session", c.SessionID).Msg("client disconnected")
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessage)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("conn", c.ID).Msg("read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Connection) handleMessage(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError(errors.New("invalid message format"))
		return
	}

	g := c.Gateway
	var err error
	switch req.Cmd {
	case "view":
		var v trainer.View
		v, err = g.sessions.View(c.SessionID)
		if err == nil {
			c.push(Message{Type: "view", View: &v})
		} else {
			c.sendError(err)
		}
		return
	case "drill":
		var ranks []engine.Rank
		ranks, err = parseRanks(req.Cards)
		if err == nil {
			_, err = g.sessions.Drill(c.SessionID, ranks...)
		}
	default:
		var cmd trainer.Command
		cmd, err = trainer.ParseCommand(req.Cmd)
		if err == nil {
			_, err = g.sessions.Do(context.Background(), c.SessionID, cmd)
		}
	}
	if err != nil {
		c.sendError(err)
	}
}

func parseRanks(cards []string) ([]engine.Rank, error) {
	out := make([]engine.Rank, 0, len(cards))
	for _, s := range cards {
		r, err := engine.ParseRank(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Connection) sendError(err error) {
	c.push(Message{Type: "error", Error: err.Error()})
}

// push queues a frame for this connection only. Callers run on the read
// goroutine or before the pumps start, so Send is still open.
func (c *Connection) push(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
