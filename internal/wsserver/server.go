// Package wsserver carries matchmaking and game traffic over WebSocket
// connections and delivers engine events back to them.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/gridclash/internal/msgcat"
	"github.com/park285/gridclash/internal/obslog"
	"github.com/park285/gridclash/internal/pvpgrid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Engine is the slice of the matchmaking manager the transport drives.
type Engine interface {
	RequestMatch(ctx context.Context, connID, identity string) error
	CancelMatch(connID string) bool
	SubmitMove(ctx context.Context, identity, sessionID string, row, col int) error
	SubmitForfeit(ctx context.Context, connID, identity, sessionID string) error
	Disconnect(ctx context.Context, connID string)
	Stats() (waiting, sessions int)
}

const (
	inFindMatch = "find_match"
	inCancel    = "cancel_matchmaking"
	inMakeMove  = "make_move"
	inForfeit   = "forfeit_game"

	headerIdentity = "X-User-Id"
	readLimit      = 4096
)

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	Messages       *msgcat.Catalog
}

// Server owns the live connections and implements pvpgrid.Notifier.
type Server struct {
	engine Engine
	opts   Options

	mu    sync.RWMutex
	conns map[string]*client
}

type client struct {
	id       string
	identity string
	ws       *websocket.Conn
	out      chan pvpgrid.Event
	cancel   context.CancelFunc
}

// inbound is the client frame envelope; data depends on type.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type movePayload struct {
	GameID string `json:"gameId"`
	Row    *int   `json:"row"`
	Col    *int   `json:"col"`
}

type gamePayload struct {
	GameID string `json:"gameId"`
}

func New(engine Engine, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Messages == nil {
		opts.Messages = msgcat.MustDefault()
	}
	return &Server{engine: engine, opts: opts, conns: make(map[string]*client)}
}

// Handler routes /ws to the WebSocket endpoint and /healthz to live counters.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	return mux
}

// Notify queues ev for connID without blocking. A full buffer drops the event.
func (s *Server) Notify(connID string, ev pvpgrid.Event) {
	s.mu.RLock()
	c := s.conns[connID]
	s.mu.RUnlock()
	if c == nil {
		obslog.L().Debug("ws_notify_unknown_conn", zap.String("conn_id", connID), zap.String("type", string(ev.Type)))
		return
	}
	select {
	case c.out <- ev:
	default:
		obslog.L().Warn("ws_send_buffer_full", zap.String("conn_id", connID), zap.String("type", string(ev.Type)))
	}
}

// ConnCount reports open connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close drops every open connection.
func (s *Server) Close() {
	s.mu.RLock()
	all := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		all = append(all, c)
	}
	s.mu.RUnlock()
	for _, c := range all {
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutdown")
		c.cancel()
	}
}

func identityFrom(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(headerIdentity)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("user"))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	accept := &websocket.AcceptOptions{OriginPatterns: s.opts.AllowedOrigins}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" {
			accept.InsecureSkipVerify = true
		}
	}
	ws, err := websocket.Accept(w, r, accept)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("user_id", identity), zap.Error(err))
		return
	}
	ws.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		id:       uuid.NewString(),
		identity: identity,
		ws:       ws,
		out:      make(chan pvpgrid.Event, s.opts.SendBuffer),
		cancel:   cancel,
	}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	obslog.L().Info("ws_connect", zap.String("conn_id", c.id), zap.String("user_id", identity), zap.String("remote", r.RemoteAddr))

	go s.writeLoop(ctx, c)
	s.readLoop(ctx, c)

	s.engine.Disconnect(context.Background(), c.id)
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	cancel()
	_ = ws.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("ws_disconnect", zap.String("conn_id", c.id), zap.String("user_id", identity))
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		var msg inbound
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, c *client, msg inbound) {
	switch msg.Type {
	case inFindMatch:
		if err := s.engine.RequestMatch(ctx, c.id, c.identity); err != nil {
			obslog.L().Debug("find_match_rejected", zap.String("conn_id", c.id), zap.Error(err))
		}
	case inCancel:
		s.engine.CancelMatch(c.id)
	case inMakeMove:
		var p movePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.GameID == "" || p.Row == nil || p.Col == nil {
			obslog.L().Debug("make_move_malformed", zap.String("conn_id", c.id))
			return
		}
		if err := s.engine.SubmitMove(ctx, c.identity, p.GameID, *p.Row, *p.Col); err != nil {
			s.rejectMove(c, p.GameID, err)
		}
	case inForfeit:
		var p gamePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.GameID == "" {
			obslog.L().Debug("forfeit_malformed", zap.String("conn_id", c.id))
			return
		}
		if err := s.engine.SubmitForfeit(ctx, c.id, c.identity, p.GameID); err != nil {
			obslog.L().Debug("forfeit_rejected", zap.String("conn_id", c.id), zap.String("game_id", p.GameID), zap.Error(err))
		}
	default:
		obslog.L().Debug("ws_unknown_type", zap.String("conn_id", c.id), zap.String("type", msg.Type))
	}
}

// rejectMove tells only the offending connection why its move was ignored.
func (s *Server) rejectMove(c *client, gameID string, err error) {
	reason := rejectReason(err)
	if reason == "" {
		return
	}
	msg := s.opts.Messages.Text("move.rejected", map[string]string{"Reason": err.Error()}, "Move rejected: "+err.Error())
	s.Notify(c.id, pvpgrid.Event{Type: pvpgrid.EventMoveRejected, Data: pvpgrid.MoveRejected{GameID: gameID, Reason: reason, Message: msg}})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, pvpgrid.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, pvpgrid.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, pvpgrid.ErrCellOccupied):
		return "cell_occupied"
	case errors.Is(err, pvpgrid.ErrSessionNotPlaying):
		return "not_started"
	case errors.Is(err, pvpgrid.ErrSessionGone):
		return "game_not_found"
	default:
		return ""
	}
}

func (s *Server) writeLoop(ctx context.Context, c *client) {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	pingFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := wsjson.Write(wctx, c.ws, ev)
			cancel()
			if err != nil {
				obslog.L().Warn("ws_write_error", zap.String("conn_id", c.id), zap.String("type", string(ev.Type)), zap.Error(err))
				_ = c.ws.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.ws.Ping(pctx)
			cancel()
			if err == nil {
				pingFailures = 0
				continue
			}
			pingFailures++
			if pingFailures >= 2 {
				obslog.L().Info("ws_ping_timeout", zap.String("conn_id", c.id))
				_ = c.ws.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Waiting     int    `json:"waiting"`
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	waiting, sessions := s.engine.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Waiting: waiting, Sessions: sessions, Connections: s.ConnCount()})
}
