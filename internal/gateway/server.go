// Package gateway exposes the orchestrator to UI collaborators over a local
// WebSocket connection: requests drive turns and session management, events
// push appended messages and advisories.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/agent"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/config"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/logging"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/store"
)

// client is one connected WebSocket peer. Writes are serialized through mu;
// gorilla/websocket does not allow concurrent writers.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server is the WebSocket gateway. It implements agent.EventSink so the
// orchestrator's outputs reach every connected client.
type Server struct {
	cfg   config.GatewayConfig
	log   *logging.Logger
	store store.SessionStore

	mu      sync.RWMutex
	orch    *agent.Orchestrator
	clients map[string]*client

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server. Attach the orchestrator before Start.
func New(cfg config.GatewayConfig, st store.SessionStore, log *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log.Sub("gateway"),
		store:   st,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Attach wires the orchestrator in. Separate from New because the
// orchestrator needs the server as its event sink.
func (s *Server) Attach(orch *agent.Orchestrator) {
	s.mu.Lock()
	s.orch = orch
	s.mu.Unlock()
}

func (s *Server) orchestrator() *agent.Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orch
}

func resolveBindAddr(cfg config.GatewayConfig) string {
	if cfg.Bind == "lan" {
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	}
	return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
}

// Start begins listening for WebSocket connections. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(8 * 1024 * 1024)

	c := &client{id: uuid.New().String(), conn: conn}
	s.addClient(c)
	defer func() {
		s.removeClient(c.id)
		conn.Close()
	}()

	s.log.Debug().Str("connId", c.id).Str("remote", r.RemoteAddr).Msg("client connected")
	s.readLoop(r.Context(), c)
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", c.id).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", c.id).Msg("read error")
			}
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		s.dispatch(ctx, c, frame)
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		c.conn.Close()
	}
	s.clients = make(map[string]*client)
}

// broadcast sends an event frame to every connected client.
func (s *Server) broadcast(event string, payload any) {
	frame, err := NewEvent(event, payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}

	s.mu.RLock()
	conns := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(frame); err != nil {
			s.log.Warn().Err(err).Str("connId", c.id).Msg("event write failed")
		}
	}
}

// MessageAppended implements agent.EventSink.
func (s *Server) MessageAppended(sessionID string, msg domain.Message) {
	s.broadcast(EventMessage, map[string]any{
		"sessionId": sessionID,
		"message":   msg,
	})
}

// ConflictAdvisory implements agent.EventSink.
func (s *Server) ConflictAdvisory(sessionID, notice string, ttl time.Duration) {
	s.broadcast(EventConflictAdvisory, map[string]any{
		"sessionId": sessionID,
		"notice":    notice,
		"ttlMs":     ttl.Milliseconds(),
	})
}

// ConflictCleared implements agent.EventSink.
func (s *Server) ConflictCleared(sessionID string) {
	s.broadcast(EventConflictCleared, map[string]any{"sessionId": sessionID})
}

// ActiveSessionChanged implements agent.EventSink.
func (s *Server) ActiveSessionChanged(sessionID string) {
	s.broadcast(EventSessionActive, map[string]any{"sessionId": sessionID})
}
