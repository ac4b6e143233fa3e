// Package gateway provides the webhook transport: an HTTP server that
// accepts GREEN-API webhook calls and publishes them to the bus. It also
// serves health and status endpoints and an optional WebSocket tail of
// accepted events for debugging.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"greenbot/pkg/bus"
	"greenbot/pkg/config"
	"greenbot/pkg/logger"
	"greenbot/pkg/version"
)

const maxBodyBytes = 4 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSMessage is the JSON frame sent to event stream clients.
type WSMessage struct {
	Type       string          `json:"type"` // "system", "event", "pong"
	Content    string          `json:"content,omitempty"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Event      json.RawMessage `json:"event,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// client is a connected event stream observer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// StatusFunc contributes one section to /api/v1/status.
type StatusFunc func() any

// Server is the webhook HTTP server.
type Server struct {
	cfg    config.WebhookConfig
	mode   string
	logger *logger.Logger
	bus    bus.Bus

	echo       *echo.Echo
	httpServer *http.Server
	listener   net.Listener
	startedAt  time.Time

	mu      sync.RWMutex
	clients map[string]*client
	status  map[string]StatusFunc
	events  uint64
}

// NewServer creates the webhook server. Routes are registered immediately so
// the server can be exercised through Handler without listening.
func NewServer(cfg *config.Config, log *logger.Logger, b bus.Bus) *Server {
	s := &Server{
		cfg:       cfg.Webhook,
		mode:      cfg.Receiver.Mode,
		logger:    log.Named("gateway"),
		bus:       b,
		startedAt: time.Now(),
		clients:   make(map[string]*client),
		status:    make(map[string]StatusFunc),
	}

	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()
	e.Use(middleware.Recover())

	path := s.cfg.Path
	if path == "" {
		path = "/"
	}
	e.POST(path, s.handleWebhook)

	e.GET("/health", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/api/v1/status", s.handleStatus)

	if s.cfg.EnableEventStream {
		e.GET("/ws/events", s.handleEventStream)
	}

	s.echo = e
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// AddStatus registers a named section for the status endpoint.
func (s *Server) AddStatus(name string, fn StatusFunc) {
	s.mu.Lock()
	s.status[name] = fn
	s.mu.Unlock()
}

// Start binds the listen address and serves in the background. A bind
// failure is returned.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.logger.Info("Webhook server starting",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", s.cfg.Path),
		zap.Bool("auth", s.cfg.AuthToken != ""),
	)

	// http.Server keeps shutdown under the caller's control.
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Webhook server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes event stream clients and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Webhook server stopping")

	s.mu.Lock()
	for id, cl := range s.clients {
		close(cl.send)
		delete(s.clients, id)
	}
	s.mu.Unlock()

	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// --- Webhook ---

func (s *Server) handleWebhook(c *echo.Context) error {
	if !s.authorized(c.Request()) {
		s.logger.Warn("Rejected webhook with bad credentials",
			zap.String("remote", c.Request().RemoteAddr))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read body"})
	}
	if len(body) > maxBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
	}
	typeWebhook := gjson.GetBytes(body, "typeWebhook")
	if typeWebhook.Type != gjson.String || typeWebhook.Str == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing typeWebhook"})
	}

	env := bus.NewEnvelope(bus.SourceWebhook, body)
	if err := s.bus.Publish(c.Request().Context(), env); err != nil {
		s.logger.Error("Failed to publish webhook",
			zap.String("type_webhook", typeWebhook.Str),
			zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "bus unavailable"})
	}

	s.mu.Lock()
	s.events++
	s.mu.Unlock()

	s.logger.Debug("Accepted webhook",
		zap.String("envelope_id", env.ID),
		zap.String("type_webhook", typeWebhook.Str))

	s.broadcast(env)
	return c.NoContent(http.StatusOK)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1
}

// --- Status ---

func (s *Server) handleStatus(c *echo.Context) error {
	uptime := time.Since(s.startedAt)

	s.mu.RLock()
	sections := make(map[string]StatusFunc, len(s.status))
	for name, fn := range s.status {
		sections[name] = fn
	}
	payload := map[string]interface{}{
		"version":         version.Version,
		"commit":          version.GitCommit,
		"go_version":      runtime.Version(),
		"mode":            s.mode,
		"uptime":          uptime.Round(time.Second).String(),
		"uptime_seconds":  int64(uptime.Seconds()),
		"webhook_events":  s.events,
		"stream_clients":  len(s.clients),
		"bus_metrics":     s.bus.GetMetrics(),
		"event_streaming": s.cfg.EnableEventStream,
	}
	s.mu.RUnlock()

	for name, fn := range sections {
		payload[name] = fn()
	}

	return c.JSON(http.StatusOK, payload)
}

// --- Event stream ---

func (s *Server) handleEventStream(c *echo.Context) error {
	if !s.authorized(c.Request()) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("Event stream upgrade failed", zap.Error(err))
		return nil
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	welcome := WSMessage{
		Type:      "system",
		Content:   "Connected to greenbot event stream",
		Timestamp: time.Now().Unix(),
	}
	if data, err := json.Marshal(welcome); err == nil {
		cl.send <- data
	}

	s.mu.Lock()
	s.clients[cl.id] = cl
	s.mu.Unlock()

	s.logger.Info("Event stream client connected", zap.String("client_id", cl.id))

	go s.writePump(cl)
	s.readPump(cl)
	return nil
}

// broadcast mirrors an accepted envelope to every stream client. Slow
// clients miss frames rather than block the webhook.
func (s *Server) broadcast(env *bus.Envelope) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:       "event",
		EnvelopeID: env.ID,
		Event:      env.Body,
		Timestamp:  env.ReceivedAt.Unix(),
	})
	if err != nil {
		return
	}

	for _, cl := range s.clients {
		select {
		case cl.send <- data:
		default:
			s.logger.Warn("Event stream client lagging, frame dropped",
				zap.String("client_id", cl.id))
		}
	}
}

func (s *Server) readPump(cl *client) {
	defer func() {
		s.removeClient(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(4096)
	cl.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Event stream read error",
					zap.String("client_id", cl.id),
					zap.Error(err),
				)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if data, err := json.Marshal(WSMessage{Type: "pong", Timestamp: time.Now().Unix()}); err == nil {
				s.trySend(cl, data)
			}
		}
	}
}

func (s *Server) writePump(cl *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case message, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data unless the client is gone or lagging.
func (s *Server) trySend(cl *client, data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[cl.id]; !ok {
		return
	}
	select {
	case cl.send <- data:
	default:
	}
}

func (s *Server) removeClient(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[cl.id]; ok {
		close(cl.send)
		delete(s.clients, cl.id)
		s.logger.Info("Event stream client disconnected",
			zap.String("client_id", cl.id),
		)
	}
}
