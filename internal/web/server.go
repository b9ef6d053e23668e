package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/vaporwave/internal/analyzer"
	"github.com/guidoenr/vaporwave/internal/params"
	"go.uber.org/zap"
)

//go:embed index.html
var indexHTML []byte

const (
	statusInterval = 500 * time.Millisecond
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBuffer     = 16
)

// Status is what the panel shows about the running visualizer.
type Status struct {
	State    string                 `json:"state"`
	Features analyzer.FeatureVector `json:"features"`
	FPS      float64                `json:"fps"`
	Params   params.Parameters      `json:"params"`
	Error    string                 `json:"error,omitempty"`
}

// Controller is the capture side of the visualizer as seen by the panel.
type Controller interface {
	Status() Status
	Start() error
	Stop() error
}

// Server exposes the parameter store and capture controls over HTTP and pushes
// status to WebSocket clients.
type Server struct {
	store    *params.Store
	ctrl     Controller
	log      *zap.Logger
	upgrader websocket.Upgrader
	interval time.Duration

	mu        sync.Mutex
	clients   map[*client]bool
	closed    bool
	broadcast chan []byte
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

type errorResponse struct {
	Error  string `json:"error"`
	Status Status `json:"status"`
}

// NewServer creates a panel server over store and ctrl.
func NewServer(store *params.Store, ctrl Controller, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:     store,
		ctrl:      ctrl,
		log:       logger,
		interval:  statusInterval,
		clients:   make(map[*client]bool),
		broadcast: make(chan []byte, 8),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routes of the panel.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/params", s.handleParams)
	mux.HandleFunc("POST /api/params", s.handleUpdateParams)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Run serves the panel on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.StartBroadcast(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("web panel listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// StartBroadcast pushes status to WebSocket clients until ctx is done.
func (s *Server) StartBroadcast(ctx context.Context) {
	go s.broadcastLoop(ctx)
	go s.statusLoop(ctx)
}

func (s *Server) status() Status {
	st := s.ctrl.Status()
	st.Params = s.store.Snapshot()
	return st
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleUpdateParams applies a partial object of name -> value. Values are clamped;
// an unknown name rejects the whole request.
func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var values map[string]int
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&values); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid parameters: " + err.Error(), Status: s.status()})
		return
	}
	updated, err := s.store.Update(values)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Status: s.status()})
		return
	}
	s.log.Debug("parameters updated", zap.Any("values", values))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Status: s.status()})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Status: s.status()})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}
	if data, err := json.Marshal(s.status()); err == nil {
		c.send <- data
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	s.clients[c] = true
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.closed = true
			for c := range s.clients {
				close(c.send)
				delete(s.clients, c)
			}
			s.mu.Unlock()
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for c := range s.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(s.clients, c)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		data, err := json.Marshal(s.status())
		if err != nil {
			s.log.Warn("encode status", zap.Error(err))
			continue
		}
		select {
		case s.broadcast <- data:
		default:
		}
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
