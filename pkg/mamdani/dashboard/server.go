// Package dashboard serves an engine over HTTP: compute endpoints, model
// introspection, rule validation, a recent-event buffer, a websocket event
// stream and Prometheus metrics.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/actions"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
	"github.com/chosenoffset/mamdani/pkg/mamdani/metrics"
)

const (
	maxBodyBytes   = 1 << 20
	maxRuleName    = 100
	maxRuleSource  = 5000
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	broadcastQueue = 100
)

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry shares a metrics registry with the caller. Without it the
// server creates its own with the Go and process collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithInferenceMetrics exposes the engine's inference statistics on /api/stats.
func WithInferenceMetrics(m *metrics.InferenceMetrics) Option {
	return func(s *Server) { s.inference = m }
}

type Server struct {
	cfg     config.Service
	engine  *mamdani.Engine
	logger  *zap.Logger
	handler http.Handler
	server  *http.Server

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	inference    *metrics.InferenceMetrics
	clientsGauge prometheus.Gauge

	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	clients      map[*client]struct{}
	clientsMutex sync.RWMutex

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once

	eventBuffer []Event
	eventIndex  int
	eventCount  int
	mutex       sync.RWMutex

	startTime time.Time
}

// Event is one inference outcome as recorded in the buffer and streamed to
// websocket clients.
type Event struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	Type      string               `json:"type"`
	Message   string               `json:"message"`
	ElapsedMs float64              `json:"elapsed_ms"`
	Inputs    mamdani.Values       `json:"inputs,omitempty"`
	Outputs   mamdani.Values       `json:"outputs,omitempty"`
	Firings   []mamdani.RuleFiring `json:"firings,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// New builds a server for engine. The broadcast loop starts immediately;
// call Stop to release it.
func New(engine *mamdani.Engine, cfg config.Service, opts ...Option) *Server {
	s := &Server{
		cfg:         cfg,
		engine:      engine,
		logger:      zap.NewNop(),
		clients:     make(map[*client]struct{}),
		events:      make(chan Event, broadcastQueue),
		stop:        make(chan struct{}),
		eventBuffer: make([]Event, max(cfg.EventBuffer, 1)),
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = metrics.NewRegistry()
	}

	s.httpMetrics = metrics.NewHTTPMetrics(s.registry)
	s.clientsGauge = promauto.With(s.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "mamdani",
		Subsystem: "dashboard",
		Name:      "websocket_clients",
		Help:      "Connected websocket clients",
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	s.limiter = rate.NewLimiter(limit, max(cfg.RateBurst, 1))

	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/compute", s.httpMetrics.Middleware("/api/compute", s.handleCompute))
	mux.HandleFunc("/api/compute/batch", s.httpMetrics.Middleware("/api/compute/batch", s.handleBatch))
	mux.HandleFunc("/api/model", s.httpMetrics.Middleware("/api/model", s.handleModel))
	mux.HandleFunc("/api/rules/validate", s.httpMetrics.Middleware("/api/rules/validate", s.handleRuleValidation))
	mux.HandleFunc("/api/events", s.httpMetrics.Middleware("/api/events", s.handleEvents))
	mux.HandleFunc("/api/stats", s.httpMetrics.Middleware("/api/stats", s.handleStats))
	mux.HandleFunc("/ws", s.httpMetrics.Middleware("/ws", s.handleWebSocket))
	mux.Handle("/metrics", metrics.Handler(s.registry))
	mux.HandleFunc("/healthz", s.handleHealth)
	s.handler = mux

	go s.broadcast()
	return s
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address until Stop is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mutex.Lock()
	s.server = srv
	s.mutex.Unlock()

	select {
	case <-s.stop:
		return nil
	default:
	}

	s.logger.Info("starting dashboard", zap.String("addr", s.cfg.ListenAddr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mutex.RLock()
	srv := s.server
	s.mutex.RUnlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}

// Attach registers the server as a handler for every inference action.
func (s *Server) Attach(r *actions.ActionRegistry) {
	for _, t := range []actions.ActionType{actions.ComputedAction, actions.FailedAction, actions.AlertAction} {
		r.RegisterHandler(t, s)
	}
}

// Handle records an action and queues it for websocket clients.
func (s *Server) Handle(a actions.Action) error {
	event := Event{
		ID:        a.ID,
		Timestamp: a.Timestamp,
		Type:      string(a.Type),
		Message:   a.Message,
		ElapsedMs: float64(a.Elapsed) / float64(time.Millisecond),
		Error:     a.Error,
	}
	// The inference maps are shared with the caller of Compute, and events
	// are marshalled on the broadcast goroutine.
	if ic := a.Inference; ic != nil {
		event.Inputs = maps.Clone(ic.Inputs)
		event.Outputs = maps.Clone(ic.Outputs)
		event.Firings = slices.Clone(ic.Firings)
	}
	s.record(event)
	return nil
}

func (s *Server) record(event Event) {
	s.mutex.Lock()
	s.eventBuffer[s.eventIndex] = event
	s.eventIndex = (s.eventIndex + 1) % len(s.eventBuffer)
	if s.eventCount < len(s.eventBuffer) {
		s.eventCount++
	}
	s.mutex.Unlock()

	select {
	case s.events <- event:
	default:
		s.logger.Debug("broadcast queue full, dropping event", zap.String("id", event.ID))
	}
}

// Events returns the buffered events, oldest first.
func (s *Server) Events() []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := make([]Event, s.eventCount)
	if s.eventCount == len(s.eventBuffer) {
		for i := range events {
			events[i] = s.eventBuffer[(s.eventIndex+i)%len(s.eventBuffer)]
		}
	} else {
		copy(events, s.eventBuffer[:s.eventCount])
	}
	return events
}

func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, host) {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ClientCount() >= s.cfg.MaxClients {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	s.clientsMutex.Lock()
	s.clients[c] = struct{}{}
	s.clientsGauge.Set(float64(len(s.clients)))
	s.clientsMutex.Unlock()

	defer s.removeClient(c)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reading is required to notice disconnects.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.stop:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMutex.Lock()
	delete(s.clients, c)
	s.clientsGauge.Set(float64(len(s.clients)))
	s.clientsMutex.Unlock()
}

func (s *Server) broadcast() {
	for {
		select {
		case event := <-s.events:
			s.broadcastMessage(map[string]interface{}{
				"type": "event",
				"data": event,
			})
		case <-s.stop:
			return
		}
	}
}

func (s *Server) broadcastMessage(message interface{}) {
	s.clientsMutex.RLock()
	if len(s.clients) == 0 {
		s.clientsMutex.RUnlock()
		return
	}
	clientsCopy := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clientsCopy = append(clientsCopy, c)
	}
	s.clientsMutex.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("failed to marshal broadcast", zap.Error(err))
		return
	}

	for _, c := range clientsCopy {
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			s.removeClient(c)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]interface{}{
		"status": "error",
		"kind":   metrics.Result(err),
		"error":  err.Error(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON request: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	buffered := s.eventCount
	s.mutex.RUnlock()

	stats := map[string]interface{}{
		"http":           s.httpMetrics.GetStats(),
		"clients":        s.ClientCount(),
		"events":         buffered,
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if s.inference != nil {
		stats["inference"] = s.inference.Stats()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data":   stats,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data":   s.Events(),
	})
}
