// Package server exposes a live view of the knowledge base over
// websockets. Connecting clients receive the current graph, then fresh
// builds whenever the session mutates. Clients may also submit
// statements and graph filters over the socket.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/doxa/graph"
	"github.com/teranos/doxa/kb"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/logger"
	"github.com/teranos/doxa/version"
)

// Server owns the websocket hub and the HTTP mux.
type Server struct {
	sess    *kb.Session
	builder *graph.Builder
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan *graph.Graph

	// dirty coalesces change notifications between rebuilds.
	dirty chan struct{}

	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds a server over a session.
func NewServer(sess *kb.Session, log *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		sess:       sess,
		builder:    graph.NewBuilder(sess, log),
		log:        log,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *graph.Graph, 8),
		dirty:      make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The UI is served elsewhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the HTTP mux: /ws for the socket, /graph for a
// one-shot JSON snapshot, /healthz for liveness.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/graph", s.handleGraph)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start launches the hub and rebuild loops without binding a listener.
// Use with Handler when the mux is mounted elsewhere.
func (s *Server) Start() {
	s.wg.Add(2)
	go s.hubLoop()
	go s.rebuildLoop()
}

// Run starts the hub and serves on addr until Shutdown. It blocks.
func (s *Server) Run(addr string) error {
	s.Start()

	httpSrv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-s.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("Server listening", "addr", addr)
	err := httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		err = nil
	}
	s.wg.Wait()
	return err
}

// Shutdown stops the hub and closes every client.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// OnEvent marks the graph dirty. It runs on the mutating goroutine and
// must not block, so notifications coalesce into a single pending bit.
func (s *Server) OnEvent(ontology.Event) {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// OnInference marks the graph dirty once for the whole run; the
// per-derivation events were already coalesced.
func (s *Server) OnInference(inference.Report) {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Server) hubLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			for c := range s.clients {
				c.close()
			}
			s.clients = make(map[*client]bool)
			s.mu.Unlock()
			return

		case c := <-s.register:
			s.mu.Lock()
			s.clients[c] = true
			n := len(s.clients)
			s.mu.Unlock()
			s.log.Debugw("Client connected", logger.FieldClientID, c.id, logger.FieldCount, n)

			// New clients get the current graph immediately.
			c.enqueue(graphMessage(s.builder.Build(s.sess.Now())))

		case c := <-s.unregister:
			s.mu.Lock()
			if s.clients[c] {
				delete(s.clients, c)
				c.close()
			}
			n := len(s.clients)
			s.mu.Unlock()
			s.log.Debugw("Client disconnected", logger.FieldClientID, c.id, logger.FieldCount, n)

		case g := <-s.broadcast:
			msg := graphMessage(g)
			s.mu.RLock()
			for c := range s.clients {
				c.enqueue(msg)
			}
			s.mu.RUnlock()
		}
	}
}

// rebuildLoop turns dirty marks into broadcast graphs. Rebuilds are
// rate-limited by the build itself; a burst of mutations produces one
// graph.
func (s *Server) rebuildLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
			g := s.builder.Build(s.sess.Now())
			select {
			case s.broadcast <- g:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	c := newClient(s, conn)
	select {
	case s.register <- c:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	f, err := graph.ParseFilter(r.URL.Query().Get("q"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g := s.builder.BuildFiltered(s.sess.Now(), f)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g); err != nil {
		s.log.Warnw("Graph encode failed", logger.FieldError, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	entities, relations, assertions, contextCount, ruleCount := s.sess.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": version.Get(),
		"stats": map[string]int{
			"entities":   entities,
			"relations":  relations,
			"assertions": assertions,
			"contexts":   contextCount,
			"rules":      ruleCount,
		},
	})
}
