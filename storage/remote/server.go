package remote

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/foliavcs/folia/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes a storage.Adapter over HTTP for GetCommitGraph/GetCommits/
// ApplyUpdate, and pushes a notification over websocket to every connected
// client whenever ApplyUpdate succeeds.
type Server struct {
	adapter storage.Adapter
	logger  *slog.Logger

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool
	notify    chan updateMessage
}

// NewServer wraps adapter. If logger is nil, slog.Default() is used.
func NewServer(adapter storage.Adapter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		adapter: adapter,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		notify:  make(chan updateMessage, 64),
	}
}

// Handler returns the server's http.Handler, mountable at any prefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graph", s.handleGraph)
	mux.HandleFunc("/commits", s.handleCommits)
	mux.HandleFunc("/update", s.handleUpdate)
	mux.HandleFunc("/erase", s.handleErase)
	mux.HandleFunc("/ws", s.handleWebSocket)
	go s.pump()
	return mux
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.adapter.GetCommitGraph(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toWire(graph))
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	commits, err := s.adapter.GetCommits(r.Context(), ids)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(commits)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var update storage.InternalRepoUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.adapter.ApplyUpdate(r.Context(), update); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	branches := make([]string, 0, len(update.AddedBranches)+len(update.UpdatedBranches))
	for _, b := range update.AddedBranches {
		branches = append(branches, b.Name)
	}
	for _, b := range update.UpdatedBranches {
		branches = append(branches, b.Name)
	}
	select {
	case s.notify <- updateMessage{Branches: branches}:
	default:
		s.logger.Warn("remote: notify channel full, dropping push")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	if err := s.adapter.EraseStorage(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("remote: websocket upgrade failed", "error", err)
		return
	}
	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) pump() {
	for msg := range s.notify {
		s.clientsMu.RLock()
		for conn := range s.clients {
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Warn("remote: push failed, dropping client", "error", err)
				go func(c *websocket.Conn) {
					s.clientsMu.Lock()
					delete(s.clients, c)
					s.clientsMu.Unlock()
					_ = c.Close()
				}(conn)
			}
		}
		s.clientsMu.RUnlock()
	}
}
