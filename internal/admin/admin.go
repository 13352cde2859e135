// Package admin is the operator-triggered surface: evicting a permanently
// unreachable replica, and inspecting DbVNManager's state. It is plain JSON
// over HTTP, bound to a loopback-only listener by the caller; these are
// operator actions, not application-server traffic.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/pretty"

	"verscheduler/internal/logx"
	"verscheduler/internal/scheduler"
)

// Server serves the admin endpoints against one DbVNManager.
type Server struct {
	dbvn *scheduler.DbVNManager
}

// NewServer wraps a DbVNManager for admin HTTP service.
func NewServer(dbvn *scheduler.DbVNManager) *Server {
	return &Server{dbvn: dbvn}
}

// Handler returns the mux to bind to an http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/evict", s.handleEvict)
	mux.HandleFunc("/admin/snapshot", s.handleSnapshot)
	return mux
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	addr := r.URL.Query().Get("replica")
	if addr == "" {
		http.Error(w, "missing replica query parameter", http.StatusBadRequest)
		return
	}
	if !s.dbvn.EvictReplica(addr) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	logx.Infof("admin: evicted replica %s", addr)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := s.dbvn.Snapshot()
	body, err := json.Marshal(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(pretty.Pretty(body))
}
