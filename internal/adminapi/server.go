// Package adminapi exposes the narrow admin HTTP surface this repo
// actually needs: "trigger now" and a status snapshot (spec.md §6's full
// handler surface — sources/videos CRUD, log streaming, sysinfo — is out
// of scope per spec.md §1). Routing follows the teacher's chi-based
// convention (_examples/ManuGH-xg2g/internal/api/server_routes.go).
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/kaorin/bilisync/internal/scheduler"
)

// Trigger is the subset of scheduler.Scheduler this router depends on.
type Trigger interface {
	TriggerNow()
	Status() scheduler.Snapshot
}

// Server builds the admin HTTP handler.
type Server struct {
	trigger Trigger
	token   string
}

// New builds a Server. token is the shared secret required on every
// request; an empty token disables the admin surface (all requests 401).
func New(trigger Trigger, token string) *Server {
	return &Server{trigger: trigger, token: token}
}

// Routes builds the chi.Router exposing POST /trigger and GET /status.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(30, time.Minute))

	r.Post("/trigger", requireToken(s.token, s.handleTrigger))
	r.Get("/status", requireToken(s.token, s.handleStatus))

	return r
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.trigger.TriggerNow()
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"triggered"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.trigger.Status()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
