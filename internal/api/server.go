// Package api exposes the group control HTTP API. Groups are read and
// commanded by name; command outcomes map onto HTTP status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightgroupd/internal/group"
)

// GroupService is what the API needs from the application: group lookup,
// state reads and command dispatch.
type GroupService interface {
	Names() []string
	State(name string) (group.State, error)
	Command(ctx context.Context, name string, cmd group.Command) (group.Outcome, error)
}

// ErrGroupNotFound is returned by GroupService implementations for unknown
// group names.
var ErrGroupNotFound = errors.New("group not found")

// Server is the group control HTTP server.
type Server struct {
	addr       string
	service    GroupService
	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(host string, port int, service GroupService) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		service: service,
	}
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /groups", s.handleListGroups)
	mux.HandleFunc("GET /groups/{name}", s.handleGroupState)
	mux.HandleFunc("POST /groups/{name}/command", s.handleGroupCommand)
	return mux
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"groups": s.service.Names()})
}

func (s *Server) handleGroupState(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	state, err := s.service.State(name)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown group %q", name))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"name": name, "state": state})
}

// commandRequest is the POST /groups/{name}/command payload.
type commandRequest struct {
	Action string            `json:"action"`
	Attrs  *group.Attributes `json:"attrs,omitempty"`
}

func (s *Server) handleGroupCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	defer r.Body.Close()

	cmdType, ok := parseAction(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	log.Debug().
		Str("group", name).
		Str("action", req.Action).
		Msg("Received group command")

	outcome, err := s.service.Command(r.Context(), name, group.Command{Type: cmdType, Attrs: req.Attrs})
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown group %q", name))
			return
		}
		// Every targeted member failed: the command did not take effect.
		writeJSON(w, http.StatusBadGateway, outcomeBody(outcome, err))
		return
	}

	status := http.StatusOK
	if outcome.Status == group.StatusPartial {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, outcomeBody(outcome, nil))
}

func parseAction(action string) (group.CommandType, bool) {
	switch action {
	case "turn_on":
		return group.CommandTurnOn, true
	case "turn_off":
		return group.CommandTurnOff, true
	case "set_attributes":
		return group.CommandSetAttributes, true
	case "toggle":
		return group.CommandToggle, true
	default:
		return 0, false
	}
}

func outcomeBody(out group.Outcome, err error) map[string]any {
	body := map[string]any{
		"status":  out.Status.String(),
		"targets": out.Targets,
	}
	if len(out.Failed) > 0 {
		failed := make([]map[string]string, len(out.Failed))
		for i, f := range out.Failed {
			failed[i] = map[string]string{
				"device_id": f.DeviceID,
				"error":     f.Err.Error(),
			}
		}
		body["failed"] = failed
	}
	if err != nil {
		body["error"] = err.Error()
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
