// Package server exposes scan control and live status over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/andresmejia3/oculus/internal/scheduler"
	"github.com/andresmejia3/oculus/internal/sink"
	"github.com/andresmejia3/oculus/internal/types"
)

// Server wires HTTP requests to a scheduler. Sessions started over HTTP live under the
// server's base context, not the request's.
type Server struct {
	base  context.Context
	sched *scheduler.Scheduler
	hub   *sink.Hub
	log   *slog.Logger
}

func New(base context.Context, sched *scheduler.Scheduler, hub *sink.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{base: base, sched: sched, hub: hub, log: logger.With("component", "server")}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Active      bool             `json:"active"`
	SessionID   string           `json:"session_id,omitempty"`
	Status      types.ScanStatus `json:"status"`
	Instruction string           `json:"instruction"`
	EyeDetected bool             `json:"eye_detected"`
	Zone        types.TargetZone `json:"zone"`
	Captured    bool             `json:"captured"`
	Error       string           `json:"error,omitempty"`
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/scan/start", s.handleStart).Methods("POST")
	r.HandleFunc("/scan/stop", s.handleStop).Methods("POST")
	r.HandleFunc("/capture", s.handleCapture).Methods("GET")
	r.HandleFunc("/ws", s.hub.ServeWS).Methods("GET")
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest := s.hub.Latest()
	resp := StatusResponse{
		Zone:  s.sched.Zone(),
		Error: s.hub.LastError(),
	}
	if sess := s.sched.Active(); sess != nil {
		resp.Active = true
		resp.SessionID = sess.ID()
		resp.Status = latest.Status
		resp.Instruction = latest.Instruction
		resp.EyeDetected = latest.EyeDetected
	}
	_, resp.Captured = s.hub.LastCapture()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sched.Start(s.base)
	if errors.Is(err, scheduler.ErrSessionActive) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("failed to start session", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("session started", "session", sess.ID(), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sess.ID()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sess := s.sched.Active()
	s.sched.Stop()
	resp := map[string]any{"stopped": sess != nil}
	if sess != nil {
		resp["session_id"] = sess.ID()
		s.log.Info("session stopped", "session", sess.ID(), "remote", r.RemoteAddr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	capture, ok := s.hub.LastCapture()
	if !ok {
		http.Error(w, "no capture yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(capture.Frame.Data)))
	w.Header().Set("X-Session-Id", capture.SessionID)
	w.WriteHeader(http.StatusOK)
	w.Write(capture.Frame.Data)
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.sched.Stop()
	s.hub.Close()

	// Use Background here because ctx is already cancelled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
