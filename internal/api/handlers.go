package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mattjoyce/pumpkin/internal/script"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		Programs:          s.engine.Stats(),
		EventObservers:    s.events.Observers(),
		ConfigFingerprint: s.config.ConfigFingerprint,
	}
	if s.bus != nil {
		resp.Subscriptions = s.bus.Len()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleInstructions handles GET /instructions.
func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Catalog())
}

// handleEval handles POST /eval. The body is PumpkinScript text, or an
// already compiled program when sent as application/octet-stream. The
// program runs detached from any session, so it cannot receive messages.
func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	program := body
	if r.Header.Get("Content-Type") != "application/octet-stream" {
		program, err = script.Compile(string(body))
		if err != nil {
			var syn *script.SyntaxError
			if errors.As(err, &syn) {
				respondJSON(w, http.StatusBadRequest, SyntaxErrorResponse{
					Error:  syn.Reason,
					Offset: syn.Offset,
					Token:  syn.Token,
				})
				return
			}
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	outcome := s.engine.Run(r.Context(), program, nil)

	resp := EvalResponse{
		EnvID:      outcome.EnvID.String(),
		Stack:      make([]string, len(outcome.Stack)),
		DurationMS: outcome.Duration.Milliseconds(),
	}
	for i, v := range outcome.Stack {
		resp.Stack[i] = hex.EncodeToString(v)
	}
	if outcome.Err != nil {
		resp.Error = &ProgramError{
			Code:    uint8(outcome.Err.Kind),
			Kind:    outcome.Err.Kind.String(),
			Message: outcome.Err.Error(),
		}
		if outcome.Err.Value != nil {
			resp.Error.Value = hex.EncodeToString(outcome.Err.Value)
		}
		respondJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
