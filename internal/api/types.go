package api

import "github.com/mattjoyce/pumpkin/internal/engine"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status            string       `json:"status"`
	UptimeSeconds     int64        `json:"uptime_seconds"`
	Programs          engine.Stats `json:"programs"`
	Subscriptions     int          `json:"subscriptions"`
	EventObservers    int          `json:"event_observers"`
	ConfigFingerprint string       `json:"config_fingerprint,omitempty"`
}

// EvalResponse is returned by POST /eval. Stack values are hex encoded,
// bottom first.
type EvalResponse struct {
	EnvID      string        `json:"env_id"`
	Stack      []string      `json:"stack"`
	Error      *ProgramError `json:"error,omitempty"`
	DurationMS int64         `json:"duration_ms"`
}

// ProgramError describes why a program aborted.
type ProgramError struct {
	Code    uint8  `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// SyntaxErrorResponse is returned when POST /eval cannot compile its body.
type SyntaxErrorResponse struct {
	Error  string `json:"error"`
	Offset int    `json:"offset"`
	Token  string `json:"token"`
}
