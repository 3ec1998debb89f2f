package envelope

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusHint classifies why a hop could not complete a request normally.
type StatusHint string

const (
	HintUpstreamError     StatusHint = "UPSTREAM_ERROR"
	HintTimeout           StatusHint = "TIMEOUT"
	HintConnectionRefused StatusHint = "CONNECTION_REFUSED"
	HintParseError        StatusHint = "PARSE_ERROR"
	HintInternal          StatusHint = "INTERNAL"
)

// HTTPStatus maps a hint to the status code a hop returns to its caller.
func (h StatusHint) HTTPStatus() int {
	switch h {
	case HintUpstreamError, HintConnectionRefused:
		return http.StatusBadGateway
	case HintTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RelayResponse is the body every hop returns on success. Upstream carries
// the next hop's body byte-for-byte; a terminal hop leaves it empty and
// fills Payload instead.
type RelayResponse struct {
	Service   string          `json:"service"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   *Payload        `json:"payload,omitempty"`
	Upstream  json.RawMessage `json:"upstream,omitempty"`
}

// Payload is the synthetic record generated by a terminal hop.
type Payload struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Value int    `json:"value"`
}

// ErrorEnvelope replaces a RelayResponse whenever a hop fails.
type ErrorEnvelope struct {
	Error      string     `json:"error"`
	Details    *string    `json:"details"`
	StatusHint StatusHint `json:"status_hint"`
}

// NewError builds an envelope; an empty details string marshals as null.
func NewError(msg, details string, hint StatusHint) ErrorEnvelope {
	env := ErrorEnvelope{Error: msg, StatusHint: hint}
	if details != "" {
		env.Details = &details
	}
	return env
}
