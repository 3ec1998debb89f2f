package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/envelope"
	"github.com/hopchain/hopchain/internal/server"
)

const maxDetailBytes = 256

// Service is an intermediate hop: one inbound request maps to exactly one
// outbound GET to the configured next hop. Failures are classified and
// surfaced immediately; a hop never retries its downstream call.
type Service struct {
	cfg    *config.Relay
	client *http.Client
	logger *slog.Logger
}

func New(cfg *config.Relay, logger *slog.Logger) (*Service, error) {
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive")
	}

	return &Service{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.With("component", "relay"),
	}, nil
}

func (s *Service) Routes(r chi.Router) {
	r.Get("/process", s.handleProcess)
}

func (s *Service) handleProcess(w http.ResponseWriter, r *http.Request) {
	// A client disconnect must not cancel the in-flight downstream call;
	// the hop finishes its one attempt regardless.
	body, fail := s.callUpstream(context.WithoutCancel(r.Context()))
	if fail != nil {
		s.logger.Error("upstream call failed",
			"target", s.cfg.Target.URL(),
			"hint", fail.hint,
			"error", fail.message,
		)
		env := envelope.NewError(fail.message, fail.details, fail.hint)
		server.JSON(w, fail.hint.HTTPStatus(), env)
		return
	}

	// Local processing cost is simulated after the downstream call so the
	// placement is the same on every hop.
	s.localDelay(r.Context())

	server.JSON(w, http.StatusOK, envelope.RelayResponse{
		Service:   s.cfg.ServiceName,
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Upstream:  body,
	})
}

type callFailure struct {
	hint    envelope.StatusHint
	message string
	details string
}

// callUpstream issues the single downstream attempt and either returns the
// raw response body or a classified failure.
func (s *Service) callUpstream(ctx context.Context) (json.RawMessage, *callFailure) {
	target := s.cfg.Target.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &callFailure{
			hint:    envelope.HintInternal,
			message: "failed to build upstream request",
			details: err.Error(),
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &callFailure{
			hint:    envelope.HintInternal,
			message: "failed to read upstream response",
			details: err.Error(),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &callFailure{
			hint:    envelope.HintUpstreamError,
			message: fmt.Sprintf("upstream returned status %d", resp.StatusCode),
			details: truncate(body),
		}
	}

	if !json.Valid(body) {
		return nil, &callFailure{
			hint:    envelope.HintParseError,
			message: "upstream response is not valid JSON",
			details: truncate(body),
		}
	}

	return body, nil
}

func classifyTransportError(err error) *callFailure {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &callFailure{
			hint:    envelope.HintTimeout,
			message: "upstream call timed out",
			details: err.Error(),
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &callFailure{
			hint:    envelope.HintConnectionRefused,
			message: "upstream connection refused",
			details: err.Error(),
		}
	}

	return &callFailure{
		hint:    envelope.HintInternal,
		message: "upstream call failed",
		details: err.Error(),
	}
}

func (s *Service) localDelay(ctx context.Context) {
	d := s.cfg.WorkMin
	if s.cfg.WorkMax > s.cfg.WorkMin {
		d += time.Duration(rand.Int63n(int64(s.cfg.WorkMax - s.cfg.WorkMin)))
	}
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func truncate(b []byte) string {
	if len(b) > maxDetailBytes {
		return string(b[:maxDetailBytes])
	}
	return string(b)
}
