package terminal

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/envelope"
	"github.com/hopchain/hopchain/internal/server"
)

var payloadKinds = []string{"widget", "gadget", "sprocket", "gizmo"}

// Service is the leaf hop of a chain. It makes no outbound calls and
// keeps no state between requests; every response is generated fresh.
type Service struct {
	cfg    *config.Terminal
	logger *slog.Logger
}

func New(cfg *config.Terminal, logger *slog.Logger) (*Service, error) {
	return &Service{
		cfg:    cfg,
		logger: logger.With("component", "terminal"),
	}, nil
}

func (s *Service) Routes(r chi.Router) {
	r.Get("/data", s.handleData)
}

func (s *Service) handleData(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.simulateWork(r.Context())
	if !ok {
		s.logger.Warn("synthetic failure injected")
		env := envelope.NewError("synthetic failure", "", envelope.HintInternal)
		server.JSON(w, http.StatusServiceUnavailable, env)
		return
	}

	server.JSON(w, http.StatusOK, envelope.RelayResponse{
		Service:   s.cfg.ServiceName,
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Payload:   &payload,
	})
}

// simulateWork stands in for real processing: with probability FailRate
// it reports a failure without doing anything; otherwise it sleeps for a
// random duration inside the configured range and produces a payload.
// The outcome is an explicit return value, never a panic.
func (s *Service) simulateWork(ctx context.Context) (envelope.Payload, bool) {
	if rand.Float64() < s.cfg.FailRate {
		return envelope.Payload{}, false
	}

	sleepBetween(ctx, s.cfg.WorkMin, s.cfg.WorkMax)

	return envelope.Payload{
		ID:    uuid.New().String(),
		Kind:  payloadKinds[rand.Intn(len(payloadKinds))],
		Value: rand.Intn(1000),
	}, true
}

// sleepBetween pauses for a duration drawn uniformly from [min, max],
// returning early if ctx is cancelled.
func sleepBetween(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
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
