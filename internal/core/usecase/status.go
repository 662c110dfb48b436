package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

const defaultProbeTimeout = 2 * time.Second

// Pinger is a reachability probe with no side effects.
type Pinger interface {
	Ping(ctx context.Context) error
}

type StatusUseCase struct {
	probes  map[string]Pinger
	timeout time.Duration
}

func NewStatusUseCase(probes map[string]Pinger, timeout time.Duration) *StatusUseCase {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &StatusUseCase{
		probes:  probes,
		timeout: timeout,
	}
}

// Status probes every component concurrently. ReadyForQueries is the AND of
// all component results; an empty probe set is never ready.
func (uc *StatusUseCase) Status(ctx context.Context) domain.HealthStatus {
	names := make([]string, 0, len(uc.probes))
	for name := range uc.probes {
		names = append(names, name)
	}
	results := make([]bool, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		probe := uc.probes[name]
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, uc.timeout)
			defer cancel()
			if err := probe.Ping(probeCtx); err != nil {
				slog.Debug("health_probe_failed", "component", name, "error", err)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	status := domain.HealthStatus{
		Components:      make(map[string]bool, len(names)),
		ReadyForQueries: len(names) > 0,
	}
	for i, name := range names {
		status.Components[name] = results[i]
		status.ReadyForQueries = status.ReadyForQueries && results[i]
	}
	return status
}
