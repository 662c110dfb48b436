package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

type pingerFake struct {
	err   error
	block bool
	calls int
}

func (f *pingerFake) Ping(ctx context.Context) error {
	f.calls++
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestStatusAllReady(t *testing.T) {
	uc := NewStatusUseCase(map[string]Pinger{
		domain.ComponentEmbeddingService: &pingerFake{},
		domain.ComponentVectorStore:      &pingerFake{},
		domain.ComponentGenerationModel:  &pingerFake{},
	}, time.Second)

	status := uc.Status(context.Background())
	if !status.ReadyForQueries {
		t.Fatalf("expected ready, got %+v", status)
	}
	if len(status.Components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(status.Components))
	}
}

func TestStatusOneComponentDown(t *testing.T) {
	uc := NewStatusUseCase(map[string]Pinger{
		domain.ComponentEmbeddingService: &pingerFake{},
		domain.ComponentVectorStore:      &pingerFake{err: errors.New("connection refused")},
		domain.ComponentGenerationModel:  &pingerFake{},
	}, time.Second)

	status := uc.Status(context.Background())
	if status.ReadyForQueries {
		t.Fatalf("expected not ready")
	}
	if status.Components[domain.ComponentVectorStore] {
		t.Fatalf("expected vector store down")
	}
	if !status.Components[domain.ComponentEmbeddingService] || !status.Components[domain.ComponentGenerationModel] {
		t.Fatalf("expected other components up, got %+v", status.Components)
	}
}

func TestStatusProbeTimeout(t *testing.T) {
	uc := NewStatusUseCase(map[string]Pinger{
		domain.ComponentGenerationModel: &pingerFake{block: true},
	}, 20*time.Millisecond)

	started := time.Now()
	status := uc.Status(context.Background())
	if status.Components[domain.ComponentGenerationModel] || status.ReadyForQueries {
		t.Fatalf("expected hung probe reported as down, got %+v", status)
	}
	if time.Since(started) > time.Second {
		t.Fatalf("expected probe to respect timeout")
	}
}

func TestStatusIsRepeatable(t *testing.T) {
	probe := &pingerFake{}
	uc := NewStatusUseCase(map[string]Pinger{domain.ComponentVectorStore: probe}, time.Second)

	first := uc.Status(context.Background())
	second := uc.Status(context.Background())
	if first.ReadyForQueries != second.ReadyForQueries || probe.calls != 2 {
		t.Fatalf("expected identical results across calls, got %+v / %+v", first, second)
	}
}

func TestStatusWithoutProbesIsNotReady(t *testing.T) {
	if NewStatusUseCase(nil, 0).Status(context.Background()).ReadyForQueries {
		t.Fatalf("expected empty probe set to be not ready")
	}
}
