package tokens

import (
	"errors"
	"testing"

	"github.com/pkoukk/tiktoken-go"
)

func TestCountFallsBackToEstimate(t *testing.T) {
	c := NewCounter("")
	loads := 0
	c.load = func(string) (*tiktoken.Tiktoken, error) {
		loads++
		return nil, errors.New("offline")
	}

	if got := c.Count("12345678"); got != 2 {
		t.Fatalf("expected 2 estimated tokens, got %d", got)
	}
	if got := c.Count("abc"); got != 1 {
		t.Fatalf("expected 1 estimated token, got %d", got)
	}
	if loads != 1 {
		t.Fatalf("expected encoding load attempted once, got %d", loads)
	}
}

func TestCountEmpty(t *testing.T) {
	c := NewCounter(DefaultEncoding)
	c.load = func(string) (*tiktoken.Tiktoken, error) {
		t.Fatalf("encoding must not load for empty text")
		return nil, nil
	}
	if got := c.Count(""); got != 0 {
		t.Fatalf("expected 0 tokens, got %d", got)
	}
}
