// Package hashing implements a deterministic local embedder based on feature
// hashing of word tokens. It needs no model server, so it backs development
// setups and tests that must not depend on Ollama.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimension = 384

type Embedder struct {
	dim   int
	model string
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dim:   dimension,
		model: fmt.Sprintf("hash-fnv32a-%d", dimension),
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vectorize(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vectorize(text), nil
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Dimension() int { return e.dim }

// Ping always succeeds; the embedder runs in process.
func (e *Embedder) Ping(context.Context) error { return nil }

func (e *Embedder) vectorize(text string) []float32 {
	vector := make([]float32, e.dim)
	termFreq := make(map[string]int, 32)
	for _, token := range tokenize(text) {
		if _, skip := stopwords[token]; skip || len([]rune(token)) < 2 {
			continue
		}
		termFreq[token]++
	}

	for token, count := range termFreq {
		h := hashToken(token)
		weight := 1 + math.Log(float64(count))
		if h&(1<<31) != 0 {
			weight = -weight
		}
		vector[int(h%uint32(e.dim))] += float32(weight)
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {}, "when": {}, "which": {},
	"who": {}, "why": {}, "with": {}, "you": {}, "your": {},
}
