package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/resilience"
)

// Client stores one namespace as one Qdrant collection with cosine distance.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) WithResilience(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Reset deletes the collection. Upsert recreates it on demand.
func (c *Client) Reset(ctx context.Context) error {
	err := c.execute(ctx, "qdrant.delete_collection", func(callCtx context.Context) error {
		resp, err := c.do(callCtx, http.MethodDelete, c.collectionURL(), nil, "delete collection")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		if resp.StatusCode >= 300 {
			return statusError("delete collection", resp)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = false
	c.ensuredVectorSize = 0
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(entries[0].Embedding.Vector)); err != nil {
		return err
	}

	points := make([]point, 0, len(entries))
	for _, entry := range entries {
		payload := map[string]any{
			"doc_id":                 entry.Chunk.DocumentID,
			"source":                 entry.Chunk.Source,
			"chunk_index":            entry.Chunk.Index,
			"seq":                    entry.Chunk.Seq,
			"text":                   entry.Chunk.Text,
			domain.MetadataEmbedModel: entry.Embedding.Model,
		}
		if len(entry.Chunk.Metadata) > 0 {
			payload["metadata"] = entry.Chunk.Metadata
		}
		points = append(points, point{
			ID:      entry.Chunk.ID,
			Vector:  entry.Embedding.Vector,
			Payload: payload,
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	return c.execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		resp, err := c.do(callCtx, http.MethodPut, c.collectionURL()+"/points?wait=true", body, "upsert")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return statusError("upsert", resp)
		}
		return nil
	})
}

func (c *Client) Query(ctx context.Context, vector []float32, topK int, model string) ([]domain.ScoredChunk, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if model != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": domain.MetadataEmbedModel,
					"match": map[string]any{
						"value": model,
					},
				},
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			ID      any            `json:"id"`
		} `json:"result"`
	}
	missing := false
	err = c.execute(ctx, "qdrant.search", func(callCtx context.Context) error {
		resp, err := c.do(callCtx, http.MethodPost, c.collectionURL()+"/points/search", body, "search")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			missing = true
			return nil
		}
		if resp.StatusCode >= 300 {
			return statusError("search", resp)
		}
		// seq values exceed float64 precision.
		decoder := json.NewDecoder(resp.Body)
		decoder.UseNumber()
		if err := decoder.Decode(&searchResp); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return []domain.ScoredChunk{}, nil
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		metadata := getMapPayload(r.Payload, "metadata")
		metadata[domain.MetadataEmbedModel] = getStringPayload(r.Payload, domain.MetadataEmbedModel)
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:         fmt.Sprintf("%v", r.ID),
				DocumentID: getStringPayload(r.Payload, "doc_id"),
				Source:     getStringPayload(r.Payload, "source"),
				Index:      int(getIntPayload(r.Payload, "chunk_index")),
				Seq:        getIntPayload(r.Payload, "seq"),
				Text:       getStringPayload(r.Payload, "text"),
				Metadata:   metadata,
			},
			Score: r.Score,
		})
	}
	return out, nil
}

// Ping requires the collection to exist: an unindexed namespace cannot serve
// queries.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.collectionURL(), nil, "get collection")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("get collection", resp)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	err = c.execute(ctx, "qdrant.ensure_collection", func(callCtx context.Context) error {
		resp, err := c.do(callCtx, http.MethodPut, c.collectionURL(), body, "ensure collection")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		// 409 when the collection already exists.
		if resp.StatusCode == http.StatusConflict {
			return nil
		}
		if resp.StatusCode >= 300 {
			return statusError("ensure collection", resp)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, operation string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	return resp, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, fn, classifyQdrantError)
	} else {
		err = fn(ctx)
	}
	return wrapQdrantError(operation, err)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return int64(f)
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func getMapPayload(payload map[string]any, key string) map[string]string {
	out := make(map[string]string)
	raw, ok := payload[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
