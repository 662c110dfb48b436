package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/storage/localfs"
)

type skippedFile struct {
	Key    string
	Reason string
}

// loadDocuments extracts text from every supported file in storage. Files
// with an unknown format or without text are reported as skipped; any other
// failure aborts the load.
func loadDocuments(ctx context.Context, storage *localfs.Storage) ([]domain.SourceDocument, []skippedFile, error) {
	keys, err := storage.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		docs    []domain.SourceDocument
		skipped []skippedFile
	)
	for _, key := range keys {
		if !extractor.Supported(key) {
			skipped = append(skipped, skippedFile{Key: key, Reason: "unsupported format"})
			continue
		}

		text, err := readText(ctx, storage, key)
		if errors.Is(err, domain.ErrInvalidInput) {
			skipped = append(skipped, skippedFile{Key: key, Reason: err.Error()})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(text) == "" {
			skipped = append(skipped, skippedFile{Key: key, Reason: "no extractable text"})
			continue
		}

		docs = append(docs, domain.SourceDocument{
			ID:     key,
			Source: key,
			Text:   text,
			Metadata: map[string]string{
				"format": strings.TrimPrefix(strings.ToLower(path.Ext(key)), "."),
			},
		})
	}
	return docs, skipped, nil
}

func readText(ctx context.Context, storage *localfs.Storage, key string) (string, error) {
	reader, err := storage.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return extractor.Decode(key, "", raw)
}
