// Package extractor picks a text decoder by file extension or MIME type.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/extractor/xlsxtext"
)

type decodeFunc func(raw []byte) (string, error)

var byExtension = map[string]decodeFunc{
	".txt":  plaintext.Decode,
	".md":   plaintext.Decode,
	".csv":  plaintext.Decode,
	".pdf":  pdftext.Decode,
	".xlsx": xlsxtext.Decode,
}

var byMimeType = map[string]decodeFunc{
	"text/plain":      plaintext.Decode,
	"text/markdown":   plaintext.Decode,
	"text/csv":        plaintext.Decode,
	"application/pdf": pdftext.Decode,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": xlsxtext.Decode,
}

type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Supported reports whether filename has an extension with a known decoder.
func Supported(filename string) bool {
	_, ok := byExtension[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	return Decode(doc.Filename, doc.MimeType, raw)
}

// SupportedType reports whether an upload named filename with the given MIME
// type resolves to a decoder, using the same rules as Decode.
func SupportedType(filename, mimeType string) bool {
	_, ok := resolve(filename, mimeType)
	return ok
}

// Decode extracts text from raw. The extension wins over the MIME type since
// browsers often upload with application/octet-stream.
func Decode(filename, mimeType string, raw []byte) (string, error) {
	decode, ok := resolve(filename, mimeType)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported format: %s", filename))
	}

	text, err := decode(raw)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return text, nil
}

func resolve(filename, mimeType string) (decodeFunc, bool) {
	if decode, ok := byExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return decode, true
	}
	mediaType := strings.TrimSpace(strings.ToLower(strings.Split(mimeType, ";")[0]))
	decode, ok := byMimeType[mediaType]
	return decode, ok
}
