package extractor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

type storageFake struct {
	files map[string][]byte
}

func (s *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.files[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func TestExtractPlainTextFromStorage(t *testing.T) {
	extractor := New(&storageFake{files: map[string][]byte{
		"d1_fever.txt": []byte("Fever is a temporary increase in body temperature.\r\n"),
	}})

	got, err := extractor.Extract(context.Background(), &domain.Document{
		Filename:    "fever.txt",
		MimeType:    "text/plain",
		StoragePath: "d1_fever.txt",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Fever is a temporary increase in body temperature." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractPropagatesStorageError(t *testing.T) {
	extractor := New(&storageFake{files: map[string][]byte{}})
	_, err := extractor.Extract(context.Background(), &domain.Document{Filename: "x.txt", StoragePath: "missing"})
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDecodeFallsBackToMimeType(t *testing.T) {
	got, err := Decode("notes", "text/plain; charset=utf-8", []byte("insulin"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != "insulin" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestDecodeSpreadsheetByExtension(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	if err := book.SetCellValue("Sheet1", "A1", "Fever"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	got, err := Decode("symptoms.XLSX", "application/octet-stream", buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != "Sheet: Sheet1\nFever" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestDecodeRejectsUnsupportedFormat(t *testing.T) {
	_, err := Decode("report.docx", "application/octet-stream", []byte("PK"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if Supported("report.docx") || !Supported("guide.PDF") {
		t.Fatalf("unexpected Supported() result")
	}
}

func TestSupportedTypeMatchesDecodeRules(t *testing.T) {
	cases := []struct {
		filename string
		mimeType string
		want     bool
	}{
		{"notes.md", "", true},
		{"Labs.XLSX", "application/octet-stream", true},
		{"upload", "application/pdf; charset=binary", true},
		{"scan.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", false},
		{"blob", "application/octet-stream", false},
	}
	for _, tc := range cases {
		if got := SupportedType(tc.filename, tc.mimeType); got != tc.want {
			t.Fatalf("SupportedType(%q, %q) = %v, want %v", tc.filename, tc.mimeType, got, tc.want)
		}
	}
}
