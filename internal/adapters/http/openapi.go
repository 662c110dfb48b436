package httpadapter

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

//go:embed openapi.yaml
var openAPISource []byte

// LoadOpenAPI parses and validates the embedded API description and returns
// it encoded as JSON.
func LoadOpenAPI(ctx context.Context) ([]byte, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISource)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load openapi", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "validate openapi", err)
	}

	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode openapi: %w", err)
	}
	return raw, nil
}
