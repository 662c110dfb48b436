package plaintext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns the UTF-8 text of raw with a leading BOM removed and line
// endings normalized to "\n".
func Decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode plain text", fmt.Errorf("content is not valid utf-8"))
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text), nil
}
