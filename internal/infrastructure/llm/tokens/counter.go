// Package tokens approximates model token counts with a BPE encoding.
package tokens

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Counter loads the encoding lazily on first use. When the encoding cannot be
// loaded (offline hosts fetch BPE ranks over the network) it falls back to a
// four-runes-per-token estimate.
type Counter struct {
	encoding string
	load     func(string) (*tiktoken.Tiktoken, error)

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{
		encoding: encoding,
		load:     tiktoken.GetEncoding,
	}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := c.load(c.encoding)
		if err != nil {
			slog.Warn("token_encoding_unavailable", "encoding", c.encoding, "error", err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

func estimate(text string) int {
	n := (utf8.RuneCountInString(text) + 3) / 4
	if n == 0 {
		return 1
	}
	return n
}
