// Package tokenizer counts and truncates text by model tokens so that
// embedding inputs stay within provider limits.
package tokenizer

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// encoder is the subset of *tiktoken.Tiktoken used here.
type encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

var (
	encodingCache sync.Map
	defaultOnce   sync.Once
	defaultEnc    encoder

	// loadEncoding resolves a model's encoding; tests replace it.
	loadEncoding = func(model string) encoder {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			return nil
		}
		return enc
	}
	loadDefault = func() encoder {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
		return enc
	}
)

// bytesPerToken is the fallback estimate when no encoding is available.
const bytesPerToken = 4

// CountTextTokens returns the token count for text. If no encoding is
// available, it falls back to a conservative len/4 estimate.
func CountTextTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc := getEncoding(model)
	if enc == nil {
		return (len(text) + bytesPerToken - 1) / bytesPerToken
	}
	return len(enc.Encode(text, nil, nil))
}

// Truncate returns text cut to at most maxTokens tokens. Text whose byte
// length is within the limit is returned without tokenizing, since no token
// is shorter than one byte. A non-positive maxTokens disables truncation.
func Truncate(model, text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || len(text) <= maxTokens {
		return text, false
	}

	enc := getEncoding(model)
	if enc == nil {
		limit := maxTokens * bytesPerToken
		if len(text) <= limit {
			return text, false
		}
		return cutAtRune(text, limit), true
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false
	}
	return enc.Decode(tokens[:maxTokens]), true
}

// cutAtRune trims s to at most n bytes without splitting a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func getEncoding(model string) encoder {
	base := normalizeModelName(model)
	if cached, ok := encodingCache.Load(base); ok {
		if enc, ok := cached.(encoder); ok {
			return enc
		}
		return getDefaultEncoding()
	}

	enc := loadEncoding(base)
	if enc == nil {
		enc = getDefaultEncoding()
	}
	if enc != nil {
		encodingCache.Store(base, enc)
	}
	return enc
}

func getDefaultEncoding() encoder {
	defaultOnce.Do(func() {
		defaultEnc = loadDefault()
	})
	return defaultEnc
}

// normalizeModelName strips a provider prefix such as "openai/".
func normalizeModelName(model string) string {
	if model == "" {
		return model
	}
	if idx := strings.LastIndex(model, "/"); idx >= 0 && idx+1 < len(model) {
		return model[idx+1:]
	}
	return model
}
