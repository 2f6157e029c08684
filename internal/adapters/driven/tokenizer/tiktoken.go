// Package tokenizer counts model tokens with the tiktoken BPE
// encodings used by OpenAI-family embedding models.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// Encoding is the BPE encoding used for token counts.
const Encoding = "cl100k_base"

// Counter counts tokens with the cl100k_base encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the encoding. The vocabulary is fetched and cached
// on first use; set TIKTOKEN_CACHE_DIR to control the cache location.
func NewCounter() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", Encoding, err)
	}
	return &Counter{encoding: encoding}, nil
}

// CountTokens returns the number of tokens in text.
func (c *Counter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}
