package chat

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/Phannhothinh/chatbot-op/internal/providers"
)

// TokenCounter estimates prompt sizes with the cl100k_base encoding.
// The codec is loaded on first use. If it cannot be loaded, counts fall back
// to roughly four bytes per token.
type TokenCounter struct {
	once  sync.Once
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

func (c *TokenCounter) load() tokenizer.Codec {
	c.once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			c.codec = codec
		}
	})
	return c.codec
}

// Count returns the token count of text
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if codec := c.load(); codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}

// CountMessages sums the token counts of every message body
func (c *TokenCounter) CountMessages(messages []providers.Message) int {
	total := 0
	for _, m := range messages {
		total += c.Count(m.Content)
	}
	return total
}
