// Package prompt assembles retrieval results into a token-budgeted context
// and renders it as chat messages.
package prompt

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a piece of text consumes.
type TokenCounter interface {
	Count(text string) int
}

// HeuristicCounter approximates token counts as ceil(len/4), the common
// rule of thumb for English text. It needs no model data and never fails.
type HeuristicCounter struct{}

// Count returns the estimated token count. Empty text counts as 0; any
// non-empty text counts as at least 1.
func (HeuristicCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// TiktokenCounter counts tokens with a real BPE tokenizer. Accurate for
// OpenAI-family models at the cost of loading the encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// Count returns the exact token count under cl100k_base.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
