// Package tokenizer counts tokens exactly with a tiktoken encoding.
// The live summary uses the byte heuristic in utils.EstimateTokens; this package
// backs the on-demand exact count.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/temirov/contextkit/internal/utils"
)

// Counter counts the tokens of text under one encoding.
type Counter interface {
	// Name is the model or encoding the counts are reported against.
	Name() string
	Count(text string) int
}

const (
	// DefaultModel is used when no model is requested.
	DefaultModel     = "gpt-4o"
	fallbackEncoding = "cl100k_base"

	errorFallbackEncodingFormat = "initialize %s tokenizer: %w"
)

// modelFamilies are the model name prefixes tiktoken ships dedicated encodings for.
var modelFamilies = []string{"gpt-", "o1", "o3", "text-embedding", "davinci", "curie", "babbage", "ada", "code-"}

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter tiktokenCounter) Name() string {
	return counter.name
}

func (counter tiktokenCounter) Count(text string) int {
	return len(counter.encoding.Encode(text, nil, nil))
}

// ForModel returns a Counter for model. Models without a dedicated encoding, and
// unknown models, count with cl100k_base and report that encoding as their name.
func ForModel(model string) (Counter, error) {
	trimmed := strings.TrimSpace(model)
	if trimmed == utils.EmptyString {
		trimmed = DefaultModel
	}
	lowered := strings.ToLower(trimmed)
	for _, family := range modelFamilies {
		if !strings.HasPrefix(lowered, family) {
			continue
		}
		if encoding, err := tiktoken.EncodingForModel(lowered); err == nil && encoding != nil {
			return tiktokenCounter{encoding: encoding, name: trimmed}, nil
		}
		break
	}
	encoding, err := tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf(errorFallbackEncodingFormat, fallbackEncoding, err)
	}
	return tiktokenCounter{encoding: encoding, name: fallbackEncoding}, nil
}

// CountContent counts the tokens of file content. Binary and non-UTF-8 content is not
// counted and reports false.
func CountContent(counter Counter, content []byte) (int, bool) {
	if len(content) == 0 {
		return 0, true
	}
	if utils.IsBinary(content) || !utf8.Valid(content) {
		return 0, false
	}
	return counter.Count(string(content)), true
}
