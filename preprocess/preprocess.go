// Package preprocess converts raw text into fixed-width numeric rows for BERT-style models: token ids,
// attention masks, segment ids and labels.
//
// The tokenizer is an api.SubwordTokenizer. Sequence classification and token classification (NER)
// live in this package; question answering lives in preprocess/qa.
package preprocess

import (
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaxLen is the maximum sequence length supported by BERT models.
const MaxLen = 512

// Marker tokens.
const (
	ClsToken = "[CLS]"
	SepToken = "[SEP]"
)

// ErrInvalidInput is returned (wrapped) when inputs that must be index-aligned have different lengths,
// or are otherwise malformed.
var ErrInvalidInput = errors.New("invalid input")

// ClampMaxLen returns maxLen, or MaxLen if maxLen is larger, logging a warning in that case.
func ClampMaxLen(maxLen int) int {
	if maxLen > MaxLen {
		klog.Warningf("setting max_len to max allowed tokens: %d", MaxLen)
		return MaxLen
	}
	return maxLen
}

// Tokenize splits each text into subword tokens.
func Tokenize(tok api.SubwordTokenizer, texts []string) [][]string {
	tokens := make([][]string, len(texts))
	for i, text := range texts {
		tokens[i] = tok.Tokenize(text)
	}
	return tokens
}

// TokenizePairs splits both texts of each pair into subword tokens.
func TokenizePairs(tok api.SubwordTokenizer, pairs [][2]string) [][2][]string {
	tokens := make([][2][]string, len(pairs))
	for i, pair := range pairs {
		tokens[i] = [2][]string{tok.Tokenize(pair[0]), tok.Tokenize(pair[1])}
	}
	return tokens
}

// padInts appends zeros to values up to length n.
func padInts(values []int, n int) []int {
	for len(values) < n {
		values = append(values, 0)
	}
	return values
}
