// Package testutil provides a small BERT vocabulary and tokenizer for tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/gomlx/bertprep/tokenizers/hftokenizer"
)

// Vocab is a lowercase BERT-style vocabulary: token ids are line numbers, so [PAD]=0, [UNK]=1,
// [CLS]=2, [SEP]=3 and [MASK]=4.
var Vocab = strings.Join([]string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"the", "leader", "was", "john", "smith", "(", "1895", "-", "1943", ")", ".",
	"what", "year", "born", "?", "who", "is", "in", "paris", "capital", "of", "france",
	"##s", "critic", "##ize", "##d", "man", "went", "to", "store", "and", "bought",
	"gallon", "milk", "japan", "##ese", "electronics", "industry", "largest", "world",
	"country", "top", "exporter", "hello", "a", "b", "c", "d", "e", "f", "g", "h",
}, "\n") + "\n"

// Tokenizer returns a lowercasing WordPiece tokenizer over Vocab.
func Tokenizer(t testing.TB) *hftokenizer.Tokenizer {
	t.Helper()
	tok, err := hftokenizer.NewFromVocab(nil, strings.NewReader(Vocab), true)
	if err != nil {
		t.Fatalf("failed to create test tokenizer: %+v", err)
	}
	return tok
}

// ID returns the id of token in Vocab, failing the test if it's not there.
func ID(t testing.TB, tok *hftokenizer.Tokenizer, token string) int {
	t.Helper()
	id, ok := tok.TokenToID(token)
	if !ok {
		t.Fatalf("token %q not in test vocabulary", token)
	}
	return id
}
