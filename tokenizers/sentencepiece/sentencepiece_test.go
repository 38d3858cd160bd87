package sentencepiece

import (
	"os"
	"testing"

	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelPathEnv points to a local SentencePiece model (e.g. the tokenizer.model of google/flan-t5-small).
const modelPathEnv = "SENTENCEPIECE_MODEL"

func loadTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	modelPath := os.Getenv(modelPathEnv)
	if modelPath == "" {
		t.Skipf("set %s to a SentencePiece tokenizer.model to run this test", modelPathEnv)
	}
	tok, err := NewFromPath(modelPath)
	require.NoError(t, err)
	return tok
}

func TestTokenize_MatchesEncode(t *testing.T) {
	tok := loadTestTokenizer(t)
	inputs := []string{
		"hello",
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
		"Multiple  spaces   here",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			pieces := tok.Tokenize(input)
			assert.Equal(t, tok.Encode(input), tok.ConvertTokensToIDs(pieces))
		})
	}
}

func TestConvertTokensToIDs_FreshTokenizer(t *testing.T) {
	pieces := loadTestTokenizer(t).Tokenize("hello world")
	fresh := loadTestTokenizer(t)
	ids := fresh.ConvertTokensToIDs(pieces)
	require.Len(t, ids, len(pieces))
	unk, err := fresh.SpecialTokenID(api.TokUnknown)
	require.NoError(t, err)
	assert.NotEqual(t, unk, ids[0], "word-initial piece %q should resolve without a prior Tokenize", pieces[0])
	assert.Equal(t, fresh.Encode("hello"), fresh.ConvertTokensToIDs(fresh.Tokenize("hello")))
}

func TestRegisterBertMarkers(t *testing.T) {
	tok := loadTestTokenizer(t).RegisterBertMarkers()
	ids := tok.ConvertTokensToIDs([]string{"[CLS]", "[SEP]", "[PAD]"})
	assert.Equal(t, []int{tok.Info.BeginningOfSentenceID, tok.Info.EndOfSentenceID, tok.Info.PadID}, ids)
}

func TestConvertTokensToIDs_Unknown(t *testing.T) {
	tok := loadTestTokenizer(t)
	unk, err := tok.SpecialTokenID(api.TokUnknown)
	require.NoError(t, err)
	assert.Equal(t, []int{unk}, tok.ConvertTokensToIDs([]string{"never-returned-by-tokenize"}))
}

func TestNewFromPath_Missing(t *testing.T) {
	_, err := NewFromPath("/nonexistent/tokenizer.model")
	assert.Error(t, err)
}

func TestSliceMap(t *testing.T) {
	assert.Equal(t, []int{2, 4, 6}, sliceMap([]int{1, 2, 3}, func(e int) int { return 2 * e }))
}
