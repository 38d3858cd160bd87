package preprocess

import (
	"testing"

	"github.com/gomlx/bertprep/internal/testutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampMaxLen(t *testing.T) {
	assert.Equal(t, 128, ClampMaxLen(128))
	assert.Equal(t, MaxLen, ClampMaxLen(MaxLen))
	assert.Equal(t, MaxLen, ClampMaxLen(1024))
}

func TestTokenize(t *testing.T) {
	tok := testutil.Tokenizer(t)
	assert.Equal(t, [][]string{{"hello", "world"}, {"critic", "##ize"}}, Tokenize(tok, []string{"Hello world", "criticize"}))

	pairs := TokenizePairs(tok, [][2]string{{"who is", "john smith"}})
	require.Len(t, pairs, 1)
	assert.Equal(t, []string{"who", "is"}, pairs[0][0])
	assert.Equal(t, []string{"john", "smith"}, pairs[0][1])
}

func TestPreprocessClassification(t *testing.T) {
	tok := testutil.Tokenizer(t)
	hello, world := testutil.ID(t, tok, "hello"), testutil.ID(t, tok, "world")

	tests := []struct {
		name     string
		tokens   []string
		maxLen   int
		wantIDs  []int
		wantMask []int
	}{
		{
			name:     "padded",
			tokens:   []string{"hello", "world"},
			maxLen:   6,
			wantIDs:  []int{2, hello, world, 3, 0, 0},
			wantMask: []int{1, 1, 1, 1, 0, 0},
		},
		{
			name:     "truncated",
			tokens:   []string{"hello", "world", "hello", "world"},
			maxLen:   4,
			wantIDs:  []int{2, hello, world, 3},
			wantMask: []int{1, 1, 1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := PreprocessClassification(tok, [][]string{tt.tokens}, tt.maxLen)
			require.NoError(t, err)
			assert.Equal(t, [][]int{tt.wantIDs}, batch.InputIDs)
			assert.Equal(t, [][]int{tt.wantMask}, batch.InputMask)
			assert.Nil(t, batch.TokenTypeIDs)
		})
	}
}

func TestPreprocessClassification_Clamp(t *testing.T) {
	tok := testutil.Tokenizer(t)
	batch, err := PreprocessClassification(tok, [][]string{{"hello"}}, 2048)
	require.NoError(t, err)
	assert.Len(t, batch.InputIDs[0], MaxLen)
	assert.Len(t, batch.InputMask[0], MaxLen)

	_, err = PreprocessClassification(tok, [][]string{{"hello"}}, 1)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestPreprocessClassificationPairs(t *testing.T) {
	tok := testutil.Tokenizer(t)
	id := func(token string) int { return testutil.ID(t, tok, token) }

	a := []string{"a", "b", "c"}
	b := []string{"d"}
	batch, err := PreprocessClassificationPairs(tok, [][2][]string{{a, b}, {{"a", "b"}, {"c", "d"}}}, 6)
	require.NoError(t, err)

	// The longer sentence is truncated first.
	assert.Equal(t, []int{2, id("a"), id("b"), 3, id("d"), 3}, batch.InputIDs[0])
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1}, batch.TokenTypeIDs[0])
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, batch.InputMask[0])

	// On ties the second sentence loses a token.
	assert.Equal(t, []int{2, id("a"), id("b"), 3, id("c"), 3}, batch.InputIDs[1])

	// Inputs are not modified.
	assert.Equal(t, []string{"a", "b", "c"}, a)
}

func TestPreprocessClassificationPairs_Padding(t *testing.T) {
	tok := testutil.Tokenizer(t)
	batch, err := PreprocessClassificationPairs(tok, [][2][]string{{{"a"}, {"b"}}}, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 0, 0, 0}, batch.TokenTypeIDs[0])
	assert.Equal(t, []int{1, 1, 1, 1, 1, 0, 0, 0}, batch.InputMask[0])
}

func TestTruncateSeqPair(t *testing.T) {
	a, b := truncateSeqPair([]string{"1", "2", "3", "4"}, []string{"5", "6"}, 4)
	assert.Equal(t, []string{"1", "2"}, a)
	assert.Equal(t, []string{"5", "6"}, b)

	a, b = truncateSeqPair([]string{"1"}, []string{"2"}, 5)
	assert.Equal(t, []string{"1"}, a)
	assert.Equal(t, []string{"2"}, b)
}

func TestPreprocessNER(t *testing.T) {
	tok := testutil.Tokenizer(t)
	id := func(token string) int { return testutil.ID(t, tok, token) }
	words := [][]string{{"criticized", "Paris"}}
	labels := [][]string{{"B-PER", "B-LOC"}}
	labelMap := map[string]int{"O": 0, "X": 1, "B-PER": 2, "B-LOC": 3}

	batch, err := PreprocessNER(tok, words, NEROptions{MaxLen: 6, Labels: labels, LabelMap: labelMap})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{id("critic"), id("##ize"), id("##d"), id("paris"), 0, 0}}, batch.InputIDs)
	assert.Equal(t, [][]int{{1, 1, 1, 1, 0, 0}}, batch.InputMask)
	assert.Equal(t, [][]bool{{true, false, false, true, true, true}}, batch.TrailingTokenMask)
	assert.Equal(t, [][]string{{"B-PER", "X", "X", "B-LOC", "O", "O"}}, batch.Labels)
	assert.Equal(t, [][]int{{2, 1, 1, 3, 0, 0}}, batch.LabelIDs)
}

func TestPreprocessNER_NoLabels(t *testing.T) {
	tok := testutil.Tokenizer(t)
	batch, err := PreprocessNER(tok, [][]string{{"criticized", "Paris"}}, NEROptions{MaxLen: 2, TrailingPieceTag: "##"})
	require.NoError(t, err)
	assert.Nil(t, batch.Labels)
	assert.Nil(t, batch.LabelIDs)
	assert.Equal(t, [][]int{{1, 1}}, batch.InputMask)
	assert.Equal(t, [][]bool{{true, false}}, batch.TrailingTokenMask)
}

func TestPreprocessNER_Errors(t *testing.T) {
	tok := testutil.Tokenizer(t)

	_, err := PreprocessNER(tok, [][]string{{"john", "smith"}}, NEROptions{Labels: [][]string{{"B-PER"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "the number of words is 2, but the number of labels is 1")

	_, err = PreprocessNER(tok, [][]string{{"john"}}, NEROptions{Labels: [][]string{{"B-PER"}}, LabelMap: map[string]int{"O": 0}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = PreprocessNER(tok, [][]string{{"john"}, {"smith"}}, NEROptions{Labels: [][]string{{"B-PER"}}})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
