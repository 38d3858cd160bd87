package preprocess

import (
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
)

// ClassificationBatch holds the fixed-width rows for a batch of sequence classification inputs.
type ClassificationBatch struct {
	InputIDs  [][]int
	InputMask [][]int

	// TokenTypeIDs (segment ids) are only set for sentence pairs: 0 for [CLS] and the first sentence
	// (with its [SEP]), 1 for the second sentence (with its [SEP]), 0 for padding.
	TokenTypeIDs [][]int
}

// PreprocessClassification converts tokenized single sentences into rows of maxLen ids:
// "[CLS] tokens... [SEP]" truncated to fit, padded with 0. The mask is 1 for non-zero ids.
//
// maxLen is clamped to MaxLen.
func PreprocessClassification(tok api.SubwordTokenizer, tokens [][]string, maxLen int) (*ClassificationBatch, error) {
	maxLen = ClampMaxLen(maxLen)
	if maxLen < 2 {
		return nil, errors.Wrapf(ErrInvalidInput, "max_len %d leaves no room for [CLS] and [SEP]", maxLen)
	}
	batch := &ClassificationBatch{
		InputIDs:  make([][]int, len(tokens)),
		InputMask: make([][]int, len(tokens)),
	}
	for i, sentence := range tokens {
		if len(sentence) > maxLen-2 {
			sentence = sentence[:maxLen-2]
		}
		seq := make([]string, 0, len(sentence)+2)
		seq = append(seq, ClsToken)
		seq = append(seq, sentence...)
		seq = append(seq, SepToken)
		batch.InputIDs[i] = padInts(tok.ConvertTokensToIDs(seq), maxLen)
		batch.InputMask[i] = maskFromIDs(batch.InputIDs[i])
	}
	return batch, nil
}

// PreprocessClassificationPairs converts tokenized sentence pairs into rows of maxLen ids:
// "[CLS] a... [SEP] b... [SEP]", truncating the longer sentence first, padded with 0.
//
// maxLen is clamped to MaxLen. The input slices are not modified.
func PreprocessClassificationPairs(tok api.SubwordTokenizer, pairs [][2][]string, maxLen int) (*ClassificationBatch, error) {
	maxLen = ClampMaxLen(maxLen)
	if maxLen < 3 {
		return nil, errors.Wrapf(ErrInvalidInput, "max_len %d leaves no room for [CLS] and two [SEP]", maxLen)
	}
	batch := &ClassificationBatch{
		InputIDs:     make([][]int, len(pairs)),
		InputMask:    make([][]int, len(pairs)),
		TokenTypeIDs: make([][]int, len(pairs)),
	}
	for i, pair := range pairs {
		a, b := truncateSeqPair(pair[0], pair[1], maxLen-3)
		seq := make([]string, 0, len(a)+len(b)+3)
		typeIDs := make([]int, 0, maxLen)
		seq = append(seq, ClsToken)
		typeIDs = append(typeIDs, 0)
		for _, token := range a {
			seq = append(seq, token)
			typeIDs = append(typeIDs, 0)
		}
		seq = append(seq, SepToken)
		typeIDs = append(typeIDs, 0)
		for _, token := range b {
			seq = append(seq, token)
			typeIDs = append(typeIDs, 1)
		}
		seq = append(seq, SepToken)
		typeIDs = append(typeIDs, 1)

		batch.InputIDs[i] = padInts(tok.ConvertTokensToIDs(seq), maxLen)
		batch.InputMask[i] = maskFromIDs(batch.InputIDs[i])
		batch.TokenTypeIDs[i] = padInts(typeIDs, maxLen)
	}
	return batch, nil
}

// truncateSeqPair shortens a pair of sequences to a total of maxLength tokens, one token at a time from
// the longer one (from b when they are equally long).
func truncateSeqPair(a, b []string, maxLength int) ([]string, []string) {
	for len(a)+len(b) > maxLength {
		if len(a) > len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}
	return a, b
}

func maskFromIDs(ids []int) []int {
	mask := make([]int, len(ids))
	for i, id := range ids {
		mask[i] = min(1, id)
	}
	return mask
}
