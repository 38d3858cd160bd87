package preprocess

import (
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
)

const (
	// DefaultTrailingPieceTag labels the subword pieces after the first one of a word.
	DefaultTrailingPieceTag = "X"

	// OutsideLabel is used for padding, and for all words when no labels are given.
	OutsideLabel = "O"
)

// NEROptions configures PreprocessNER.
type NEROptions struct {
	// MaxLen of the rows, clamped to MaxLen. Defaults to MaxLen if 0.
	MaxLen int

	// Labels has one label per word of each sentence. Optional.
	Labels [][]string

	// LabelMap converts labels to ids. Optional: if nil, NERBatch.LabelIDs is nil.
	// It must include the trailing piece tag and OutsideLabel.
	LabelMap map[string]int

	// TrailingPieceTag defaults to DefaultTrailingPieceTag.
	TrailingPieceTag string
}

// NERBatch holds the fixed-width rows for a batch of token classification inputs.
type NERBatch struct {
	InputIDs  [][]int
	InputMask [][]int

	// TrailingTokenMask is true for the first piece of each word (and padding), false for trailing pieces
	// such as "##ize". It is used to keep one prediction per original word.
	TrailingTokenMask [][]bool

	// Labels per subword token, padded with OutsideLabel. Nil if no labels were given.
	Labels [][]string

	// LabelIDs are Labels converted with NEROptions.LabelMap. Nil if no labels or no map were given.
	LabelIDs [][]int
}

// PreprocessNER converts sentences, given as lists of words, into rows for token classification.
//
// Each word is split into subword tokens: the first token keeps the word's label, the following ones are
// labeled with the trailing piece tag. Rows are truncated to MaxLen tokens and padded with 0s (labels
// with OutsideLabel). No [CLS]/[SEP] markers are added.
func PreprocessNER(tok api.SubwordTokenizer, words [][]string, opts NEROptions) (*NERBatch, error) {
	maxLen := opts.MaxLen
	if maxLen == 0 {
		maxLen = MaxLen
	}
	maxLen = ClampMaxLen(maxLen)
	if maxLen <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid max_len %d", maxLen)
	}
	trailingTag := opts.TrailingPieceTag
	if trailingTag == "" {
		trailingTag = DefaultTrailingPieceTag
	}
	labelAvailable := opts.Labels != nil
	if labelAvailable && len(opts.Labels) != len(words) {
		return nil, errors.Wrapf(ErrInvalidInput, "%d sentences but %d label lists", len(words), len(opts.Labels))
	}

	batch := &NERBatch{
		InputIDs:          make([][]int, len(words)),
		InputMask:         make([][]int, len(words)),
		TrailingTokenMask: make([][]bool, len(words)),
	}
	if labelAvailable {
		batch.Labels = make([][]string, len(words))
		if opts.LabelMap != nil {
			batch.LabelIDs = make([][]int, len(words))
		}
	}

	for i, sentence := range words {
		var sentenceLabels []string
		if labelAvailable {
			sentenceLabels = opts.Labels[i]
			if len(sentence) != len(sentenceLabels) {
				return nil, errors.Wrapf(ErrInvalidInput,
					"sentence %d: the number of words is %d, but the number of labels is %d",
					i, len(sentence), len(sentenceLabels))
			}
		}

		var tokens, labels []string
		for wordIdx, word := range sentence {
			label := OutsideLabel
			if labelAvailable {
				label = sentenceLabels[wordIdx]
			}
			for count, piece := range tok.Tokenize(word) {
				if count > 0 {
					label = trailingTag
				}
				tokens = append(tokens, piece)
				labels = append(labels, label)
			}
		}
		if len(tokens) > maxLen {
			tokens = tokens[:maxLen]
			labels = labels[:maxLen]
		}

		ids := tok.ConvertTokensToIDs(tokens)
		mask := make([]int, maxLen)
		for j := range ids {
			mask[j] = 1
		}
		for len(labels) < maxLen {
			labels = append(labels, OutsideLabel)
		}
		trailing := make([]bool, maxLen)
		for j, label := range labels {
			trailing[j] = label != trailingTag
		}

		batch.InputIDs[i] = padInts(ids, maxLen)
		batch.InputMask[i] = mask
		batch.TrailingTokenMask[i] = trailing
		if !labelAvailable {
			continue
		}
		batch.Labels[i] = labels
		if opts.LabelMap != nil {
			labelIDs := make([]int, maxLen)
			for j, label := range labels {
				id, found := opts.LabelMap[label]
				if !found {
					return nil, errors.Wrapf(ErrInvalidInput, "sentence %d: label %q not in label map", i, label)
				}
				labelIDs[j] = id
			}
			batch.LabelIDs[i] = labelIDs
		}
	}
	return batch, nil
}
