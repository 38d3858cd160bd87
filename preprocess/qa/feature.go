package qa

import (
	"fmt"

	"github.com/gomlx/bertprep/preprocess"
	"github.com/gomlx/bertprep/tokenizers/api"
)

// LabelKind tells whether and where a Feature's window contains the answer.
type LabelKind int

const (
	// NoLabel is used when not training.
	NoLabel LabelKind = iota

	// Answerable windows contain the whole answer.
	Answerable

	// Unanswerable is used for all windows of a question marked impossible.
	Unanswerable

	// OutOfWindow is used for windows that don't contain the whole answer of a possible question.
	OutOfWindow
)

var labelKindNames = [...]string{"none", "answerable", "unanswerable", "out_of_window"}

// String implements fmt.Stringer.
func (k LabelKind) String() string {
	if k < 0 || int(k) >= len(labelKindNames) {
		return fmt.Sprintf("LabelKind(%d)", int(k))
	}
	return labelKindNames[k]
}

// SpanLabel is the training label of a Feature. Start and End are positions in Feature.Tokens, and are
// only meaningful for Answerable labels.
type SpanLabel struct {
	Kind       LabelKind
	Start, End int
}

// Feature is the model input for one window of one Example.
type Feature struct {
	// UniqueID is allocated from an IDSequence, in emission order.
	UniqueID int

	// ExampleIndex is the index of the source Example in Result.Examples.
	ExampleIndex int

	// DocSpanIndex is the index of this window among the windows of the Example.
	DocSpanIndex int

	// Tokens are "[CLS] question... [SEP] document window... [SEP]", without padding.
	Tokens []string

	// DocOffset is the position in Tokens of the first document token: len(question tokens) + 2.
	DocOffset int

	// ParagraphLen is the number of document tokens in the window.
	ParagraphLen int

	// TokenToOrigWordIndex maps each document token of the window (Tokens[DocOffset+i]) to the index of
	// its word in Example.DocWords.
	TokenToOrigWordIndex []int

	// TokenIsMaxContext tells, for each document token of the window (Tokens[DocOffset+i]), whether this
	// window is the one with the maximum context for it. See IsMaxContext.
	TokenIsMaxContext []bool

	// InputIDs, AttentionMask, SegmentIDs and PMask all have length max_len.
	// PMask is 1 for positions that can't be part of the answer (question, [SEP] and padding).
	InputIDs      []int
	AttentionMask []int
	SegmentIDs    []int
	PMask         []int

	// ClsIndex is the position of the [CLS] token, used as the answer position of windows with no answer.
	ClsIndex int

	Label SpanLabel
}

// OrigWordIndex returns the index in Example.DocWords of the word the token at position belongs to, or
// false if position is not a document token.
func (f *Feature) OrigWordIndex(position int) (int, bool) {
	i := position - f.DocOffset
	if i < 0 || i >= len(f.TokenToOrigWordIndex) {
		return 0, false
	}
	return f.TokenToOrigWordIndex[i], true
}

// IsMaxContext returns whether this window has the maximum context for the document token at position.
// It's false for positions that aren't document tokens.
func (f *Feature) IsMaxContext(position int) bool {
	i := position - f.DocOffset
	if i < 0 || i >= len(f.TokenIsMaxContext) {
		return false
	}
	return f.TokenIsMaxContext[i]
}

// StartPosition returns the answer start position: the label's for Answerable, ClsIndex for
// Unanswerable and OutOfWindow, and -1 when there is no label.
func (f *Feature) StartPosition() int {
	switch f.Label.Kind {
	case Answerable:
		return f.Label.Start
	case Unanswerable, OutOfWindow:
		return f.ClsIndex
	default:
		return -1
	}
}

// EndPosition is like StartPosition, for the end of the answer (inclusive).
func (f *Feature) EndPosition() int {
	switch f.Label.Kind {
	case Answerable:
		return f.Label.End
	case Unanswerable, OutOfWindow:
		return f.ClsIndex
	default:
		return -1
	}
}

// SpanIsImpossible returns whether the window has no answer to predict.
func (f *Feature) SpanIsImpossible() bool {
	return f.Label.Kind == Unanswerable || f.Label.Kind == OutOfWindow
}

// tokenizedDoc holds an Example's document split into subword tokens.
type tokenizedDoc struct {
	tokens []string

	// tokToOrig maps each subword token to the index of its word, origToTok maps each word to its first
	// subword token (or to the next word's, if the word has no subword tokens).
	tokToOrig []int
	origToTok []int
}

func tokenizeDoc(tok api.SubwordTokenizer, words []string) tokenizedDoc {
	doc := tokenizedDoc{origToTok: make([]int, len(words))}
	for i, word := range words {
		doc.origToTok[i] = len(doc.tokens)
		for _, subToken := range tok.Tokenize(word) {
			doc.tokToOrig = append(doc.tokToOrig, i)
			doc.tokens = append(doc.tokens, subToken)
		}
	}
	return doc
}

// answerTokenSpan returns the subword token span [start, end] of the Example's answer, refined with
// ImproveAnswerSpan.
func answerTokenSpan(tok api.SubwordTokenizer, example *Example, doc tokenizedDoc) (start, end int) {
	start = doc.origToTok[example.StartWordIndex]
	if example.EndWordIndex < len(example.DocWords)-1 {
		end = doc.origToTok[example.EndWordIndex+1] - 1
	} else {
		end = len(doc.tokens) - 1
	}
	return ImproveAnswerSpan(tok, doc.tokens, start, end, example.OrigAnswerText)
}

// featureBuilder assembles the Features of one Example.
type featureBuilder struct {
	tok         api.SubwordTokenizer
	maxLen      int
	isTraining  bool
	queryTokens []string
	doc         tokenizedDoc
	spans       []DocSpan

	// Answer span in document token coordinates, only used when training on a possible question.
	isImpossible           bool
	answerStart, answerEnd int
}

// build returns the Feature for spans[spanIndex]. UniqueID and ExampleIndex are left for the caller.
func (b *featureBuilder) build(spanIndex int) Feature {
	span := b.spans[spanIndex]
	numTokens := len(b.queryTokens) + span.Length + 3
	f := Feature{
		DocSpanIndex:         spanIndex,
		Tokens:               make([]string, 0, numTokens),
		DocOffset:            len(b.queryTokens) + 2,
		ParagraphLen:         span.Length,
		TokenToOrigWordIndex: make([]int, span.Length),
		TokenIsMaxContext:    make([]bool, span.Length),
		SegmentIDs:           make([]int, 0, b.maxLen),
		PMask:                make([]int, 0, b.maxLen),
		ClsIndex:             0,
	}

	f.Tokens = append(f.Tokens, preprocess.ClsToken)
	f.SegmentIDs = append(f.SegmentIDs, 0)
	f.PMask = append(f.PMask, 0)
	for _, token := range b.queryTokens {
		f.Tokens = append(f.Tokens, token)
		f.SegmentIDs = append(f.SegmentIDs, 0)
		f.PMask = append(f.PMask, 1)
	}
	f.Tokens = append(f.Tokens, preprocess.SepToken)
	f.SegmentIDs = append(f.SegmentIDs, 0)
	f.PMask = append(f.PMask, 1)

	for i := range span.Length {
		position := span.Start + i
		f.TokenToOrigWordIndex[i] = b.doc.tokToOrig[position]
		f.TokenIsMaxContext[i] = IsMaxContext(b.spans, spanIndex, position)
		f.Tokens = append(f.Tokens, b.doc.tokens[position])
		f.SegmentIDs = append(f.SegmentIDs, 1)
		f.PMask = append(f.PMask, 0)
	}
	f.Tokens = append(f.Tokens, preprocess.SepToken)
	f.SegmentIDs = append(f.SegmentIDs, 1)
	f.PMask = append(f.PMask, 1)

	f.InputIDs = b.tok.ConvertTokensToIDs(f.Tokens)
	f.AttentionMask = make([]int, len(f.InputIDs), b.maxLen)
	for i := range f.AttentionMask {
		f.AttentionMask[i] = 1
	}
	for len(f.InputIDs) < b.maxLen {
		f.InputIDs = append(f.InputIDs, 0)
		f.AttentionMask = append(f.AttentionMask, 0)
		f.SegmentIDs = append(f.SegmentIDs, 0)
		f.PMask = append(f.PMask, 1)
	}

	f.Label = b.label(span, f.DocOffset)
	return f
}

func (b *featureBuilder) label(span DocSpan, docOffset int) SpanLabel {
	switch {
	case !b.isTraining:
		return SpanLabel{Kind: NoLabel}
	case b.isImpossible:
		return SpanLabel{Kind: Unanswerable}
	case b.answerStart > b.answerEnd:
		// The answer words have no subword tokens, so no window can hold the answer.
		return SpanLabel{Kind: OutOfWindow}
	case b.answerStart >= span.Start && b.answerEnd <= span.Last():
		return SpanLabel{
			Kind:  Answerable,
			Start: b.answerStart - span.Start + docOffset,
			End:   b.answerEnd - span.Start + docOffset,
		}
	default:
		return SpanLabel{Kind: OutOfWindow}
	}
}
