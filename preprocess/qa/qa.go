// Package qa converts question/document pairs into fixed-width features for extractive question answering
// with BERT-style models.
//
// The pipeline, for each question:
//
//  1. The document is split on whitespace into words, and the character offset of each answer is mapped
//     to a word span. Answers that can't be recovered from the document are dropped with a warning.
//  2. Words and question are split into subword tokens, and the answer span is refined to the subword
//     tokens that match the answer text (see ImproveAnswerSpan).
//  3. Long documents are split into overlapping windows (see GenerateDocSpans), and for each window a
//     Feature "[CLS] question [SEP] window [SEP]" is built, padded to max_len, with the answer position
//     relative to the window when training.
//
// Example:
//
//	result, err := qa.NewProcessor(tok).Training(true).WithMaxLen(384).Process(inputs)
package qa

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/bertprep/preprocess"
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultMaxQueryLength is the default number of question tokens kept.
	DefaultMaxQueryLength = 64

	// DefaultUniqueIDBase is the first Feature.UniqueID allocated by Process.
	DefaultUniqueIDBase = 1000000000
)

// Inputs holds index-aligned batch inputs: entry i of every non-nil field refers to question i.
type Inputs struct {
	DocumentTexts []string
	QuestionTexts []string

	// AnswerStarts are character (rune) offsets of the answers in the document, and AnswerTexts the
	// matching answer strings. Both may be nil when not training. See SingleAnswers.
	AnswerStarts [][]int
	AnswerTexts  [][]string

	// QAIDs defaults to the positional index.
	QAIDs []string

	// IsImpossible marks questions without answer in their document. Defaults to all false.
	IsImpossible []bool
}

// SingleAnswers wraps one answer per question into the per-question sequences used by Inputs.
func SingleAnswers(starts []int, texts []string) ([][]int, [][]string) {
	wrappedStarts := make([][]int, len(starts))
	for i, start := range starts {
		wrappedStarts[i] = []int{start}
	}
	wrappedTexts := make([][]string, len(texts))
	for i, text := range texts {
		wrappedTexts[i] = []string{text}
	}
	return wrappedStarts, wrappedTexts
}

// RawExample is one question against one document, before tokenization.
type RawExample struct {
	ID            string
	DocumentText  string
	QuestionText  string
	AnswerOffsets []int
	AnswerTexts   []string
	IsImpossible  bool
}

// RawExamples validates the inputs and returns one RawExample per question.
func (in *Inputs) RawExamples() ([]RawExample, error) {
	n := len(in.DocumentTexts)
	checkLen := func(name string, length int, optional bool) error {
		if optional && length == 0 {
			return nil
		}
		if length != n {
			return errors.Wrapf(ErrInvalidInput, "%d document texts but %d %s", n, length, name)
		}
		return nil
	}
	if err := checkLen("question texts", len(in.QuestionTexts), false); err != nil {
		return nil, err
	}
	if (in.AnswerStarts == nil) != (in.AnswerTexts == nil) {
		return nil, errors.Wrap(ErrInvalidInput, "answer starts and answer texts must be given together")
	}
	if err := checkLen("answer starts", len(in.AnswerStarts), in.AnswerStarts == nil); err != nil {
		return nil, err
	}
	if err := checkLen("answer texts", len(in.AnswerTexts), in.AnswerTexts == nil); err != nil {
		return nil, err
	}
	if err := checkLen("qa ids", len(in.QAIDs), in.QAIDs == nil); err != nil {
		return nil, err
	}
	if err := checkLen("impossible flags", len(in.IsImpossible), in.IsImpossible == nil); err != nil {
		return nil, err
	}

	raw := make([]RawExample, n)
	for i := range raw {
		raw[i] = RawExample{
			ID:           strconv.Itoa(i),
			DocumentText: in.DocumentTexts[i],
			QuestionText: in.QuestionTexts[i],
		}
		if in.QAIDs != nil {
			raw[i].ID = in.QAIDs[i]
		}
		if in.IsImpossible != nil {
			raw[i].IsImpossible = in.IsImpossible[i]
		}
		if in.AnswerStarts != nil {
			raw[i].AnswerOffsets = in.AnswerStarts[i]
			raw[i].AnswerTexts = in.AnswerTexts[i]
		}
	}
	return raw, nil
}

// Example is one answer instance of a question, with the document split into words.
type Example struct {
	ID             string
	DocWords       []string
	QuestionText   string
	OrigAnswerText string

	// StartWordIndex and EndWordIndex are the inclusive word span of the answer in DocWords, or -1 for
	// impossible questions and when not training.
	StartWordIndex, EndWordIndex int

	IsImpossible bool
}

// IDSequence allocates Feature unique ids, in increasing order from a base value.
//
// To process partitions of a dataset independently, give each partition a sequence starting at a
// different base, with room for its features.
type IDSequence struct {
	next int
}

// NewIDSequence returns a sequence whose first id is base.
func NewIDSequence(base int) *IDSequence {
	return &IDSequence{next: base}
}

// Next returns a new id.
func (s *IDSequence) Next() int {
	id := s.next
	s.next++
	return id
}

// Peek returns the id the next call to Next will return.
func (s *IDSequence) Peek() int {
	return s.next
}

// Stats summarizes a Process call.
type Stats struct {
	Questions int
	Examples  int

	// DroppedAnswers counts answers not found in their document at the given offset.
	DroppedAnswers int

	Features int

	// OutOfWindowFeatures counts training features whose window doesn't contain the answer.
	OutOfWindowFeatures int
}

// Result of Processor.Process.
type Result struct {
	Features []Feature

	// Examples are the retained examples, indexed by Feature.ExampleIndex, used to map predictions back
	// to answer text.
	Examples []Example

	Stats Stats
}

// Processor converts question answering inputs into Features. Create it with NewProcessor and configure
// it with the With* methods.
type Processor struct {
	tok            api.SubwordTokenizer
	isTraining     bool
	maxQueryLength int
	maxLen         int
	docStride      int
}

// NewProcessor returns a Processor for inference with the default configuration: max_len of
// preprocess.MaxLen, DefaultDocStride and DefaultMaxQueryLength.
func NewProcessor(tok api.SubwordTokenizer) *Processor {
	return &Processor{
		tok:            tok,
		maxQueryLength: DefaultMaxQueryLength,
		maxLen:         preprocess.MaxLen,
		docStride:      DefaultDocStride,
	}
}

// Training sets whether features are built for training: answers are validated and Feature.Label is set.
func (p *Processor) Training(isTraining bool) *Processor {
	p.isTraining = isTraining
	return p
}

// WithMaxLen sets the length of the features. Values above preprocess.MaxLen are clamped with a warning.
func (p *Processor) WithMaxLen(maxLen int) *Processor {
	p.maxLen = preprocess.ClampMaxLen(maxLen)
	return p
}

// WithDocStride sets the offset between the starts of consecutive document windows.
func (p *Processor) WithDocStride(docStride int) *Processor {
	p.docStride = docStride
	return p
}

// WithMaxQueryLength sets the number of question tokens kept; longer questions are truncated.
func (p *Processor) WithMaxQueryLength(maxQueryLength int) *Processor {
	p.maxQueryLength = maxQueryLength
	return p
}

// MaxLen returns the configured (clamped) feature length.
func (p *Processor) MaxLen() int {
	return p.maxLen
}

func (p *Processor) validate() error {
	if p.maxLen <= 0 {
		return errors.Wrapf(ErrInvalidInput, "max_len must be positive, got %d", p.maxLen)
	}
	if p.docStride <= 0 {
		return errors.Wrapf(ErrInvalidInput, "doc_stride must be positive, got %d", p.docStride)
	}
	if p.maxQueryLength < 0 {
		return errors.Wrapf(ErrInvalidInput, "max_query_length must not be negative, got %d", p.maxQueryLength)
	}
	return nil
}

// Process converts inputs into Features, with unique ids starting at DefaultUniqueIDBase.
func (p *Processor) Process(inputs Inputs) (*Result, error) {
	return p.ProcessWithIDs(inputs, NewIDSequence(DefaultUniqueIDBase))
}

// ProcessWithIDs converts inputs into Features, allocating their unique ids from ids.
//
// Errors are fatal for the whole call: no partial result is returned.
func (p *Processor) ProcessWithIDs(inputs Inputs, ids *IDSequence) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	raw, err := inputs.RawExamples()
	if err != nil {
		return nil, err
	}
	examples, dropped, err := p.BuildExamples(raw)
	if err != nil {
		return nil, err
	}
	features, err := p.ConvertExamples(examples, ids)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Features: features,
		Examples: examples,
		Stats: Stats{
			Questions:      len(raw),
			Examples:       len(examples),
			DroppedAnswers: dropped,
			Features:       len(features),
		},
	}
	for i := range features {
		if features[i].Label.Kind == OutOfWindow {
			result.Stats.OutOfWindowFeatures++
		}
	}
	klog.V(1).Infof("qa: %d questions -> %d examples (%d answers dropped) -> %d features",
		result.Stats.Questions, result.Stats.Examples, result.Stats.DroppedAnswers, result.Stats.Features)
	return result, nil
}

// BuildExamples splits documents into words and creates one Example per answer of each question (one
// Example without answer for questions with no answers).
//
// When training, answers whose text isn't found at their offset are dropped with a warning, and counted
// in the returned dropped value.
func (p *Processor) BuildExamples(raw []RawExample) (examples []Example, dropped int, err error) {
	for qIdx := range raw {
		r := &raw[qIdx]
		if len(r.AnswerOffsets) != len(r.AnswerTexts) {
			return nil, 0, errors.Wrapf(ErrMismatchedAnswerData,
				"question %d (%q): %d answer starts but %d answer texts", qIdx, r.ID, len(r.AnswerOffsets), len(r.AnswerTexts))
		}
		if p.isTraining && !r.IsImpossible && len(r.AnswerOffsets) != 1 {
			return nil, 0, errors.Wrapf(ErrMultipleAnswersInTraining,
				"question %d (%q) has %d answers", qIdx, r.ID, len(r.AnswerOffsets))
		}

		words, charToWord := SplitWhitespace(r.DocumentText)
		newExample := func(answerText string) Example {
			return Example{
				ID:             r.ID,
				DocWords:       words,
				QuestionText:   r.QuestionText,
				OrigAnswerText: answerText,
				StartWordIndex: -1,
				EndWordIndex:   -1,
				IsImpossible:   r.IsImpossible,
			}
		}

		if len(r.AnswerOffsets) == 0 {
			examples = append(examples, newExample(""))
			continue
		}
		for aIdx, offset := range r.AnswerOffsets {
			example := newExample(r.AnswerTexts[aIdx])
			if p.isTraining && !r.IsImpossible {
				start, end, ok := answerWordSpan(words, charToWord, offset, example.OrigAnswerText)
				if !ok {
					dropped++
					continue
				}
				example.StartWordIndex, example.EndWordIndex = start, end
			}
			examples = append(examples, example)
		}
	}
	return examples, dropped, nil
}

// answerWordSpan maps the answer at character offset to an inclusive word span, and checks that the
// words contain the answer text (modulo whitespace). It logs a warning and returns false if not.
func answerWordSpan(words []string, charToWord []int, offset int, answerText string) (start, end int, ok bool) {
	lastChar := offset + utf8.RuneCountInString(answerText) - 1
	if answerText == "" || offset < 0 || lastChar >= len(charToWord) || charToWord[offset] < 0 {
		klog.Warningf("could not find answer %q at character offset %d of a %d characters document",
			answerText, offset, len(charToWord))
		return 0, 0, false
	}
	start, end = charToWord[offset], charToWord[lastChar]
	actualText := strings.Join(words[start:end+1], " ")
	cleanedAnswerText := strings.Join(strings.Fields(answerText), " ")
	if !strings.Contains(actualText, cleanedAnswerText) {
		klog.Warningf("could not find answer: %q vs. %q", actualText, cleanedAnswerText)
		return 0, 0, false
	}
	return start, end, true
}

// ConvertExamples builds the Features of the examples, in order, allocating unique ids from ids.
func (p *Processor) ConvertExamples(examples []Example, ids *IDSequence) ([]Feature, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	var features []Feature
	for exampleIdx := range examples {
		example := &examples[exampleIdx]
		queryTokens := p.tok.Tokenize(example.QuestionText)
		if len(queryTokens) > p.maxQueryLength {
			queryTokens = queryTokens[:p.maxQueryLength]
		}
		doc := tokenizeDoc(p.tok, example.DocWords)

		// The -3 accounts for [CLS], [SEP] and [SEP].
		maxTokensForDoc := p.maxLen - len(queryTokens) - 3
		spans, err := GenerateDocSpans(len(doc.tokens), maxTokensForDoc, p.docStride)
		if err != nil {
			return nil, errors.WithMessagef(err, "example %d (%q) with %d question tokens and max_len %d",
				exampleIdx, example.ID, len(queryTokens), p.maxLen)
		}

		builder := &featureBuilder{
			tok:          p.tok,
			maxLen:       p.maxLen,
			isTraining:   p.isTraining,
			queryTokens:  queryTokens,
			doc:          doc,
			spans:        spans,
			isImpossible: example.IsImpossible,
		}
		if p.isTraining && !example.IsImpossible {
			builder.answerStart, builder.answerEnd = answerTokenSpan(p.tok, example, doc)
			if builder.answerStart > builder.answerEnd {
				klog.Warningf("answer %q of example %d (%q) has no subword tokens, all its windows are labeled %s",
					example.OrigAnswerText, exampleIdx, example.ID, OutOfWindow)
			}
		}
		for spanIdx := range spans {
			feature := builder.build(spanIdx)
			feature.UniqueID = ids.Next()
			feature.ExampleIndex = exampleIdx
			features = append(features, feature)
		}
		klog.V(2).Infof("qa: example %d (%q): %d document tokens in %d windows", exampleIdx, example.ID, len(doc.tokens), len(spans))
	}
	return features, nil
}

// FeatureColumns holds the numeric fields of a list of Features, row i being Feature i.
type FeatureColumns struct {
	InputIDs       [][]int
	AttentionMask  [][]int
	SegmentIDs     [][]int
	StartPositions []int
	EndPositions   []int
}

// Columns extracts the numeric fields of the features, e.g. to feed a dataloader.
func Columns(features []Feature) FeatureColumns {
	cols := FeatureColumns{
		InputIDs:       make([][]int, len(features)),
		AttentionMask:  make([][]int, len(features)),
		SegmentIDs:     make([][]int, len(features)),
		StartPositions: make([]int, len(features)),
		EndPositions:   make([]int, len(features)),
	}
	for i := range features {
		f := &features[i]
		cols.InputIDs[i] = f.InputIDs
		cols.AttentionMask[i] = f.AttentionMask
		cols.SegmentIDs[i] = f.SegmentIDs
		cols.StartPositions[i] = f.StartPosition()
		cols.EndPositions[i] = f.EndPosition()
	}
	return cols
}
