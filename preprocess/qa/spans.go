package qa

import (
	"strings"

	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
)

// DefaultDocStride is the default offset between the starts of consecutive document windows.
const DefaultDocStride = 128

// DocSpan is one window over the subword tokens of a document.
type DocSpan struct {
	Start, Length int
}

// Last returns the index of the last document token in the span (inclusive).
func (s DocSpan) Last() int {
	return s.Start + s.Length - 1
}

// Contains returns whether the document token position is in the span.
func (s DocSpan) Contains(position int) bool {
	return position >= s.Start && position <= s.Last()
}

// GenerateDocSpans partitions numTokens document tokens into windows of at most maxTokensForDoc tokens,
// each starting min(length, docStride) after the previous one. The last window always ends at
// numTokens, and windows overlap if docStride < maxTokensForDoc. No windows are returned for an empty
// document.
func GenerateDocSpans(numTokens, maxTokensForDoc, docStride int) ([]DocSpan, error) {
	if maxTokensForDoc <= 0 {
		return nil, errors.Wrapf(ErrWindowOverflow, "%d tokens available for the document", maxTokensForDoc)
	}
	if docStride <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "doc_stride must be positive, got %d", docStride)
	}
	var spans []DocSpan
	for start := 0; start < numTokens; {
		length := min(numTokens-start, maxTokensForDoc)
		spans = append(spans, DocSpan{Start: start, Length: length})
		if start+length == numTokens {
			break
		}
		start += min(length, docStride)
	}
	return spans, nil
}

// IsMaxContext returns whether spans[current] is the window with the "maximum context" for the document
// token at position.
//
// With overlapping windows a token appears in more than one of them, e.g.:
//
//	Doc:    the man went to the store and bought a gallon of milk
//	Span A: the man went to the
//	Span B: to the store and bought
//	Span C: and bought a gallon of
//
// A window's score for a token is the minimum of its left and right context, plus 0.01 times the window
// length. "bought" scores 0.05 in B (4 left, 0 right) and 1.05 in C (1 left, 3 right), so C has the
// maximum context. On equal scores the first window wins.
func IsMaxContext(spans []DocSpan, current, position int) bool {
	bestScore := 0.0
	bestIndex := -1
	for i, span := range spans {
		if !span.Contains(position) {
			continue
		}
		left := position - span.Start
		right := span.Last() - position
		score := float64(min(left, right)) + 0.01*float64(span.Length)
		if bestIndex < 0 || score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	return bestIndex == current
}

// ImproveAnswerSpan narrows the answer span [start, end] over docTokens to the subword tokens that match
// the tokenized answer text exactly, if any.
//
// Character annotations are first projected to whitespace-separated words, which may be wider than the
// answer: for "The leader was John Smith (1895-1943)." and answer "1895" the word is "(1895-1943).",
// but its subword tokens "( 1895 - 1943 ) ." contain the exact answer.
//
// Candidates are scanned by increasing start and, for each start, decreasing end; the first match is
// returned. If none matches (e.g. answer "Japan" annotated inside the word "Japanese") the span is
// returned unchanged.
func ImproveAnswerSpan(tok api.SubwordTokenizer, docTokens []string, start, end int, answerText string) (int, int) {
	target := strings.Join(tok.Tokenize(answerText), " ")
	for newStart := start; newStart <= end; newStart++ {
		for newEnd := end; newEnd >= newStart; newEnd-- {
			if strings.Join(docTokens[newStart:newEnd+1], " ") == target {
				return newStart, newEnd
			}
		}
	}
	return start, end
}
