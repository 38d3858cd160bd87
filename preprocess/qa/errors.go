package qa

import (
	"github.com/gomlx/bertprep/preprocess"
	"github.com/pkg/errors"
)

// Errors returned (wrapped) by the Processor. Use errors.Is to test for them.
//
// An answer whose text can't be recovered from the document at the given offset is not an error: the
// answer is dropped with a warning and counted in Stats.DroppedAnswers.
var (
	// ErrInvalidInput is returned when parallel input sequences have different lengths, or the
	// configuration is invalid.
	ErrInvalidInput = preprocess.ErrInvalidInput

	// ErrMismatchedAnswerData is returned when a question has a different number of answer offsets and
	// answer texts.
	ErrMismatchedAnswerData = errors.New("mismatched answer offsets and texts")

	// ErrMultipleAnswersInTraining is returned when a possible question doesn't have exactly one answer in
	// training mode.
	ErrMultipleAnswersInTraining = errors.New("for training, each question should have exactly 1 answer")

	// ErrWindowOverflow is returned when the question leaves no room for document tokens within max_len.
	ErrWindowOverflow = errors.New("question too long for max_len")
)
