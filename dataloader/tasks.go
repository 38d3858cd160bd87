package dataloader

import (
	"github.com/gomlx/bertprep/preprocess"
	"github.com/gomlx/bertprep/preprocess/qa"
	"github.com/pkg/errors"
)

// Column names used by the task constructors.
const (
	InputIDsColumn       = "input_ids"
	AttentionMaskColumn  = "attention_mask"
	SegmentIDsColumn     = "segment_ids"
	LabelsColumn         = "labels"
	StartPositionsColumn = "start_positions"
	EndPositionsColumn   = "end_positions"
	TokenMaskColumn      = "trailing_token_mask"
)

// NewQA creates a Dataset from question answering features. With isTraining, the answer start and end
// positions are included as scalar columns.
func NewQA(features []qa.Feature, isTraining bool) (*Dataset, error) {
	cols := qa.Columns(features)
	columns := []Column{
		{Name: InputIDsColumn, Rows: cols.InputIDs},
		{Name: AttentionMaskColumn, Rows: cols.AttentionMask},
		{Name: SegmentIDsColumn, Rows: cols.SegmentIDs},
	}
	if isTraining {
		columns = append(columns,
			Column{Name: StartPositionsColumn, Values: cols.StartPositions},
			Column{Name: EndPositionsColumn, Values: cols.EndPositions})
	}
	return New(columns...)
}

// NewClassification creates a Dataset from a classification batch. Labels are optional.
func NewClassification(batch *preprocess.ClassificationBatch, labels []int) (*Dataset, error) {
	columns := []Column{
		{Name: InputIDsColumn, Rows: batch.InputIDs},
		{Name: AttentionMaskColumn, Rows: batch.InputMask},
	}
	if batch.TokenTypeIDs != nil {
		columns = append(columns, Column{Name: SegmentIDsColumn, Rows: batch.TokenTypeIDs})
	}
	if labels != nil {
		columns = append(columns, Column{Name: LabelsColumn, Values: labels})
	}
	return New(columns...)
}

// NewNER creates a Dataset from a token classification batch. Label ids are included if present.
func NewNER(batch *preprocess.NERBatch) (*Dataset, error) {
	if batch.Labels != nil && batch.LabelIDs == nil {
		return nil, errors.New("token classification labels must be converted to ids with a label map")
	}
	tokenMask := make([][]int, len(batch.TrailingTokenMask))
	for i, row := range batch.TrailingTokenMask {
		tokenMask[i] = make([]int, len(row))
		for j, keep := range row {
			if keep {
				tokenMask[i][j] = 1
			}
		}
	}
	columns := []Column{
		{Name: InputIDsColumn, Rows: batch.InputIDs},
		{Name: AttentionMaskColumn, Rows: batch.InputMask},
		{Name: TokenMaskColumn, Rows: tokenMask},
	}
	if batch.LabelIDs != nil {
		columns = append(columns, Column{Name: LabelsColumn, Rows: batch.LabelIDs})
	}
	return New(columns...)
}

// NewFromTokenized returns a Loader over already tokenized rows: input ids, attention mask and, if
// labelIDs is not nil, one label per token.
//
// sampleMethod is parsed with ParseSampleMethod, and defaults to "random" if empty. A batchSize <= 0
// uses DefaultBatchSize.
func NewFromTokenized(inputIDs, inputMask, labelIDs [][]int, sampleMethod string, batchSize int) (*Loader, error) {
	if sampleMethod == "" {
		sampleMethod = Random.String()
	}
	method, err := ParseSampleMethod(sampleMethod)
	if err != nil {
		return nil, err
	}
	columns := []Column{
		{Name: InputIDsColumn, Rows: inputIDs},
		{Name: AttentionMaskColumn, Rows: inputMask},
	}
	if labelIDs != nil {
		columns = append(columns, Column{Name: LabelsColumn, Rows: labelIDs})
	}
	ds, err := New(columns...)
	if err != nil {
		return nil, err
	}
	return ds.Loader(batchSize, method), nil
}
