package squad

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/bertprep/internal/testutil"
	"github.com/gomlx/bertprep/preprocess/qa"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squadJSON = `{
  "version": "v2.0",
  "data": [{
    "title": "Smith",
    "paragraphs": [{
      "context": "The leader was John Smith (1895-1943).",
      "qas": [
        {"id": "q1", "question": "What year was John Smith born?",
         "answers": [{"text": "1895", "answer_start": 27}, {"text": "1895-1943", "answer_start": 27}],
         "is_impossible": false},
        {"id": "q2", "question": "Who is in Paris?", "answers": [], "is_impossible": true},
        {"question": "Who was the leader?", "answers": [{"text": "John Smith", "answer_start": 15}]}
      ]
    }]
  }]
}`

func TestParseJSON(t *testing.T) {
	ds, err := ParseJSON(strings.NewReader(squadJSON))
	require.NoError(t, err)
	assert.Equal(t, "v2.0", ds.Version)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, "q1", ds.Records[0].ID)
	assert.Equal(t, "Smith", ds.Records[0].Title)
	assert.Equal(t, []Answer{{"1895", 27}, {"1895-1943", 27}}, ds.Records[0].Answers)
	assert.True(t, ds.Records[1].IsImpossible)
	assert.NotEmpty(t, ds.Records[2].ID)

	_, err = ParseJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestInputs(t *testing.T) {
	ds, err := ParseJSON(strings.NewReader(squadJSON))
	require.NoError(t, err)

	train := ds.Inputs(true)
	assert.Equal(t, [][]int{{27}, {}, {15}}, train.AnswerStarts)
	assert.Equal(t, [][]string{{"1895"}, {}, {"John Smith"}}, train.AnswerTexts)
	assert.Equal(t, []bool{false, true, false}, train.IsImpossible)

	eval := ds.Inputs(false)
	assert.Len(t, eval.AnswerStarts[0], 2)

	tok := testutil.Tokenizer(t)
	result, err := qa.NewProcessor(tok).Training(true).WithMaxLen(64).Process(train)
	require.NoError(t, err)
	assert.Len(t, result.Examples, 3)
	assert.Equal(t, 0, result.Stats.DroppedAnswers)
	assert.Equal(t, qa.Answerable, result.Features[0].Label.Kind)
	assert.Equal(t, qa.Unanswerable, result.Features[1].Label.Kind)
}

func TestInputsSkipsPossibleWithoutAnswers(t *testing.T) {
	ds := &Dataset{Records: []Record{
		{ID: "q1", Context: "The leader was John Smith (1895-1943).", Question: "Who was the leader?",
			Answers: []Answer{{"John Smith", 15}}},
		{ID: "q2", Context: "The leader was John Smith (1895-1943).", Question: "When?"},
		{ID: "q3", Context: "The leader was John Smith (1895-1943).", Question: "Who is in Paris?", IsImpossible: true},
	}}

	train := ds.Inputs(true)
	assert.Equal(t, []string{"q1", "q3"}, train.QAIDs)
	assert.Equal(t, []string{"Who was the leader?", "Who is in Paris?"}, train.QuestionTexts)
	assert.Equal(t, [][]int{{15}, {}}, train.AnswerStarts)
	assert.Equal(t, []bool{false, true}, train.IsImpossible)

	tok := testutil.Tokenizer(t)
	result, err := qa.NewProcessor(tok).Training(true).WithMaxLen(64).Process(train)
	require.NoError(t, err)
	assert.Len(t, result.Examples, 2)

	eval := ds.Inputs(false)
	assert.Equal(t, []string{"q1", "q2", "q3"}, eval.QAIDs)
	assert.Empty(t, eval.AnswerStarts[1])
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squad_v2.parquet")
	rows := []ParquetRecord{
		{
			ID:       "q1",
			Title:    "Smith",
			Context:  "The leader was John Smith (1895-1943).",
			Question: "Who was the leader?",
			Answers:  ParquetAnswers{Text: []string{"John Smith"}, AnswerStart: []int32{15}},
		},
		{
			Title:    "Smith",
			Context:  "The leader was John Smith (1895-1943).",
			Question: "Who is in Paris?",
		},
	}
	require.NoError(t, parquet.WriteFile(path, rows))

	ds, err := LoadParquet(path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, []Answer{{"John Smith", 15}}, ds.Records[0].Answers)
	assert.False(t, ds.Records[0].IsImpossible)
	assert.True(t, ds.Records[1].IsImpossible)
	assert.NotEmpty(t, ds.Records[1].ID)

	bad := filepath.Join(t.TempDir(), "bad.parquet")
	require.NoError(t, parquet.WriteFile(bad, []ParquetRecord{{
		ID:      "q",
		Answers: ParquetAnswers{Text: []string{"a", "b"}, AnswerStart: []int32{0}},
	}}))
	_, err = LoadParquet(bad)
	assert.True(t, errors.Is(err, qa.ErrMismatchedAnswerData))

	_, err = LoadParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}

func TestLoadJSONMissing(t *testing.T) {
	_, err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
