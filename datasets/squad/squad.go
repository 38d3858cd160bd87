// Package squad loads SQuAD v1.1 and v2.0 question answering datasets, either in the original nested
// JSON format or as HuggingFace parquet shards, and converts them to qa.Inputs.
package squad

import (
	"encoding/json"
	"io"
	"os"

	"github.com/gomlx/bertprep/preprocess/qa"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Answer is one annotated answer: Start is the character (rune) offset of Text in the context.
type Answer struct {
	Text  string `json:"text"`
	Start int    `json:"answer_start"`
}

// Record is one question about one context.
type Record struct {
	ID           string
	Title        string
	Context      string
	Question     string
	Answers      []Answer
	IsImpossible bool
}

// Dataset is a flat list of question records.
type Dataset struct {
	Version string
	Records []Record
}

// jsonFile is the nested layout of the SQuAD JSON files.
type jsonFile struct {
	Version string `json:"version"`
	Data    []struct {
		Title      string `json:"title"`
		Paragraphs []struct {
			Context string `json:"context"`
			QAs     []struct {
				ID           string   `json:"id"`
				Question     string   `json:"question"`
				Answers      []Answer `json:"answers"`
				IsImpossible bool     `json:"is_impossible"`
			} `json:"qas"`
		} `json:"paragraphs"`
	} `json:"data"`
}

// ParseJSON parses a SQuAD JSON file. Records without an id get a random one.
func ParseJSON(r io.Reader) (*Dataset, error) {
	var file jsonFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "failed to parse SQuAD JSON")
	}
	ds := &Dataset{Version: file.Version}
	for _, article := range file.Data {
		for _, paragraph := range article.Paragraphs {
			for _, q := range paragraph.QAs {
				ds.Records = append(ds.Records, Record{
					ID:           idOrNew(q.ID),
					Title:        article.Title,
					Context:      paragraph.Context,
					Question:     q.Question,
					Answers:      q.Answers,
					IsImpossible: q.IsImpossible,
				})
			}
		}
	}
	klog.V(1).Infof("squad: %d records (version %q)", len(ds.Records), ds.Version)
	return ds, nil
}

// LoadJSON reads a SQuAD JSON file.
func LoadJSON(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer func() { _ = f.Close() }()
	ds, err := ParseJSON(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s", path)
	}
	return ds, nil
}

// ParquetRecord is the row layout of the HuggingFace "squad" and "squad_v2" parquet files.
type ParquetRecord struct {
	ID       string         `parquet:"id"`
	Title    string         `parquet:"title"`
	Context  string         `parquet:"context"`
	Question string         `parquet:"question"`
	Answers  ParquetAnswers `parquet:"answers"`
}

// ParquetAnswers holds the answers of a ParquetRecord as parallel lists.
type ParquetAnswers struct {
	Text        []string `parquet:"text,list"`
	AnswerStart []int32  `parquet:"answer_start,list"`
}

// LoadParquet reads a HuggingFace SQuAD parquet file. Questions without answers are marked impossible,
// as in squad_v2.
func LoadParquet(path string) (*Dataset, error) {
	rows, err := parquet.ReadFile[ParquetRecord](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet file %s", path)
	}
	ds := &Dataset{Records: make([]Record, 0, len(rows))}
	for i, row := range rows {
		if len(row.Answers.Text) != len(row.Answers.AnswerStart) {
			return nil, errors.Wrapf(qa.ErrMismatchedAnswerData, "%s row %d (%q): %d answer texts but %d answer starts",
				path, i, row.ID, len(row.Answers.Text), len(row.Answers.AnswerStart))
		}
		record := Record{
			ID:           idOrNew(row.ID),
			Title:        row.Title,
			Context:      row.Context,
			Question:     row.Question,
			IsImpossible: len(row.Answers.Text) == 0,
		}
		for j, text := range row.Answers.Text {
			record.Answers = append(record.Answers, Answer{Text: text, Start: int(row.Answers.AnswerStart[j])})
		}
		ds.Records = append(ds.Records, record)
	}
	klog.V(1).Infof("squad: %d records from %s", len(ds.Records), path)
	return ds, nil
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Inputs converts the dataset to qa.Inputs.
//
// For training, impossible questions carry no answers and possible ones only their first answer, since
// training requires exactly one. Possible questions without any answer are skipped with a warning.
// Otherwise all records and answers are kept.
func (ds *Dataset) Inputs(isTraining bool) qa.Inputs {
	n := len(ds.Records)
	inputs := qa.Inputs{
		DocumentTexts: make([]string, 0, n),
		QuestionTexts: make([]string, 0, n),
		AnswerStarts:  make([][]int, 0, n),
		AnswerTexts:   make([][]string, 0, n),
		QAIDs:         make([]string, 0, n),
		IsImpossible:  make([]bool, 0, n),
	}
	var skipped int
	for _, r := range ds.Records {
		answers := r.Answers
		if isTraining {
			switch {
			case r.IsImpossible:
				answers = nil
			case len(answers) == 0:
				klog.Warningf("squad: skipping question %q: it is not marked impossible but has no answers", r.ID)
				skipped++
				continue
			case len(answers) > 1:
				answers = answers[:1]
			}
		}
		starts := make([]int, len(answers))
		texts := make([]string, len(answers))
		for j, answer := range answers {
			starts[j] = answer.Start
			texts[j] = answer.Text
		}
		inputs.DocumentTexts = append(inputs.DocumentTexts, r.Context)
		inputs.QuestionTexts = append(inputs.QuestionTexts, r.Question)
		inputs.AnswerStarts = append(inputs.AnswerStarts, starts)
		inputs.AnswerTexts = append(inputs.AnswerTexts, texts)
		inputs.QAIDs = append(inputs.QAIDs, r.ID)
		inputs.IsImpossible = append(inputs.IsImpossible, r.IsImpossible)
	}
	if skipped > 0 {
		klog.Warningf("squad: skipped %d of %d questions without answers", skipped, n)
	}
	return inputs
}
