// Package dataloader batches preprocessed columns into GoMLX tensors.
//
// A Dataset is a set of named columns with the same number of rows. Each column is either a matrix
// (one fixed-width row of ids per example, e.g. input ids) or a scalar (one value per example, e.g. a
// label). A Loader iterates over the Dataset in batches, sequentially or in random order:
//
//	ds, _ := dataloader.NewQA(result.Features, true)
//	for batch, err := range ds.Loader(32, dataloader.Random).Batches() {
//		...
//	}
package dataloader

import (
	"iter"
	"math/rand/v2"
	"strings"

	"github.com/gomlx/bertprep/preprocess"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultBatchSize is the batch size used when none is given.
const DefaultBatchSize = 32

// SampleMethod defines the order in which rows are visited.
type SampleMethod int

const (
	// Sequential visits rows in order.
	Sequential SampleMethod = iota

	// Random visits rows in a random permutation, different on each iteration.
	Random
)

// String implements fmt.Stringer.
func (m SampleMethod) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Random:
		return "random"
	default:
		return "unknown"
	}
}

// ErrInvalidSampleMethod is returned by ParseSampleMethod for unknown names.
var ErrInvalidSampleMethod = errors.New("sample method should be either 'random' or 'sequential'")

// ParseSampleMethod parses "random" or "sequential" (case-insensitive).
func ParseSampleMethod(name string) (SampleMethod, error) {
	switch strings.ToLower(name) {
	case "sequential":
		return Sequential, nil
	case "random":
		return Random, nil
	default:
		return Sequential, errors.Wrapf(ErrInvalidSampleMethod, "got %q", name)
	}
}

// Column is one named column of a Dataset.
//
// Exactly one of Rows or Values should be set: Rows for fixed-width rows (batched into tensors shaped
// [batch_size, width]), Values for scalars (batched into tensors shaped [batch_size]).
type Column struct {
	Name   string
	Rows   [][]int
	Values []int
}

func (c *Column) isScalar() bool {
	return c.Rows == nil
}

func (c *Column) numRows() int {
	if c.isScalar() {
		return len(c.Values)
	}
	return len(c.Rows)
}

// Dataset holds the columns to batch.
type Dataset struct {
	columns []Column
	widths  []int
	numRows int
}

// New creates a Dataset from the given columns, which must all have the same number of rows. Matrix
// columns must have rows of equal width. Otherwise it returns a wrapped preprocess.ErrInvalidInput.
func New(columns ...Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.Wrap(preprocess.ErrInvalidInput, "dataloader needs at least one column")
	}
	ds := &Dataset{
		columns: columns,
		widths:  make([]int, len(columns)),
		numRows: columns[0].numRows(),
	}
	seen := make(map[string]bool, len(columns))
	for i := range columns {
		col := &columns[i]
		if seen[col.Name] {
			return nil, errors.Wrapf(preprocess.ErrInvalidInput, "column %q given more than once", col.Name)
		}
		seen[col.Name] = true
		if col.numRows() != ds.numRows {
			return nil, errors.Wrapf(preprocess.ErrInvalidInput, "column %q has %d rows, but column %q has %d",
				col.Name, col.numRows(), columns[0].Name, ds.numRows)
		}
		if col.isScalar() || len(col.Rows) == 0 {
			continue
		}
		ds.widths[i] = len(col.Rows[0])
		for rowIdx, row := range col.Rows {
			if len(row) != ds.widths[i] {
				return nil, errors.Wrapf(preprocess.ErrInvalidInput, "column %q row %d has width %d, expected %d",
					col.Name, rowIdx, len(row), ds.widths[i])
			}
		}
	}
	return ds, nil
}

// NumRows returns the number of rows in the Dataset.
func (ds *Dataset) NumRows() int {
	return ds.numRows
}

// ColumnNames returns the names of the columns, in the order tensors appear in a Batch.
func (ds *Dataset) ColumnNames() []string {
	names := make([]string, len(ds.columns))
	for i := range ds.columns {
		names[i] = ds.columns[i].Name
	}
	return names
}

// Batch is one batch of rows, with one tensor per column.
type Batch struct {
	// Indices of the rows in the Dataset.
	Indices []int

	// Names and Tensors of the columns, in the Dataset order.
	Names   []string
	Tensors []*tensors.Tensor
}

// Tensor returns the tensor of the named column, or nil if there is no such column.
func (b *Batch) Tensor(name string) *tensors.Tensor {
	for i, n := range b.Names {
		if n == name {
			return b.Tensors[i]
		}
	}
	return nil
}

// Loader iterates over a Dataset in batches. Create it with Dataset.Loader.
type Loader struct {
	ds        *Dataset
	batchSize int
	method    SampleMethod
	rng       *rand.Rand
}

// Loader returns a Loader over the dataset. A batchSize <= 0 uses DefaultBatchSize.
func (ds *Dataset) Loader(batchSize int, method SampleMethod) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		ds:        ds,
		batchSize: batchSize,
		method:    method,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithSeed makes the Random order reproducible.
func (l *Loader) WithSeed(seed uint64) *Loader {
	l.rng = rand.New(rand.NewPCG(seed, seed))
	return l
}

// NumBatches returns the number of batches per iteration. The last batch may be smaller.
func (l *Loader) NumBatches() int {
	return (l.ds.numRows + l.batchSize - 1) / l.batchSize
}

func (l *Loader) order() []int {
	switch l.method {
	case Random:
		return l.rng.Perm(l.ds.numRows)
	default:
		order := make([]int, l.ds.numRows)
		for i := range order {
			order[i] = i
		}
		return order
	}
}

// Batches returns an iterator over the batches of one pass over the Dataset.
func (l *Loader) Batches() iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		if l.method != Sequential && l.method != Random {
			yield(Batch{}, errors.Wrapf(ErrInvalidSampleMethod, "got %d", int(l.method)))
			return
		}
		order := l.order()
		klog.V(1).Infof("dataloader: %d rows in %d batches of %d (%s)", l.ds.numRows, l.NumBatches(), l.batchSize, l.method)
		for start := 0; start < len(order); start += l.batchSize {
			indices := order[start:min(start+l.batchSize, len(order))]
			if !yield(l.ds.batch(indices), nil) {
				return
			}
		}
	}
}

// batch gathers the given rows of every column into int64 tensors.
func (ds *Dataset) batch(indices []int) Batch {
	b := Batch{
		Indices: indices,
		Names:   ds.ColumnNames(),
		Tensors: make([]*tensors.Tensor, len(ds.columns)),
	}
	for colIdx := range ds.columns {
		col := &ds.columns[colIdx]
		if col.isScalar() {
			flat := make([]int64, len(indices))
			for i, rowIdx := range indices {
				flat[i] = int64(col.Values[rowIdx])
			}
			b.Tensors[colIdx] = tensors.FromFlatDataAndDimensions(flat, len(indices))
			continue
		}
		width := ds.widths[colIdx]
		flat := make([]int64, 0, len(indices)*width)
		for _, rowIdx := range indices {
			for _, v := range col.Rows[rowIdx] {
				flat = append(flat, int64(v))
			}
		}
		b.Tensors[colIdx] = tensors.FromFlatDataAndDimensions(flat, len(indices), width)
	}
	return b
}
