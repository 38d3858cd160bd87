package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/bertprep/dataloader"
	"github.com/gomlx/bertprep/preprocess"
	"github.com/gomlx/bertprep/preprocess/qa"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func renderTokens(text string, tokens []string, ids []int) string {
	t := newTable("#", "token", "id")
	for i, token := range tokens {
		t.Row(strconv.Itoa(i), token, strconv.Itoa(ids[i]))
	}
	return titleStyle.Render(fmt.Sprintf("%q", text)) + "\n" + t.Render()
}

func renderClassification(texts []string, batch *preprocess.ClassificationBatch) string {
	t := newTable("text", "input_ids", "input_mask")
	for i, text := range texts {
		t.Row(text, joinInts(batch.InputIDs[i]), joinInts(batch.InputMask[i]))
	}
	return t.Render()
}

// renderLabel formats the training label of a feature.
func renderLabel(f *qa.Feature) string {
	if f.Label.Kind == qa.Answerable {
		return fmt.Sprintf("%s [%d, %d]", f.Label.Kind, f.Label.Start, f.Label.End)
	}
	return f.Label.Kind.String()
}

// renderAnswer returns the window tokens of the labeled answer, if any.
func renderAnswer(f *qa.Feature) string {
	if f.Label.Kind != qa.Answerable {
		return ""
	}
	return strings.Join(f.Tokens[f.Label.Start:f.Label.End+1], " ")
}

func renderFeatures(result *qa.Result, limit int) string {
	t := newTable("unique_id", "example", "window", "tokens", "label", "answer")
	for i := range min(limit, len(result.Features)) {
		f := &result.Features[i]
		t.Row(
			strconv.Itoa(f.UniqueID),
			result.Examples[f.ExampleIndex].ID,
			strconv.Itoa(f.DocSpanIndex),
			strconv.Itoa(len(f.Tokens)),
			renderLabel(f),
			renderAnswer(f),
		)
	}
	title := titleStyle.Render(fmt.Sprintf("Features (%d of %d)", min(limit, len(result.Features)), len(result.Features)))
	return title + "\n" + t.Render()
}

func renderStats(stats qa.Stats) string {
	t := newTable("stat", "value")
	t.Row("questions", strconv.Itoa(stats.Questions))
	t.Row("examples", strconv.Itoa(stats.Examples))
	t.Row("dropped answers", strconv.Itoa(stats.DroppedAnswers))
	t.Row("features", strconv.Itoa(stats.Features))
	t.Row("out of window features", strconv.Itoa(stats.OutOfWindowFeatures))
	return t.Render()
}

func renderBatch(numBatches int, batch dataloader.Batch) string {
	t := newTable("column", "shape")
	for i, name := range batch.Names {
		t.Row(name, batch.Tensors[i].Shape().String())
	}
	return titleStyle.Render(fmt.Sprintf("First of %d batches", numBatches)) + "\n" + t.Render()
}
