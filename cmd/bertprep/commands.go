package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gomlx/bertprep/dataloader"
	"github.com/gomlx/bertprep/datasets/squad"
	"github.com/gomlx/bertprep/preprocess"
	"github.com/gomlx/bertprep/preprocess/qa"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize TEXT...",
		Short: "Print the subword tokens and ids of each text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tok, err := loadTokenizer(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, text := range args {
				tokens := tok.Tokenize(text)
				_, _ = fmt.Fprintln(out, renderTokens(text, tokens, tok.ConvertTokensToIDs(tokens)))
			}
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify TEXT...",
		Short: "Print the padded classification rows of single sentences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tok, err := loadTokenizer(cfg)
			if err != nil {
				return err
			}
			batch, err := preprocess.PreprocessClassification(tok, preprocess.Tokenize(tok, args), cfg.MaxLen)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderClassification(args, batch))
			return nil
		},
	}
	cmd.Flags().Int("max-len", 32, "length of the rows, at most 512")
	return cmd
}

func newQACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Convert a SQuAD dataset into question answering features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Data == "" {
				return errors.New("--data is required")
			}
			ds, err := loadSquad(cfg.Data)
			if err != nil {
				return err
			}
			if cfg.Limit > 0 && len(ds.Records) > cfg.Limit {
				ds.Records = ds.Records[:cfg.Limit]
			}
			sample, err := dataloader.ParseSampleMethod(cfg.Sample)
			if err != nil {
				return err
			}
			tok, err := loadTokenizer(cfg)
			if err != nil {
				return err
			}

			result, err := qa.NewProcessor(tok).
				Training(cfg.Train).
				WithMaxLen(cfg.MaxLen).
				WithDocStride(cfg.DocStride).
				WithMaxQueryLength(cfg.MaxQueryLength).
				Process(ds.Inputs(cfg.Train))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, renderFeatures(result, cfg.Show))
			_, _ = fmt.Fprintln(out, renderStats(result.Stats))

			rows, err := dataloader.NewQA(result.Features, cfg.Train)
			if err != nil {
				return err
			}
			loader := rows.Loader(cfg.BatchSize, sample)
			for batch, err := range loader.Batches() {
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, renderBatch(loader.NumBatches(), batch))
				break
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("data", "", "SQuAD dataset, as a .json file or a HuggingFace .parquet file")
	flags.Bool("train", false, "build training features: answers are validated and labeled")
	flags.Int("max-len", preprocess.MaxLen, "length of the features, at most 512")
	flags.Int("doc-stride", qa.DefaultDocStride, "offset between the starts of consecutive document windows")
	flags.Int("max-query-length", qa.DefaultMaxQueryLength, "maximum number of question tokens")
	flags.Int("limit", 0, "only process the first questions of the dataset, if > 0")
	flags.Int("show", 10, "number of features to print")
	flags.Int("batch-size", dataloader.DefaultBatchSize, "batch size")
	flags.String("sample", "sequential", "batch sampling order: sequential or random")
	return cmd
}

func loadSquad(path string) (*squad.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return squad.LoadParquet(path)
	}
	return squad.LoadJSON(path)
}
