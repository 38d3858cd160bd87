// bertprep converts text into BERT model inputs: subword tokens, classification rows and question
// answering features.
//
// Usage:
//
//	bertprep tokenize --vocab vocab.txt "Hello world"
//	bertprep qa --repo bert-base-uncased --data train-v2.0.json --train --max-len 384
//	bertprep classify --vocab vocab.txt "first sentence" "second sentence"
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()
	cobra.CheckErr(newRootCmd(os.Stdout, flag.CommandLine).ExecuteContext(context.Background()))
}

// newRootCmd creates the command tree, writing results to out. klogFlags are exposed as global flags.
func newRootCmd(out io.Writer, klogFlags *flag.FlagSet) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bertprep",
		Short: "Prepare text as BERT model inputs",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}
	rootCmd.SetOut(out)
	if klogFlags != nil {
		rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
	}
	rootCmd.PersistentFlags().String("config", "", "YAML file with default values for the flags")
	addTokenizerFlags(rootCmd)

	rootCmd.AddCommand(newTokenizeCmd(), newQACmd(), newClassifyCmd())
	return rootCmd
}
