package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gomlx/bertprep/hub"
	"github.com/gomlx/bertprep/tokenizers"
	"github.com/gomlx/bertprep/tokenizers/hftokenizer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// envPrefix of the environment variables overriding flags, e.g. BERTPREP_MAX_LEN for --max-len.
const envPrefix = "BERTPREP"

// Config holds the settings of all commands. Values come from flags, BERTPREP_* environment variables
// and an optional YAML file given with --config, in that order of precedence.
type Config struct {
	Vocab         string        `mapstructure:"vocab"`
	TokenizerFile string        `mapstructure:"tokenizer"`
	Repo          string        `mapstructure:"repo"`
	CacheDir      string        `mapstructure:"cache-dir"`
	HubEndpoint   string        `mapstructure:"hub-endpoint"`
	HubTimeout    time.Duration `mapstructure:"hub-timeout"`
	Cased         bool          `mapstructure:"cased"`

	MaxLen         int    `mapstructure:"max-len"`
	DocStride      int    `mapstructure:"doc-stride"`
	MaxQueryLength int    `mapstructure:"max-query-length"`
	Train          bool   `mapstructure:"train"`
	Data           string `mapstructure:"data"`
	Limit          int    `mapstructure:"limit"`
	Show           int    `mapstructure:"show"`
	BatchSize      int    `mapstructure:"batch-size"`
	Sample         string `mapstructure:"sample"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	return v
}

// loadConfig merges the command flags with the environment and the --config file.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := newViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "failed to bind flags")
	}
	if configPath := v.GetString("config"); configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %q", configPath)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	return cfg, nil
}

// addTokenizerFlags adds the flags selecting the tokenizer.
func addTokenizerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("vocab", "", "BERT vocab.txt file")
	flags.String("tokenizer", "", "HuggingFace tokenizer.json file")
	flags.String("repo", string(tokenizers.English), "HuggingFace hub repository to download the tokenizer from, used if neither --vocab nor --tokenizer are given")
	flags.String("cache-dir", hub.DefaultCacheDir(), "directory where hub files are cached")
	flags.String("hub-endpoint", hub.DefaultEndpoint, "HuggingFace hub server, e.g. a mirror")
	flags.Duration("hub-timeout", 10*time.Minute, "timeout of each hub request")
	flags.Bool("cased", false, "don't lowercase text (for --vocab, and --repo checkpoints not listed as uncased)")
}

// loadTokenizer creates the tokenizer selected by the configuration.
func loadTokenizer(cfg *Config) (tokenizers.Tokenizer, error) {
	var (
		tok *hftokenizer.Tokenizer
		err error
	)
	switch {
	case cfg.Vocab != "":
		tok, err = hftokenizer.NewFromVocabFile(nil, cfg.Vocab, !cfg.Cased)
	case cfg.TokenizerFile != "":
		tok, err = hftokenizer.NewFromFile(nil, cfg.TokenizerFile)
	case cfg.Repo != "":
		lowercase := !cfg.Cased
		if lang, err := tokenizers.ParseLanguage(cfg.Repo); err == nil {
			lowercase = lang.Lowercase()
		}
		klog.V(1).Infof("loading tokenizer from hub repo %q (lowercase=%v)", cfg.Repo, lowercase)
		repo := hub.New(cfg.Repo).
			WithCacheDir(cfg.CacheDir).
			WithEndpoint(cfg.HubEndpoint).
			WithHTTPClient(&http.Client{Timeout: cfg.HubTimeout})
		return tokenizers.New(repo, lowercase)
	default:
		return nil, errors.New("one of --vocab, --tokenizer or --repo must be given")
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}
