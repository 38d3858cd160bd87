// Package tokenizers creates subword tokenizers for HuggingFace hub repositories.
//
// The implementations live in the sub-packages:
//
//   - hftokenizer: WordPiece (BERT) from tokenizer.json or vocab.txt.
//   - sentencepiece: SentencePiece models from tokenizer.model.
//
// Example:
//
//	tok, err := tokenizers.New(hub.New(string(tokenizers.English)), tokenizers.English.Lowercase())
package tokenizers

import (
	"encoding/json"
	"os"

	"github.com/gomlx/bertprep/hub"
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/gomlx/bertprep/tokenizers/hftokenizer"
	"github.com/gomlx/bertprep/tokenizers/sentencepiece"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Language identifies a pretrained BERT checkpoint, by its hub repository id.
type Language string

const (
	English              Language = "bert-base-uncased"
	EnglishCased         Language = "bert-base-cased"
	EnglishLarge         Language = "bert-large-uncased"
	EnglishLargeCased    Language = "bert-large-cased"
	EnglishLargeWWM      Language = "bert-large-uncased-whole-word-masking"
	EnglishLargeCasedWWM Language = "bert-large-cased-whole-word-masking"
	Chinese              Language = "bert-base-chinese"
	Multilingual         Language = "bert-base-multilingual-cased"
)

// Languages lists all known checkpoints.
var Languages = []Language{
	English, EnglishCased, EnglishLarge, EnglishLargeCased,
	EnglishLargeWWM, EnglishLargeCasedWWM, Chinese, Multilingual,
}

// Lowercase returns whether the checkpoint was trained on lowercased text.
func (l Language) Lowercase() bool {
	switch l {
	case English, EnglishLarge, EnglishLargeWWM, Chinese:
		return true
	default:
		return false
	}
}

// ParseLanguage returns the Language for the given hub id.
func ParseLanguage(id string) (Language, error) {
	for _, l := range Languages {
		if string(l) == id {
			return l, nil
		}
	}
	return "", errors.Errorf("unknown language %q", id)
}

// Tokenizer is what the preprocessing pipelines need from a tokenizer.
type Tokenizer interface {
	api.Tokenizer
	api.SubwordTokenizer
}

// New creates a tokenizer for the repo, based on the files it has: "tokenizer.json" is preferred, then
// BERT's "vocab.txt", then SentencePiece's "tokenizer.model".
//
// lowercase only applies to "vocab.txt" vocabularies: tokenizer.json files carry their own normalizer.
// If the repo has a "tokenizer_config.json" it is used to resolve special tokens.
func New(repo *hub.Repo, lowercase bool) (Tokenizer, error) {
	config, err := LoadConfig(repo)
	if err != nil {
		return nil, err
	}
	switch {
	case repo.HasFile("tokenizer.json"):
		klog.V(1).Infof("using tokenizer.json WordPiece tokenizer for %q", repo.ID)
		tok, err := hftokenizer.New(config, repo)
		if err != nil {
			return nil, err
		}
		return tok, nil
	case repo.HasFile("vocab.txt"):
		klog.V(1).Infof("using vocab.txt WordPiece tokenizer for %q", repo.ID)
		vocabPath, err := repo.DownloadFile("vocab.txt")
		if err != nil {
			return nil, err
		}
		if config != nil && config.DoLowerCase {
			lowercase = true
		}
		tok, err := hftokenizer.NewFromVocabFile(config, vocabPath, lowercase)
		if err != nil {
			return nil, err
		}
		return tok, nil
	case repo.HasFile("tokenizer.model"):
		klog.V(1).Infof("using SentencePiece tokenizer for %q", repo.ID)
		tok, err := sentencepiece.New(config, repo)
		if err != nil {
			return nil, err
		}
		return tok.RegisterBertMarkers(), nil
	}
	return nil, errors.Errorf("repo %q has no known tokenizer file (tokenizer.json, vocab.txt or tokenizer.model)", repo.ID)
}

// LoadConfig returns the parsed tokenizer_config.json of the repo, or nil if it doesn't have one.
func LoadConfig(repo *hub.Repo) (*api.Config, error) {
	if !repo.HasFile("tokenizer_config.json") {
		return nil, nil
	}
	configPath, err := repo.DownloadFile("tokenizer_config.json")
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", configPath)
	}
	return ParseConfig(content)
}

// ParseConfig parses the contents of a tokenizer_config.json file.
//
// Special tokens may be plain strings or objects with a "content" field.
func ParseConfig(content []byte) (*api.Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse tokenizer_config.json")
	}
	config := &api.Config{}
	if v, ok := raw["do_lower_case"]; ok {
		if err := json.Unmarshal(v, &config.DoLowerCase); err != nil {
			return nil, errors.Wrap(err, "invalid do_lower_case in tokenizer_config.json")
		}
	}
	if v, ok := raw["tokenizer_class"]; ok {
		_ = json.Unmarshal(v, &config.TokenizerClass)
	}
	fields := map[string]*string{
		"bos_token":  &config.BosToken,
		"eos_token":  &config.EosToken,
		"unk_token":  &config.UnkToken,
		"pad_token":  &config.PadToken,
		"cls_token":  &config.ClsToken,
		"sep_token":  &config.SepToken,
		"mask_token": &config.MaskToken,
	}
	for key, dst := range fields {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err == nil {
			continue
		}
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, errors.Wrapf(err, "invalid %s in tokenizer_config.json", key)
		}
		*dst = obj.Content
	}
	return config, nil
}
