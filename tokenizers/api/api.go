// Package api defines the Tokenizer APIs.
// It's kept separate from `tokenizers` to break the cyclic dependency between the loader and the
// implementations.
package api

import "fmt"

// Tokenizer interface allows one to convert text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// SubwordTokenizer splits text into subword token strings (e.g. "critic", "##ize") and maps those
// strings to vocabulary ids.
//
// It is what the preprocessing pipelines consume: they need the token strings themselves, to
// re-align answers and to mark trailing pieces, not only the ids.
// Implementations must be deterministic and side-effect free.
type SubwordTokenizer interface {
	Tokenize(text string) []string
	ConvertTokensToIDs(tokens []string) []int
}

// Config holds the special-token names and flags of a tokenizer_config.json file.
type Config struct {
	DoLowerCase bool   `json:"do_lower_case"`
	BosToken    string `json:"bos_token"`
	EosToken    string `json:"eos_token"`
	UnkToken    string `json:"unk_token"`
	PadToken    string `json:"pad_token"`
	ClsToken    string `json:"cls_token"`
	SepToken    string `json:"sep_token"`
	MaskToken   string `json:"mask_token"`

	// TokenizerClass is informative only, e.g. "BertTokenizer".
	TokenizerClass string `json:"tokenizer_class"`
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSeparator
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	"beginning_of_sentence",
	"end_of_sentence",
	"unknown",
	"pad",
	"mask",
	"classification",
	"separator",
	"special_tokens_count",
}

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	if t < 0 || int(t) >= len(specialTokenNames) {
		return fmt.Sprintf("SpecialToken(%d)", int(t))
	}
	return specialTokenNames[t]
}
