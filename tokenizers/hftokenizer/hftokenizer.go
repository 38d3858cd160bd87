// Package hftokenizer implements a WordPiece (BERT) tokenizer from HuggingFace's tokenizer.json format,
// or from the classic BERT vocab.txt file.
//
// It implements both api.Tokenizer and api.SubwordTokenizer: the preprocessing pipelines work with the
// subword token strings (e.g. "critic", "##ize") and convert them to ids as a separate step.
package hftokenizer

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gomlx/bertprep/hub"
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TokenizerJSON represents the subset of HuggingFace's tokenizer.json file used by WordPiece models.
type TokenizerJSON struct {
	Version      string        `json:"version"`
	AddedTokens  []AddedToken  `json:"added_tokens"`
	Normalizer   *Normalizer   `json:"normalizer"`
	PreTokenizer *PreTokenizer `json:"pre_tokenizer"`
	Decoder      *Decoder      `json:"decoder"`
	Model        Model         `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	Lstrip     bool   `json:"lstrip"`
	Rstrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
//
// Optional booleans follow HuggingFace defaults when absent: CleanText and HandleChineseChars default
// to true, StripAccents follows Lowercase.
type Normalizer struct {
	Type               string       `json:"type"`
	Lowercase          bool         `json:"lowercase"`
	CleanText          *bool        `json:"clean_text"`
	HandleChineseChars *bool        `json:"handle_chinese_chars"`
	StripAccents       *bool        `json:"strip_accents"`
	Normalizers        []Normalizer `json:"normalizers"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type          string         `json:"type"`
	PreTokenizers []PreTokenizer `json:"pretokenizers"`
}

// Decoder represents the decoder configuration.
type Decoder struct {
	Type   string `json:"type"`
	Prefix string `json:"prefix"`
}

// Model represents the tokenizer model. Only "WordPiece" is supported.
type Model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"vocab"`
	UnkToken                string         `json:"unk_token"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
}

const (
	defaultSubwordPrefix        = "##"
	defaultMaxInputCharsPerWord = 100
)

// Tokenizer implements api.Tokenizer and api.SubwordTokenizer for WordPiece vocabularies.
type Tokenizer struct {
	config    *api.Config
	tokenizer *TokenizerJSON
	idToToken map[int]string

	prefix   string
	maxChars int

	// Special token IDs, -1 if not present.
	unkID  int
	padID  int
	bosID  int
	eosID  int
	clsID  int
	sepID  int
	maskID int

	// Added tokens lookup (content -> id), and their contents sorted longest first for splitting.
	addedTokens  map[string]int
	addedByWidth []string
}

// Compile time assert that Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer        = &Tokenizer{}
	_ api.SubwordTokenizer = &Tokenizer{}
)

// New creates a WordPiece tokenizer from the tokenizer.json file of a hub repository.
func New(config *api.Config, repo *hub.Repo) (*Tokenizer, error) {
	if !repo.HasFile("tokenizer.json") {
		return nil, errors.Errorf("\"tokenizer.json\" file not found in repo %q", repo.ID)
	}
	tokenizerFile, err := repo.DownloadFile("tokenizer.json")
	if err != nil {
		return nil, errors.Wrapf(err, "can't download tokenizer.json file")
	}
	return NewFromFile(config, tokenizerFile)
}

// NewFromFile creates a tokenizer from a local tokenizer.json file path.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(config, content)
}

// NewFromContent creates a tokenizer from tokenizer.json content.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	return newTokenizer(config, &tj)
}

// NewFromVocabFile creates a tokenizer from a BERT vocab.txt file: one token per line, the line number
// being the token id.
func NewFromVocabFile(config *api.Config, filePath string, lowercase bool) (*Tokenizer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary file %q", filePath)
	}
	defer f.Close()
	tok, err := NewFromVocab(config, f, lowercase)
	if err != nil {
		return nil, errors.WithMessagef(err, "vocabulary file %q", filePath)
	}
	return tok, nil
}

// NewFromVocab creates a tokenizer from the contents of a BERT vocab.txt, using the BERT normalizer
// (lowercasing and accent stripping if lowercase is set) and the BERT pre-tokenizer.
func NewFromVocab(config *api.Config, r io.Reader, lowercase bool) (*Tokenizer, error) {
	vocab := make(map[string]int)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	id := 0
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if token != "" {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read vocabulary")
	}
	if len(vocab) == 0 {
		return nil, errors.New("empty vocabulary")
	}

	tj := &TokenizerJSON{
		Normalizer:   &Normalizer{Type: "BertNormalizer", Lowercase: lowercase},
		PreTokenizer: &PreTokenizer{Type: "BertPreTokenizer"},
		Decoder:      &Decoder{Type: "WordPiece", Prefix: defaultSubwordPrefix},
		Model: Model{
			Type:                    "WordPiece",
			Vocab:                   vocab,
			ContinuingSubwordPrefix: defaultSubwordPrefix,
			MaxInputCharsPerWord:    defaultMaxInputCharsPerWord,
		},
	}
	for _, special := range []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]"} {
		if id, ok := vocab[special]; ok {
			tj.AddedTokens = append(tj.AddedTokens, AddedToken{ID: id, Content: special, Special: true})
		}
	}
	if _, ok := vocab["[UNK]"]; ok {
		tj.Model.UnkToken = "[UNK]"
	}
	return newTokenizer(config, tj)
}

func newTokenizer(config *api.Config, tj *TokenizerJSON) (*Tokenizer, error) {
	if tj.Model.Type != "WordPiece" {
		return nil, errors.Errorf("unsupported tokenizer model type %q, only WordPiece is supported", tj.Model.Type)
	}

	t := &Tokenizer{
		config:      config,
		tokenizer:   tj,
		idToToken:   make(map[int]string, len(tj.Model.Vocab)+len(tj.AddedTokens)),
		addedTokens: make(map[string]int),
		prefix:      tj.Model.ContinuingSubwordPrefix,
		maxChars:    tj.Model.MaxInputCharsPerWord,
		unkID:       -1,
		padID:       -1,
		bosID:       -1,
		eosID:       -1,
		clsID:       -1,
		sepID:       -1,
		maskID:      -1,
	}
	if t.prefix == "" {
		t.prefix = defaultSubwordPrefix
	}
	if t.maxChars == 0 {
		t.maxChars = defaultMaxInputCharsPerWord
	}

	for token, id := range tj.Model.Vocab {
		t.idToToken[id] = token
	}
	for _, at := range tj.AddedTokens {
		t.addedTokens[at.Content] = at.ID
		t.idToToken[at.ID] = at.Content
		t.addedByWidth = append(t.addedByWidth, at.Content)
	}
	sort.SliceStable(t.addedByWidth, func(i, j int) bool {
		return len(t.addedByWidth[i]) > len(t.addedByWidth[j])
	})

	t.resolveSpecialTokens()
	if t.unkID < 0 {
		klog.Warningf("WordPiece vocabulary has no unknown token, out-of-vocabulary words will be dropped")
	}
	return t, nil
}

// resolveSpecialTokens maps special tokens from the model, the added tokens and the config to their IDs.
func (t *Tokenizer) resolveSpecialTokens() {
	if t.tokenizer.Model.UnkToken != "" {
		if id, ok := t.tokenizer.Model.Vocab[t.tokenizer.Model.UnkToken]; ok {
			t.unkID = id
		}
	}

	for _, at := range t.tokenizer.AddedTokens {
		if !at.Special {
			continue
		}
		switch at.Content {
		case "[UNK]":
			t.unkID = at.ID
		case "[PAD]":
			t.padID = at.ID
		case "[CLS]":
			t.clsID = at.ID
		case "[SEP]":
			t.sepID = at.ID
		case "[MASK]":
			t.maskID = at.ID
		}
		if t.config != nil {
			if at.Content == t.config.BosToken {
				t.bosID = at.ID
			}
			if at.Content == t.config.EosToken {
				t.eosID = at.ID
			}
		}
	}

	if t.config == nil {
		return
	}
	fallbacks := []struct {
		id    *int
		token string
	}{
		{&t.unkID, t.config.UnkToken},
		{&t.padID, t.config.PadToken},
		{&t.clsID, t.config.ClsToken},
		{&t.sepID, t.config.SepToken},
		{&t.maskID, t.config.MaskToken},
		{&t.bosID, t.config.BosToken},
		{&t.eosID, t.config.EosToken},
	}
	for _, fb := range fallbacks {
		if *fb.id != -1 || fb.token == "" {
			continue
		}
		if id, ok := t.TokenToID(fb.token); ok {
			*fb.id = id
		}
	}
}

// Tokenize splits text into WordPiece token strings. Added tokens (e.g. "[SEP]") are kept whole.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, seg := range t.splitOnAddedTokens(text) {
		if seg.added {
			tokens = append(tokens, seg.text)
			continue
		}
		for _, word := range t.preTokenize(t.normalize(seg.text)) {
			tokens = append(tokens, t.wordPieceTokenize(word)...)
		}
	}
	return tokens
}

// ConvertTokensToIDs maps token strings to ids. Tokens not in the vocabulary map to the unknown token id
// (or 0 if the vocabulary has none).
func (t *Tokenizer) ConvertTokensToIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		id, ok := t.TokenToID(token)
		if !ok {
			id = max(t.unkID, 0)
		}
		ids[i] = id
	}
	return ids
}

// Encode converts text to a sequence of token IDs.
func (t *Tokenizer) Encode(text string) []int {
	return t.ConvertTokensToIDs(t.Tokenize(text))
}

type segment struct {
	text  string
	added bool
}

// splitOnAddedTokens separates occurrences of added tokens from the rest of the text, so they are not
// normalized or split on punctuation.
func (t *Tokenizer) splitOnAddedTokens(text string) []segment {
	if len(t.addedByWidth) == 0 {
		return []segment{{text: text}}
	}
	var segments []segment
	start := 0
	for pos := 0; pos < len(text); {
		matched := ""
		for _, content := range t.addedByWidth {
			if strings.HasPrefix(text[pos:], content) {
				matched = content
				break
			}
		}
		if matched == "" {
			pos++
			continue
		}
		if start < pos {
			segments = append(segments, segment{text: text[start:pos]})
		}
		segments = append(segments, segment{text: matched, added: true})
		pos += len(matched)
		start = pos
	}
	if start < len(text) {
		segments = append(segments, segment{text: text[start:]})
	}
	return segments
}

// normalize applies the normalizer to the text.
func (t *Tokenizer) normalize(text string) string {
	if t.tokenizer.Normalizer == nil {
		return text
	}
	return applyNormalizer(text, t.tokenizer.Normalizer)
}

// preTokenize splits text into words using the pre-tokenizer.
func (t *Tokenizer) preTokenize(text string) []string {
	if t.tokenizer.PreTokenizer == nil {
		return strings.Fields(text)
	}
	return applyPreTokenizer(text, t.tokenizer.PreTokenizer)
}

// wordPieceTokenize implements greedy longest-match-first WordPiece tokenization of a single word.
func (t *Tokenizer) wordPieceTokenize(word string) []string {
	if word == "" {
		return nil
	}
	unk := t.unknownToken()
	if len([]rune(word)) > t.maxChars {
		if unk != "" {
			return []string{unk}
		}
		return nil
	}

	var tokens []string
	start := 0
	for start < len(word) {
		end := len(word)
		found := ""
		for start < end {
			substr := word[start:end]
			if start > 0 {
				substr = t.prefix + substr
			}
			if _, ok := t.tokenizer.Model.Vocab[substr]; ok {
				found = substr
				break
			}
			end--
		}
		if found == "" {
			if unk != "" {
				return []string{unk}
			}
			return nil
		}
		tokens = append(tokens, found)
		start = end
	}
	return tokens
}

func (t *Tokenizer) unknownToken() string {
	if t.unkID < 0 {
		return ""
	}
	return t.idToToken[t.unkID]
}

// Decode converts a sequence of token IDs back to text, gluing continuation pieces to the previous token.
func (t *Tokenizer) Decode(ids []int) string {
	prefix := t.prefix
	if t.tokenizer.Decoder != nil && t.tokenizer.Decoder.Prefix != "" {
		prefix = t.tokenizer.Decoder.Prefix
	}

	var result strings.Builder
	first := true
	for _, id := range ids {
		token, ok := t.idToToken[id]
		if !ok {
			continue
		}
		if strings.HasPrefix(token, prefix) {
			result.WriteString(strings.TrimPrefix(token, prefix))
			continue
		}
		if !first {
			result.WriteString(" ")
		}
		result.WriteString(token)
		first = false
	}
	return result.String()
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		if t.unkID >= 0 {
			return t.unkID, nil
		}
	case api.TokPad:
		if t.padID >= 0 {
			return t.padID, nil
		}
	case api.TokBeginningOfSentence:
		if t.bosID >= 0 {
			return t.bosID, nil
		}
		// Fall back to CLS for BERT-style models
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	case api.TokEndOfSentence:
		if t.eosID >= 0 {
			return t.eosID, nil
		}
		// Fall back to SEP for BERT-style models
		if t.sepID >= 0 {
			return t.sepID, nil
		}
	case api.TokMask:
		if t.maskID >= 0 {
			return t.maskID, nil
		}
	case api.TokClassification:
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	case api.TokSeparator:
		if t.sepID >= 0 {
			return t.sepID, nil
		}
	}
	return 0, errors.Errorf("special token %s not found", token)
}

// VocabSize returns the number of distinct token ids.
func (t *Tokenizer) VocabSize() int {
	return len(t.idToToken)
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.addedTokens[token]; ok {
		return id, true
	}
	id, ok := t.tokenizer.Model.Vocab[token]
	return id, ok
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}
