// Package sentencepiece implements the tokenizer APIs based on Google's SentencePiece tokenizer.
package sentencepiece

import (
	"strings"
	"sync"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/bertprep/hub"
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/pkg/errors"
)

// New creates a SentencePiece tokenizer based on the "tokenizer.model" file of the repo, which must be a
// SentencePiece Model proto.
func New(config *api.Config, repo *hub.Repo) (*Tokenizer, error) {
	if !repo.HasFile("tokenizer.model") {
		return nil, errors.Errorf("\"tokenizer.model\" file not found in repo %q", repo.ID)
	}
	tokenizerFile, err := repo.DownloadFile("tokenizer.model")
	if err != nil {
		return nil, errors.Wrapf(err, "can't download tokenizer.model file")
	}
	return NewFromPath(tokenizerFile)
}

// NewFromPath creates a SentencePiece tokenizer from a local model file.
func NewFromPath(modelPath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
		pieces:    make(map[string]int),
	}, nil
}

// Tokenizer implements api.Tokenizer and api.SubwordTokenizer based on SentencePiece tokenizer by Google.
//
// ConvertTokensToIDs resolves pieces registered with RegisterPiece (e.g. "[CLS]" mapped to the model's
// beginning of sentence id) and pieces returned by Tokenize. Other pieces are resolved by encoding their
// text and looking for a token with exactly that piece, which works for word-initial pieces ("▁Hello")
// but not always for continuation pieces ("ld"). Pieces that can't be resolved map to the unknown id.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo

	mu     sync.RWMutex
	pieces map[string]int
}

// Compile time assert that sentencepiece.Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer        = &Tokenizer{}
	_ api.SubwordTokenizer = &Tokenizer{}
)

// RegisterPiece maps a piece string to an id for ConvertTokensToIDs. It returns the tokenizer for chaining.
func (p *Tokenizer) RegisterPiece(piece string, id int) *Tokenizer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pieces[piece] = id
	return p
}

// RegisterBertMarkers maps "[CLS]" and "[SEP]" to the model's beginning and end of sentence ids, and
// "[PAD]" to its pad id, so BERT-style preprocessing can be used with SentencePiece models.
func (p *Tokenizer) RegisterBertMarkers() *Tokenizer {
	return p.RegisterPiece("[CLS]", p.Info.BeginningOfSentenceID).
		RegisterPiece("[SEP]", p.Info.EndOfSentenceID).
		RegisterPiece("[PAD]", p.Info.PadID)
}

// Tokenize returns the pieces of the text, e.g. "▁Hello", "▁wor", "ld".
func (p *Tokenizer) Tokenize(text string) []string {
	tokens := p.Processor.Encode(text)
	pieces := make([]string, len(tokens))
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, tok := range tokens {
		pieces[i] = tok.Text
		if _, found := p.pieces[tok.Text]; !found {
			p.pieces[tok.Text] = tok.ID
		}
	}
	return pieces
}

// ConvertTokensToIDs maps pieces to ids.
func (p *Tokenizer) ConvertTokensToIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, piece := range tokens {
		id, found := p.pieces[piece]
		if !found {
			id, found = p.lookupPiece(piece)
			if !found {
				id = p.Info.UnknownID
			}
		}
		ids[i] = id
	}
	return ids
}

// lookupPiece encodes the text of the piece and caches the id of the token that matches it exactly.
// It must be called with p.mu locked.
func (p *Tokenizer) lookupPiece(piece string) (int, bool) {
	text := strings.ReplaceAll(piece, "▁", " ")
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	for _, tok := range p.Processor.Encode(text) {
		if tok.Text == piece {
			p.pieces[piece] = tok.ID
			return tok.ID, true
		}
	}
	return 0, false
}

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID })
}

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return p.Info.UnknownID, nil
	case api.TokPad:
		return p.Info.PadID, nil
	case api.TokBeginningOfSentence, api.TokClassification:
		return p.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence, api.TokSeparator:
		return p.Info.EndOfSentenceID, nil
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
