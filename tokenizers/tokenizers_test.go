package tokenizers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gomlx/bertprep/hub"
	"github.com/gomlx/bertprep/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, files map[string]string) *hub.Repo {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		for name, content := range files {
			if req.URL.Path == "/test-bert/resolve/main/"+name {
				_, _ = w.Write([]byte(content))
				return
			}
		}
		http.NotFound(w, req)
	}))
	t.Cleanup(server.Close)
	return hub.New("test-bert").WithEndpoint(server.URL).WithCacheDir(t.TempDir())
}

func TestNew_Vocab(t *testing.T) {
	repo := newTestRepo(t, map[string]string{
		"vocab.txt":             "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\nworld\n##s\n",
		"tokenizer_config.json": `{"do_lower_case": true, "tokenizer_class": "BertTokenizer"}`,
	})
	tok, err := New(repo, false)
	require.NoError(t, err)

	// do_lower_case from the config wins over the argument.
	assert.Equal(t, []string{"hello", "world", "##s"}, tok.Tokenize("Hello Worlds"))
	assert.Equal(t, []int{2, 4, 3}, tok.ConvertTokensToIDs([]string{"[CLS]", "hello", "[SEP]"}))
	id, err := tok.SpecialTokenID(api.TokClassification)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestNew_NoTokenizer(t *testing.T) {
	repo := newTestRepo(t, map[string]string{"README.md": "nothing here"})
	_, err := New(repo, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no known tokenizer file")
}

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`{
		"do_lower_case": false,
		"cls_token": "[CLS]",
		"sep_token": {"content": "[SEP]", "lstrip": false},
		"unk_token": null,
		"model_max_length": 512
	}`))
	require.NoError(t, err)
	assert.False(t, config.DoLowerCase)
	assert.Equal(t, "[CLS]", config.ClsToken)
	assert.Equal(t, "[SEP]", config.SepToken)
	assert.Empty(t, config.UnkToken)

	_, err = ParseConfig([]byte(`not json`))
	assert.Error(t, err)
}

func TestLanguage(t *testing.T) {
	l, err := ParseLanguage("bert-large-cased")
	require.NoError(t, err)
	assert.Equal(t, EnglishLargeCased, l)
	assert.False(t, l.Lowercase())
	assert.True(t, English.Lowercase())

	_, err = ParseLanguage("gpt2")
	assert.Error(t, err)
}
