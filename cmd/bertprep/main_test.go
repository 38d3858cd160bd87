package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/bertprep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out, nil)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenize(t *testing.T) {
	vocab := writeFile(t, "vocab.txt", testutil.Vocab)
	out, err := run(t, "tokenize", "--vocab", vocab, "Hello criticize")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "critic")
	assert.Contains(t, out, "##ize")
}

func TestTokenizeFromHub(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/bert-base-uncased/resolve/main/vocab.txt" {
			http.NotFound(w, req)
			return
		}
		_, _ = w.Write([]byte(testutil.Vocab))
	}))
	t.Cleanup(server.Close)

	out, err := run(t, "tokenize", "--repo", "bert-base-uncased", "--hub-endpoint", server.URL,
		"--hub-timeout", "5s", "--cache-dir", t.TempDir(), "Hello criticize")
	require.NoError(t, err)
	assert.Contains(t, out, "##ize")

	_, err = run(t, "tokenize", "--repo", "bert-base-uncased", "--hub-endpoint", server.URL,
		"--hub-timeout", "soon", "--cache-dir", t.TempDir(), "Hello")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	vocab := writeFile(t, "vocab.txt", testutil.Vocab)
	out, err := run(t, "classify", "--vocab", vocab, "--max-len", "6", "hello world")
	require.NoError(t, err)
	assert.Contains(t, out, "1 1 1 1 0 0")
}

const squadJSON = `{"version": "v2.0", "data": [{"title": "Smith", "paragraphs": [{
  "context": "The leader was John Smith (1895-1943).",
  "qas": [
    {"id": "q1", "question": "What year was John Smith born?", "answers": [{"text": "1895", "answer_start": 27}]},
    {"id": "q2", "question": "Who is in Paris?", "answers": [], "is_impossible": true}
  ]}]}]}`

func TestQA(t *testing.T) {
	vocab := writeFile(t, "vocab.txt", testutil.Vocab)
	data := writeFile(t, "squad.json", squadJSON)
	out, err := run(t, "qa", "--vocab", vocab, "--data", data, "--train", "--max-len", "32", "--batch-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "1000000000")
	assert.Contains(t, out, "q1")
	assert.Contains(t, out, "answerable [15, 15]")
	assert.Contains(t, out, "unanswerable")
	assert.Contains(t, out, "start_positions")
}

func TestQAConfigFileAndEnv(t *testing.T) {
	vocab := writeFile(t, "vocab.txt", testutil.Vocab)
	data := writeFile(t, "squad.json", squadJSON)
	config := writeFile(t, "bertprep.yaml", "vocab: "+vocab+"\ndata: "+data+"\nmax-len: 32\n")
	t.Setenv("BERTPREP_SAMPLE", "random")

	out, err := run(t, "qa", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "q2")

	t.Setenv("BERTPREP_SAMPLE", "shuffled")
	_, err = run(t, "qa", "--config", config)
	assert.Error(t, err)
}

func TestQAErrors(t *testing.T) {
	vocab := writeFile(t, "vocab.txt", testutil.Vocab)
	_, err := run(t, "qa", "--vocab", vocab)
	assert.Error(t, err)

	data := writeFile(t, "squad.json", squadJSON)
	_, err = run(t, "qa", "--vocab", vocab, "--data", data, "--max-len", "8")
	assert.Error(t, err)
}
