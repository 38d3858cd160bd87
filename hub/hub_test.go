package hub

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, gets *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/bert-base-uncased/resolve/main/vocab.txt":
			if req.Method == http.MethodGet {
				atomic.AddInt32(gets, 1)
			}
			if req.Header.Get("Authorization") != "" && req.Header.Get("Authorization") != "Bearer secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\n"))
		default:
			http.NotFound(w, req)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFileURL(t *testing.T) {
	repo := New("google/flan-t5-small").WithEndpoint("https://mirror.example/").WithRevision("v1")
	assert.Equal(t, "https://mirror.example/google/flan-t5-small/resolve/v1/tokenizer.model", repo.FileURL("tokenizer.model"))
}

func TestLocalPath(t *testing.T) {
	repo := New("google/flan-t5-small").WithCacheDir("/cache")
	assert.Equal(t, filepath.Join("/cache", "google--flan-t5-small", "main", "tokenizer.model"), repo.LocalPath("tokenizer.model"))
}

func TestDownloadFile(t *testing.T) {
	var gets int32
	server := newTestServer(t, &gets)
	repo := New("bert-base-uncased").WithEndpoint(server.URL).WithCacheDir(t.TempDir()).WithAuthToken("secret")

	localPath, err := repo.DownloadFile("vocab.txt")
	require.NoError(t, err)
	content, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello")
	assert.NoFileExists(t, localPath+".lock")

	// Second call is served from the cache.
	again, err := repo.DownloadFile("vocab.txt")
	require.NoError(t, err)
	assert.Equal(t, localPath, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))
}

func TestDownloadFile_NotFound(t *testing.T) {
	var gets int32
	server := newTestServer(t, &gets)
	cacheDir := t.TempDir()
	repo := New("bert-base-uncased").WithEndpoint(server.URL).WithCacheDir(cacheDir)

	_, err := repo.DownloadFile("tokenizer.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, repo.LocalPath("tokenizer.json"))

	// No temporary files are left behind.
	matches, err := filepath.Glob(repo.LocalPath("tokenizer.json") + ".downloading-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestHasFile(t *testing.T) {
	var gets int32
	server := newTestServer(t, &gets)
	repo := New("bert-base-uncased").WithEndpoint(server.URL).WithCacheDir(t.TempDir())

	assert.True(t, repo.HasFile("vocab.txt"))
	assert.False(t, repo.HasFile("tokenizer.model"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&gets), "HasFile should only issue HEAD requests")
}
