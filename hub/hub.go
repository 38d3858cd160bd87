// Package hub gives access to files of a HuggingFace hub repository (tokenizer.json, vocab.txt,
// tokenizer_config.json, ...), downloading and caching them locally.
//
// Example:
//
//	repo := hub.New("bert-base-uncased").WithCacheDir("/tmp/hf")
//	vocabPath, err := repo.DownloadFile("vocab.txt")
package hub

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultEndpoint is the public HuggingFace hub.
	DefaultEndpoint = "https://huggingface.co"

	// DefaultRevision is used when no revision is configured.
	DefaultRevision = "main"

	// DefaultDirCreationPerm is used when creating cache directories.
	DefaultDirCreationPerm = 0755

	// CacheDirEnv overrides the default cache directory.
	CacheDirEnv = "BERTPREP_CACHE"

	// TokenEnv holds an optional HuggingFace authentication token.
	TokenEnv = "HF_TOKEN"
)

// Repo is a handle to a HuggingFace hub repository. Files are lazily downloaded into CacheDir.
//
// Create one with New, and configure it with the With* methods before the first download.
type Repo struct {
	// ID of the repository, e.g. "bert-base-uncased" or "google/flan-t5-small".
	ID string

	revision  string
	endpoint  string
	cacheDir  string
	authToken string
	client    *http.Client
}

// New creates a Repo for the given id, with the default endpoint, revision and cache directory.
// The authentication token is read from the HF_TOKEN environment variable, if set.
func New(id string) *Repo {
	return &Repo{
		ID:        id,
		revision:  DefaultRevision,
		endpoint:  DefaultEndpoint,
		cacheDir:  DefaultCacheDir(),
		authToken: os.Getenv(TokenEnv),
		client:    &http.Client{Timeout: 10 * time.Minute},
	}
}

// DefaultCacheDir returns $BERTPREP_CACHE if set, or the user cache directory, or the current
// directory as a last resort.
func DefaultCacheDir() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	userCache, err := os.UserCacheDir()
	if err != nil {
		klog.V(1).Infof("no user cache directory (%v), caching hub files under the current directory", err)
		return "."
	}
	return filepath.Join(userCache, "bertprep", "hub")
}

// WithCacheDir sets the local directory where files are stored.
func (r *Repo) WithCacheDir(dir string) *Repo {
	r.cacheDir = dir
	return r
}

// WithAuthToken sets the token sent as a bearer authorization header.
func (r *Repo) WithAuthToken(token string) *Repo {
	r.authToken = token
	return r
}

// WithRevision sets the branch, tag or commit to fetch files from.
func (r *Repo) WithRevision(revision string) *Repo {
	r.revision = revision
	return r
}

// WithEndpoint changes the hub server, e.g. for a mirror.
func (r *Repo) WithEndpoint(endpoint string) *Repo {
	r.endpoint = strings.TrimRight(endpoint, "/")
	return r
}

// WithHTTPClient replaces the client used for downloads.
func (r *Repo) WithHTTPClient(client *http.Client) *Repo {
	r.client = client
	return r
}

// FileURL returns the URL from which fileName is downloaded.
func (r *Repo) FileURL(fileName string) string {
	return r.endpoint + "/" + r.ID + "/resolve/" + r.revision + "/" + fileName
}

// LocalPath returns where fileName is (or will be) cached.
func (r *Repo) LocalPath(fileName string) string {
	safeID := strings.ReplaceAll(r.ID, "/", "--")
	return filepath.Join(r.cacheDir, safeID, r.revision, filepath.FromSlash(fileName))
}

// HasFile returns whether the file is already cached, or whether the hub reports it exists.
// Network failures are logged and reported as false.
func (r *Repo) HasFile(fileName string) bool {
	if fileExists(r.LocalPath(fileName)) {
		return true
	}
	req, err := http.NewRequest(http.MethodHead, r.FileURL(fileName), nil)
	if err != nil {
		klog.Warningf("hub: invalid request for %q: %v", fileName, err)
		return false
	}
	r.authorize(req)
	resp, err := r.client.Do(req)
	if err != nil {
		klog.Warningf("hub: failed to check %q in %q: %v", fileName, r.ID, err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DownloadFile downloads fileName if not yet cached, and returns its local path.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileContext(context.Background(), fileName)
}

// DownloadFileContext is like DownloadFile, but the download can be cancelled with ctx.
func (r *Repo) DownloadFileContext(ctx context.Context, fileName string) (string, error) {
	filePath := r.LocalPath(fileName)
	err := r.lockedDownload(ctx, r.FileURL(fileName), filePath, false)
	if err != nil {
		return "", errors.WithMessagef(err, "repo %q", r.ID)
	}
	return filePath, nil
}

func (r *Repo) authorize(req *http.Request) {
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
