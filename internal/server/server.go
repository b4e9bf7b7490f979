// Package server serves the generated site. HTML documents get the live
// reload client injected and their <base> href pointed at the server root;
// everything else is served as-is.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/ssg/internal/livereload"
	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/validation"
)

const (
	// DefaultMaxRewriteSize is the size at and above which HTML is
	// streamed without injection.
	DefaultMaxRewriteSize = 5 << 20

	notFoundPage = "404.html"
	notFoundBody = "404 - Page Not Found"
)

// BuildStatus reports the outcome of the most recent build.
type BuildStatus interface {
	LastError() error
}

// Options configures a ContentServer.
type Options struct {
	// Root is the generated output directory.
	Root string

	// LiveReload handles upgrade requests on livereload.Path.
	LiveReload http.Handler

	// Status enables the error overlay when non-nil.
	Status         BuildStatus
	MaxRewriteSize int64
	CacheEntries   int
	Logger         logging.Logger
}

type cachedPage struct {
	size    int64
	modTime time.Time
	body    []byte
}

// ContentServer answers GET and HEAD requests from the output directory.
type ContentServer struct {
	root       string
	liveReload http.Handler
	status     BuildStatus
	maxRewrite int64
	cache      *lru.Cache[string, cachedPage]
	logger     logging.Logger
}

// NewContentServer creates a content server rooted at opts.Root.
func NewContentServer(opts Options) (*ContentServer, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	maxRewrite := opts.MaxRewriteSize
	if maxRewrite <= 0 {
		maxRewrite = DefaultMaxRewriteSize
	}

	s := &ContentServer{
		root:       filepath.Clean(root),
		liveReload: opts.LiveReload,
		status:     opts.Status,
		maxRewrite: maxRewrite,
		logger:     logger.WithComponent("server"),
	}

	if opts.CacheEntries > 0 {
		cache, err := lru.New[string, cachedPage](opts.CacheEntries)
		if err != nil {
			return nil, fmt.Errorf("creating page cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Handler returns the complete HTTP handler: the live reload endpoint, the
// static content, and request logging around both.
func (s *ContentServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.liveReload != nil {
		mux.Handle(livereload.Path, s.liveReload)
	}
	mux.Handle("/", s)

	return RequestLogger(s.logger)(mux)
}

// PurgeCache drops every transformed document.
func (s *ContentServer) PurgeCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// ResolvePath maps a request path to the document it names: a trailing
// slash or a missing extension selects the directory's index.html.
func ResolvePath(urlPath string) string {
	if urlPath == "" {
		urlPath = "/"
	}
	trailing := strings.HasSuffix(urlPath, "/")

	cleaned := path.Clean("/" + urlPath)
	if trailing || cleaned == "/" {
		return path.Join(cleaned, "index.html")
	}

	if path.Ext(cleaned) == "" {
		return cleaned + "/index.html"
	}

	return cleaned
}

func (s *ContentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	resolved := ResolvePath(r.URL.Path)
	fsPath := filepath.Join(s.root, filepath.FromSlash(resolved))
	if !validation.WithinRoot(s.root, fsPath) {
		s.notFound(w, r)
		return
	}

	if strings.EqualFold(path.Ext(resolved), ".html") {
		if !s.serveHTML(w, r, fsPath, http.StatusOK) {
			s.notFound(w, r)
		}
		return
	}

	s.serveAsset(w, r, fsPath)
}

func (s *ContentServer) serveAsset(w http.ResponseWriter, r *http.Request, fsPath string) {
	f, err := os.Open(fsPath)
	if err != nil {
		s.notFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.notFound(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// serveHTML writes the document at fsPath with the given status. It returns
// false without writing anything when there is no such document.
func (s *ContentServer) serveHTML(w http.ResponseWriter, r *http.Request, fsPath string, status int) bool {
	info, err := os.Stat(fsPath)
	if err != nil || info.IsDir() {
		return false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	if info.Size() >= s.maxRewrite {
		return s.streamHTML(w, r, fsPath, info.Size(), status)
	}

	body, err := s.transformed(r.Context(), fsPath, info)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		s.logger.Warn(r.Context(), err, "Reading document failed", "path", fsPath)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return true
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}

	return true
}

func (s *ContentServer) streamHTML(w http.ResponseWriter, r *http.Request, fsPath string, size int64, status int) bool {
	f, err := os.Open(fsPath)
	if err != nil {
		return false
	}
	defer f.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, f)
	}

	return true
}

// transformed returns the document with the reload client injected. Pages
// served while the last build failed also carry the error overlay and are
// never cached.
func (s *ContentServer) transformed(ctx context.Context, fsPath string, info os.FileInfo) ([]byte, error) {
	if s.status != nil {
		if buildErr := s.status.LastError(); buildErr != nil {
			doc, err := os.ReadFile(fsPath)
			if err != nil {
				return nil, err
			}
			overlay, err := renderOverlay(ctx, buildErr.Error())
			if err != nil {
				return nil, err
			}
			return Transform(doc, overlay+livereload.ClientScript), nil
		}
	}

	if s.cache != nil {
		if page, ok := s.cache.Get(fsPath); ok && page.size == info.Size() && page.modTime.Equal(info.ModTime()) {
			return page.body, nil
		}
	}

	doc, err := os.ReadFile(fsPath)
	if err != nil {
		return nil, err
	}
	body := Transform(doc, livereload.ClientScript)

	if s.cache != nil {
		s.cache.Add(fsPath, cachedPage{size: info.Size(), modTime: info.ModTime(), body: body})
	}

	return body, nil
}

func (s *ContentServer) notFound(w http.ResponseWriter, r *http.Request) {
	if s.serveHTML(w, r, filepath.Join(s.root, notFoundPage), http.StatusNotFound) {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(notFoundBody)))
	w.WriteHeader(http.StatusNotFound)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, notFoundBody)
	}
}
