package repository

import (
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxUpload bounds the size of a single PUT.
const maxUpload = 512 << 20

// ServerOptions configures [NewServer].
type ServerOptions struct {
	// ReadOnly rejects uploads with 405.
	ReadOnly bool

	// Gatherer backs the /metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer

	Logger *log.Logger
}

// NewServer exposes the repository behind t over HTTP: GET and HEAD serve
// files, PUT stores them.
func NewServer(t Transport, opts ServerOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &server{transport: t, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/*", s.get)
	r.Head("/*", s.get)
	if opts.ReadOnly {
		r.Put("/*", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "repository is read-only", http.StatusMethodNotAllowed)
		})
	} else {
		r.Put("/*", s.put)
	}
	return r
}

type server struct {
	transport Transport
	logger    *log.Logger
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")
	if p == "" || strings.HasSuffix(p, "/") {
		http.NotFound(w, r)
		return
	}
	body, err := s.transport.Get(r.Context(), p)
	if err != nil {
		s.fail(w, r, p, err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", contentType(p))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Debug("write response", "path", p, "err", err)
	}
}

func (s *server) put(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUpload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.transport.Put(r.Context(), p, data); err != nil {
		s.fail(w, r, p, err)
		return
	}
	s.logger.Info("stored", "path", p, "bytes", len(data))
	w.WriteHeader(http.StatusCreated)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, p string, err error) {
	if isNotFound(err) {
		http.NotFound(w, r)
		return
	}
	s.logger.Warn("repository request failed", "method", r.Method, "path", p, "err", err)
	http.Error(w, "transfer failed", http.StatusInternalServerError)
}

func contentType(p string) string {
	switch {
	case strings.HasSuffix(p, ".xml"), strings.HasSuffix(p, ".pom"):
		return "application/xml"
	case strings.HasSuffix(p, ".jar"):
		return "application/java-archive"
	case strings.HasSuffix(p, ".sha1"), strings.HasSuffix(p, ".md5"):
		return "text/plain"
	}
	return "application/octet-stream"
}
