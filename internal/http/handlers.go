package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"mediavfs/internal/config"
	"mediavfs/internal/derived"
	"mediavfs/internal/errcode"
	"mediavfs/internal/image_list"
	"mediavfs/internal/querycodec"
	"mediavfs/internal/transformation"
	"mediavfs/internal/vfs"
)

const (
	imagesPrefix    = "/api/images/"
	transformPrefix = "/api/transform/"
)

type Handlers struct {
	config  *config.Config
	logger  *zap.Logger
	scanner *image_list.Scanner
	deps    derived.Deps
}

func New(config *config.Config, logger *zap.Logger, scanner *image_list.Scanner, deps derived.Deps) *Handlers {
	return &Handlers{
		config:  config,
		logger:  logger,
		scanner: scanner,
		deps:    deps,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/images", h.HandleImages)
	mux.HandleFunc(imagesPrefix, h.HandleImage)
	mux.HandleFunc("/api/cache/clear", h.HandleCacheClear)
	mux.HandleFunc(transformPrefix, h.HandleTransform)
	mux.HandleFunc("/api/resolve", h.HandleResolve)
	mux.HandleFunc("/healthz", h.HandleHealthz)
	return mux
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		bytes := wrapped.bytesWritten

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && (strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host)) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag, X-Derived-URL")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("rescan") == "1" {
		if err := h.scanner.Scan(); err != nil {
			h.logger.Warn("Failed to rescan data directory", zap.Error(err))
		}
	}

	images := h.scanner.GetImages()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(images)
}

// HandleImage reports the catalog entry of /api/images/<path>.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, imagesPrefix)
	img := h.scanner.GetImageByPath(name)
	if img == nil {
		h.writeError(w, errors.WithContext(
			errors.New(errors.CodeNotFound, "image not found"),
			"path", name,
		))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(img)
}

// HandleCacheClear drops every stored rendition.
func (h *Handlers) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.deps.Store.Clear(); err != nil {
		h.writeError(w, errors.Wrap(err, errcode.CacheFailed, "failed to clear cache"))
		return
	}

	h.logger.Info("Cleared cache")
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransform serves /api/transform/<source path>?mimetype=&width=&height=
// with the rendition of file:///<source path>.
func (h *Handlers) HandleTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sourcePath := strings.Trim(strings.TrimPrefix(r.URL.Path, transformPrefix), "/")
	if sourcePath == "" {
		h.writeError(w, errors.New(errcode.InvalidArgument, "no source path"))
		return
	}

	spec, err := transformation.Parse(querycodec.Decode(r.URL.RawQuery), h.deps.Mimetypes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.serveObject(w, r, derived.BuildURL(vfs.FileURL(sourcePath), spec))
}

// HandleResolve reports the metadata of the derived URL given as the url
// query parameter.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		h.writeError(w, errors.New(errcode.InvalidArgument, "missing url parameter"))
		return
	}

	obj := derived.New(h.deps)
	if err := obj.Open(url); err != nil {
		h.writeError(w, err)
		return
	}
	defer obj.Close()

	meta, err := describe(obj)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handlers) serveObject(w http.ResponseWriter, r *http.Request, url string) {
	obj := derived.New(h.deps)
	if err := obj.Open(url); err != nil {
		h.writeError(w, err)
		return
	}
	defer obj.Close()

	meta, err := describe(obj)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", meta.Mimetype)
	w.Header().Set("ETag", `"`+meta.Digest+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("X-Derived-URL", meta.URL)

	// ServeContent handles HEAD, ranges and conditional requests.
	http.ServeContent(w, r, meta.Name, meta.TimeUpdated, obj)
}

type objectMeta struct {
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Mimetype    string    `json:"mimetype"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
	TimeUpdated time.Time `json:"time_updated"`
}

// describe materializes obj and collects its metadata.
func describe(obj *derived.Object) (*objectMeta, error) {
	if err := obj.Materialize(); err != nil {
		return nil, err
	}

	url, err := obj.URL()
	if err != nil {
		return nil, err
	}
	name, err := obj.Name()
	if err != nil {
		return nil, err
	}
	size, err := obj.Size()
	if err != nil {
		return nil, err
	}
	dgst, err := obj.Digest()
	if err != nil {
		return nil, err
	}
	updated, err := obj.TimeUpdated()
	if err != nil {
		return nil, err
	}

	return &objectMeta{
		URL:         url,
		Name:        name,
		Mimetype:    obj.Mimetype(),
		Size:        size,
		Digest:      dgst.String(),
		TimeUpdated: updated,
	}, nil
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(errcode.Of(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errors.ToJSON(err))
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errcode.InvalidArgument:
		return http.StatusBadRequest
	case errcode.UnsupportedType:
		return http.StatusUnsupportedMediaType
	case errcode.SourceUnavailable, errors.CodeNotFound:
		return http.StatusNotFound
	case errcode.TransformUnsupported:
		return http.StatusNotImplemented
	case errcode.TransformFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Not for real production use due to potential spoofing
// but it's fine for a demo
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
