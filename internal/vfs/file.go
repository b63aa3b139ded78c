package vfs

import (
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"

	"mediavfs/internal/errcode"
)

// FileScheme is the scheme served by FileResolver.
const FileScheme = "file"

// FileResolver serves file:///path URLs from a file system. Paths are
// relative to the root of fsys and cannot escape it.
//
// Handles report the modification time returned by Stat. Backends whose
// mod times are synthetic, such as the in-memory billy file system which
// answers time.Now(), must disable it with WithoutModTime or every cache
// entry derived from them looks stale.
type FileResolver struct {
	fsys      core.ReadFS
	noModTime bool
}

// NewFileResolver returns a resolver reading from fsys.
func NewFileResolver(fsys core.ReadFS) *FileResolver {
	return &FileResolver{fsys: fsys}
}

// WithoutModTime returns a copy of r whose handles never report a
// modification time.
func (r *FileResolver) WithoutModTime() *FileResolver {
	return &FileResolver{fsys: r.fsys, noModTime: true}
}

// FileURL returns the file:// URL of name.
func FileURL(name string) string {
	return FileScheme + ":///" + strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(rawURL string, mustExist bool) (Handle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.WithContext(
			errors.Wrap(err, errcode.SourceUnavailable, "invalid file URL"),
			"url", rawURL,
		)
	}
	if u.Scheme != FileScheme {
		return nil, errors.WithContext(
			errors.Newf(errcode.SourceUnavailable, "unsupported scheme %q", u.Scheme),
			"url", rawURL,
		)
	}

	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	handle := &fileHandle{fsys: r.fsys, url: rawURL, name: name, modTime: !r.noModTime}

	info, err := r.fsys.Stat(name)
	switch {
	case err == nil && info.Mode().IsRegular():
		handle.info = info
	case mustExist && err != nil:
		return nil, errors.WithContext(
			errors.Wrap(err, errcode.SourceUnavailable, "source does not exist"),
			"url", rawURL,
		)
	case mustExist:
		return nil, errors.WithContext(
			errors.New(errcode.SourceUnavailable, "source is not a regular file"),
			"url", rawURL,
		)
	}

	return handle, nil
}

type fileHandle struct {
	fsys    core.ReadFS
	url     string
	name    string
	info    fs.FileInfo
	modTime bool
}

func (h *fileHandle) URL() string { return h.url }

func (h *fileHandle) Valid() bool { return h.info != nil }

func (h *fileHandle) Capabilities() Capabilities {
	return Capabilities{ModTime: h.modTime && h.info != nil}
}

func (h *fileHandle) ModTime() time.Time {
	if !h.modTime || h.info == nil {
		return time.Time{}
	}
	return h.info.ModTime()
}

func (h *fileHandle) Open() (io.ReadCloser, error) {
	if h.info == nil {
		return nil, errors.WithContext(
			errors.New(errcode.SourceUnavailable, "source does not exist"),
			"url", h.url,
		)
	}

	f, err := h.fsys.Open(h.name)
	if err != nil {
		return nil, errors.WithContext(
			errors.Wrap(err, errcode.SourceUnavailable, "failed to open source"),
			"url", h.url,
		)
	}
	return f, nil
}
