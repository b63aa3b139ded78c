package derived

import (
	"io"
	"time"

	"mediavfs/internal/vfs"
)

// Resolver serves derived URLs as vfs handles, so a derived image can itself
// be the source of another transformation. Register it under Scheme.
type Resolver struct {
	deps Deps
}

// NewResolver returns a resolver creating objects with deps.
func NewResolver(deps Deps) *Resolver {
	return &Resolver{deps: deps}
}

// Resolve implements vfs.Resolver. The resource is materialized to report
// its validity and modification time.
func (r *Resolver) Resolve(url string, mustExist bool) (vfs.Handle, error) {
	obj := New(r.deps)
	if err := obj.Open(url); err != nil {
		return nil, err
	}
	defer obj.Close()

	updated, err := obj.TimeUpdated()
	if err != nil {
		if mustExist {
			return nil, err
		}
		return &handle{resolver: r, url: url}, nil
	}

	return &handle{resolver: r, url: url, valid: true, modTime: updated}, nil
}

type handle struct {
	resolver *Resolver
	url      string
	valid    bool
	modTime  time.Time
}

func (h *handle) URL() string { return h.url }

func (h *handle) Valid() bool { return h.valid }

func (h *handle) Capabilities() vfs.Capabilities {
	return vfs.Capabilities{ModTime: h.valid}
}

func (h *handle) ModTime() time.Time { return h.modTime }

// Open returns a freshly materialized object positioned at its start.
func (h *handle) Open() (io.ReadCloser, error) {
	obj := New(h.resolver.deps)
	if err := obj.Open(h.url); err != nil {
		return nil, err
	}
	if err := obj.Materialize(); err != nil {
		return nil, err
	}
	return obj, nil
}
