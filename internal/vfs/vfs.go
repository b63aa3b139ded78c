// Package vfs resolves resource URLs to readable handles.
//
// A Registry maps URL schemes to the Resolver serving them. The embedding
// application builds one Registry at its composition root and passes it to
// every component that needs to load sources; there is no global registry.
package vfs

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"

	"mediavfs/internal/errcode"
)

// Type classifies a resource.
type Type int

const (
	TypeFile Type = iota + 1
)

// Capabilities is the fixed set of optional features a Handle offers.
type Capabilities struct {
	// ModTime is set when ModTime reports a meaningful modification time.
	ModTime bool
}

// Handle is a resolved resource.
type Handle interface {
	// URL returns the URL the handle was resolved from.
	URL() string
	// Valid reports whether the resource exists and can be read.
	Valid() bool
	Capabilities() Capabilities
	// ModTime returns the last modification time. Only meaningful when
	// Capabilities().ModTime is set.
	ModTime() time.Time
	// Open returns a reader over the resource content.
	Open() (io.ReadCloser, error)
}

// Resolver turns URLs of one or more schemes into handles.
type Resolver interface {
	// Resolve returns a handle for url. With mustExist set, a missing
	// resource fails with SourceUnavailable; otherwise an invalid handle is
	// returned.
	Resolve(url string, mustExist bool) (Handle, error)
}

// Registry dispatches URLs to the Resolver registered for their scheme.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register binds scheme to r, replacing any earlier binding.
func (r *Registry) Register(scheme string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[strings.ToLower(scheme)] = resolver
}

// Schemes returns the registered scheme names.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.resolvers))
	for scheme := range r.resolvers {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// Resolve implements Resolver by dispatching on the scheme of url.
func (r *Registry) Resolve(url string, mustExist bool) (Handle, error) {
	scheme, _, ok := strings.Cut(url, ":")
	if !ok || scheme == "" {
		return nil, errors.WithContext(
			errors.New(errcode.SourceUnavailable, "URL has no scheme"),
			"url", url,
		)
	}

	r.mu.RLock()
	resolver, ok := r.resolvers[strings.ToLower(scheme)]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WithContext(
			errors.Newf(errcode.SourceUnavailable, "no resolver registered for scheme %q", scheme),
			"url", url,
		)
	}

	return resolver.Resolve(url, mustExist)
}
