// Package derived implements x-media-transformed-image resources: virtual
// files holding a transformed rendition of a source image.
//
// An Object is configured by Open without any I/O. The first file-like
// call, or an explicit Materialize, resolves the source, probes the cache
// store and, on a miss or a stale entry, transforms the source and stores
// the result. The canonical URL of the object doubles as its cache key.
//
// An Object has a single owner and performs no locking. Independent
// objects materializing the same key race on the store (last writer wins)
// unless Deps.Flight deduplicates the transformation.
package derived

import (
	"net/url"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mediavfs/internal/cache"
	"mediavfs/internal/errcode"
	"mediavfs/internal/mimetype"
	"mediavfs/internal/querycodec"
	"mediavfs/internal/transformation"
	"mediavfs/internal/transformer"
	"mediavfs/internal/vfs"
)

// Scheme is the URL scheme of derived image resources.
const Scheme = "x-media-transformed-image"

// State is the lifecycle state of an Object.
type State int

const (
	StateClosed State = iota
	StateConfigured
	StateMaterializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConfigured:
		return "configured"
	case StateMaterializing:
		return "materializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Deps are the collaborators of an Object.
type Deps struct {
	Sources      vfs.Resolver
	Store        cache.Store
	Transformers transformer.Factory // nil when no engine is available
	Mimetypes    mimetype.Registry
	Logger       *zap.Logger
	// Flight, when set, deduplicates concurrent transformations of the
	// same key across objects.
	Flight *singleflight.Group
}

// Object is a derived image resource.
type Object struct {
	deps   Deps
	logger *zap.Logger

	state     State
	sourceURL string
	spec      transformation.Spec
	wrapped   *cache.Entry // bound in StateReady
}

// New returns a closed Object.
func New(deps Deps) *Object {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Object{deps: deps, logger: logger}
}

// BuildURL returns the canonical URL of sourceURL transformed by spec.
func BuildURL(sourceURL string, spec transformation.Spec) string {
	return Scheme + ":///" + querycodec.EscapePath(sourceURL) + "?" + querycodec.Encode(spec.Values())
}

// Open configures the object from a derived URL. No I/O is performed.
func (o *Object) Open(rawURL string) error {
	if o.state != StateClosed {
		return errors.WithContext(
			errors.New(errcode.AlreadyOpen, "can't open an already opened resource"),
			"url", rawURL,
		)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.WithContext(
			errors.Wrap(err, errcode.InvalidArgument, "invalid resource URL"),
			"url", rawURL,
		)
	}

	sourceURL := strings.TrimPrefix(u.Path, "/")
	if sourceURL == "" {
		return errors.WithContext(
			errors.New(errcode.InvalidArgument, "resource URL does not name a source"),
			"url", rawURL,
		)
	}

	spec, err := transformation.Parse(querycodec.Decode(u.RawQuery), o.deps.Mimetypes)
	if err != nil {
		return errors.WithContext(err, "url", rawURL)
	}

	o.sourceURL = sourceURL
	o.spec = spec
	o.state = StateConfigured
	return nil
}

// URL returns the canonical URL, which is also the cache key.
func (o *Object) URL() (string, error) {
	if o.state == StateClosed {
		return "", errNotOpen()
	}
	return BuildURL(o.sourceURL, o.spec), nil
}

// Type reports the kind of resource. A derived image is always a file.
func (o *Object) Type() (vfs.Type, error) {
	if o.state == StateClosed {
		return 0, errNotOpen()
	}
	return vfs.TypeFile, nil
}

// Entry returns the cache entry backing the object, materializing it first
// if needed. The entry shares the read position of the object and is
// closed by Close.
func (o *Object) Entry() (*cache.Entry, error) {
	if err := o.ensureReady(); err != nil {
		return nil, err
	}
	return o.wrapped, nil
}

// ImplementingScheme returns Scheme.
func (o *Object) ImplementingScheme() string {
	return Scheme
}

// State returns the lifecycle state.
func (o *Object) State() State { return o.state }

// SourceURL returns the decoded URL of the source image.
func (o *Object) SourceURL() string { return o.sourceURL }

// Spec returns the transformation applied to the source.
func (o *Object) Spec() transformation.Spec { return o.spec }

// Mimetype returns the canonical target mimetype, or an octet stream type
// when it is unknown.
func (o *Object) Mimetype() string {
	return mimetype.TypeOf(o.deps.Mimetypes, o.spec.Mimetype())
}

// Name returns the identity of the bound cache entry.
func (o *Object) Name() (string, error) {
	if err := o.ensureReady(); err != nil {
		return "", err
	}
	return o.wrapped.ID(), nil
}

// TimeCreated returns the time recorded for the bound cache entry.
func (o *Object) TimeCreated() (time.Time, error) {
	if err := o.ensureReady(); err != nil {
		return time.Time{}, err
	}
	return o.wrapped.TimeCached(), nil
}

// Digest returns the content digest of the bound cache entry.
func (o *Object) Digest() (digest.Digest, error) {
	if err := o.ensureReady(); err != nil {
		return "", err
	}
	return o.wrapped.Metadata().Digest, nil
}

// TimeUpdated equals TimeCreated; derived content never changes in place.
func (o *Object) TimeUpdated() (time.Time, error) {
	return o.TimeCreated()
}

func errNotOpen() error {
	return errors.New(errcode.NotOpen, "resource is not opened")
}
