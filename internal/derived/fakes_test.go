package derived

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmgilman/go/errors"

	"mediavfs/internal/errcode"
	"mediavfs/internal/transformation"
	"mediavfs/internal/transformer"
	"mediavfs/internal/vfs"
)

type fakeSource struct {
	data        string
	valid       bool
	hasModTime  bool
	modTime     time.Time
	resolveFail bool
}

// fakeSources is an in-memory vfs.Resolver.
type fakeSources struct {
	mu      sync.Mutex
	sources map[string]*fakeSource
}

func newFakeSources() *fakeSources {
	return &fakeSources{sources: make(map[string]*fakeSource)}
}

func (f *fakeSources) put(url string, src *fakeSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[url] = src
}

func (f *fakeSources) Resolve(url string, mustExist bool) (vfs.Handle, error) {
	f.mu.Lock()
	src, ok := f.sources[url]
	f.mu.Unlock()

	if ok && src.resolveFail {
		return nil, fmt.Errorf("backend offline")
	}
	if !ok {
		src = &fakeSource{}
	}
	if mustExist && !src.valid {
		return nil, errors.New(errcode.SourceUnavailable, "missing")
	}
	copied := *src
	return &fakeHandle{url: url, src: &copied}, nil
}

type fakeHandle struct {
	url string
	src *fakeSource
}

func (h *fakeHandle) URL() string { return h.url }

func (h *fakeHandle) Valid() bool { return h.src.valid }

func (h *fakeHandle) Capabilities() vfs.Capabilities {
	return vfs.Capabilities{ModTime: h.src.hasModTime}
}

func (h *fakeHandle) ModTime() time.Time { return h.src.modTime }

func (h *fakeHandle) Open() (io.ReadCloser, error) {
	if !h.src.valid {
		return nil, errors.New(errcode.SourceUnavailable, "missing")
	}
	return io.NopCloser(bytes.NewReader([]byte(h.src.data))), nil
}

// fakeFactory produces transformers rendering a readable description of the
// requested transformation.
type fakeFactory struct {
	sources vfs.Resolver

	created   atomic.Int32
	newErr    error
	noSupport bool
	openErr   error
	runErr    error
	runGate   chan struct{}

	mu        sync.Mutex
	colormaps []*transformer.Colormap
}

func (f *fakeFactory) New() (transformer.Transformer, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.created.Add(1)
	return &fakeTransformer{factory: f}, nil
}

func (f *fakeFactory) ColormapForDepth(mimetype string, depth int) *transformer.Colormap {
	return transformer.PaletteFor(mimetype, depth)
}

type fakeTransformer struct {
	factory *fakeFactory

	source   string
	mimetype string
	mode     transformation.ResizeMode
	width    int
	height   int
	colormap *transformer.Colormap
	output   []byte
	closed   bool
}

func (t *fakeTransformer) Capabilities() transformer.Capabilities {
	return transformer.Capabilities{Transformation: !t.factory.noSupport}
}

func (t *fakeTransformer) OpenSource(url string) error {
	if t.factory.openErr != nil {
		return t.factory.openErr
	}
	handle, err := t.factory.sources.Resolve(url, true)
	if err != nil {
		return err
	}
	rc, err := handle.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	t.source = string(data)
	return nil
}

func (t *fakeTransformer) SetMimetype(mimetype string) { t.mimetype = mimetype }

func (t *fakeTransformer) SetResizeMode(mode transformation.ResizeMode) { t.mode = mode }

func (t *fakeTransformer) SetTargetSize(width, height int) {
	t.width = width
	t.height = height
}

func (t *fakeTransformer) SetColormap(colormap *transformer.Colormap) {
	t.colormap = colormap
	t.factory.mu.Lock()
	t.factory.colormaps = append(t.factory.colormaps, colormap)
	t.factory.mu.Unlock()
}

func (t *fakeTransformer) Run() error {
	if t.factory.runGate != nil {
		<-t.factory.runGate
	}
	if t.factory.runErr != nil {
		return t.factory.runErr
	}
	t.output = []byte(fmt.Sprintf("%s as %s %dx%d %s", t.source, t.mimetype, t.width, t.height, t.mode))
	return nil
}

func (t *fakeTransformer) Output() []byte { return t.output }

func (t *fakeTransformer) Close() { t.closed = true }
