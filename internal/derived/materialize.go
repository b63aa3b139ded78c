package derived

import (
	stderrors "errors"
	"io"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"mediavfs/internal/cache"
	"mediavfs/internal/errcode"
	"mediavfs/internal/vfs"
)

// Materialize binds the transformed content. It is a no-op on a ready
// object. On failure the object stays configured and may be retried.
func (o *Object) Materialize() error {
	switch o.state {
	case StateClosed:
		return errNotOpen()
	case StateReady:
		return nil
	}

	o.state = StateMaterializing
	wrapped, err := o.resolve()
	if err != nil {
		o.state = StateConfigured
		return err
	}

	o.wrapped = wrapped
	o.state = StateReady
	return nil
}

func (o *Object) ensureReady() error {
	if o.state == StateReady {
		return nil
	}
	return o.Materialize()
}

func (o *Object) resolve() (*cache.Entry, error) {
	key := BuildURL(o.sourceURL, o.spec)
	log := o.logger.With(zap.String("url", key))

	source, err := o.deps.Sources.Resolve(o.sourceURL, false)
	if err != nil {
		return nil, sourceUnavailable(err, o.sourceURL)
	}

	entry, err := o.deps.Store.Lookup(key)
	switch {
	case err == nil:
		if o.isStale(entry, source) {
			log.Info("Deleting stale cache entry", zap.String("id", entry.ID()), zap.Time("time_cached", entry.TimeCached()))
			if err := entry.Delete(); err != nil {
				log.Warn("Failed to delete stale cache entry", zap.Error(err))
			}
			_ = entry.Close()
			entry = nil
		}
	case stderrors.Is(err, cache.ErrNotFound):
		entry = nil
	default:
		log.Warn("Cache lookup failed, regenerating", zap.Error(err))
		entry = nil
	}

	if entry != nil {
		log.Debug("Cache hit", zap.String("id", entry.ID()))
		return entry, nil
	}

	if !source.Valid() {
		return nil, errors.WithContext(
			errors.New(errcode.SourceUnavailable, "failed to load the original resource"),
			"source", o.sourceURL,
		)
	}

	if o.deps.Flight == nil {
		return o.transform(source, key)
	}

	v, err, shared := o.deps.Flight.Do(key, func() (any, error) {
		return o.transform(source, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("Joined concurrent transformation")
	}
	// Every caller gets a private handle; the shared entry is never read.
	return v.(*cache.Entry).Clone()
}

// isStale reports whether entry must be regenerated from source.
func (o *Object) isStale(entry *cache.Entry, source vfs.Handle) bool {
	if !source.Valid() {
		return true
	}
	return source.Capabilities().ModTime && !entry.IsUpToDate(source.ModTime())
}

// transform renders the source and stores the result under key.
func (o *Object) transform(source vfs.Handle, key string) (*cache.Entry, error) {
	if o.deps.Transformers == nil {
		return nil, errors.New(errcode.TransformUnsupported, "no image transformer available")
	}

	t, err := o.deps.Transformers.New()
	if err != nil {
		return nil, errors.Wrap(err, errcode.TransformUnsupported, "image transformer unavailable")
	}
	defer t.Close()

	if !t.Capabilities().Transformation {
		return nil, errors.New(errcode.TransformUnsupported, "image transformer does not support transformation")
	}

	start := time.Now()

	if err := t.OpenSource(source.URL()); err != nil {
		return nil, errors.WithContext(
			errors.Wrap(err, errcode.TransformFailed, "image transformer failed to open the original resource"),
			"source", source.URL(),
		)
	}

	t.SetMimetype(o.spec.Mimetype())
	t.SetResizeMode(o.spec.ResizeMode())
	t.SetTargetSize(o.spec.Width(), o.spec.Height())
	if colormap := o.deps.Transformers.ColormapForDepth(o.spec.Mimetype(), o.spec.Depth()); colormap != nil {
		t.SetColormap(colormap)
	}

	if err := t.Run(); err != nil {
		return nil, errors.WithContext(
			errors.Wrap(err, errcode.TransformFailed, "image transformation failed"),
			"source", source.URL(),
		)
	}

	timeCached := time.Now()
	if source.Capabilities().ModTime {
		timeCached = source.ModTime()
	}

	entry := o.deps.Store.Create()
	if _, err := entry.Write(t.Output()); err != nil {
		return nil, err
	}
	if err := entry.Commit(cache.Metadata{TimeCached: timeCached, ResourceKey: key}); err != nil {
		o.logger.Error("Failed to store transformed image", zap.String("url", key), zap.Error(err))
		return nil, err
	}
	if _, err := entry.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, errcode.CacheFailed, "failed to rewind cache entry")
	}

	o.logger.Info("Transformed image",
		zap.String("url", key),
		zap.String("id", entry.ID()),
		zap.Int64("bytes", entry.Size()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return entry, nil
}

// sourceUnavailable makes sure resolution failures carry SourceUnavailable.
func sourceUnavailable(err error, sourceURL string) error {
	if errcode.Is(err, errcode.SourceUnavailable) {
		return err
	}
	return errors.WithContext(
		errors.Wrap(err, errcode.SourceUnavailable, "failed to resolve the original resource"),
		"source", sourceURL,
	)
}
