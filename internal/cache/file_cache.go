package cache

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"
	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"

	"mediavfs/internal/errcode"
)

// FSStore keeps entries on a core.FS.
// Structure: {root}/{id[0:2]}/{id}.blob with a CBOR sidecar {id}.meta
type FSStore struct {
	mu     sync.RWMutex
	fsys   core.FS
	logger *zap.Logger
}

// sidecar is the stored form of Metadata.
type sidecar struct {
	TimeCached  int64  `cbor:"time_cached"`
	ResourceKey string `cbor:"resource_key"`
	Digest      string `cbor:"digest"`
	Size        int64  `cbor:"size"`
}

var sidecarEncMode cbor.EncMode

func init() {
	var err error
	sidecarEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
}

func NewFSStore(fsys core.FS, logger *zap.Logger) *FSStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSStore{
		fsys:   fsys,
		logger: logger,
	}
}

// buildPaths returns the blob and sidecar paths of id.
func (s *FSStore) buildPaths(id string) (blob, meta string) {
	dir := id[:2]
	return path.Join(dir, id+".blob"), path.Join(dir, id+".meta")
}

func (s *FSStore) Lookup(key string) (*Entry, error) {
	id := EntryID(key)
	blobPath, metaPath := s.buildPaths(id)

	s.mu.RLock()
	raw, err := s.fsys.ReadFile(metaPath)
	var data []byte
	if err == nil {
		data, err = s.fsys.ReadFile(blobPath)
	}
	s.mu.RUnlock()

	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.WithContext(
			errors.Wrap(err, errcode.CacheFailed, "failed to read cache entry"),
			"id", id,
		)
	}

	var sc sidecar
	if err := cbor.Unmarshal(raw, &sc); err != nil {
		s.discard(id, "unreadable metadata", err)
		return nil, ErrNotFound
	}
	if sc.ResourceKey != key {
		return nil, ErrNotFound
	}

	expected := digest.Digest(sc.Digest)
	if err := expected.Validate(); err != nil {
		s.discard(id, "invalid digest", err)
		return nil, ErrNotFound
	}
	if actual := expected.Algorithm().FromBytes(data); actual != expected {
		s.discard(id, "digest mismatch", fmt.Errorf("expected %s, got %s", expected, actual))
		return nil, ErrNotFound
	}

	meta := Metadata{
		TimeCached:  time.Unix(0, sc.TimeCached),
		ResourceKey: sc.ResourceKey,
		Digest:      expected,
		Size:        sc.Size,
	}
	return loadedEntry(s, id, meta, data), nil
}

func (s *FSStore) Create() *Entry {
	return newEntry(s)
}

func (s *FSStore) persist(id string, meta Metadata, data []byte) error {
	raw, err := sidecarEncMode.Marshal(sidecar{
		TimeCached:  meta.TimeCached.UnixNano(),
		ResourceKey: meta.ResourceKey,
		Digest:      meta.Digest.String(),
		Size:        meta.Size,
	})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blobPath, metaPath := s.buildPaths(id)
	if err := s.fsys.MkdirAll(path.Dir(blobPath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Blob first: a sidecar is only ever visible next to complete content.
	if err := s.writeAtomic(blobPath, data); err != nil {
		return err
	}
	return s.writeAtomic(metaPath, raw)
}

func (s *FSStore) writeAtomic(name string, data []byte) error {
	tmpPath := name + ".tmp-" + uuid.New().String()
	if err := s.fsys.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := s.fsys.Rename(tmpPath, name); err != nil {
		_ = s.fsys.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", name, err)
	}
	return nil
}

func (s *FSStore) remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blobPath, metaPath := s.buildPaths(id)
	for _, name := range []string{metaPath, blobPath} {
		if err := s.fsys.Remove(name); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// discard removes an entry that failed verification.
func (s *FSStore) discard(id, reason string, cause error) {
	s.logger.Warn("Discarding corrupt cache entry",
		zap.String("id", id),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	if err := s.remove(id); err != nil {
		s.logger.Warn("Failed to discard cache entry", zap.String("id", id), zap.Error(err))
	}
}

func (s *FSStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.fsys.ReadDir(".")
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, errcode.CacheFailed, "failed to list cache directory")
	}

	for _, entry := range entries {
		if err := s.fsys.RemoveAll(entry.Name()); err != nil {
			return errors.Wrap(err, errcode.CacheFailed, "failed to clear cache")
		}
	}
	return nil
}
