package cache

import (
	"bytes"
	"io"
	"io/fs"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/opencontainers/go-digest"

	"mediavfs/internal/errcode"
)

// backend persists committed entries for a store.
type backend interface {
	persist(id string, meta Metadata, data []byte) error
	remove(id string) error
}

// Entry is a cached blob. A new entry buffers writes until Commit; a
// committed or looked up entry is read-only and seekable. An Entry is owned
// by a single caller and is not safe for concurrent use.
type Entry struct {
	backend backend

	id      string
	meta    Metadata
	pending bytes.Buffer

	data      []byte
	reader    *bytes.Reader
	committed bool
	deleted   bool
	closed    bool
}

func newEntry(b backend) *Entry {
	return &Entry{backend: b}
}

func loadedEntry(b backend, id string, meta Metadata, data []byte) *Entry {
	return &Entry{
		backend:   b,
		id:        id,
		meta:      meta,
		data:      data,
		reader:    bytes.NewReader(data),
		committed: true,
	}
}

// Clone returns an independent read handle on a committed entry,
// positioned at its start.
func (e *Entry) Clone() (*Entry, error) {
	if err := e.readable(); err != nil {
		return nil, err
	}
	return loadedEntry(e.backend, e.id, e.meta, e.data), nil
}

// ID returns the storage id, empty until the entry is committed.
func (e *Entry) ID() string { return e.id }

// Metadata returns the metadata recorded at commit.
func (e *Entry) Metadata() Metadata { return e.meta }

// TimeCached returns the recorded cache time.
func (e *Entry) TimeCached() time.Time { return e.meta.TimeCached }

// IsUpToDate reports whether the entry was cached at or after t.
func (e *Entry) IsUpToDate(t time.Time) bool {
	return !e.meta.TimeCached.Before(t)
}

// Write appends p to an uncommitted entry.
func (e *Entry) Write(p []byte) (int, error) {
	if e.committed {
		return 0, errors.New(errcode.CacheFailed, "cache entry is read-only")
	}
	return e.pending.Write(p)
}

// Commit stores the written content under meta.ResourceKey. Digest and
// Size of meta are computed from the content. The entry is positioned at
// its end afterwards.
func (e *Entry) Commit(meta Metadata) error {
	if e.committed {
		return errors.New(errcode.CacheFailed, "cache entry is already committed")
	}
	if meta.ResourceKey == "" {
		return errors.New(errcode.CacheFailed, "cache entry needs a resource key")
	}
	if meta.TimeCached.IsZero() {
		meta.TimeCached = time.Now()
	}

	data := bytes.Clone(e.pending.Bytes())
	meta.Digest = digest.FromBytes(data)
	meta.Size = int64(len(data))
	id := EntryID(meta.ResourceKey)

	if err := e.backend.persist(id, meta, data); err != nil {
		return errors.WithContext(
			errors.Wrap(err, errcode.CacheFailed, "failed to store cache entry"),
			"resource_key", meta.ResourceKey,
		)
	}

	e.pending.Reset()
	e.id = id
	e.meta = meta
	e.data = data
	e.reader = bytes.NewReader(data)
	_, _ = e.reader.Seek(0, io.SeekEnd)
	e.committed = true
	return nil
}

// Delete removes the entry from its store. The handle becomes invalid.
func (e *Entry) Delete() error {
	if !e.committed || e.deleted {
		return nil
	}
	if err := e.backend.remove(e.id); err != nil {
		return errors.WithContext(
			errors.Wrap(err, errcode.CacheFailed, "failed to delete cache entry"),
			"id", e.id,
		)
	}
	e.deleted = true
	return nil
}

// Valid reports whether the entry is committed, stored and open.
func (e *Entry) Valid() bool {
	return e.committed && !e.deleted && !e.closed
}

// Read implements io.Reader.
func (e *Entry) Read(p []byte) (int, error) {
	if err := e.readable(); err != nil {
		return 0, err
	}
	return e.reader.Read(p)
}

// Seek implements io.Seeker.
func (e *Entry) Seek(offset int64, whence int) (int64, error) {
	if err := e.readable(); err != nil {
		return 0, err
	}
	return e.reader.Seek(offset, whence)
}

// Tell returns the current read offset.
func (e *Entry) Tell() int64 {
	if e.reader == nil {
		return 0
	}
	return e.reader.Size() - int64(e.reader.Len())
}

// Size returns the content length in bytes.
func (e *Entry) Size() int64 {
	return int64(len(e.data))
}

// EOF reports whether the read offset is at or past the end.
func (e *Entry) EOF() bool {
	return e.reader == nil || e.reader.Len() == 0
}

// Close releases the content. The stored entry is not affected.
func (e *Entry) Close() error {
	e.closed = true
	e.reader = nil
	e.data = nil
	return nil
}

func (e *Entry) readable() error {
	switch {
	case e.closed:
		return fs.ErrClosed
	case !e.committed:
		return errors.New(errcode.CacheFailed, "cache entry is not committed")
	}
	return nil
}
