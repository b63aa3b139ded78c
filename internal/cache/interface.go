package cache

import (
	"encoding/hex"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
)

// ErrNotFound is returned by Lookup when no entry is stored for a key.
var ErrNotFound = errors.New(errors.CodeNotFound, "cache entry not found")

// Metadata is attached to every committed entry.
type Metadata struct {
	// TimeCached is the modification time of the source the entry was
	// derived from, or the commit time when the source has none.
	TimeCached time.Time
	// ResourceKey is the key the entry is stored under.
	ResourceKey string
	// Digest and Size describe the content. Commit fills them in.
	Digest digest.Digest
	Size   int64
}

type Store interface {
	// Lookup returns the entry stored for key, positioned at its start.
	Lookup(key string) (*Entry, error)
	// Create returns an empty entry. It is stored by Entry.Commit.
	Create() *Entry
	// Clear removes every entry.
	Clear() error
}

// EntryID returns the storage id of key.
func EntryID(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
