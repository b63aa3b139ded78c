package cache

import (
	"fmt"
	"path/filepath"

	"github.com/jmgilman/go/fs/billy"
	"go.uber.org/zap"
)

// NewStore creates a store instance based on the cache type
func NewStore(cacheType, cacheFileDir string, cacheMemoryEntries int, log *zap.Logger) (Store, error) {
	switch cacheType {
	case "memory":
		log.Info("Using memory cache", zap.Int("max_entries", cacheMemoryEntries))
		return NewMemoryStore(cacheMemoryEntries), nil
	case "file":
		dir, err := filepath.Abs(cacheFileDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		local := billy.NewLocal()
		if err := local.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		fsys, err := local.Chroot(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache directory: %w", err)
		}
		log.Info("Using file cache", zap.String("cache_dir", dir))
		return NewFSStore(fsys, log), nil
	case "disabled":
		log.Info("Cache disabled")
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, file, disabled)", cacheType)
	}
}
