// Package app assembles the collaborators of derived image resources from
// the process configuration.
package app

import (
	"fmt"
	"path/filepath"

	"github.com/jmgilman/go/fs/billy"
	"github.com/jmgilman/go/fs/core"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mediavfs/internal/cache"
	"mediavfs/internal/config"
	"mediavfs/internal/derived"
	"mediavfs/internal/mimetype"
	"mediavfs/internal/transformer"
	"mediavfs/internal/vfs"
)

// TransformerFactory builds the image engine once the source registry and
// mimetype table exist.
type TransformerFactory func(sources vfs.Resolver, types mimetype.Registry) transformer.Factory

// App holds the assembled collaborators.
type App struct {
	DataFS   core.FS
	Types    *mimetype.Table
	Registry *vfs.Registry
	Store    cache.Store
	Deps     derived.Deps
}

// Build wires the data directory, the mimetype table, the scheme registry,
// the cache store and the image engine.
func Build(cfg *config.Config, newTransformers TransformerFactory, log *zap.Logger) (*App, error) {
	local := billy.NewLocal()

	types := mimetype.NewTable()
	if cfg.MimeTypesFile != "" {
		name, err := filepath.Abs(cfg.MimeTypesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mimetype file: %w", err)
		}
		if err := types.LoadFile(local, name); err != nil {
			return nil, err
		}
		log.Info("Loaded mimetypes", zap.String("file", name))
	}

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	dataFS, err := local.Chroot(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	store, err := cache.NewStore(cfg.CacheType, cfg.CacheFileDir, cfg.CacheMemoryEntries, log)
	if err != nil {
		return nil, err
	}

	registry := vfs.NewRegistry()
	registry.Register(vfs.FileScheme, vfs.NewFileResolver(dataFS))

	deps := derived.Deps{
		Sources:   registry,
		Store:     store,
		Mimetypes: types,
		Logger:    log.Named("derived"),
	}
	if newTransformers != nil {
		deps.Transformers = newTransformers(registry, types)
	}
	if cfg.DedupeMaterialization {
		deps.Flight = &singleflight.Group{}
	}

	// Derived resources may themselves be sources.
	registry.Register(derived.Scheme, derived.NewResolver(deps))

	log.Info("Registered source schemes", zap.Strings("schemes", registry.Schemes()))

	return &App{
		DataFS:   dataFS,
		Types:    types,
		Registry: registry,
		Store:    store,
		Deps:     deps,
	}, nil
}
