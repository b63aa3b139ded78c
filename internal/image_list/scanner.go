package image_list

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmgilman/go/fs/core"
	"go.uber.org/zap"

	"mediavfs/internal/mimetype"
	"mediavfs/internal/vfs"
)

// SourceFS is the part of a file system the scanner needs.
type SourceFS interface {
	core.ReadFS
	core.WalkFS
}

type ImageInfo struct {
	Path     string    `json:"path"`
	URL      string    `json:"url"`
	Mimetype string    `json:"mimetype"`
	Bytes    int64     `json:"bytes"`
	ModTime  time.Time `json:"mod_time"`
}

// Scanner lists the source images below the root of a file system. Hidden
// entries and excluded directories are skipped.
type Scanner struct {
	fsys    SourceFS
	types   *mimetype.Table
	logger  *zap.Logger
	exclude map[string]bool

	mu     sync.RWMutex
	images []ImageInfo
}

func New(fsys SourceFS, types *mimetype.Table, logger *zap.Logger, exclude ...string) *Scanner {
	excluded := make(map[string]bool, len(exclude))
	for _, dir := range exclude {
		excluded[path.Clean(dir)] = true
	}
	return &Scanner{
		fsys:    fsys,
		types:   types,
		logger:  logger,
		exclude: excluded,
		images:  []ImageInfo{},
	}
}

func (s *Scanner) Scan() error {
	images := []ImageInfo{}

	err := s.fsys.Walk(".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			if name == "." {
				return err
			}
			s.logger.Warn("Error walking data directory", zap.String("path", name), zap.Error(err))
			return nil
		}

		if name != "." && (strings.HasPrefix(d.Name(), ".") || s.exclude[name]) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		def, ok := s.types.ByExtension(name)
		if !ok || def.Class != mimetype.ClassImage {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("Error getting file info", zap.String("path", name), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		images = append(images, ImageInfo{
			Path:     name,
			URL:      vfs.FileURL(name),
			Mimetype: def.Type,
			Bytes:    info.Size(),
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan data directory: %w", err)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })

	s.mu.Lock()
	s.images = images
	s.mu.Unlock()

	s.logger.Info("Scanned data directory", zap.Int("images", len(images)))
	return nil
}

func (s *Scanner) GetImages() []ImageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images := make([]ImageInfo, len(s.images))
	copy(images, s.images)
	return images
}

func (s *Scanner) GetImageByPath(name string) *ImageInfo {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, img := range s.images {
		if img.Path == name {
			img := img
			return &img
		}
	}
	return nil
}
