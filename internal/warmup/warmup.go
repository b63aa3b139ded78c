// Package warmup pre-materializes derived renditions of the source images so
// first requests are served from the cache.
package warmup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"mediavfs/internal/derived"
	"mediavfs/internal/errcode"
	"mediavfs/internal/image_list"
	"mediavfs/internal/mimetype"
	"mediavfs/internal/transformation"
)

// Preset is one rendition produced for every source image.
type Preset struct {
	Spec transformation.Spec
}

// ParsePreset parses "mimetype:WIDTHxHEIGHT".
func ParsePreset(text string, types mimetype.Registry) (Preset, error) {
	mt, size, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return Preset{}, errors.Newf(errcode.InvalidArgument, "invalid preset %q: expected mimetype:WIDTHxHEIGHT", text)
	}
	width, height, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok {
		return Preset{}, errors.Newf(errcode.InvalidArgument, "invalid preset size %q: expected WIDTHxHEIGHT", size)
	}

	spec, err := transformation.Parse(map[string]string{
		transformation.KeyMimetype: mt,
		transformation.KeyWidth:    width,
		transformation.KeyHeight:   height,
	}, types)
	if err != nil {
		return Preset{}, errors.WithContext(err, "preset", text)
	}
	return Preset{Spec: spec}, nil
}

// ParsePresets parses every item of texts.
func ParsePresets(texts []string, types mimetype.Registry) ([]Preset, error) {
	presets := make([]Preset, 0, len(texts))
	for _, text := range texts {
		preset, err := ParsePreset(text, types)
		if err != nil {
			return nil, err
		}
		presets = append(presets, preset)
	}
	return presets, nil
}

func (p Preset) String() string {
	return fmt.Sprintf("%s:%dx%d", p.Spec.Mimetype(), p.Spec.Width(), p.Spec.Height())
}

// Result counts the outcome of a warmup run.
type Result struct {
	Materialized int
	Failed       int
}

// Run materializes every preset of every image with at most workerLimit
// concurrent objects. It stops scheduling work when ctx is done.
func Run(ctx context.Context, images []image_list.ImageInfo, presets []Preset, workerLimit int, deps derived.Deps, log *zap.Logger) Result {
	if len(images) == 0 || len(presets) == 0 {
		return Result{}
	}

	log.Info("Starting warmup", zap.Int("images", len(images)), zap.Int("presets", len(presets)))
	start := time.Now()

	// Worker pool size configured via env (defaults to 1)
	if workerLimit <= 0 {
		workerLimit = 1
	}

	workerChan := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var result Result

schedule:
	for _, img := range images {
		for _, preset := range presets {
			select {
			case <-ctx.Done():
				break schedule
			case workerChan <- struct{}{}: // Acquire worker slot
			}

			wg.Add(1)
			go func(sourceURL string, preset Preset) {
				defer wg.Done()
				defer func() { <-workerChan }() // Release worker slot

				err := materialize(deps, derived.BuildURL(sourceURL, preset.Spec))

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					log.Debug("Warmup failed", zap.String("source", sourceURL), zap.Stringer("preset", preset), zap.Error(err))
					return
				}
				result.Materialized++
			}(img.URL, preset)
		}
	}

	wg.Wait()
	log.Info("Warmup completed",
		zap.Int("materialized", result.Materialized),
		zap.Int("failed", result.Failed),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result
}

func materialize(deps derived.Deps, url string) error {
	obj := derived.New(deps)
	if err := obj.Open(url); err != nil {
		return err
	}
	defer obj.Close()
	return obj.Materialize()
}
