// Package libvips implements transformer.Factory on top of libvips.
package libvips

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"mediavfs/internal/mimetype"
	"mediavfs/internal/transformation"
	"mediavfs/internal/transformer"
	"mediavfs/internal/vfs"
)

// Factory creates libvips backed transformers. Startup must have
// been called before the first Run.
type Factory struct {
	sources vfs.Resolver
	types   mimetype.Registry
	quality int
	logger  *zap.Logger
}

// NewFactory returns a factory loading sources through the given
// resolver.
func NewFactory(sources vfs.Resolver, types mimetype.Registry, quality int, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	return &Factory{
		sources: sources,
		types:   types,
		quality: quality,
		logger:  logger,
	}
}

func (f *Factory) New() (transformer.Transformer, error) {
	return &vipsTransformer{factory: f, mode: transformation.ResizeScaledFit}, nil
}

func (f *Factory) ColormapForDepth(mimetype string, depth int) *transformer.Colormap {
	return transformer.PaletteFor(mimetype, depth)
}

type vipsTransformer struct {
	factory *Factory

	sourceURL string
	image     *vips.Image

	mimetype string
	mode     transformation.ResizeMode
	width    int
	height   int
	colormap *transformer.Colormap

	output []byte
}

func (t *vipsTransformer) Capabilities() transformer.Capabilities {
	return transformer.Capabilities{Transformation: true}
}

func (t *vipsTransformer) OpenSource(url string) error {
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
		return fmt.Errorf("failed to read source: %w", err)
	}

	image, err := vips.NewImageFromBuffer(data, nil)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	t.Close()
	t.sourceURL = url
	t.image = image
	return nil
}

func (t *vipsTransformer) SetMimetype(mimetype string) { t.mimetype = mimetype }

func (t *vipsTransformer) SetResizeMode(mode transformation.ResizeMode) { t.mode = mode }

func (t *vipsTransformer) SetTargetSize(width, height int) {
	t.width = width
	t.height = height
}

func (t *vipsTransformer) SetColormap(colormap *transformer.Colormap) { t.colormap = colormap }

func (t *vipsTransformer) Run() error {
	if t.image == nil {
		return fmt.Errorf("no source opened")
	}
	if t.width <= 0 || t.height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", t.width, t.height)
	}

	start := time.Now()

	if err := t.resize(); err != nil {
		return err
	}

	data, err := t.encode()
	if err != nil {
		return err
	}
	t.output = data

	t.factory.logger.Debug("Transformed image",
		zap.String("source", t.sourceURL),
		zap.String("mimetype", t.mimetype),
		zap.String("resize_mode", t.mode.String()),
		zap.Int("width", t.image.Width()),
		zap.Int("height", t.image.Height()),
		zap.Int("bytes", len(data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

func (t *vipsTransformer) Output() []byte {
	return t.output
}

func (t *vipsTransformer) Close() {
	if t.image != nil {
		t.image.Close()
		t.image = nil
	}
}

// resize fits the source into the target box according to the resize mode.
func (t *vipsTransformer) resize() error {
	srcW := float64(t.image.Width())
	srcH := float64(t.image.Height())
	scaleX := float64(t.width) / srcW
	scaleY := float64(t.height) / srcH

	switch t.mode {
	case transformation.ResizeStretch:
		return t.scale(scaleX, scaleY)
	case transformation.ResizeScaledCrop:
		scale := math.Max(scaleX, scaleY)
		if err := t.scale(scale, scale); err != nil {
			return err
		}

		// Crop the overflow around the center. Rounding may leave the
		// scaled image a pixel short of the target on one axis.
		w := min(t.width, t.image.Width())
		h := min(t.height, t.image.Height())
		left := (t.image.Width() - w) / 2
		top := (t.image.Height() - h) / 2
		if err := t.image.ExtractArea(left, top, w, h); err != nil {
			return fmt.Errorf("failed to extract area: %w", err)
		}
		return nil
	default:
		scale := math.Min(scaleX, scaleY)
		return t.scale(scale, scale)
	}
}

func (t *vipsTransformer) scale(h, v float64) error {
	resizeOpts := vips.DefaultResizeOptions()
	resizeOpts.Kernel = vips.KernelLanczos3
	if v != h {
		resizeOpts.Vscale = v
	}
	if err := t.image.Resize(h, resizeOpts); err != nil {
		return fmt.Errorf("failed to resize: %w", err)
	}
	return nil
}

func (t *vipsTransformer) encode() ([]byte, error) {
	target := mimetype.TypeOf(t.factory.types, t.mimetype)

	switch target {
	case "image/jpeg":
		// Use background color for transparent areas, as there is no alpha channel in JPEG
		if t.image.HasAlpha() {
			flattenOpts := vips.DefaultFlattenOptions()
			flattenOpts.Background = []float64{255, 255, 255}
			if err := t.image.Flatten(flattenOpts); err != nil {
				return nil, fmt.Errorf("failed to flatten: %w", err)
			}
		}
		jpegOpts := vips.DefaultJpegsaveBufferOptions()
		jpegOpts.Q = t.factory.quality
		jpegOpts.Interlace = false
		return t.image.JpegsaveBuffer(jpegOpts)
	case "image/png":
		pngOpts := vips.DefaultPngsaveBufferOptions()
		if t.colormap != nil {
			pngOpts.Palette = true
			pngOpts.Bitdepth = t.colormap.Bitdepth
		}
		return t.image.PngsaveBuffer(pngOpts)
	case "image/gif":
		gifOpts := vips.DefaultGifsaveBufferOptions()
		if t.colormap != nil {
			gifOpts.Bitdepth = t.colormap.Bitdepth
		}
		return t.image.GifsaveBuffer(gifOpts)
	case "image/webp":
		webpOpts := vips.DefaultWebpsaveBufferOptions()
		webpOpts.Q = t.factory.quality
		return t.image.WebpsaveBuffer(webpOpts)
	case "image/tiff":
		return t.image.TiffsaveBuffer(vips.DefaultTiffsaveBufferOptions())
	default:
		return nil, fmt.Errorf("unsupported output format: %s", target)
	}
}
