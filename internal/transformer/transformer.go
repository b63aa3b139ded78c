// Package transformer defines the image transformation engine contract and
// its libvips implementation.
package transformer

import (
	"strings"

	"mediavfs/internal/transformation"
)

// Capabilities is the fixed set of features an engine offers.
type Capabilities struct {
	// Transformation is set when the engine can resize and re-encode.
	Transformation bool
}

// Colormap is a reduced-color palette applied on encode.
type Colormap struct {
	Colors   int
	Bitdepth int
}

// Transformer runs a single transformation. Configure it with the setters
// after OpenSource, then call Run and collect Output.
type Transformer interface {
	Capabilities() Capabilities
	OpenSource(url string) error
	SetMimetype(mimetype string)
	SetResizeMode(mode transformation.ResizeMode)
	SetTargetSize(width, height int)
	SetColormap(colormap *Colormap)
	Run() error
	Output() []byte
	// Close releases the source and any intermediate images.
	Close()
}

// Factory creates transformers.
type Factory interface {
	New() (Transformer, error)
	// ColormapForDepth returns the palette an output of mimetype and depth
	// is reduced to, or nil when no reduction applies.
	ColormapForDepth(mimetype string, depth int) *Colormap
}

// PaletteFor implements the palette rules shared by all engines. GIF output
// is always palette based; PNG output is reduced when depth is at most 8
// bits.
func PaletteFor(mimetype string, depth int) *Colormap {
	bitdepth := depth
	if bitdepth > 8 {
		bitdepth = 8
	}

	switch strings.ToLower(mimetype) {
	case "image/gif":
		return &Colormap{Colors: 1 << bitdepth, Bitdepth: bitdepth}
	case "image/png", "image/x-png":
		if depth <= 8 {
			return &Colormap{Colors: 1 << bitdepth, Bitdepth: bitdepth}
		}
	}
	return nil
}
