// Package transformation parses and validates image transformation
// requests.
package transformation

import (
	"strconv"

	"github.com/jmgilman/go/errors"

	"mediavfs/internal/errcode"
	"mediavfs/internal/mimetype"
)

// Query keys recognized in a transformation request.
const (
	KeyMimetype   = "mimetype"
	KeyWidth      = "width"
	KeyHeight     = "height"
	KeyDepth      = "depth"
	KeyResizeMode = "resize_mode"
)

// DefaultDepth is the color depth used when a request names none.
const DefaultDepth = 32

// ResizeMode selects how the source is fitted into the target size.
type ResizeMode int

const (
	// ResizeScaledFit scales the source to fit inside the target box,
	// keeping its aspect ratio.
	ResizeScaledFit ResizeMode = 1
	// ResizeScaledCrop scales the source to cover the target box and crops
	// the overflow around the center.
	ResizeScaledCrop ResizeMode = 2
	// ResizeStretch scales both axes independently to the exact target size.
	ResizeStretch ResizeMode = 3
)

// String returns a readable name of the mode.
func (m ResizeMode) String() string {
	switch m {
	case ResizeScaledFit:
		return "scaled-fit"
	case ResizeScaledCrop:
		return "scaled-crop"
	case ResizeStretch:
		return "stretch"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the known modes.
func (m ResizeMode) Valid() bool {
	return m >= ResizeScaledFit && m <= ResizeStretch
}

// Spec is a validated transformation request. The zero value is not a
// valid spec; use Parse.
type Spec struct {
	mimetype   string
	width      int
	height     int
	depth      int
	resizeMode ResizeMode
}

// Parse validates values decoded from a transformation query. Keys other
// than the recognized ones are ignored and a blank value counts as absent.
func Parse(values map[string]string, registry mimetype.Registry) (Spec, error) {
	for _, key := range []string{KeyMimetype, KeyWidth, KeyHeight} {
		if values[key] == "" {
			return Spec{}, errors.WithContext(
				errors.Newf(errcode.InvalidArgument, "transformation data is missing %q", key),
				"key", key,
			)
		}
	}

	width, err := positiveInt(values, KeyWidth, 0)
	if err != nil {
		return Spec{}, err
	}
	height, err := positiveInt(values, KeyHeight, 0)
	if err != nil {
		return Spec{}, err
	}
	depth, err := positiveInt(values, KeyDepth, DefaultDepth)
	if err != nil {
		return Spec{}, err
	}
	mode, err := positiveInt(values, KeyResizeMode, int(ResizeScaledFit))
	if err != nil {
		return Spec{}, err
	}
	if !ResizeMode(mode).Valid() {
		return Spec{}, errors.Newf(errcode.InvalidArgument, "unknown resize mode %d", mode)
	}

	mt := values[KeyMimetype]
	def, ok := registry.Lookup(mt)
	if !ok || def.Class != mimetype.ClassImage {
		return Spec{}, errors.WithContext(
			errors.Newf(errcode.UnsupportedType, "mimetype %q does not correspond to an image", mt),
			"mimetype", mt,
		)
	}
	if !def.Encodable {
		return Spec{}, errors.WithContext(
			errors.Newf(errcode.UnsupportedType, "images can't be encoded as %q", mt),
			"mimetype", mt,
		)
	}

	return Spec{
		mimetype:   mt,
		width:      width,
		height:     height,
		depth:      depth,
		resizeMode: ResizeMode(mode),
	}, nil
}

// Mimetype returns the requested target mimetype as given.
func (s Spec) Mimetype() string { return s.mimetype }

// Width returns the target width in pixels.
func (s Spec) Width() int { return s.width }

// Height returns the target height in pixels.
func (s Spec) Height() int { return s.height }

// Depth returns the target color depth in bits.
func (s Spec) Depth() int { return s.depth }

// ResizeMode returns how the source is fitted into the target size.
func (s Spec) ResizeMode() ResizeMode { return s.resizeMode }

// Values returns the spec as a query mapping. Defaults are always present,
// so a request that omits optional keys maps to the same values as one that
// spells them out.
func (s Spec) Values() map[string]string {
	return map[string]string{
		KeyMimetype:   s.mimetype,
		KeyWidth:      strconv.Itoa(s.width),
		KeyHeight:     strconv.Itoa(s.height),
		KeyDepth:      strconv.Itoa(s.depth),
		KeyResizeMode: strconv.Itoa(int(s.resizeMode)),
	}
}

func positiveInt(values map[string]string, key string, fallback int) (int, error) {
	raw := values[key]
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.WithContext(
			errors.Wrapf(err, errcode.InvalidArgument, "%s is not an integer", key),
			"value", raw,
		)
	}
	if n <= 0 {
		return 0, errors.WithContext(
			errors.Newf(errcode.InvalidArgument, "%s must be positive", key),
			"value", raw,
		)
	}

	return n, nil
}
