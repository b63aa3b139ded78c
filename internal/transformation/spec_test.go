package transformation

import (
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavfs/internal/errcode"
	"mediavfs/internal/mimetype"
)

func TestParse_Defaults(t *testing.T) {
	spec, err := Parse(map[string]string{
		"mimetype": "image/png",
		"width":    "100",
		"height":   "50",
	}, mimetype.NewTable())
	require.NoError(t, err)

	assert.Equal(t, "image/png", spec.Mimetype())
	assert.Equal(t, 100, spec.Width())
	assert.Equal(t, 50, spec.Height())
	assert.Equal(t, DefaultDepth, spec.Depth())
	assert.Equal(t, ResizeScaledFit, spec.ResizeMode())
}

func TestParse_Explicit(t *testing.T) {
	spec, err := Parse(map[string]string{
		"mimetype":    "image/gif",
		"width":       "16",
		"height":      "16",
		"depth":       "4",
		"resize_mode": "2",
		"ignored":     "yes",
	}, mimetype.NewTable())
	require.NoError(t, err)

	assert.Equal(t, 4, spec.Depth())
	assert.Equal(t, ResizeScaledCrop, spec.ResizeMode())
	assert.NotContains(t, spec.Values(), "ignored")
}

func TestParse_BlankOptionalValues(t *testing.T) {
	spec, err := Parse(map[string]string{
		"mimetype":    "image/png",
		"width":       "100",
		"height":      "50",
		"depth":       "",
		"resize_mode": "",
	}, mimetype.NewTable())
	require.NoError(t, err)

	assert.Equal(t, DefaultDepth, spec.Depth())
	assert.Equal(t, ResizeScaledFit, spec.ResizeMode())
}

func TestParse_Errors(t *testing.T) {
	base := func(overrides map[string]string, drop ...string) map[string]string {
		values := map[string]string{"mimetype": "image/png", "width": "10", "height": "10"}
		for k, v := range overrides {
			values[k] = v
		}
		for _, k := range drop {
			delete(values, k)
		}
		return values
	}

	tests := []struct {
		name   string
		values map[string]string
		code   errors.ErrorCode
	}{
		{name: "missing width", values: base(nil, "width"), code: errcode.InvalidArgument},
		{name: "missing height", values: base(nil, "height"), code: errcode.InvalidArgument},
		{name: "missing mimetype", values: base(nil, "mimetype"), code: errcode.InvalidArgument},
		{name: "blank mimetype", values: base(map[string]string{"mimetype": ""}), code: errcode.InvalidArgument},
		{name: "blank width", values: base(map[string]string{"width": ""}), code: errcode.InvalidArgument},
		{name: "width not a number", values: base(map[string]string{"width": "wide"}), code: errcode.InvalidArgument},
		{name: "zero height", values: base(map[string]string{"height": "0"}), code: errcode.InvalidArgument},
		{name: "negative depth", values: base(map[string]string{"depth": "-8"}), code: errcode.InvalidArgument},
		{name: "unknown resize mode", values: base(map[string]string{"resize_mode": "9"}), code: errcode.InvalidArgument},
		{name: "non image mimetype", values: base(map[string]string{"mimetype": "text/plain"}), code: errcode.UnsupportedType},
		{name: "unknown mimetype", values: base(map[string]string{"mimetype": "image/x-nope"}), code: errcode.UnsupportedType},
		{name: "bmp target", values: base(map[string]string{"mimetype": "image/bmp"}), code: errcode.UnsupportedType},
		{name: "svg target", values: base(map[string]string{"mimetype": "image/svg+xml"}), code: errcode.UnsupportedType},
		{name: "avif target", values: base(map[string]string{"mimetype": "image/avif"}), code: errcode.UnsupportedType},
		{name: "heif target", values: base(map[string]string{"mimetype": "image/heif"}), code: errcode.UnsupportedType},
		{name: "size checked before mimetype", values: base(map[string]string{"mimetype": "text/plain", "width": "x"}), code: errcode.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.values, mimetype.NewTable())
			require.Error(t, err)
			assert.Equal(t, tt.code, errcode.Of(err))
		})
	}
}

func TestSpec_ValuesIncludeDefaults(t *testing.T) {
	registry := mimetype.NewTable()

	implicit, err := Parse(map[string]string{"mimetype": "image/png", "width": "10", "height": "20"}, registry)
	require.NoError(t, err)
	explicit, err := Parse(map[string]string{
		"height": "20", "resize_mode": "1", "depth": "32", "width": "10", "mimetype": "image/png",
	}, registry)
	require.NoError(t, err)

	assert.Equal(t, explicit.Values(), implicit.Values())
	assert.Equal(t, map[string]string{
		"mimetype": "image/png", "width": "10", "height": "20", "depth": "32", "resize_mode": "1",
	}, implicit.Values())
}

func TestResizeMode_String(t *testing.T) {
	assert.Equal(t, "scaled-fit", ResizeScaledFit.String())
	assert.Equal(t, "scaled-crop", ResizeScaledCrop.String())
	assert.Equal(t, "stretch", ResizeStretch.String())
	assert.Equal(t, "unknown", ResizeMode(0).String())
	assert.False(t, ResizeMode(0).Valid())
}
