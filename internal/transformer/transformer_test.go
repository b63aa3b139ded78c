package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaletteFor(t *testing.T) {
	tests := []struct {
		name     string
		mimetype string
		depth    int
		want     *Colormap
	}{
		{name: "gif true color clamps to 8 bits", mimetype: "image/gif", depth: 32, want: &Colormap{Colors: 256, Bitdepth: 8}},
		{name: "gif 4 bits", mimetype: "image/gif", depth: 4, want: &Colormap{Colors: 16, Bitdepth: 4}},
		{name: "png 8 bits", mimetype: "image/png", depth: 8, want: &Colormap{Colors: 256, Bitdepth: 8}},
		{name: "png monochrome", mimetype: "IMAGE/PNG", depth: 1, want: &Colormap{Colors: 2, Bitdepth: 1}},
		{name: "png true color", mimetype: "image/png", depth: 24, want: nil},
		{name: "jpeg never", mimetype: "image/jpeg", depth: 8, want: nil},
		{name: "webp never", mimetype: "image/webp", depth: 2, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaletteFor(tt.mimetype, tt.depth))
		})
	}
}
