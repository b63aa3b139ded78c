package querycodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SortsKeys(t *testing.T) {
	got := Encode(map[string]string{
		"mimetype": "image/png",
		"width":    "100",
		"height":   "50",
	})

	assert.Equal(t, "height=50&mimetype=image%2Fpng&width=100", got)
}

func TestEncode_IndependentOfInsertionOrder(t *testing.T) {
	a := map[string]string{}
	a["width"] = "640"
	a["depth"] = "8"
	a["mimetype"] = "image/gif"

	b := map[string]string{}
	b["mimetype"] = "image/gif"
	b["depth"] = "8"
	b["width"] = "640"

	assert.Equal(t, Encode(a), Encode(b))
}

func TestEncode_Escaping(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{name: "empty", values: map[string]string{}, want: ""},
		{name: "space as plus", values: map[string]string{"a b": "c d"}, want: "a+b=c+d"},
		{name: "reserved", values: map[string]string{"k": "a&b=c+d"}, want: "k=a%26b%3Dc%2Bd"},
		{name: "unreserved kept", values: map[string]string{"k": "A-z_0.9~"}, want: "k=A-z_0.9~"},
		{name: "utf8", values: map[string]string{"k": "ä"}, want: "k=%C3%A4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.values))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{name: "empty", text: "", want: map[string]string{}},
		{name: "simple", text: "a=1&b=2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "splits on first equals", text: "a=1=2", want: map[string]string{"a": "1=2"}},
		{name: "missing equals", text: "flag&a=1", want: map[string]string{"flag": "", "a": "1"}},
		{name: "empty segments", text: "&&a=1&", want: map[string]string{"a": "1"}},
		{name: "plus and escapes", text: "a+b=image%2Fpng", want: map[string]string{"a b": "image/png"}},
		{name: "last wins", text: "w=1&w=2&w=3", want: map[string]string{"w": "3"}},
		{name: "bad escape kept raw", text: "a=%zz", want: map[string]string{"a": "%zz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.text))
		})
	}
}

func TestDecodeEncode_RoundTrip(t *testing.T) {
	inputs := []map[string]string{
		{},
		{"": ""},
		{"mimetype": "image/png", "width": "100", "height": "50"},
		{"k": "a&b=c+d e%f"},
		{"päth": "/photos/ümlaut 1.jpg", "x": ""},
	}

	for _, m := range inputs {
		encoded := Encode(m)
		decoded := Decode(encoded)
		require.Equal(t, m, decoded)
		require.Equal(t, encoded, Encode(decoded))
	}
}

func TestEscapePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "file:///photos/a.jpg", want: "file%3A///photos/a.jpg"},
		{in: "a b/c+d", want: "a%20b/c%2Bd"},
		{in: "/", want: "/"},
		{in: "x?y#z", want: "x%3Fy%23z"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapePath(tt.in), tt.in)
	}
}
