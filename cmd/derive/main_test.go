package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mediavfs/internal/app"
	"mediavfs/internal/config"
	"mediavfs/internal/errcode"
	"mediavfs/internal/mimetype"
	"mediavfs/internal/transformation"
	"mediavfs/internal/transformer"
	"mediavfs/internal/vfs"
)

type labelFactory struct{}

func (labelFactory) New() (transformer.Transformer, error) { return &labelTransformer{}, nil }

func (labelFactory) ColormapForDepth(string, int) *transformer.Colormap { return nil }

type labelTransformer struct {
	source string
	mode   transformation.ResizeMode
	width  int
	height int
}

func (t *labelTransformer) Capabilities() transformer.Capabilities {
	return transformer.Capabilities{Transformation: true}
}

func (t *labelTransformer) OpenSource(url string) error {
	t.source = url
	return nil
}

func (t *labelTransformer) SetMimetype(string) {}
func (t *labelTransformer) SetResizeMode(mode transformation.ResizeMode) { t.mode = mode }
func (t *labelTransformer) SetColormap(*transformer.Colormap) {}
func (t *labelTransformer) SetTargetSize(width, height int) { t.width, t.height = width, height }
func (t *labelTransformer) Run() error { return nil }
func (t *labelTransformer) Close() {}
func (t *labelTransformer) Output() []byte {
	return []byte(fmt.Sprintf("%s %dx%d %s", t.source, t.width, t.height, t.mode))
}

func testEngine(*config.Config, *zap.Logger) (app.TransformerFactory, func()) {
	return func(vfs.Resolver, mimetype.Registry) transformer.Factory { return labelFactory{} }, func() {}
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.jpg"), []byte("jpeg"), 0o644))
	t.Setenv("CACHE", "memory")
	t.Setenv("MIME_TYPES_FILE", "")
	return dir
}

func TestRun_SourcePath(t *testing.T) {
	dir := setup(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--data-dir", dir, "--mimetype", "image/png", "--width", "64", "--height", "32", "--resize-mode", "stretch", "cat.jpg"}, &stdout, &stderr, testEngine)
	require.NoError(t, err, stderr.String())

	assert.Equal(t, "file:///cat.jpg 64x32 stretch", stdout.String())
	assert.Equal(t,
		"x-media-transformed-image:///file%3A///cat.jpg?depth=32&height=32&mimetype=image%2Fpng&resize_mode=3&width=64",
		strings.TrimSpace(stderr.String()),
	)
}

func TestRun_URLToFile(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(t.TempDir(), "cat.webp")

	var stdout, stderr bytes.Buffer
	url := "x-media-transformed-image:///file%3A///cat.jpg?mimetype=image%2Fwebp&width=10&height=10"
	require.NoError(t, run([]string{"--data-dir", dir, "--url", url, "-o", out}, &stdout, &stderr, testEngine))

	assert.Empty(t, stdout.String())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "file:///cat.jpg 10x10 scaled-fit", string(data))
}

func TestRun_Info(t *testing.T) {
	dir := setup(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--data-dir", dir, "--mimetype", "image/jpg", "--width", "5", "--height", "5", "--info", "cat.jpg"}, &stdout, &stderr, testEngine))

	var info map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &info))
	assert.Equal(t, "image/jpeg", info["mimetype"])
	assert.Equal(t, "file:///cat.jpg", info["source"])
	assert.NotEmpty(t, info["digest"])
}

func TestRun_Errors(t *testing.T) {
	dir := setup(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{name: "no source", args: []string{"--data-dir", dir}, code: string(errcode.InvalidArgument)},
		{name: "url and path", args: []string{"--data-dir", dir, "--url", "x-media-transformed-image:///a", "cat.jpg"}, code: string(errcode.InvalidArgument)},
		{name: "missing size", args: []string{"--data-dir", dir, "--mimetype", "image/png", "cat.jpg"}, code: string(errcode.InvalidArgument)},
		{name: "not an image", args: []string{"--data-dir", dir, "--mimetype", "text/plain", "--width", "1", "--height", "1", "cat.jpg"}, code: string(errcode.UnsupportedType)},
		{name: "missing file", args: []string{"--data-dir", dir, "--mimetype", "image/png", "--width", "1", "--height", "1", "dog.jpg"}, code: string(errcode.SourceUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, &stdout, &stderr, testEngine)
			require.Error(t, err)
			assert.Equal(t, tt.code, string(errcode.Of(err)))
		})
	}
}

func TestResizeModeFlag(t *testing.T) {
	var f resizeModeFlag
	require.NoError(t, f.Set("scaled-crop"))
	assert.Equal(t, "scaled-crop", f.String())
	require.NoError(t, f.Set("3"))
	assert.Equal(t, resizeModeFlag(transformation.ResizeStretch), f)
	assert.Error(t, f.Set("zoom"))
	assert.Equal(t, "mode", f.Type())
}
