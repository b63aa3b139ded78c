// Package mimetype resolves mimetypes to their canonical definition and
// media class.
package mimetype

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/jmgilman/go/fs/core"
	"gopkg.in/yaml.v3"
)

// OctetStream is reported for content without a known mimetype.
const OctetStream = "application/octet-stream"

// ClassImage is the media class of raster image types.
const ClassImage = "image"

// Definition describes one known mimetype.
type Definition struct {
	Type       string   `yaml:"type"`
	Class      string   `yaml:"class"`
	Extensions []string `yaml:"extensions"`
	// Encodable marks image types the transformer can write. Other image
	// types are accepted as sources only.
	Encodable bool `yaml:"encodable"`
}

// Registry looks up mimetype definitions.
type Registry interface {
	Lookup(mimetype string) (Definition, bool)
}

// Table is a Registry backed by an in-memory table. It is safe for
// concurrent use.
type Table struct {
	mu         sync.RWMutex
	types      map[string]Definition
	aliases    map[string]string
	extensions map[string]string
}

var defaultDefinitions = []Definition{
	{Type: "image/jpeg", Class: ClassImage, Encodable: true, Extensions: []string{".jpg", ".jpeg", ".jpe"}},
	{Type: "image/png", Class: ClassImage, Encodable: true, Extensions: []string{".png"}},
	{Type: "image/gif", Class: ClassImage, Encodable: true, Extensions: []string{".gif"}},
	{Type: "image/webp", Class: ClassImage, Encodable: true, Extensions: []string{".webp"}},
	{Type: "image/tiff", Class: ClassImage, Encodable: true, Extensions: []string{".tif", ".tiff"}},
	{Type: "image/avif", Class: ClassImage, Extensions: []string{".avif"}},
	{Type: "image/heif", Class: ClassImage, Extensions: []string{".heic", ".heif"}},
	{Type: "image/bmp", Class: ClassImage, Extensions: []string{".bmp"}},
	{Type: "image/svg+xml", Class: ClassImage, Extensions: []string{".svg"}},
	{Type: "text/plain", Class: "text", Extensions: []string{".txt"}},
	{Type: "text/html", Class: "text", Extensions: []string{".html", ".htm"}},
	{Type: "application/json", Class: "application", Extensions: []string{".json"}},
	{Type: "application/pdf", Class: "document", Extensions: []string{".pdf"}},
	{Type: "video/mp4", Class: "video", Extensions: []string{".mp4"}},
	{Type: "audio/mpeg", Class: "audio", Extensions: []string{".mp3"}},
	{Type: OctetStream, Class: "application"},
}

var defaultAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
	"image/tif":   "image/tiff",
}

// NewTable returns a Table preloaded with the built-in definitions.
func NewTable() *Table {
	t := &Table{
		types:      make(map[string]Definition),
		aliases:    make(map[string]string),
		extensions: make(map[string]string),
	}
	for _, def := range defaultDefinitions {
		t.Add(def)
	}
	for alias, target := range defaultAliases {
		t.aliases[alias] = target
	}
	return t
}

// Add registers def, replacing any definition of the same type.
func (t *Table) Add(def Definition) {
	def.Type = normalize(def.Type)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.types[def.Type] = def
	for _, ext := range def.Extensions {
		t.extensions[strings.ToLower(ext)] = def.Type
	}
}

// Lookup returns the definition for mimetype. Parameters such as charset are
// ignored and aliases resolve to their canonical type.
func (t *Table) Lookup(mimetype string) (Definition, bool) {
	key := normalize(mimetype)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if target, ok := t.aliases[key]; ok {
		key = target
	}
	def, ok := t.types[key]
	return def, ok
}

// ByExtension returns the definition registered for the extension of name.
func (t *Table) ByExtension(name string) (Definition, bool) {
	ext := strings.ToLower(path.Ext(name))

	t.mu.RLock()
	typ, ok := t.extensions[ext]
	t.mu.RUnlock()

	if !ok {
		return Definition{}, false
	}
	return t.Lookup(typ)
}

type fileFormat struct {
	Types   []Definition      `yaml:"types"`
	Aliases map[string]string `yaml:"aliases"`
}

// LoadFile merges the YAML definitions stored at name into the table.
func (t *Table) LoadFile(fsys core.ReadFS, name string) error {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read mimetype file: %w", err)
	}

	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse mimetype file: %w", err)
	}

	for _, def := range parsed.Types {
		if def.Type == "" {
			return fmt.Errorf("mimetype file %s: definition without type", name)
		}
		t.Add(def)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for alias, target := range parsed.Aliases {
		t.aliases[normalize(alias)] = normalize(target)
	}

	return nil
}

// TypeOf returns the canonical type for mimetype, or OctetStream.
func TypeOf(r Registry, mimetype string) string {
	if def, ok := r.Lookup(mimetype); ok {
		return def.Type
	}
	return OctetStream
}

func normalize(mimetype string) string {
	if mediaType, _, err := mime.ParseMediaType(mimetype); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(mimetype))
}
