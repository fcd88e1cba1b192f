// Package prompt holds the embedded prompt templates for classification,
// extraction, audit passes and programme discovery.
package prompt

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"perfaudit/internal/domain"
)

// ChunkPlaceholder is replaced with each chunk's text by the chunked processor.
const ChunkPlaceholder = "{chunk}"

//go:embed templates/*.tmpl
var templateFS embed.FS

// Set is a parsed collection of prompt templates.
type Set struct {
	tmpl    *template.Template
	version string
}

// Load parses the embedded templates.
func Load() (*Set, error) {
	tmpl, err := template.New("prompts").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}

	version, err := digestTemplates()
	if err != nil {
		return nil, err
	}
	return &Set{tmpl: tmpl, version: version}, nil
}

// MustLoad is Load for package-level initialisation and tests.
func MustLoad() *Set {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Render executes the named template ("classify", "audit_consistency", ...).
func (s *Set) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Extraction renders the chunk-level template for kind scoped to programme.
// The result still contains ChunkPlaceholder.
func (s *Set) Extraction(kind domain.ExtractionKind, programme string) (string, error) {
	name := "extract_" + strings.ReplaceAll(string(kind), "-", "_")
	return s.Render(name, struct{ Programme string }{programme})
}

// Version identifies the template sources; it changes whenever a template does.
func (s *Set) Version() string {
	return s.version
}

func digestTemplates() (string, error) {
	paths, err := fs.Glob(templateFS, "templates/*.tmpl")
	if err != nil {
		return "", err
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		data, err := templateFS.ReadFile(p)
		if err != nil {
			return "", err
		}
		h.Write([]byte(p))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)[:8]), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
}
