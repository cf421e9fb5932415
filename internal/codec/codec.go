// Package codec reads and writes seed fragments and renders views for
// terminal output.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"echelon/internal/domain"
)

// Importer interface for importing seed data from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.SeedFragment, error)
	Format() string
}

// Exporter interface for exporting seed data to various formats
type Exporter interface {
	Export(fragment *domain.SeedFragment, w io.Writer) error
	Format() string
}

// Codec both imports and exports seed data
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for "json" or "yaml"
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, domain.InvalidInput(fmt.Sprintf("unsupported seed format %q", format))
}

// ForPath picks a codec from a file extension, defaulting to YAML
func ForPath(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONCodec()
	}
	return NewYAMLCodec()
}
