package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"echelon/internal/domain"
)

// JSONCodec reads and writes the flat seed layout. Unknown keys are
// rejected so a misspelled field fails the import instead of vanishing.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (c *JSONCodec) Format() string { return "json" }

func (c *JSONCodec) Parse(r io.Reader) (*domain.SeedFragment, error) {
	fragment := domain.NewSeedFragment()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(fragment); err != nil {
		return nil, domain.InvalidInput(fmt.Sprintf("seed json: %v", err))
	}
	return fragment, nil
}

func (c *JSONCodec) Export(fragment *domain.SeedFragment, w io.Writer) error {
	return WriteJSON(w, fragment)
}

// WriteJSON writes v as two-space indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
