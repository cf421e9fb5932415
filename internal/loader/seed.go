// Package loader reads seed files into fragments ready for import.
package loader

import (
	"bytes"
	"fmt"
	"os"

	"echelon/internal/codec"
	"echelon/internal/domain"
)

// LoadSeed loads a seed fragment from a file. ".json" files use the flat
// JSON layout; anything else is read as nested YAML.
func LoadSeed(path string) (*domain.SeedFragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fragment, err := ParseSeed(data, codec.ForPath(path).Format())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fragment, nil
}

// ParseSeed parses seed bytes in the given format and checks the result
func ParseSeed(data []byte, format string) (*domain.SeedFragment, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}

	fragment, err := c.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if err := Validate(fragment); err != nil {
		return nil, err
	}
	return fragment, nil
}

// Validate rejects missing or duplicate team ids and entries without a
// team. References to teams outside the fragment are left to the store.
func Validate(f *domain.SeedFragment) error {
	seen := make(map[int64]struct{}, len(f.Teams))
	for _, t := range f.Teams {
		if t.ID <= 0 {
			return domain.InvalidInput(fmt.Sprintf("team %q has no id", t.Name))
		}
		if _, dup := seen[t.ID]; dup {
			return domain.InvalidInput(fmt.Sprintf("team %d is listed twice", t.ID))
		}
		if t.Name == "" {
			return domain.InvalidInput(fmt.Sprintf("team %d has no name", t.ID))
		}
		seen[t.ID] = struct{}{}
	}

	for _, c := range f.CCIRs {
		if c.TeamID <= 0 {
			return domain.InvalidInput(fmt.Sprintf("ccir %q has no team", c.Description))
		}
		if c.Description == "" {
			return domain.InvalidInput(fmt.Sprintf("ccir of team %d has no description", c.TeamID))
		}
	}

	for _, r := range f.RawData {
		if r.TeamID <= 0 {
			return domain.InvalidInput("raw data has no team")
		}
		if r.Content == "" {
			return domain.InvalidInput(fmt.Sprintf("raw data of team %d has no content", r.TeamID))
		}
	}
	return nil
}
