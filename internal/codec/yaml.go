package codec

import (
	"fmt"
	"io"

	"echelon/internal/domain"
	"echelon/internal/hierarchy"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles the nested YAML seed layout, where each team lists its
// subordinates, CCIRs and observations inline
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlSeed represents the YAML structure for seed data
type yamlSeed struct {
	Teams []yamlTeam `yaml:"teams"`
}

type yamlTeam struct {
	ID           int64      `yaml:"id"`
	Name         string     `yaml:"name"`
	Echelon      string     `yaml:"echelon,omitempty"`
	CCIRs        []yamlCCIR `yaml:"ccirs,omitempty"`
	RawData      []yamlRaw  `yaml:"raw_data,omitempty"`
	Subordinates []yamlTeam `yaml:"subordinates,omitempty"`
}

type yamlCCIR struct {
	ID          int64    `yaml:"id,omitempty"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Active      *bool    `yaml:"active,omitempty"`
}

type yamlRaw struct {
	ID         int64  `yaml:"id,omitempty"`
	Content    string `yaml:"content"`
	SourceType string `yaml:"source_type,omitempty"`
}

// Parse imports seed data from YAML. Top-level teams are roots.
func (c *YAMLCodec) Parse(r io.Reader) (*domain.SeedFragment, error) {
	var ys yamlSeed
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&ys); err != nil {
		if err == io.EOF {
			return domain.NewSeedFragment(), nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fragment := domain.NewSeedFragment()
	for _, yt := range ys.Teams {
		if err := flattenTeam(fragment, yt, 0); err != nil {
			return nil, err
		}
	}
	return fragment, nil
}

func flattenTeam(f *domain.SeedFragment, yt yamlTeam, parentID int64) error {
	if yt.ID <= 0 {
		return domain.InvalidInput(fmt.Sprintf("team %q has no id", yt.Name))
	}
	f.AddTeam(domain.NewTeam(yt.ID, yt.Name, yt.Echelon, parentID))

	for _, yc := range yt.CCIRs {
		active := true
		if yc.Active != nil {
			active = *yc.Active
		}
		keywords := yc.Keywords
		if keywords == nil {
			keywords = make([]string, 0)
		}
		f.AddCCIR(domain.CCIR{
			ID:          yc.ID,
			TeamID:      yt.ID,
			Description: yc.Description,
			Keywords:    keywords,
			Active:      active,
		})
	}

	for _, yr := range yt.RawData {
		f.AddRawData(domain.RawData{
			ID:         yr.ID,
			TeamID:     yt.ID,
			Content:    yr.Content,
			SourceType: yr.SourceType,
		})
	}

	for _, sub := range yt.Subordinates {
		if err := flattenTeam(f, sub, yt.ID); err != nil {
			return err
		}
	}
	return nil
}

// Export exports seed data to YAML. Teams whose parent is not in the
// fragment are written as roots.
func (c *YAMLCodec) Export(fragment *domain.SeedFragment, w io.Writer) error {
	ccirs := make(map[int64][]yamlCCIR)
	for _, cc := range fragment.CCIRs {
		active := cc.Active
		ccirs[cc.TeamID] = append(ccirs[cc.TeamID], yamlCCIR{
			ID:          cc.ID,
			Description: cc.Description,
			Keywords:    cc.Keywords,
			Active:      &active,
		})
	}
	raws := make(map[int64][]yamlRaw)
	for _, r := range fragment.RawData {
		raws[r.TeamID] = append(raws[r.TeamID], yamlRaw{
			ID:         r.ID,
			Content:    r.Content,
			SourceType: r.SourceType,
		})
	}

	idx := hierarchy.NewTeamIndex(fragment.Teams)
	visited := make(map[int64]struct{})
	var build func(t domain.Team) yamlTeam
	build = func(t domain.Team) yamlTeam {
		visited[t.ID] = struct{}{}
		yt := yamlTeam{
			ID:      t.ID,
			Name:    t.Name,
			Echelon: t.EchelonLevel,
			CCIRs:   ccirs[t.ID],
			RawData: raws[t.ID],
		}
		for _, sub := range idx.Subordinates(t.ID) {
			if _, seen := visited[sub.ID]; seen {
				continue
			}
			yt.Subordinates = append(yt.Subordinates, build(sub))
		}
		return yt
	}

	ys := yamlSeed{Teams: make([]yamlTeam, 0)}
	for _, root := range idx.Roots() {
		ys.Teams = append(ys.Teams, build(root))
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ys); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

// WriteYAML writes any value as YAML
func WriteYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
