package loader

import (
	"os"
	"path/filepath"
	"testing"

	"echelon/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSeedYAML(t *testing.T) {
	path := writeFile(t, "seed.yaml", `
teams:
  - id: 1
    name: HQ
    echelon: Battalion
    subordinates:
      - id: 2
        name: Alpha
        echelon: Company
        raw_data:
          - content: fuel low
`)

	fragment, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, fragment.Teams, 2)
	assert.Len(t, fragment.RawData, 1)
}

func TestLoadSeedJSON(t *testing.T) {
	path := writeFile(t, "seed.json", `{"teams":[{"team_id":1,"team_name":"HQ"},{"team_id":2,"team_name":"Alpha","parent_team_id":1}]}`)

	fragment, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, fragment.Teams, 2)
	parent, ok := fragment.Teams[1].Parent()
	assert.True(t, ok)
	assert.Equal(t, int64(1), parent)
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		fragment *domain.SeedFragment
		wantErr  bool
	}{
		{
			name:     "empty fragment",
			fragment: domain.NewSeedFragment(),
		},
		{
			name: "duplicate team",
			fragment: &domain.SeedFragment{Teams: []domain.Team{
				domain.NewTeam(1, "HQ", "", 0),
				domain.NewTeam(1, "HQ again", "", 0),
			}},
			wantErr: true,
		},
		{
			name:     "unnamed team",
			fragment: &domain.SeedFragment{Teams: []domain.Team{domain.NewTeam(1, "", "", 0)}},
			wantErr:  true,
		},
		{
			name:     "raw data without content",
			fragment: &domain.SeedFragment{RawData: []domain.RawData{{TeamID: 1}}},
			wantErr:  true,
		},
		{
			name:     "ccir without team",
			fragment: &domain.SeedFragment{CCIRs: []domain.CCIR{{Description: "x"}}},
			wantErr:  true,
		},
		{
			name:     "raw data for a team outside the fragment",
			fragment: &domain.SeedFragment{RawData: []domain.RawData{{TeamID: 7, Content: "ok"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fragment)
			if tt.wantErr {
				assert.True(t, domain.IsInvalidInput(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
