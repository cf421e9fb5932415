package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"echelon/internal/domain"
	"echelon/internal/handler"
	"echelon/internal/repository/sqlite"
	"echelon/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `teams:
  - id: 1
    name: 1st Battalion
    echelon: Battalion
    raw_data:
      - content: Fuel convoy delayed at checkpoint
    subordinates:
      - id: 2
        name: Alpha
        echelon: Company
        raw_data:
          - content: Fuel at 40 percent
      - id: 3
        name: Bravo
        echelon: Company
        raw_data:
          - content: Ammo resupply complete
`

type testEnv struct {
	config string
	db     string
	dir    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		config: filepath.Join(dir, "echelon.yaml"),
		db:     filepath.Join(dir, "echelon.db"),
		dir:    dir,
	}
	require.NoError(t, os.WriteFile(env.config, []byte("log:\n  format: console\n"), 0o644))
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e testEnv) local(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, append([]string{"--db", e.db}, args...)...)
	require.NoError(t, err, out)
	return out
}

func (e testEnv) seed(t *testing.T) {
	t.Helper()
	path := filepath.Join(e.dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSeed), 0o644))
	out := e.local(t, "seed", "import", path)
	assert.Contains(t, out, "Imported 3 teams")
}

func TestLocalRegenerateAndTrace(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out := env.local(t, "teams")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Bravo")

	out = env.local(t, "teams", "tree", "1")
	assert.Contains(t, out, "1st Battalion (Battalion) #1")
	assert.Contains(t, out, "  Alpha (Company) #2")

	out = env.local(t, "regenerate", "--ccir", "fuel")
	assert.NotEmpty(t, out)

	var forest []domain.BulletPoint
	out = env.local(t, "hierarchy", "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &forest))
	// Battalion summarizes Alpha's report and files its own
	require.Len(t, forest, 2)
	root := forest[0]
	assert.Equal(t, int64(1), root.TeamID)
	assert.NotEmpty(t, root.Children)

	var flat []domain.BulletPoint
	out = env.local(t, "hierarchy", "--flat", "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &flat))
	assert.Greater(t, len(flat), len(forest))
	for _, b := range flat {
		assert.Empty(t, b.Children)
	}

	out = env.local(t, "provenance", strconv.FormatInt(root.ID, 10))
	assert.Contains(t, out, "raw data:")
	assert.Contains(t, out, "cites raw data: ")
	assert.NotContains(t, out, "cites raw data: none")
	assert.NotContains(t, out, "Ammo")

	out = env.local(t, "team-view", "2")
	assert.Contains(t, out, "Fuel at 40 percent")

	out = env.local(t, "invalidate", strconv.FormatInt(root.ID, 10))
	assert.Contains(t, out, "invalidated")

	var details domain.BulletPointDetails
	out = env.local(t, "bullet", "show", strconv.FormatInt(root.ID, 10), "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &details))
	assert.Equal(t, domain.ValidityInvalid, details.ValidityStatus)
}

func TestLocalMutations(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out := env.local(t, "bullet", "create", "--team", "2", "--content", "Alpha holding")
	assert.Contains(t, out, "Created bullet point")

	var created struct {
		ID int64 `json:"bp_id"`
	}
	out = env.local(t, "bullet", "create", "--team", "1", "--content", "Battalion holding", "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	out = env.local(t, "link", strconv.FormatInt(created.ID, 10), "1")
	assert.Contains(t, out, "as a child of")

	_, err := env.run(t, "--db", env.db, "link", "1", strconv.FormatInt(created.ID, 10))
	assert.True(t, domain.IsCycleDetected(err), "got %v", err)

	out = env.local(t, "raw", "create", "--team", "3", "--content", "Bridge out")
	assert.Contains(t, out, "Created raw data")

	out = env.local(t, "ccir", "create", "--team", "1", "--description", "Bridges", "--keyword", "bridge")
	assert.Contains(t, out, "for team 1")

	out = env.local(t, "seed", "export", "-f", "json")
	var seed domain.SeedFragment
	require.NoError(t, json.Unmarshal([]byte(out), &seed))
	assert.Len(t, seed.Teams, 3)
	assert.Len(t, seed.CCIRs, 1)
	assert.Len(t, seed.RawData, 4)
}

func TestArgumentErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "--db", env.db, "provenance", "abc")
	assert.True(t, domain.IsInvalidInput(err))

	_, err = env.run(t, "--db", env.db, "-o", "xml", "teams")
	assert.True(t, domain.IsInvalidInput(err))

	_, err = env.run(t, "--db", env.db, "watch")
	assert.True(t, domain.IsInvalidInput(err))

	_, err = env.run(t, "--db", env.db, "provenance", "42")
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}

func TestRemoteTeams(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	seed := domain.NewSeedFragment()
	seed.AddTeam(domain.NewTeam(1, "1st Battalion", "Battalion", 0))
	seed.AddTeam(domain.NewTeam(2, "Alpha", "Company", 1))
	require.NoError(t, store.ImportSeed(context.Background(), seed))

	bus := service.NewEventBus(nil)
	api := handler.New(service.NewReportService(store, bus), service.NewSummaryService(store, bus), nil)
	srv := httptest.NewServer(handler.NewRouter(api, handler.RouterOptions{}))
	defer srv.Close()

	env := newTestEnv(t)
	out, err := env.run(t, "--server", srv.URL, "teams", "-o", "json")
	require.NoError(t, err)

	var teams []domain.Team
	require.NoError(t, json.Unmarshal([]byte(out), &teams))
	assert.Len(t, teams, 2)

	_, err = env.run(t, "--server", srv.URL, "bullet", "show", "9")
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}
