package client

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"echelon/internal/coordinator"
	"echelon/internal/domain"
	"echelon/internal/handler"
	"echelon/internal/hub"
	"echelon/internal/repository/sqlite"
	"echelon/internal/service"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer runs the full HTTP API over an in-memory store holding
// battalion(1) -> alpha(2) -> platoon(4) and battalion -> bravo(3)
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed := domain.NewSeedFragment()
	seed.AddTeam(domain.NewTeam(1, "1st Battalion", "Battalion", 0))
	seed.AddTeam(domain.NewTeam(2, "Alpha", "Company", 1))
	seed.AddTeam(domain.NewTeam(3, "Bravo", "Company", 1))
	seed.AddTeam(domain.NewTeam(4, "1st Platoon", "Platoon", 2))
	seed.AddRawData(domain.RawData{ID: 1, TeamID: 4, Content: "Fuel at 40 percent", SourceType: "sitrep"})
	seed.AddRawData(domain.RawData{ID: 2, TeamID: 3, Content: "Fuel resupply delayed", SourceType: "sitrep"})
	require.NoError(t, store.ImportSeed(context.Background(), seed))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.New(nil)
	go h.Run(ctx)

	bus := service.NewEventBus(nil)
	bus.Subscribe(h.Broadcast)

	api := handler.New(service.NewReportService(store, bus), service.NewSummaryService(store, bus), nil)
	srv := httptest.NewServer(handler.NewRouter(api, handler.RouterOptions{Events: h}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(baseURL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	assert.True(t, domain.IsInvalidInput(err))
}

func TestClient_BulletPointLifecycle(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	teams, err := c.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 4)

	raw, err := c.CreateRawData(ctx, domain.NewRawData{TeamID: 4, Content: "Ammo low"})
	require.NoError(t, err)
	assert.NotZero(t, raw.ID)

	child, err := c.CreateBulletPoint(ctx, domain.NewBulletPoint{TeamID: 4, Content: "Platoon short on ammo", ChildRaws: []int64{raw.ID}})
	require.NoError(t, err)
	parent, err := c.CreateBulletPoint(ctx, domain.NewBulletPoint{TeamID: 2, Content: "Alpha needs resupply"})
	require.NoError(t, err)

	msg, err := c.LinkBulletPoints(ctx, parent, child)
	require.NoError(t, err)
	assert.Contains(t, msg, "as a child of")

	details, err := c.GetBulletPointDetails(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, []int64{child}, details.ChildBulletPoints)

	forest, err := c.GetHierarchy(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, parent, forest[0].ID)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, child, forest[0].Children[0].ID)

	scoped, err := c.GetTeamHierarchy(ctx, 4, false)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, child, scoped[0].ID)

	_, err = c.InvalidateBulletPoint(ctx, child)
	require.NoError(t, err)
	details, err = c.GetBulletPointDetails(ctx, child)
	require.NoError(t, err)
	assert.Equal(t, domain.ValidityInvalid, details.ValidityStatus)
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.GetBulletPointDetails(ctx, 999)
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	_, err = c.CreateBulletPoint(ctx, domain.NewBulletPoint{TeamID: 1})
	assert.True(t, domain.IsInvalidInput(err), "got %v", err)

	a, err := c.CreateBulletPoint(ctx, domain.NewBulletPoint{TeamID: 2, Content: "a"})
	require.NoError(t, err)
	b, err := c.CreateBulletPoint(ctx, domain.NewBulletPoint{TeamID: 1, Content: "b", ChildBPs: []int64{a}})
	require.NoError(t, err)
	_, err = c.LinkBulletPoints(ctx, a, b)
	assert.True(t, domain.IsCycleDetected(err), "got %v", err)

	assert.Equal(t, "closed", c.BreakerState())
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, WithTimeout(time.Second))
	_, err := c.ListTeams(context.Background())
	assert.True(t, domain.IsRequestFailed(err), "got %v", err)
}

func TestClient_ServerErrorIsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to load hierarchy","details":"disk I/O error"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetHierarchy(context.Background())
	require.True(t, domain.IsRequestFailed(err), "got %v", err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithBreaker(BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.ListTeams(ctx)
		require.True(t, domain.IsRequestFailed(err))
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.ListTeams(ctx)
	assert.True(t, domain.IsRequestFailed(err))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithBreaker(BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}))

	for i := 0; i < 5; i++ {
		_, err := c.GetBulletPointDetails(context.Background(), 7)
		require.True(t, domain.IsNotFound(err))
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestClient_Subscribe(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	id, err := c.CreateBulletPoint(ctx, domain.NewBulletPoint{TeamID: 3, Content: "Bravo fuel critical"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, domain.EventBulletPointCreated, ev.Type)
		assert.Equal(t, id, ev.BulletPointID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}
}

func TestClient_DrivesCoordinator(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	coord := coordinator.New(c)

	result, err := coord.Regenerate(ctx, "fuel")
	require.NoError(t, err)
	assert.Positive(t, result.Created)

	forest, err := coord.Hierarchy(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, forest)

	root := forest[0].ID
	tree, err := coord.Provenance(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root, tree.Details.ID)
	assert.NotEmpty(t, tree.RawDataIDs())
}

func TestClient_SeedRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	seed := domain.NewSeedFragment()
	seed.AddTeam(domain.NewTeam(20, "Delta", "Company", 1))
	seed.AddCCIR(domain.CCIR{TeamID: 20, Description: "Casualties", Keywords: []string{"casualty"}, Active: true})

	msg, err := c.ImportSeed(ctx, seed)
	require.NoError(t, err)
	assert.Contains(t, msg, "Imported 1 teams")

	exported, err := c.ExportSeed(ctx)
	require.NoError(t, err)
	assert.Len(t, exported.Teams, 5)
	require.Len(t, exported.CCIRs, 1)
	assert.Equal(t, []string{"casualty"}, exported.CCIRs[0].Keywords)
	assert.Len(t, exported.RawData, 2)

	node, err := c.TeamSubtree(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, node.Children, 3)
}

func TestReadEvents_ResyncsOnGap(t *testing.T) {
	stream := strings.Join([]string{
		": connected abc",
		"",
		"id: 4",
		"event: team_created",
		`data: {"type":"team_created","team_id":9}`,
		"",
		": keepalive",
		"",
		"id: 7",
		"event: raw_data_created",
		`data: {"type":"raw_data_created","raw_data_id":3}`,
		"",
		"id: 8",
		`data: not json`,
		"",
	}, "\n")

	c := newTestClient(t, "http://localhost:8000")
	out := make(chan domain.Event, 8)
	c.readEvents(context.Background(), bufio.NewScanner(strings.NewReader(stream)), out)
	close(out)

	var types []domain.EventType
	for ev := range out {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventTeamCreated,
		domain.EventSeedReloaded,
		domain.EventRawDataCreated,
	}, types)
}
