package service

import (
	"context"
	"testing"
	"time"

	"echelon/internal/domain"
	"echelon/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	regenerations []int
	invalidated   []int
}

func (r *recorded) RegenerationCompleted(created int, _ time.Duration) {
	r.regenerations = append(r.regenerations, created)
}

func (r *recorded) BulletPointsInvalidated(n int) {
	r.invalidated = append(r.invalidated, n)
}

// newTestServices wires both services to an in-memory store holding
// battalion(1) -> alpha(2) -> platoon(4) and battalion -> bravo(3)
func newTestServices(t *testing.T, opts ...ReportOption) (*ReportService, *SummaryService, *sqlite.Store, chan domain.Event) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed := domain.NewSeedFragment()
	seed.AddTeam(domain.NewTeam(1, "1st Battalion", "Battalion", 0))
	seed.AddTeam(domain.NewTeam(2, "Alpha", "Company", 1))
	seed.AddTeam(domain.NewTeam(3, "Bravo", "Company", 1))
	seed.AddTeam(domain.NewTeam(4, "1st Platoon", "Platoon", 2))
	require.NoError(t, store.ImportSeed(context.Background(), seed))

	bus := NewEventBus(nil)
	events := make(chan domain.Event, 256)
	bus.Subscribe(func(ev domain.Event) { events <- ev })

	return NewReportService(store, bus, opts...), NewSummaryService(store, bus), store, events
}

func drain(events chan domain.Event) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func createBullet(t *testing.T, svc *ReportService, teamID int64, content string, children ...int64) int64 {
	t.Helper()
	bp, err := svc.CreateBulletPoint(context.Background(), domain.NewBulletPoint{
		TeamID:   teamID,
		Content:  content,
		ChildBPs: children,
	})
	require.NoError(t, err)
	return bp.ID
}

func contents(bullets []domain.BulletPoint) []string {
	out := make([]string, 0, len(bullets))
	for _, bp := range bullets {
		out = append(out, bp.Content)
	}
	return out
}

// ============================================================================
// Teams, Raw Data and CCIRs
// ============================================================================

func TestEventBusDeliversEveryEventInOrder(t *testing.T) {
	bus := NewEventBus(nil)
	var first, second []domain.Event
	bus.Subscribe(func(ev domain.Event) { first = append(first, ev) })
	bus.Subscribe(func(ev domain.Event) { second = append(second, ev) })

	for i := int64(1); i <= 500; i++ {
		bus.Publish(domain.Event{Type: domain.EventBulletPointInvalidated, BulletPointID: i})
	}

	require.Len(t, first, 500)
	assert.Equal(t, first, second)
	for i, ev := range first {
		assert.Equal(t, int64(i+1), ev.BulletPointID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestCreateTeam(t *testing.T) {
	svc, _, _, events := newTestServices(t)
	ctx := context.Background()

	t.Run("blank name is rejected", func(t *testing.T) {
		_, err := svc.CreateTeam(ctx, domain.Team{Name: "   "})
		assert.True(t, domain.IsInvalidInput(err))
	})

	t.Run("team is created under its parent", func(t *testing.T) {
		team, err := svc.CreateTeam(ctx, domain.NewTeam(0, " Charlie ", "Company", 1))
		require.NoError(t, err)
		assert.Equal(t, "Charlie", team.Name)

		node, err := svc.TeamSubtree(ctx, 1)
		require.NoError(t, err)
		require.Len(t, node.Children, 3)
		assert.Equal(t, team.ID, node.Children[2].ID)

		evs := drain(events)
		require.Len(t, evs, 1)
		assert.Equal(t, domain.EventTeamCreated, evs[0].Type)
		assert.Equal(t, team.ID, evs[0].TeamID)
	})

	t.Run("subtree of unknown team", func(t *testing.T) {
		_, err := svc.TeamSubtree(ctx, 99)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestCreateRawDataSourceType(t *testing.T) {
	tests := []struct {
		name string
		opts []ReportOption
		in   string
		want string
	}{
		{name: "built-in default", want: domain.DefaultSourceType},
		{name: "configured default", opts: []ReportOption{WithDefaultSourceType("radio")}, want: "radio"},
		{name: "explicit wins", opts: []ReportOption{WithDefaultSourceType("radio")}, in: "patrol", want: "patrol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestServices(t, tt.opts...)
			raw, err := svc.CreateRawData(context.Background(), domain.NewRawData{
				TeamID:     4,
				Content:    "fuel at 40%",
				SourceType: tt.in,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw.SourceType)
		})
	}
}

func TestCreateRawDataRejects(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := svc.CreateRawData(ctx, domain.NewRawData{TeamID: 4, Content: " "})
	assert.True(t, domain.IsInvalidInput(err))

	_, err = svc.CreateRawData(ctx, domain.NewRawData{TeamID: 99, Content: "x"})
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateCCIRTrimsKeywords(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := svc.CreateCCIR(ctx, domain.CCIR{TeamID: 1})
	assert.True(t, domain.IsInvalidInput(err))

	created, err := svc.CreateCCIR(ctx, domain.CCIR{
		TeamID:      1,
		Description: "Sustainment status",
		Keywords:    []string{" fuel ", "", "ammo"},
		Active:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fuel", "ammo"}, created.Keywords)

	list, err := svc.ListTeamCCIRs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

// ============================================================================
// Bullet Points
// ============================================================================

func TestInvalidateLeavesSiblingsValid(t *testing.T) {
	svc, _, _, events := newTestServices(t, WithCascadeInvalidation(false))
	ctx := context.Background()

	a := createBullet(t, svc, 4, "fuel low")
	b := createBullet(t, svc, 4, "ammo green")
	parent := createBullet(t, svc, 2, "company status", a, b)
	drain(events)

	affected, err := svc.InvalidateBulletPoint(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{a}, affected)

	details, err := svc.GetBulletPointDetails(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, domain.ValidityInvalid, details.ValidityStatus)

	for _, id := range []int64{b, parent} {
		details, err := svc.GetBulletPointDetails(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ValidityValid, details.ValidityStatus, "bullet %d", id)
	}

	evs := drain(events)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventBulletPointInvalidated, evs[0].Type)
	assert.Equal(t, a, evs[0].BulletPointID)
	assert.Empty(t, evs[0].Affected)
}

func TestInvalidateCascadesToDerived(t *testing.T) {
	rec := &recorded{}
	svc, _, _, events := newTestServices(t, WithReportRecorder(rec))
	ctx := context.Background()

	a := createBullet(t, svc, 4, "fuel low")
	b := createBullet(t, svc, 4, "ammo green")
	company := createBullet(t, svc, 2, "alpha fuel low", a)
	battalion := createBullet(t, svc, 1, "battalion fuel low", company)
	other := createBullet(t, svc, 1, "battalion ammo green", b)
	drain(events)

	affected, err := svc.InvalidateBulletPoint(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{a, company, battalion}, affected)
	assert.Equal(t, []int{3}, rec.invalidated)

	for id, want := range map[int64]domain.ValidityStatus{
		a:         domain.ValidityInvalid,
		company:   domain.ValidityInvalid,
		battalion: domain.ValidityInvalid,
		b:         domain.ValidityValid,
		other:     domain.ValidityValid,
	} {
		details, err := svc.GetBulletPointDetails(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, details.ValidityStatus, "bullet %d", id)
	}

	evs := drain(events)
	require.Len(t, evs, 1)
	assert.Equal(t, []int64{company, battalion}, evs[0].Affected)
}

func TestInvalidateUnknownBulletPoint(t *testing.T) {
	svc, _, _, events := newTestServices(t)

	_, err := svc.InvalidateBulletPoint(context.Background(), 404)
	assert.True(t, domain.IsNotFound(err))
	assert.Empty(t, drain(events))
}

func TestLinkBulletPoints(t *testing.T) {
	svc, _, _, events := newTestServices(t)
	ctx := context.Background()

	a := createBullet(t, svc, 4, "fuel low")
	company := createBullet(t, svc, 2, "alpha fuel low", a)
	battalion := createBullet(t, svc, 1, "battalion summary")
	drain(events)

	t.Run("self link", func(t *testing.T) {
		err := svc.LinkBulletPoints(ctx, domain.Link{ParentID: a, ChildID: a})
		assert.True(t, domain.IsInvalidInput(err))
	})

	t.Run("link is recorded", func(t *testing.T) {
		require.NoError(t, svc.LinkBulletPoints(ctx, domain.Link{ParentID: battalion, ChildID: company}))

		details, err := svc.GetBulletPointDetails(ctx, battalion)
		require.NoError(t, err)
		assert.Equal(t, []int64{company}, details.ChildBulletPoints)

		evs := drain(events)
		require.Len(t, evs, 1)
		assert.Equal(t, domain.EventBulletPointsLinked, evs[0].Type)
		assert.Equal(t, battalion, evs[0].BulletPointID)
		assert.Equal(t, company, evs[0].ChildID)
	})

	t.Run("cycle is rejected", func(t *testing.T) {
		err := svc.LinkBulletPoints(ctx, domain.Link{ParentID: a, ChildID: battalion})
		require.True(t, domain.IsCycleDetected(err))

		var derr *domain.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, []int64{a, battalion, company, a}, derr.Cycle)
		assert.Empty(t, drain(events))
	})

	t.Run("unknown child", func(t *testing.T) {
		err := svc.LinkBulletPoints(ctx, domain.Link{ParentID: battalion, ChildID: 404})
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestSourcePath(t *testing.T) {
	links := []domain.Link{
		{ParentID: 1, ChildID: 2},
		{ParentID: 2, ChildID: 3},
		{ParentID: 1, ChildID: 4},
	}

	assert.Equal(t, []int64{1, 2, 3}, sourcePath(links, 1, 3))
	assert.Equal(t, []int64{4}, sourcePath(links, 4, 4))
	assert.Nil(t, sourcePath(links, 3, 1))
}

// ============================================================================
// Hierarchy Views
// ============================================================================

func TestTeamScopedViews(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	ctx := context.Background()

	a := createBullet(t, svc, 4, "fuel low")
	b := createBullet(t, svc, 4, "ammo green")
	company := createBullet(t, svc, 2, "alpha status", a, b)
	bravo := createBullet(t, svc, 3, "bravo status")

	t.Run("flat list of one team", func(t *testing.T) {
		list, err := svc.TeamBulletPoints(ctx, 2, false)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, company, list[0].ID)
	})

	t.Run("flat list with subordinates", func(t *testing.T) {
		list, err := svc.TeamBulletPoints(ctx, 2, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"fuel low", "ammo green", "alpha status"}, contents(list))
	})

	t.Run("hierarchy with subordinates nests", func(t *testing.T) {
		forest, err := svc.TeamHierarchy(ctx, 2, true)
		require.NoError(t, err)
		require.Len(t, forest, 1)
		assert.Equal(t, company, forest[0].ID)
		assert.Equal(t, []string{"fuel low", "ammo green"}, contents(forest[0].Children))
	})

	t.Run("hierarchy of a leaf team", func(t *testing.T) {
		forest, err := svc.TeamHierarchy(ctx, 4, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"fuel low", "ammo green"}, contents(forest))
	})

	t.Run("full hierarchy", func(t *testing.T) {
		forest, err := svc.Hierarchy(ctx)
		require.NoError(t, err)
		require.Len(t, forest, 2)
		assert.Equal(t, company, forest[0].ID)
		assert.Equal(t, bravo, forest[1].ID)
	})

	t.Run("unknown team", func(t *testing.T) {
		_, err := svc.TeamHierarchy(ctx, 99, true)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestImportSeedPublishes(t *testing.T) {
	svc, _, _, events := newTestServices(t)
	ctx := context.Background()

	assert.True(t, domain.IsInvalidInput(svc.ImportSeed(ctx, nil)))

	seed := domain.NewSeedFragment()
	seed.AddTeam(domain.NewTeam(5, "2nd Platoon", "Platoon", 2))
	require.NoError(t, svc.ImportSeed(ctx, seed))

	teams, err := svc.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 5)

	evs := drain(events)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventSeedReloaded, evs[0].Type)
}

func TestExportSeedRoundTrips(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := svc.CreateCCIR(ctx, domain.CCIR{TeamID: 2, Description: "Fuel", Keywords: []string{"fuel"}, Active: true})
	require.NoError(t, err)
	_, err = svc.CreateRawData(ctx, domain.NewRawData{TeamID: 4, Content: "Fuel at 40 percent"})
	require.NoError(t, err)

	seed, err := svc.ExportSeed(ctx)
	require.NoError(t, err)
	assert.Len(t, seed.Teams, 4)
	require.Len(t, seed.CCIRs, 1)
	assert.Equal(t, int64(2), seed.CCIRs[0].TeamID)
	require.Len(t, seed.RawData, 1)
	assert.Equal(t, "sitrep", seed.RawData[0].SourceType)

	// Importing the export again changes nothing
	require.NoError(t, svc.ImportSeed(ctx, seed))
	again, err := svc.ExportSeed(ctx)
	require.NoError(t, err)
	assert.Len(t, again.CCIRs, 1)
	assert.Len(t, again.RawData, 1)
}
