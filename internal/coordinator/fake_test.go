package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"echelon/internal/domain"
	"echelon/internal/hierarchy"
)

// fakeService is an in-memory DataService recording calls per operation
type fakeService struct {
	mu      sync.Mutex
	teams   []domain.Team
	bullets map[int64]domain.BulletPointDetails
	nextID  int64
	calls   map[string]int
	errs    map[string]error

	// detailsHook runs after GetBulletPointDetails has read the store and
	// before it answers
	detailsHook func(id int64)
}

func newFakeService() *fakeService {
	return &fakeService{
		teams: []domain.Team{
			domain.NewTeam(1, "1st Battalion", "Battalion", 0),
			domain.NewTeam(2, "Alpha", "Company", 1),
			domain.NewTeam(3, "Bravo", "Company", 1),
			domain.NewTeam(4, "1st Platoon", "Platoon", 2),
		},
		bullets: make(map[int64]domain.BulletPointDetails),
		nextID:  100,
		calls:   make(map[string]int),
		errs:    make(map[string]error),
	}
}

func (f *fakeService) addBullet(id, team int64, content string, children ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bullets[id] = domain.BulletPointDetails{
		ID:                id,
		TeamID:            team,
		Content:           content,
		ValidityStatus:    domain.ValidityValid,
		ChildBulletPoints: children,
		ChildRawData:      []int64{},
	}
}

func (f *fakeService) setContent(id int64, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.bullets[id]
	d.Content = content
	f.bullets[id] = d
}

func (f *fakeService) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *fakeService) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeService) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *fakeService) ListTeams(context.Context) ([]domain.Team, error) {
	if err := f.enter("ListTeams"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Team(nil), f.teams...), nil
}

func (f *fakeService) GetHierarchy(context.Context) ([]domain.BulletPoint, error) {
	if err := f.enter("GetHierarchy"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.bullets))
	for id := range f.bullets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	flat := make([]domain.BulletPoint, 0, len(ids))
	links := make([]domain.Link, 0)
	for _, id := range ids {
		d := f.bullets[id]
		flat = append(flat, d.BulletPoint())
		for _, child := range d.ChildBulletPoints {
			links = append(links, domain.Link{ParentID: id, ChildID: child})
		}
	}
	return hierarchy.Assemble(flat, links), nil
}

func (f *fakeService) GetTeamHierarchy(ctx context.Context, teamID int64, _ bool) ([]domain.BulletPoint, error) {
	forest, err := f.GetHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.CollectForTeam(forest, teamID), nil
}

func (f *fakeService) GetBulletPointDetails(_ context.Context, id int64) (domain.BulletPointDetails, error) {
	if err := f.enter("GetBulletPointDetails"); err != nil {
		return domain.BulletPointDetails{}, err
	}
	f.mu.Lock()
	d, ok := f.bullets[id]
	f.mu.Unlock()
	if f.detailsHook != nil {
		f.detailsHook(id)
	}
	if !ok {
		return domain.BulletPointDetails{}, domain.NotFound("bullet point %d", id)
	}
	return d, nil
}

func (f *fakeService) CreateRawData(_ context.Context, in domain.NewRawData) (domain.RawDataCreated, error) {
	if err := f.enter("CreateRawData"); err != nil {
		return domain.RawDataCreated{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return domain.RawDataCreated{ID: f.nextID, Message: "raw data created"}, nil
}

func (f *fakeService) CreateBulletPoint(_ context.Context, in domain.NewBulletPoint) (int64, error) {
	if err := f.enter("CreateBulletPoint"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.bullets[f.nextID] = domain.BulletPointDetails{
		ID:                f.nextID,
		TeamID:            in.TeamID,
		Content:           in.Content,
		ValidityStatus:    domain.ValidityValid,
		ChildBulletPoints: in.ChildBPs,
		ChildRawData:      in.ChildRaws,
	}
	return f.nextID, nil
}

func (f *fakeService) LinkBulletPoints(_ context.Context, parentID, childID int64) (string, error) {
	if err := f.enter("LinkBulletPoints"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.bullets[parentID]
	if !ok {
		return "", domain.NotFound("bullet point %d", parentID)
	}
	d.ChildBulletPoints = append(append([]int64(nil), d.ChildBulletPoints...), childID)
	f.bullets[parentID] = d
	return "linked", nil
}

func (f *fakeService) InvalidateBulletPoint(_ context.Context, bpID int64) (string, error) {
	if err := f.enter("InvalidateBulletPoint"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.bullets[bpID]
	if !ok {
		return "", domain.NotFound("bullet point %d", bpID)
	}
	d.ValidityStatus = domain.ValidityInvalid
	f.bullets[bpID] = d
	return fmt.Sprintf("bullet point %d invalidated", bpID), nil
}

func (f *fakeService) RegenerateSummaries(_ context.Context, keyword string) (domain.RegenerateResult, error) {
	if err := f.enter("RegenerateSummaries"); err != nil {
		return domain.RegenerateResult{}, err
	}
	return domain.RegenerateResult{Keyword: keyword, Message: "summaries regenerated"}, nil
}
