package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
)

type mockRepo struct {
	mu     sync.Mutex
	floors map[uuid.UUID]*Floor
	wards  map[uuid.UUID]*Ward
	rooms  map[uuid.UUID]*Room
	beds   map[uuid.UUID]*Bed

	// onGetBed fires after a read returns, to interleave a concurrent
	// writer between the service's read and its write.
	onGetBed func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		floors: make(map[uuid.UUID]*Floor),
		wards:  make(map[uuid.UUID]*Ward),
		rooms:  make(map[uuid.UUID]*Room),
		beds:   make(map[uuid.UUID]*Bed),
	}
}

func (m *mockRepo) CreateFloor(_ context.Context, f *Floor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.floors {
		if existing.Name == f.Name {
			return apperr.New(apperr.CodeDuplicateResource, "floor %q already exists", f.Name)
		}
	}
	f.ID = uuid.New()
	m.floors[f.ID] = f
	return nil
}

func (m *mockRepo) ListFloors(_ context.Context) ([]*Floor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Floor
	for _, f := range m.floors {
		out = append(out, f)
	}
	return out, nil
}

func (m *mockRepo) CreateWard(_ context.Context, w *Ward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uuid.New()
	m.wards[w.ID] = w
	return nil
}

func (m *mockRepo) ListWards(_ context.Context) ([]*Ward, error) { return nil, nil }

func (m *mockRepo) WardExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.wards[id]
	return ok, nil
}

func (m *mockRepo) CreateRoom(_ context.Context, r *Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	m.rooms[r.ID] = r
	return nil
}

func (m *mockRepo) ListRooms(_ context.Context, _ *uuid.UUID) ([]*Room, error) { return nil, nil }

func (m *mockRepo) RoomExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[id]
	return ok, nil
}

func (m *mockRepo) CreateBed(_ context.Context, b *Bed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.beds {
		if existing.Number == b.Number && sameParent(existing, b) {
			return apperr.New(apperr.CodeDuplicateResource, "bed %q already exists under this parent", b.Number)
		}
	}
	b.ID = uuid.New()
	cp := *b
	m.beds[b.ID] = &cp
	return nil
}

func sameParent(a, b *Bed) bool {
	if a.WardID != nil && b.WardID != nil {
		return *a.WardID == *b.WardID
	}
	if a.RoomID != nil && b.RoomID != nil {
		return *a.RoomID == *b.RoomID
	}
	return false
}

func (m *mockRepo) GetBed(_ context.Context, id uuid.UUID) (*Bed, error) {
	m.mu.Lock()
	b, ok := m.beds[id]
	if !ok {
		m.mu.Unlock()
		return nil, apperr.New(apperr.CodeNotFound, "bed %s not found", id)
	}
	cp := *b
	m.mu.Unlock()
	if m.onGetBed != nil {
		m.onGetBed()
	}
	return &cp, nil
}

// claim marks a bed occupied the way the allocation coordinator would.
func (m *mockRepo) claim(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beds[id].Status = BedOccupied
}

func (m *mockRepo) ListBeds(_ context.Context, filter BedFilter, limit, offset int) ([]*Bed, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Bed
	for _, b := range m.beds {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateBed(_ context.Context, b *Bed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.beds[b.ID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "bed %s not found", b.ID)
	}
	cp := *b
	cp.Status = cur.Status // status only moves through SetStatusIfUnoccupied
	m.beds[b.ID] = &cp
	return nil
}

func (m *mockRepo) SetStatusIfUnoccupied(_ context.Context, id uuid.UUID, status BedStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[id]
	if !ok || b.Status == BedOccupied {
		return false, nil
	}
	b.Status = status
	return true, nil
}

func (m *mockRepo) DeleteBed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "bed %s not found", id)
	}
	if b.Status == BedOccupied {
		return apperr.New(apperr.CodeResourceOccupied, "bed %s is occupied", id)
	}
	delete(m.beds, id)
	return nil
}

func setup(t *testing.T) (*Service, *mockRepo, uuid.UUID) {
	t.Helper()
	repo := newMockRepo()
	svc := NewService(repo)

	w := &Ward{Name: "General Ward"}
	if err := svc.CreateWard(context.Background(), w); err != nil {
		t.Fatalf("create ward: %v", err)
	}
	return svc, repo, w.ID
}

func TestCreateBedUnderWard(t *testing.T) {
	svc, _, wardID := setup(t)

	b := &Bed{WardID: &wardID, Number: "B1"}
	if err := svc.CreateBed(context.Background(), b); err != nil {
		t.Fatalf("create bed: %v", err)
	}
	if b.Status != BedAvailable {
		t.Errorf("status = %s, want available", b.Status)
	}
	if b.Category != CategoryGeneral {
		t.Errorf("category = %s, want general default", b.Category)
	}
	if b.RateType != RateDaily {
		t.Errorf("rate_type = %s, want daily default", b.RateType)
	}
}

func TestCreateBedDuplicateNumberSameWard(t *testing.T) {
	svc, _, wardID := setup(t)
	ctx := context.Background()

	if err := svc.CreateBed(ctx, &Bed{WardID: &wardID, Number: "B1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := svc.CreateBed(ctx, &Bed{WardID: &wardID, Number: "B1"})
	if !apperr.Is(err, apperr.CodeDuplicateResource) {
		t.Errorf("error = %v, want duplicate_resource", err)
	}
}

func TestCreateBedParentXOR(t *testing.T) {
	svc, _, wardID := setup(t)
	ctx := context.Background()
	roomID := uuid.New()

	err := svc.CreateBed(ctx, &Bed{Number: "B1"})
	if !apperr.Is(err, apperr.CodeInvalidParent) {
		t.Errorf("no parent: error = %v, want invalid_parent", err)
	}

	err = svc.CreateBed(ctx, &Bed{WardID: &wardID, RoomID: &roomID, Number: "B1"})
	if !apperr.Is(err, apperr.CodeInvalidParent) {
		t.Errorf("both parents: error = %v, want invalid_parent", err)
	}
}

func TestCreateBedUnknownParent(t *testing.T) {
	svc, _, _ := setup(t)
	ghost := uuid.New()

	err := svc.CreateBed(context.Background(), &Bed{WardID: &ghost, Number: "B1"})
	if !apperr.Is(err, apperr.CodeInvalidParent) {
		t.Errorf("error = %v, want invalid_parent", err)
	}
}

func TestCreateRoomRequiresExistingWard(t *testing.T) {
	svc, _, _ := setup(t)

	err := svc.CreateRoom(context.Background(), &Room{WardID: uuid.New(), Name: "R1"})
	if !apperr.Is(err, apperr.CodeInvalidParent) {
		t.Errorf("error = %v, want invalid_parent", err)
	}
}

func TestUpdateBedStatusGuards(t *testing.T) {
	svc, repo, wardID := setup(t)
	ctx := context.Background()

	b := &Bed{WardID: &wardID, Number: "B1"}
	if err := svc.CreateBed(ctx, b); err != nil {
		t.Fatal(err)
	}

	// Direct set-to-occupied is never allowed.
	occ := BedOccupied
	if _, err := svc.UpdateBed(ctx, b.ID, BedUpdate{Status: &occ}); !apperr.Is(err, apperr.CodeInvalidTransition) {
		t.Errorf("set occupied: error = %v, want invalid_transition", err)
	}

	// Any status write against an occupied bed is rejected.
	repo.beds[b.ID].Status = BedOccupied
	avail := BedAvailable
	if _, err := svc.UpdateBed(ctx, b.ID, BedUpdate{Status: &avail}); !apperr.Is(err, apperr.CodeInvalidTransition) {
		t.Errorf("free occupied bed: error = %v, want invalid_transition", err)
	}

	// Non-status attributes still update on an occupied bed.
	rate := 450.0
	updated, err := svc.UpdateBed(ctx, b.ID, BedUpdate{Rate: &rate})
	if err != nil {
		t.Fatalf("rate update: %v", err)
	}
	if updated.Rate != 450.0 {
		t.Errorf("rate = %v, want 450", updated.Rate)
	}
}

// A claim landing between the service's read and its status write must win:
// the bed stays occupied and the update reports invalid_transition.
func TestUpdateBedStatusLosesRaceWithClaim(t *testing.T) {
	svc, repo, wardID := setup(t)
	ctx := context.Background()

	b := &Bed{WardID: &wardID, Number: "B1", Rate: 100}
	if err := svc.CreateBed(ctx, b); err != nil {
		t.Fatal(err)
	}
	repo.onGetBed = func() {
		repo.onGetBed = nil
		repo.claim(b.ID)
	}

	cleaning := BedCleaning
	rate := 900.0
	_, err := svc.UpdateBed(ctx, b.ID, BedUpdate{Status: &cleaning, Rate: &rate})
	if !apperr.Is(err, apperr.CodeInvalidTransition) {
		t.Fatalf("error = %v, want invalid_transition", err)
	}
	if got := repo.beds[b.ID].Status; got != BedOccupied {
		t.Errorf("bed status = %q, want occupied (claim must survive)", got)
	}
	if got := repo.beds[b.ID].Rate; got != 100 {
		t.Errorf("rate = %v, want 100 (nothing else applied on the lost race)", got)
	}
}

func TestDeleteOccupiedBed(t *testing.T) {
	svc, repo, wardID := setup(t)
	ctx := context.Background()

	b := &Bed{WardID: &wardID, Number: "B1"}
	if err := svc.CreateBed(ctx, b); err != nil {
		t.Fatal(err)
	}
	repo.claim(b.ID)

	if err := svc.DeleteBed(ctx, b.ID); !apperr.Is(err, apperr.CodeResourceOccupied) {
		t.Errorf("error = %v, want resource_occupied", err)
	}
	if _, ok := repo.beds[b.ID]; !ok {
		t.Error("occupied bed deleted; claim lost")
	}

	repo.beds[b.ID].Status = BedCleaning
	if err := svc.DeleteBed(ctx, b.ID); err != nil {
		t.Errorf("delete cleaning bed failed: %v", err)
	}
}

func TestDeleteMissingBed(t *testing.T) {
	svc, _, _ := setup(t)
	if err := svc.DeleteBed(context.Background(), uuid.New()); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestListBedsRejectsBadStatus(t *testing.T) {
	svc, _, _ := setup(t)
	_, _, err := svc.ListBeds(context.Background(), BedFilter{Status: "parked"}, 20, 0)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}
