package allocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

// mockRepo mimics the storage layer's conditional updates with an in-memory
// map guarded by a mutex. The mutex stands in for the row-level atomicity
// the database provides.
type mockRepo struct {
	mu   sync.Mutex
	beds map[uuid.UUID]*mockBed
}

type mockBed struct {
	status      string
	admissionID *uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{beds: make(map[uuid.UUID]*mockBed)}
}

func (m *mockRepo) addBed(status string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.beds[id] = &mockBed{status: status}
	return id
}

func (m *mockRepo) bedStatus(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beds[id].status
}

func (m *mockRepo) ClaimBed(_ context.Context, bedID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[bedID]
	if !ok || b.status != "available" {
		return false, nil
	}
	b.status = "occupied"
	return true, nil
}

func (m *mockRepo) LinkAdmission(_ context.Context, bedID, admissionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beds[bedID].admissionID = &admissionID
	return nil
}

func (m *mockRepo) ReleaseBed(_ context.Context, bedID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.beds[bedID]
	b.status = "available"
	b.admissionID = nil
	return nil
}

func (m *mockRepo) SetServiceState(_ context.Context, bedID uuid.UUID, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[bedID]
	if !ok || b.status == "occupied" {
		return false, nil
	}
	b.status = state
	return true, nil
}

func (m *mockRepo) BedExists(_ context.Context, bedID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.beds[bedID]
	return ok, nil
}

func (m *mockRepo) OrphanedBeds(_ context.Context) ([]Orphan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orphans []Orphan
	for id, b := range m.beds {
		if b.status == "occupied" && b.admissionID == nil {
			orphans = append(orphans, Orphan{BedID: id, OccupiedAt: time.Now()})
		}
	}
	return orphans, nil
}

func newTestCoordinator(repo Repository) *Coordinator {
	return NewCoordinator(repo, zerolog.Nop())
}

func TestClaimTransitionsAvailableToOccupied(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("available")
	coord := newTestCoordinator(repo)

	if err := coord.Claim(context.Background(), bedID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if got := repo.bedStatus(bedID); got != "occupied" {
		t.Errorf("bed status = %q, want occupied", got)
	}
}

func TestSecondClaimFailsBeforeRelease(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("available")
	coord := newTestCoordinator(repo)
	ctx := context.Background()

	if err := coord.Claim(ctx, bedID); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	err := coord.Claim(ctx, bedID)
	if !apperr.Is(err, apperr.CodeResourceUnavailable) {
		t.Errorf("second claim error = %v, want resource_unavailable", err)
	}
}

func TestClaimMissingBedIsNotFound(t *testing.T) {
	coord := newTestCoordinator(newMockRepo())

	err := coord.Claim(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("claim error = %v, want not_found", err)
	}
}

// Exactly one of N concurrent claimants may win.
func TestConcurrentClaimsSingleWinner(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("available")
	coord := newTestCoordinator(repo)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := coord.Claim(ctx, bedID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.Is(err, apperr.CodeResourceUnavailable):
				losses++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if losses != n-1 {
		t.Errorf("losses = %d, want %d", losses, n-1)
	}
	if got := repo.bedStatus(bedID); got != "occupied" {
		t.Errorf("final bed status = %q, want occupied", got)
	}
}

func TestReleaseReturnsBedToPool(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("available")
	coord := newTestCoordinator(repo)
	ctx := context.Background()

	if err := coord.Claim(ctx, bedID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := coord.LinkAdmission(ctx, bedID, uuid.New()); err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if err := coord.Release(ctx, bedID); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if got := repo.bedStatus(bedID); got != "available" {
		t.Errorf("bed status = %q, want available", got)
	}
	if repo.beds[bedID].admissionID != nil {
		t.Error("admission link not cleared on release")
	}

	// The bed is claimable again.
	if err := coord.Claim(ctx, bedID); err != nil {
		t.Errorf("re-claim after release failed: %v", err)
	}
}

func TestSetServiceStateRejectsOccupied(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("occupied")
	coord := newTestCoordinator(repo)

	err := coord.SetServiceState(context.Background(), bedID, StateCleaning)
	if !apperr.Is(err, apperr.CodeInvalidTransition) {
		t.Errorf("error = %v, want invalid_transition", err)
	}
}

func TestSetServiceStateRejectsUnknownState(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("available")
	coord := newTestCoordinator(repo)

	err := coord.SetServiceState(context.Background(), bedID, "broken")
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestSetServiceStateAllowsMaintenance(t *testing.T) {
	repo := newMockRepo()
	bedID := repo.addBed("cleaning")
	coord := newTestCoordinator(repo)

	if err := coord.SetServiceState(context.Background(), bedID, StateMaintenance); err != nil {
		t.Fatalf("set maintenance failed: %v", err)
	}
	if got := repo.bedStatus(bedID); got != "maintenance" {
		t.Errorf("bed status = %q, want maintenance", got)
	}
}

func TestReconcilerSweepFlagsOrphans(t *testing.T) {
	repo := newMockRepo()
	repo.addBed("occupied") // orphan: occupied, no admission link
	repo.addBed("available")

	linked := repo.addBed("available")
	if _, err := repo.ClaimBed(context.Background(), linked); err != nil {
		t.Fatal(err)
	}
	// linked bed keeps no admission either, so it is also an orphan
	rec := NewReconciler(repo, time.Minute, zerolog.Nop())
	rec.Sweep(context.Background())

	if got := rec.Flagged(); got != 2 {
		t.Errorf("flagged = %d, want 2", got)
	}
}
