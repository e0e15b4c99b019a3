package patient

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.MRN = "MRN-" + p.ID.String()[:8]
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "patient %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func TestCreateRequiresFirstName(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Create(context.Background(), &Patient{FirstName: "  "})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestCreateAssignsMRN(t *testing.T) {
	svc := NewService(newMockRepo())
	p := &Patient{FirstName: "Asha"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.MRN == "" {
		t.Error("MRN not assigned")
	}
}

func TestResolveExistingReference(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p := &Patient{FirstName: "Asha"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Resolve(ctx, &p.ID, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("resolved %s, want %s", got.ID, p.ID)
	}
	if len(repo.patients) != 1 {
		t.Error("resolve by reference must not create a patient")
	}
}

func TestResolveUnknownReference(t *testing.T) {
	svc := NewService(newMockRepo())
	ghost := uuid.New()
	_, err := svc.Resolve(context.Background(), &ghost, nil)
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestResolveCreatesFromDraft(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), nil, &Draft{FirstName: "Ravi", LastName: "Nair"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID == uuid.Nil {
		t.Error("created patient has no id")
	}
	if len(repo.patients) != 1 {
		t.Errorf("patients stored = %d, want 1", len(repo.patients))
	}
}

func TestResolveNeedsReferenceOrDraft(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Resolve(context.Background(), nil, nil)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}
