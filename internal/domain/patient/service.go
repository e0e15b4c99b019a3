package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return apperr.New(apperr.CodeValidation, "first_name is required")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Resolve returns the referenced patient, or creates one from the draft
// when no reference is supplied. Used by the admission flow; runs inside
// whatever transaction the caller's context carries.
func (s *Service) Resolve(ctx context.Context, id *uuid.UUID, draft *Draft) (*Patient, error) {
	if id != nil {
		return s.repo.GetByID(ctx, *id)
	}
	if draft == nil {
		return nil, apperr.New(apperr.CodeValidation, "patient_id or patient draft is required")
	}

	p := &Patient{
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		BirthDate: draft.BirthDate,
		Sex:       draft.Sex,
		Phone:     draft.Phone,
	}
	if err := s.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
