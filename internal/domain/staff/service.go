package staff

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type Service struct {
	repo Repository
	txm  db.TxManager
}

func NewService(repo Repository, txm db.TxManager) *Service {
	return &Service{repo: repo, txm: txm}
}

// RegisterDoctorInput carries the doctor profile plus the login identity
// created alongside it.
type RegisterDoctorInput struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Email     string `json:"email"`
}

// RegisterDoctor creates the doctor row and its account row in a single
// transaction so a doctor never exists without a login identity.
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Doctor, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.New(apperr.CodeValidation, "name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required")
	}

	d := &Doctor{Name: in.Name, Specialty: in.Specialty}
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateDoctor(txCtx, d); err != nil {
			return err
		}
		return s.repo.CreateAccount(txCtx, &Account{
			Email:    in.Email,
			Role:     RoleDoctor,
			DoctorID: &d.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.ListDoctors(ctx, limit, offset)
}

// Bootstrap seeds the first admin account. Idempotent: does nothing when an
// admin already exists.
func (s *Service) Bootstrap(ctx context.Context, adminEmail string) (bool, error) {
	if strings.TrimSpace(adminEmail) == "" {
		return false, apperr.New(apperr.CodeValidation, "admin email is required")
	}
	exists, err := s.repo.AccountExistsByRole(ctx, RoleAdmin)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.repo.CreateAccount(ctx, &Account{Email: adminEmail, Role: RoleAdmin}); err != nil {
		return false, err
	}
	return true, nil
}
