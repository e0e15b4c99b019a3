package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error)

	CreateAccount(ctx context.Context, a *Account) error
	AccountExistsByRole(ctx context.Context, role string) (bool, error)
}
