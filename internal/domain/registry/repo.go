package registry

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the resource catalog. Implementations return
// apperr-coded errors: duplicate_resource on unique violations, not_found
// on missing rows.
type Repository interface {
	CreateFloor(ctx context.Context, f *Floor) error
	ListFloors(ctx context.Context) ([]*Floor, error)

	CreateWard(ctx context.Context, w *Ward) error
	ListWards(ctx context.Context) ([]*Ward, error)
	WardExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateRoom(ctx context.Context, r *Room) error
	ListRooms(ctx context.Context, wardID *uuid.UUID) ([]*Room, error)
	RoomExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateBed(ctx context.Context, b *Bed) error
	GetBed(ctx context.Context, id uuid.UUID) (*Bed, error)
	ListBeds(ctx context.Context, filter BedFilter, limit, offset int) ([]*Bed, int, error)

	// UpdateBed writes catalog attributes only; it never touches status.
	UpdateBed(ctx context.Context, b *Bed) error

	// SetStatusIfUnoccupied flips the service status in one conditional
	// statement. Returns false when the bed is occupied (or gone), so a
	// claim landing concurrently is never overwritten.
	SetStatusIfUnoccupied(ctx context.Context, id uuid.UUID, status BedStatus) (bool, error)

	// DeleteBed refuses occupied beds at the statement level:
	// resource_occupied when the row is held, not_found when missing.
	DeleteBed(ctx context.Context, id uuid.UUID) error
}
