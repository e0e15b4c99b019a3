package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateFloor(ctx context.Context, f *Floor) error {
	if f.Name == "" {
		return apperr.New(apperr.CodeValidation, "name is required")
	}
	return s.repo.CreateFloor(ctx, f)
}

func (s *Service) ListFloors(ctx context.Context) ([]*Floor, error) {
	return s.repo.ListFloors(ctx)
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if w.Name == "" {
		return apperr.New(apperr.CodeValidation, "name is required")
	}
	return s.repo.CreateWard(ctx, w)
}

func (s *Service) ListWards(ctx context.Context) ([]*Ward, error) {
	return s.repo.ListWards(ctx)
}

func (s *Service) CreateRoom(ctx context.Context, r *Room) error {
	if r.Name == "" {
		return apperr.New(apperr.CodeValidation, "name is required")
	}
	if r.WardID == uuid.Nil {
		return apperr.New(apperr.CodeValidation, "ward_id is required")
	}
	ok, err := s.repo.WardExists(ctx, r.WardID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.CodeInvalidParent, "ward %s does not exist", r.WardID)
	}
	return s.repo.CreateRoom(ctx, r)
}

func (s *Service) ListRooms(ctx context.Context, wardID *uuid.UUID) ([]*Room, error) {
	return s.repo.ListRooms(ctx, wardID)
}

// CreateBed registers a bed under exactly one of ward or room.
func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.Number == "" {
		return apperr.New(apperr.CodeValidation, "number is required")
	}
	if (b.WardID == nil) == (b.RoomID == nil) {
		return apperr.New(apperr.CodeInvalidParent, "exactly one of ward_id or room_id is required")
	}
	if b.Category == "" {
		b.Category = CategoryGeneral
	}
	if !validCategory(b.Category) {
		return apperr.New(apperr.CodeValidation, "invalid category: %s", b.Category)
	}
	if b.RateType == "" {
		b.RateType = RateDaily
	}

	if b.WardID != nil {
		ok, err := s.repo.WardExists(ctx, *b.WardID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.CodeInvalidParent, "ward %s does not exist", *b.WardID)
		}
	} else {
		ok, err := s.repo.RoomExists(ctx, *b.RoomID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.CodeInvalidParent, "room %s does not exist", *b.RoomID)
		}
	}

	b.Status = BedAvailable
	return s.repo.CreateBed(ctx, b)
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.repo.GetBed(ctx, id)
}

func (s *Service) ListBeds(ctx context.Context, filter BedFilter, limit, offset int) ([]*Bed, int, error) {
	if filter.Status != "" && !validBedStatus(filter.Status) {
		return nil, 0, apperr.New(apperr.CodeValidation, "invalid status: %s", filter.Status)
	}
	return s.repo.ListBeds(ctx, filter, limit, offset)
}

// BedUpdate is the allow-listed attribute set for bed updates. Fields left
// nil are not touched; unexpected request fields never reach the row.
type BedUpdate struct {
	Number   *string      `json:"number"`
	Category *BedCategory `json:"category"`
	Rate     *float64     `json:"rate"`
	RateType *RateType    `json:"rate_type"`
	Status   *BedStatus   `json:"status"`
}

// UpdateBed applies an allow-listed update. Status writes go through a
// conditional statement so a claim landing after the read is never
// overwritten: occupancy belongs to the allocation coordinator.
func (s *Service) UpdateBed(ctx context.Context, id uuid.UUID, upd BedUpdate) (*Bed, error) {
	b, err := s.repo.GetBed(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		if *upd.Status == BedOccupied {
			return nil, apperr.New(apperr.CodeInvalidTransition,
				"bed status cannot be set to occupied directly")
		}
		if !validBedStatus(*upd.Status) {
			return nil, apperr.New(apperr.CodeValidation, "invalid status: %s", *upd.Status)
		}
	}
	if upd.Number != nil {
		if *upd.Number == "" {
			return nil, apperr.New(apperr.CodeValidation, "number cannot be empty")
		}
		b.Number = *upd.Number
	}
	if upd.Category != nil {
		if !validCategory(*upd.Category) {
			return nil, apperr.New(apperr.CodeValidation, "invalid category: %s", *upd.Category)
		}
		b.Category = *upd.Category
	}
	if upd.Rate != nil {
		b.Rate = *upd.Rate
	}
	if upd.RateType != nil {
		b.RateType = *upd.RateType
	}

	// The status write goes first; nothing else changes when it loses to
	// a concurrent claim.
	if upd.Status != nil {
		ok, err := s.repo.SetStatusIfUnoccupied(ctx, id, *upd.Status)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.New(apperr.CodeInvalidTransition,
				"bed %s is occupied; release it through discharge", id)
		}
		b.Status = *upd.Status
	}

	if err := s.repo.UpdateBed(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBed removes a bed from the catalog. The conditional delete refuses
// occupied beds regardless of caller.
func (s *Service) DeleteBed(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBed(ctx, id)
}
