package registry

import (
	"time"

	"github.com/google/uuid"
)

// BedStatus is the allocation state of a bed. Occupied is owned by the
// allocation coordinator; the registry never writes it.
type BedStatus string

const (
	BedAvailable   BedStatus = "available"
	BedOccupied    BedStatus = "occupied"
	BedCleaning    BedStatus = "cleaning"
	BedMaintenance BedStatus = "maintenance"
)

type BedCategory string

const (
	CategoryGeneral     BedCategory = "general"
	CategoryPrivate     BedCategory = "private"
	CategoryICU         BedCategory = "icu"
	CategorySemiPrivate BedCategory = "semi_private"
)

type RateType string

const (
	RateDaily  RateType = "daily"
	RateHourly RateType = "hourly"
)

// Bed maps to the bed table. Exactly one of WardID/RoomID is set; Number
// is unique within that parent.
type Bed struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	WardID      *uuid.UUID  `db:"ward_id" json:"ward_id,omitempty"`
	RoomID      *uuid.UUID  `db:"room_id" json:"room_id,omitempty"`
	Number      string      `db:"number" json:"number"`
	Category    BedCategory `db:"category" json:"category"`
	Rate        float64     `db:"rate" json:"rate"`
	RateType    RateType    `db:"rate_type" json:"rate_type"`
	Status      BedStatus   `db:"status" json:"status"`
	AdmissionID *uuid.UUID  `db:"admission_id" json:"admission_id,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Floor maps to the floor table.
type Floor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ward maps to the ward table. Name is unique within its floor.
type Ward struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FloorID   *uuid.UUID `db:"floor_id" json:"floor_id,omitempty"`
	Name      string     `db:"name" json:"name"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Room maps to the room table. Name is unique within its ward.
type Room struct {
	ID        uuid.UUID `db:"id" json:"id"`
	WardID    uuid.UUID `db:"ward_id" json:"ward_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BedFilter narrows bed listings.
type BedFilter struct {
	Status BedStatus
	WardID *uuid.UUID
	RoomID *uuid.UUID
}

func validBedStatus(s BedStatus) bool {
	switch s {
	case BedAvailable, BedOccupied, BedCleaning, BedMaintenance:
		return true
	}
	return false
}

func validCategory(c BedCategory) bool {
	switch c {
	case CategoryGeneral, CategoryPrivate, CategoryICU, CategorySemiPrivate:
		return true
	}
	return false
}
