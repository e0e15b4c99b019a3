package allocation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage contract for bed occupancy transitions. Every
// state-changing method is a single conditional statement so that it is
// atomic on its own, with or without surrounding transaction support.
type Repository interface {
	// ClaimBed flips available -> occupied. Returns false when the bed was
	// not available; exactly one of N concurrent callers gets true.
	ClaimBed(ctx context.Context, bedID uuid.UUID) (bool, error)

	// LinkAdmission sets the bed's admission back-reference.
	LinkAdmission(ctx context.Context, bedID, admissionID uuid.UUID) error

	// ReleaseBed flips the bed back to available and clears the admission
	// back-reference.
	ReleaseBed(ctx context.Context, bedID uuid.UUID) error

	// SetServiceState writes cleaning/maintenance, guarded against
	// occupied beds. Returns false when the guard rejected the write.
	SetServiceState(ctx context.Context, bedID uuid.UUID, state string) (bool, error)

	BedExists(ctx context.Context, bedID uuid.UUID) (bool, error)

	// OrphanedBeds reports occupied beds with no matching admitted
	// admission — the invariant the reconciler sweeps for.
	OrphanedBeds(ctx context.Context) ([]Orphan, error)
}

// Orphan is an occupied bed no admitted admission accounts for.
type Orphan struct {
	BedID       uuid.UUID  `json:"bed_id"`
	Number      string     `json:"number"`
	AdmissionID *uuid.UUID `json:"admission_id,omitempty"`
	OccupiedAt  time.Time  `json:"occupied_at"`
}
