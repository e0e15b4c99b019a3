package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage contract for admissions and their embedded
// timeline. Implementations return apperr-coded errors for missing rows so
// services and handlers pass them through unchanged.
type Repository interface {
	Create(ctx context.Context, a *Admission) error

	// GetByID loads the full record including timeline and summary.
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)

	// GetStatus is the cheap status probe used by append guards.
	GetStatus(ctx context.Context, id uuid.UUID) (Status, error)

	// List returns the light projection without embedded timelines.
	List(ctx context.Context, status Status, limit, offset int) ([]*Admission, int, error)

	// UpdateStatusIf writes to only when the row currently holds from,
	// returning the bed the row referenced at that moment so callers
	// release the right bed even when a transfer raced the read. ok is
	// false when the condition did not match; no partial effect.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to Status, dischargedAt *time.Time) (bedID uuid.UUID, ok bool, err error)

	// SetBed moves the admission's resource reference during a transfer.
	SetBed(ctx context.Context, id uuid.UUID, wardID *uuid.UUID, bedID uuid.UUID) error

	SaveSummary(ctx context.Context, s *DischargeSummary) error

	AddVital(ctx context.Context, v *Vital) error
	AddMedication(ctx context.Context, m *Medication) error
	AddLabOrder(ctx context.Context, o *LabOrder) error
	AddBillingItem(ctx context.Context, b *BillingItem) error

	AddVisit(ctx context.Context, v *Visit) error
	GetVisit(ctx context.Context, visitID uuid.UUID) (*Visit, error)
	UpdateVisit(ctx context.Context, v *Visit) error
	DeleteVisit(ctx context.Context, visitID uuid.UUID) error

	// ListVisitsBetween flattens visits across admitted admissions whose
	// timestamps fall in [from, to), optionally filtered by doctor,
	// ordered chronologically.
	ListVisitsBetween(ctx context.Context, from, to time.Time, doctorID *uuid.UUID) ([]*Visit, error)
}
