// Package allocation owns bed occupancy. The coordinator is the only
// component allowed to flip a bed between available and occupied; all
// other write paths to a bed's status are rejected elsewhere while the bed
// is occupied. Mutual exclusion is delegated to the storage layer's
// conditional update, so multiple process instances can share one store
// without a distributed lock.
package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

const (
	StateCleaning    = "cleaning"
	StateMaintenance = "maintenance"
)

type Coordinator struct {
	repo   Repository
	logger zerolog.Logger
}

func NewCoordinator(repo Repository, logger zerolog.Logger) *Coordinator {
	return &Coordinator{repo: repo, logger: logger}
}

// Claim atomically transitions a bed from available to occupied. Exactly
// one of N concurrent claimants succeeds; the rest get
// resource_unavailable with no partial effect.
func (c *Coordinator) Claim(ctx context.Context, bedID uuid.UUID) error {
	claimed, err := c.repo.ClaimBed(ctx, bedID)
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}

	exists, err := c.repo.BedExists(ctx, bedID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.CodeNotFound, "bed %s not found", bedID)
	}
	return apperr.New(apperr.CodeResourceUnavailable, "bed %s is not available", bedID)
}

// LinkAdmission records which admission holds the bed. Only valid
// immediately after a successful Claim by the same logical operation.
func (c *Coordinator) LinkAdmission(ctx context.Context, bedID, admissionID uuid.UUID) error {
	return c.repo.LinkAdmission(ctx, bedID, admissionID)
}

// Release returns the bed to the pool and clears its admission link. Only
// the discharge/transfer paths call this.
func (c *Coordinator) Release(ctx context.Context, bedID uuid.UUID) error {
	return c.repo.ReleaseBed(ctx, bedID)
}

// SetServiceState moves a bed into cleaning or maintenance. Independent of
// the admission flow and never valid on an occupied bed.
func (c *Coordinator) SetServiceState(ctx context.Context, bedID uuid.UUID, state string) error {
	if state != StateCleaning && state != StateMaintenance {
		return apperr.New(apperr.CodeValidation, "invalid service state: %s", state)
	}

	updated, err := c.repo.SetServiceState(ctx, bedID, state)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	exists, err := c.repo.BedExists(ctx, bedID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.CodeNotFound, "bed %s not found", bedID)
	}
	return apperr.New(apperr.CodeInvalidTransition, "bed %s is occupied", bedID)
}
