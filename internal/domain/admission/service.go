// Package admission orchestrates the inpatient stay lifecycle: multi-step
// admission creation, timeline appends, transfer, and discharge. Creation
// runs inside one storage transaction when the store supports grouping, and
// falls back transparently to claim-first sequential execution with explicit
// compensation when it does not. Callers see identical guarantees either
// way.
package admission

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/ledger"
)

// BedAllocator is the slice of the allocation coordinator the lifecycle
// needs. Claim and Release are each atomic on their own, so the saga path
// stays correct without transaction support.
type BedAllocator interface {
	Claim(ctx context.Context, bedID uuid.UUID) error
	LinkAdmission(ctx context.Context, bedID, admissionID uuid.UUID) error
	Release(ctx context.Context, bedID uuid.UUID) error
}

// PatientResolver returns an existing patient or creates one from a draft.
type PatientResolver interface {
	Resolve(ctx context.Context, id *uuid.UUID, draft *patient.Draft) (*patient.Patient, error)
}

// DoctorDirectory resolves attending doctors.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*staff.Doctor, error)
}

type Service struct {
	repo     Repository
	beds     BedAllocator
	patients PatientResolver
	doctors  DoctorDirectory
	txm      db.TxManager
	ledger   ledger.Poster
	logger   zerolog.Logger
}

func NewService(repo Repository, beds BedAllocator, patients PatientResolver,
	doctors DoctorDirectory, txm db.TxManager, poster ledger.Poster, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		beds:     beds,
		patients: patients,
		doctors:  doctors,
		txm:      txm,
		ledger:   poster,
		logger:   logger,
	}
}

// CreateInput is the admission request. Exactly one of PatientID or Patient
// must be set.
type CreateInput struct {
	PatientID    *uuid.UUID     `json:"patient_id,omitempty"`
	Patient      *patient.Draft `json:"patient,omitempty"`
	DoctorID     uuid.UUID      `json:"doctor_id"`
	WardID       *uuid.UUID     `json:"ward_id,omitempty"`
	BedID        uuid.UUID      `json:"bed_id"`
	Diagnosis    string         `json:"diagnosis"`
	BillingMode  BillingMode    `json:"billing_mode"`
	CorporateRef string         `json:"corporate_ref,omitempty"`
	Source       Source         `json:"source"`
}

func (in *CreateInput) validate() error {
	if in.BedID == uuid.Nil {
		return apperr.New(apperr.CodeValidation, "bed_id is required")
	}
	if in.PatientID == nil && in.Patient == nil {
		return apperr.New(apperr.CodeValidation, "patient_id or patient is required")
	}
	if in.DoctorID == uuid.Nil {
		return apperr.New(apperr.CodeValidation, "doctor_id is required")
	}
	if in.BillingMode == "" {
		in.BillingMode = BillingCash
	}
	if !validBillingMode(in.BillingMode) {
		return apperr.New(apperr.CodeValidation, "invalid billing_mode: %s", in.BillingMode)
	}
	if in.BillingMode == BillingCredit && in.CorporateRef == "" {
		return apperr.New(apperr.CodeValidation, "corporate_ref is required for credit billing")
	}
	if in.Source == "" {
		in.Source = SourceDirect
	}
	if !validSource(in.Source) {
		return apperr.New(apperr.CodeValidation, "invalid source: %s", in.Source)
	}
	return nil
}

// Create admits a patient onto a bed. The bed claim is the mutual-exclusion
// point: concurrent admissions racing on one bed see exactly one winner, the
// rest get resource_unavailable with nothing written.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Admission, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.doctors.GetDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}

	var a *Admission
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		created, err := s.createSteps(txCtx, in)
		if err != nil {
			return err
		}
		a = created
		return nil
	})
	if errors.Is(err, db.ErrTxUnsupported) {
		return s.createSaga(ctx, in)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// createSteps is the shared step sequence: resolve patient, claim bed,
// persist admission, link bed. In atomic mode the surrounding transaction
// discards everything on failure.
func (s *Service) createSteps(ctx context.Context, in CreateInput) (*Admission, error) {
	p, err := s.patients.Resolve(ctx, in.PatientID, in.Patient)
	if err != nil {
		return nil, err
	}
	if err := s.beds.Claim(ctx, in.BedID); err != nil {
		return nil, err
	}

	a := s.newAdmission(in, p.ID)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.beds.LinkAdmission(ctx, in.BedID, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// createSaga runs when the store cannot group writes. The claim goes first
// because it is self-consistent on its own; every later failure compensates
// by releasing the bed. An occupied bed with no live admission violates the
// core invariant, so a failed compensation is logged at error level and left
// for the reconciliation sweep.
func (s *Service) createSaga(ctx context.Context, in CreateInput) (*Admission, error) {
	if err := s.beds.Claim(ctx, in.BedID); err != nil {
		return nil, err
	}

	a, err := s.sagaSteps(ctx, in)
	if err != nil {
		if relErr := s.beds.Release(ctx, in.BedID); relErr != nil {
			s.logger.Error().Err(relErr).
				Str("bed_id", in.BedID.String()).
				Msg("admission compensation failed, bed left occupied")
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) sagaSteps(ctx context.Context, in CreateInput) (*Admission, error) {
	p, err := s.patients.Resolve(ctx, in.PatientID, in.Patient)
	if err != nil {
		return nil, err
	}

	a := s.newAdmission(in, p.ID)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.beds.LinkAdmission(ctx, in.BedID, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) newAdmission(in CreateInput, patientID uuid.UUID) *Admission {
	return &Admission{
		PatientID:    patientID,
		DoctorID:     in.DoctorID,
		WardID:       in.WardID,
		BedID:        in.BedID,
		Diagnosis:    in.Diagnosis,
		BillingMode:  in.BillingMode,
		CorporateRef: in.CorporateRef,
		Source:       in.Source,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*Admission, int, error) {
	if status != "" && status != StatusAdmitted && !status.Terminal() {
		return nil, 0, apperr.New(apperr.CodeValidation, "invalid status filter: %s", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// SummaryInput carries the discharge summary. Financial fields arrive as
// json.Number so clients sending strings or floats both coerce to the
// declared numeric columns.
type SummaryInput struct {
	Investigations       string      `json:"investigations"`
	DischargeMedications string      `json:"discharge_medications"`
	Condition            string      `json:"condition"`
	Response             string      `json:"response"`
	FollowUp             string      `json:"follow_up"`
	SignedBy             string      `json:"signed_by"`
	TotalAmount          json.Number `json:"total_amount"`
	AmountPaid           json.Number `json:"amount_paid"`
	BalanceDue           json.Number `json:"balance_due"`
}

// amount coerces a summary figure. Empty means zero; anything else must
// parse or the whole discharge is rejected before any state moves.
func amount(n json.Number, field string) (float64, error) {
	if n == "" {
		return 0, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, apperr.New(apperr.CodeValidation, "invalid %s: %q", field, n.String())
	}
	return f, nil
}

func buildSummary(id uuid.UUID, in *SummaryInput) (*DischargeSummary, error) {
	total, err := amount(in.TotalAmount, "total_amount")
	if err != nil {
		return nil, err
	}
	paid, err := amount(in.AmountPaid, "amount_paid")
	if err != nil {
		return nil, err
	}
	due, err := amount(in.BalanceDue, "balance_due")
	if err != nil {
		return nil, err
	}
	return &DischargeSummary{
		AdmissionID:          id,
		Investigations:       in.Investigations,
		DischargeMedications: in.DischargeMedications,
		Condition:            in.Condition,
		Response:             in.Response,
		FollowUp:             in.FollowUp,
		SignedBy:             in.SignedBy,
		TotalAmount:          total,
		AmountPaid:           paid,
		BalanceDue:           due,
	}, nil
}

// Discharge closes an admitted stay. The status write is the conditional
// gate: a second discharge, or a discharge of any terminal admission, fails
// with invalid_transition and touches nothing. The gate also returns the
// bed the row held at that instant, so a transfer racing the initial read
// cannot make us free the wrong bed. The ledger posting afterwards is
// fire-and-forget.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, sum *SummaryInput) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var summary *DischargeSummary
	if sum != nil {
		if summary, err = buildSummary(id, sum); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	bedID, ok, err := s.repo.UpdateStatusIf(ctx, id, StatusAdmitted, StatusDischarged, &now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"admission %s is not admitted", id)
	}

	if summary != nil {
		if err := s.repo.SaveSummary(ctx, summary); err != nil {
			// The stay is already closed; the bed must not stay
			// stranded behind a summary write failure.
			if relErr := s.beds.Release(ctx, bedID); relErr != nil {
				s.logger.Error().Err(relErr).
					Str("admission_id", id.String()).
					Str("bed_id", bedID.String()).
					Msg("bed release failed after summary failure, bed left occupied")
			}
			return nil, err
		}
	}

	if err := s.beds.Release(ctx, bedID); err != nil {
		s.logger.Error().Err(err).
			Str("admission_id", id.String()).
			Str("bed_id", bedID.String()).
			Msg("bed release failed after discharge, bed left occupied")
	}

	s.postDischargeCharge(ctx, a, summary)

	return s.repo.GetByID(ctx, id)
}

// postDischargeCharge posts the closing balance to the corporate ledger for
// credit admissions. Failures are logged and swallowed.
func (s *Service) postDischargeCharge(ctx context.Context, a *Admission, summary *DischargeSummary) {
	if a.BillingMode != BillingCredit || a.CorporateRef == "" || summary == nil {
		return
	}
	charge := ledger.Charge{
		AccountRef:      a.CorporateRef,
		AdmissionNumber: a.Number,
		Amount:          summary.BalanceDue,
		Memo:            "inpatient discharge balance",
	}
	if err := s.ledger.PostCharge(ctx, charge); err != nil {
		s.logger.Warn().Err(err).
			Str("admission", a.Number).
			Str("account", a.CorporateRef).
			Msg("ledger posting failed")
	}
}

// Transfer moves an admitted stay onto a new bed: claim the target, move the
// admission's resource reference, link, then release the old bed. A failure
// after the claim compensates by releasing the target, so the original bed
// assignment survives intact.
func (s *Service) Transfer(ctx context.Context, id, newBedID uuid.UUID, newWardID *uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusAdmitted {
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"admission %s is not admitted", id)
	}
	if newBedID == a.BedID {
		return nil, apperr.New(apperr.CodeValidation, "admission already holds bed %s", newBedID)
	}

	if err := s.beds.Claim(ctx, newBedID); err != nil {
		return nil, err
	}

	oldBedID := a.BedID
	if err := s.moveBed(ctx, id, newWardID, newBedID); err != nil {
		if relErr := s.beds.Release(ctx, newBedID); relErr != nil {
			s.logger.Error().Err(relErr).
				Str("bed_id", newBedID.String()).
				Msg("transfer compensation failed, bed left occupied")
		}
		return nil, err
	}

	if err := s.beds.Release(ctx, oldBedID); err != nil {
		s.logger.Error().Err(err).
			Str("admission_id", id.String()).
			Str("bed_id", oldBedID.String()).
			Msg("old bed release failed after transfer, bed left occupied")
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) moveBed(ctx context.Context, id uuid.UUID, wardID *uuid.UUID, bedID uuid.UUID) error {
	if err := s.repo.SetBed(ctx, id, wardID, bedID); err != nil {
		return err
	}
	return s.beds.LinkAdmission(ctx, bedID, id)
}

// Close ends a stay with the transferred or expired terminal status. Same
// conditional gate and bed release ordering as Discharge: the gate returns
// the bed held at the instant of the write.
func (s *Service) Close(ctx context.Context, id uuid.UUID, to Status) (*Admission, error) {
	if to != StatusTransferred && to != StatusExpired {
		return nil, apperr.New(apperr.CodeValidation, "invalid closing status: %s", to)
	}

	now := time.Now().UTC()
	bedID, ok, err := s.repo.UpdateStatusIf(ctx, id, StatusAdmitted, to, &now)
	if err != nil {
		return nil, err
	}
	if !ok {
		status, err := s.repo.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"admission %s is %s", id, status)
	}

	if err := s.beds.Release(ctx, bedID); err != nil {
		s.logger.Error().Err(err).
			Str("admission_id", id.String()).
			Str("bed_id", bedID.String()).
			Msg("bed release failed after close, bed left occupied")
	}

	return s.repo.GetByID(ctx, id)
}

// guardOpen rejects timeline appends on terminal admissions.
func (s *Service) guardOpen(ctx context.Context, admissionID uuid.UUID) error {
	status, err := s.repo.GetStatus(ctx, admissionID)
	if err != nil {
		return err
	}
	if status.Terminal() {
		return apperr.New(apperr.CodeAdmissionClosed,
			"admission %s is %s", admissionID, status)
	}
	return nil
}

func (s *Service) AppendVital(ctx context.Context, admissionID uuid.UUID, v *Vital) error {
	if err := s.guardOpen(ctx, admissionID); err != nil {
		return err
	}
	v.AdmissionID = admissionID
	return s.repo.AddVital(ctx, v)
}

func (s *Service) AppendMedication(ctx context.Context, admissionID uuid.UUID, m *Medication) error {
	if err := s.guardOpen(ctx, admissionID); err != nil {
		return err
	}
	if m.Name == "" {
		return apperr.New(apperr.CodeValidation, "name is required")
	}
	m.AdmissionID = admissionID
	return s.repo.AddMedication(ctx, m)
}

func (s *Service) AppendLabOrder(ctx context.Context, admissionID uuid.UUID, o *LabOrder) error {
	if err := s.guardOpen(ctx, admissionID); err != nil {
		return err
	}
	if o.TestName == "" {
		return apperr.New(apperr.CodeValidation, "test_name is required")
	}
	o.AdmissionID = admissionID
	return s.repo.AddLabOrder(ctx, o)
}

// AppendBillingItem records a billing line and, for credit admissions,
// posts the charge to the corporate ledger as a fire-and-forget side
// effect.
func (s *Service) AppendBillingItem(ctx context.Context, admissionID uuid.UUID, b *BillingItem) error {
	a, err := s.repo.GetByID(ctx, admissionID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return apperr.New(apperr.CodeAdmissionClosed,
			"admission %s is %s", admissionID, a.Status)
	}
	if b.Description == "" {
		return apperr.New(apperr.CodeValidation, "description is required")
	}

	b.AdmissionID = admissionID
	if err := s.repo.AddBillingItem(ctx, b); err != nil {
		return err
	}

	if a.BillingMode == BillingCredit && a.CorporateRef != "" {
		charge := ledger.Charge{
			AccountRef:      a.CorporateRef,
			AdmissionNumber: a.Number,
			Amount:          b.Amount,
			Memo:            b.Description,
		}
		if err := s.ledger.PostCharge(ctx, charge); err != nil {
			s.logger.Warn().Err(err).
				Str("admission", a.Number).
				Str("account", a.CorporateRef).
				Msg("ledger posting failed")
		}
	}
	return nil
}

// AppendVisit writes a scheduled doctor visit onto the timeline. The
// schedule relay resolves the doctor name before calling in; direct
// appends resolve it here.
func (s *Service) AppendVisit(ctx context.Context, admissionID uuid.UUID, v *Visit) error {
	if err := s.guardOpen(ctx, admissionID); err != nil {
		return err
	}
	if v.DoctorID == uuid.Nil {
		return apperr.New(apperr.CodeValidation, "doctor_id is required")
	}
	if v.DoctorName == "" {
		d, err := s.doctors.GetDoctor(ctx, v.DoctorID)
		if err != nil {
			return err
		}
		v.DoctorName = d.Name
	}
	v.AdmissionID = admissionID
	return s.repo.AddVisit(ctx, v)
}

func (s *Service) GetVisit(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.repo.GetVisit(ctx, visitID)
}

func (s *Service) UpdateVisit(ctx context.Context, v *Visit) error {
	return s.repo.UpdateVisit(ctx, v)
}

func (s *Service) DeleteVisit(ctx context.Context, visitID uuid.UUID) error {
	return s.repo.DeleteVisit(ctx, visitID)
}

func (s *Service) ListVisitsBetween(ctx context.Context, from, to time.Time, doctorID *uuid.UUID) ([]*Visit, error) {
	return s.repo.ListVisitsBetween(ctx, from, to, doctorID)
}
