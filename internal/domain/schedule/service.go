// Package schedule ties doctor-visit events to admissions and relays a
// best-effort real-time notification to the assigned doctor. The publish is
// never awaited by the visit write; a failed delivery is a log line, not an
// error.
package schedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/admission"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/ws"
)

const (
	EventVisitScheduled = "visit.scheduled"
	EventVisitUpdated   = "visit.updated"
	EventVisitCancelled = "visit.cancelled"
)

// VisitStore is the slice of the admission service the relay writes
// through.
type VisitStore interface {
	AppendVisit(ctx context.Context, admissionID uuid.UUID, v *admission.Visit) error
	GetVisit(ctx context.Context, visitID uuid.UUID) (*admission.Visit, error)
	UpdateVisit(ctx context.Context, v *admission.Visit) error
	DeleteVisit(ctx context.Context, visitID uuid.UUID) error
	ListVisitsBetween(ctx context.Context, from, to time.Time, doctorID *uuid.UUID) ([]*admission.Visit, error)
}

// DoctorDirectory resolves doctor ids to display names at write time.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*staff.Doctor, error)
}

type Service struct {
	visits  VisitStore
	doctors DoctorDirectory
	pub     ws.Publisher
	logger  zerolog.Logger
}

func NewService(visits VisitStore, doctors DoctorDirectory, pub ws.Publisher, logger zerolog.Logger) *Service {
	return &Service{visits: visits, doctors: doctors, pub: pub, logger: logger}
}

// ScheduleInput is a visit-scheduling request.
type ScheduleInput struct {
	AdmissionID uuid.UUID `json:"admission_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	VisitAt     time.Time `json:"visit_at"`
	Notes       string    `json:"notes"`
}

// Schedule appends a doctor-visit event and notifies the doctor's channel.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (*admission.Visit, error) {
	if in.AdmissionID == uuid.Nil {
		return nil, apperr.New(apperr.CodeValidation, "admission_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.New(apperr.CodeValidation, "doctor_id is required")
	}
	if in.VisitAt.IsZero() {
		return nil, apperr.New(apperr.CodeValidation, "visit_at is required")
	}

	doctor, err := s.doctors.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}

	v := &admission.Visit{
		DoctorID:   in.DoctorID,
		DoctorName: doctor.Name,
		VisitAt:    in.VisitAt,
		Notes:      in.Notes,
	}
	if err := s.visits.AppendVisit(ctx, in.AdmissionID, v); err != nil {
		return nil, err
	}

	s.notify(ctx, EventVisitScheduled, v)
	return v, nil
}

// UpdateInput carries the mutable visit fields. Nil pointers leave the
// stored value untouched.
type UpdateInput struct {
	DoctorID *uuid.UUID `json:"doctor_id,omitempty"`
	VisitAt  *time.Time `json:"visit_at,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

func (s *Service) Update(ctx context.Context, visitID uuid.UUID, in UpdateInput) (*admission.Visit, error) {
	v, err := s.visits.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if in.DoctorID != nil {
		doctor, err := s.doctors.GetDoctor(ctx, *in.DoctorID)
		if err != nil {
			return nil, err
		}
		v.DoctorID = doctor.ID
		v.DoctorName = doctor.Name
	}
	if in.VisitAt != nil {
		v.VisitAt = *in.VisitAt
	}
	if in.Notes != nil {
		v.Notes = *in.Notes
	}

	if err := s.visits.UpdateVisit(ctx, v); err != nil {
		return nil, err
	}

	s.notify(ctx, EventVisitUpdated, v)
	return v, nil
}

func (s *Service) Delete(ctx context.Context, visitID uuid.UUID) error {
	v, err := s.visits.GetVisit(ctx, visitID)
	if err != nil {
		return err
	}
	if err := s.visits.DeleteVisit(ctx, visitID); err != nil {
		return err
	}

	s.notify(ctx, EventVisitCancelled, v)
	return nil
}

// ListForDay flattens visits across admitted admissions into one
// chronological list for the given UTC day.
func (s *Service) ListForDay(ctx context.Context, day time.Time, doctorID *uuid.UUID) ([]*admission.Visit, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	return s.visits.ListVisitsBetween(ctx, from, to, doctorID)
}

// notify publishes to the doctor's channel. Fire-and-forget: failure is a
// warn log.
func (s *Service) notify(ctx context.Context, eventType string, v *admission.Visit) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("visit_id", v.ID.String()).Msg("schedule notification marshal failed")
		return
	}

	event := ws.Event{
		Type:      eventType,
		Topic:     ws.DoctorTopic(v.DoctorID),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := s.pub.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("topic", event.Topic).
			Str("event_type", eventType).
			Msg("schedule notification publish failed")
	}
}
