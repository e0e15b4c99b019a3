package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/admission"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/ws"
)

type mockVisits struct {
	mu     sync.Mutex
	visits map[uuid.UUID]*admission.Visit
}

func newMockVisits() *mockVisits {
	return &mockVisits{visits: make(map[uuid.UUID]*admission.Visit)}
}

func (m *mockVisits) AppendVisit(_ context.Context, admissionID uuid.UUID, v *admission.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = uuid.New()
	v.AdmissionID = admissionID
	cp := *v
	m.visits[v.ID] = &cp
	return nil
}

func (m *mockVisits) GetVisit(_ context.Context, visitID uuid.UUID) (*admission.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[visitID]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "visit %s not found", visitID)
	}
	cp := *v
	return &cp, nil
}

func (m *mockVisits) UpdateVisit(_ context.Context, v *admission.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.visits[v.ID]; !ok {
		return apperr.New(apperr.CodeNotFound, "visit %s not found", v.ID)
	}
	cp := *v
	m.visits[v.ID] = &cp
	return nil
}

func (m *mockVisits) DeleteVisit(_ context.Context, visitID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.visits[visitID]; !ok {
		return apperr.New(apperr.CodeNotFound, "visit %s not found", visitID)
	}
	delete(m.visits, visitID)
	return nil
}

func (m *mockVisits) ListVisitsBetween(_ context.Context, from, to time.Time, doctorID *uuid.UUID) ([]*admission.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*admission.Visit
	for _, v := range m.visits {
		if v.VisitAt.Before(from) || !v.VisitAt.Before(to) {
			continue
		}
		if doctorID != nil && v.DoctorID != *doctorID {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

type mockDoctors struct {
	doctors map[uuid.UUID]*staff.Doctor
}

func (m *mockDoctors) GetDoctor(_ context.Context, id uuid.UUID) (*staff.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.New(apperr.CodeDoctorNotFound, "doctor %s not found", id)
	}
	return d, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, event ws.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, event)
	return nil
}

func newTestService() (*Service, *mockVisits, *recordingPublisher, uuid.UUID) {
	visits := newMockVisits()
	doctorID := uuid.New()
	doctors := &mockDoctors{doctors: map[uuid.UUID]*staff.Doctor{
		doctorID: {ID: doctorID, Name: "Dr. Mehta"},
	}}
	pub := &recordingPublisher{}
	svc := NewService(visits, doctors, pub, zerolog.Nop())
	return svc, visits, pub, doctorID
}

func TestScheduleResolvesDoctorAndNotifies(t *testing.T) {
	svc, visits, pub, doctorID := newTestService()

	v, err := svc.Schedule(context.Background(), ScheduleInput{
		AdmissionID: uuid.New(),
		DoctorID:    doctorID,
		VisitAt:     time.Now().Add(time.Hour),
		Notes:       "post-op check",
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	if v.DoctorName != "Dr. Mehta" {
		t.Errorf("doctor name = %q, want resolved at write time", v.DoctorName)
	}
	if len(visits.visits) != 1 {
		t.Errorf("stored visits = %d, want 1", len(visits.visits))
	}
	if len(pub.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.events))
	}
	e := pub.events[0]
	if e.Type != EventVisitScheduled {
		t.Errorf("event type = %q, want %q", e.Type, EventVisitScheduled)
	}
	if e.Topic != ws.DoctorTopic(doctorID) {
		t.Errorf("topic = %q, want %q", e.Topic, ws.DoctorTopic(doctorID))
	}
}

func TestScheduleUnknownDoctor(t *testing.T) {
	svc, visits, _, _ := newTestService()

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		AdmissionID: uuid.New(),
		DoctorID:    uuid.New(),
		VisitAt:     time.Now(),
	})
	if !apperr.Is(err, apperr.CodeDoctorNotFound) {
		t.Errorf("error = %v, want doctor_not_found", err)
	}
	if len(visits.visits) != 0 {
		t.Error("visit stored despite unknown doctor")
	}
}

func TestSchedulePublishFailureDoesNotFailCall(t *testing.T) {
	svc, visits, pub, doctorID := newTestService()
	pub.fail = errors.New("channel down")

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		AdmissionID: uuid.New(),
		DoctorID:    doctorID,
		VisitAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("schedule must not fail on publish error: %v", err)
	}
	if len(visits.visits) != 1 {
		t.Errorf("stored visits = %d, want 1", len(visits.visits))
	}
}

func TestUpdateVisitRepublishes(t *testing.T) {
	svc, _, pub, doctorID := newTestService()
	ctx := context.Background()

	v, err := svc.Schedule(ctx, ScheduleInput{
		AdmissionID: uuid.New(),
		DoctorID:    doctorID,
		VisitAt:     time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	notes := "moved to evening"
	later := time.Now().Add(6 * time.Hour)
	updated, err := svc.Update(ctx, v.ID, UpdateInput{VisitAt: &later, Notes: &notes})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Notes != notes {
		t.Errorf("notes = %q, want %q", updated.Notes, notes)
	}
	if len(pub.events) != 2 || pub.events[1].Type != EventVisitUpdated {
		t.Errorf("events = %+v, want trailing %q", pub.events, EventVisitUpdated)
	}
}

func TestDeleteVisitPublishesCancellation(t *testing.T) {
	svc, visits, pub, doctorID := newTestService()
	ctx := context.Background()

	v, err := svc.Schedule(ctx, ScheduleInput{
		AdmissionID: uuid.New(),
		DoctorID:    doctorID,
		VisitAt:     time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, v.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(visits.visits) != 0 {
		t.Error("visit not removed")
	}
	if len(pub.events) != 2 || pub.events[1].Type != EventVisitCancelled {
		t.Errorf("events = %+v, want trailing %q", pub.events, EventVisitCancelled)
	}
}

func TestDeleteMissingVisit(t *testing.T) {
	svc, _, _, _ := newTestService()
	if err := svc.Delete(context.Background(), uuid.New()); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestListForDayUsesUTCWindow(t *testing.T) {
	svc, _, _, doctorID := newTestService()
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	inWindow := day.Add(9 * time.Hour)
	lastMinute := day.Add(24*time.Hour - time.Minute)
	dayBefore := day.Add(-time.Minute)
	dayAfter := day.Add(24 * time.Hour)

	for _, at := range []time.Time{inWindow, lastMinute, dayBefore, dayAfter} {
		if _, err := svc.Schedule(ctx, ScheduleInput{
			AdmissionID: uuid.New(),
			DoctorID:    doctorID,
			VisitAt:     at,
		}); err != nil {
			t.Fatal(err)
		}
	}

	visits, err := svc.ListForDay(ctx, day, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(visits) != 2 {
		t.Errorf("visits in window = %d, want 2", len(visits))
	}
}

func TestListForDayFiltersByDoctor(t *testing.T) {
	svc, visits, _, doctorID := newTestService()
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Schedule(ctx, ScheduleInput{
		AdmissionID: uuid.New(),
		DoctorID:    doctorID,
		VisitAt:     day.Add(10 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	// A visit by another doctor goes straight into the store.
	other := uuid.New()
	if err := visits.AppendVisit(ctx, uuid.New(), &admission.Visit{
		DoctorID: other, DoctorName: "Dr. Other", VisitAt: day.Add(11 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ListForDay(ctx, day, &doctorID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DoctorID != doctorID {
		t.Errorf("filtered visits = %+v, want only doctor %s", got, doctorID)
	}
}
