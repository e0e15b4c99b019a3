package admission

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAdmitted    Status = "admitted"
	StatusDischarged  Status = "discharged"
	StatusTransferred Status = "transferred"
	StatusExpired     Status = "expired"
)

// Terminal reports whether s permits no further transitions. Terminal
// admissions hold no bed and accept no timeline appends.
func (s Status) Terminal() bool {
	return s == StatusDischarged || s == StatusTransferred || s == StatusExpired
}

type BillingMode string

const (
	BillingCash   BillingMode = "cash"
	BillingCredit BillingMode = "credit"
)

type Source string

const (
	SourceOPD       Source = "opd"
	SourceEmergency Source = "emergency"
	SourceDirect    Source = "direct"
)

// Admission tracks one inpatient stay from admit to a terminal status.
// Rows are never deleted; terminal admissions remain as the audit trail.
type Admission struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	Number       string      `db:"number" json:"number"`
	PatientID    uuid.UUID   `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	WardID       *uuid.UUID  `db:"ward_id" json:"ward_id,omitempty"`
	BedID        uuid.UUID   `db:"bed_id" json:"bed_id"`
	Diagnosis    string      `db:"diagnosis" json:"diagnosis,omitempty"`
	BillingMode  BillingMode `db:"billing_mode" json:"billing_mode"`
	CorporateRef string      `db:"corporate_ref" json:"corporate_ref,omitempty"`
	Source       Source      `db:"source" json:"source"`
	Status       Status      `db:"status" json:"status"`
	AdmittedAt   time.Time   `db:"admitted_at" json:"admitted_at"`
	DischargedAt *time.Time  `db:"discharged_at" json:"discharged_at,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`

	// Embedded timeline, populated on single-admission reads only. List
	// views use the light projection and leave these nil.
	Vitals       []*Vital          `json:"vitals,omitempty"`
	Medications  []*Medication     `json:"medications,omitempty"`
	LabOrders    []*LabOrder       `json:"lab_orders,omitempty"`
	Visits       []*Visit          `json:"doctor_visits,omitempty"`
	BillingItems []*BillingItem    `json:"billing_items,omitempty"`
	Summary      *DischargeSummary `json:"discharge_summary,omitempty"`
}

// Vital is one vitals reading on the timeline.
type Vital struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AdmissionID   uuid.UUID `db:"admission_id" json:"admission_id"`
	Temperature   float64   `db:"temperature" json:"temperature,omitempty"`
	Pulse         int       `db:"pulse" json:"pulse,omitempty"`
	RespRate      int       `db:"resp_rate" json:"resp_rate,omitempty"`
	BloodPressure string    `db:"blood_pressure" json:"blood_pressure,omitempty"`
	SpO2          int       `db:"spo2" json:"spo2,omitempty"`
	Notes         string    `db:"notes" json:"notes,omitempty"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

type Medication struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	Name        string    `db:"name" json:"name"`
	Dosage      string    `db:"dosage" json:"dosage,omitempty"`
	Frequency   string    `db:"frequency" json:"frequency,omitempty"`
	Route       string    `db:"route" json:"route,omitempty"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

type LabOrder struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	TestName    string    `db:"test_name" json:"test_name"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	OrderedAt   time.Time `db:"ordered_at" json:"ordered_at"`
}

// Visit is a scheduled doctor visit on the timeline. DoctorName is resolved
// at write time so the schedule view never joins back to the doctor table.
type Visit struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DoctorName  string    `db:"doctor_name" json:"doctor_name"`
	VisitAt     time.Time `db:"visit_at" json:"visit_at"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type BillingItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	Description string    `db:"description" json:"description"`
	Quantity    int       `db:"quantity" json:"quantity"`
	Amount      float64   `db:"amount" json:"amount"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

// DischargeSummary is the clinical and financial closing record captured at
// discharge time.
type DischargeSummary struct {
	AdmissionID          uuid.UUID `db:"admission_id" json:"admission_id"`
	Investigations       string    `db:"investigations" json:"investigations,omitempty"`
	DischargeMedications string    `db:"discharge_medications" json:"discharge_medications,omitempty"`
	Condition            string    `db:"condition" json:"condition,omitempty"`
	Response             string    `db:"response" json:"response,omitempty"`
	FollowUp             string    `db:"follow_up" json:"follow_up,omitempty"`
	SignedBy             string    `db:"signed_by" json:"signed_by,omitempty"`
	TotalAmount          float64   `db:"total_amount" json:"total_amount"`
	AmountPaid           float64   `db:"amount_paid" json:"amount_paid"`
	BalanceDue           float64   `db:"balance_due" json:"balance_due"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

func validBillingMode(m BillingMode) bool {
	return m == BillingCash || m == BillingCredit
}

func validSource(s Source) bool {
	return s == SourceOPD || s == SourceEmergency || s == SourceDirect
}
