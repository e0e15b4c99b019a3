package admission

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const admissionCols = `id, number, patient_id, doctor_id, ward_id, bed_id, diagnosis,
	billing_mode, corporate_ref, source, status, admitted_at, discharged_at, created_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.Number, &a.PatientID, &a.DoctorID, &a.WardID, &a.BedID,
		&a.Diagnosis, &a.BillingMode, &a.CorporateRef, &a.Source, &a.Status,
		&a.AdmittedAt, &a.DischargedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	if a.Number == "" {
		a.Number = "ADM-" + strings.ToUpper(a.ID.String()[:8])
	}
	a.Status = StatusAdmitted
	if a.AdmittedAt.IsZero() {
		a.AdmittedAt = time.Now().UTC()
	}

	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO admission (id, number, patient_id, doctor_id, ward_id, bed_id,
			diagnosis, billing_mode, corporate_ref, source, status, admitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Number, a.PatientID, a.DoctorID, a.WardID, a.BedID,
		a.Diagnosis, a.BillingMode, a.CorporateRef, a.Source, a.Status, a.AdmittedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.New(apperr.CodeDuplicateResource, "admission number %q already exists", a.Number)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "admission %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadTimeline(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) GetStatus(ctx context.Context, id uuid.UUID) (Status, error) {
	var s Status
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT status FROM admission WHERE id = $1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.New(apperr.CodeNotFound, "admission %s not found", id)
	}
	return s, err
}

func (r *repoPG) List(ctx context.Context, status Status, limit, offset int) ([]*Admission, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+admissionCols+` FROM admission`+where+
			` ORDER BY admitted_at DESC LIMIT $`+itoa(n+1)+` OFFSET $`+itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var admissions []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}
	return admissions, total, rows.Err()
}

func (r *repoPG) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to Status, dischargedAt *time.Time) (uuid.UUID, bool, error) {
	var bedID uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`UPDATE admission SET status = $1, discharged_at = COALESCE($2, discharged_at)
		 WHERE id = $3 AND status = $4
		 RETURNING bed_id`,
		to, dischargedAt, id, from).Scan(&bedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return bedID, true, nil
}

func (r *repoPG) SetBed(ctx context.Context, id uuid.UUID, wardID *uuid.UUID, bedID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admission SET ward_id = $1, bed_id = $2 WHERE id = $3`,
		wardID, bedID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "admission %s not found", id)
	}
	return nil
}

func (r *repoPG) SaveSummary(ctx context.Context, s *DischargeSummary) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO discharge_summary (admission_id, investigations, discharge_medications,
			condition, response, follow_up, signed_by, total_amount, amount_paid, balance_due)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (admission_id) DO UPDATE SET
			investigations = EXCLUDED.investigations,
			discharge_medications = EXCLUDED.discharge_medications,
			condition = EXCLUDED.condition,
			response = EXCLUDED.response,
			follow_up = EXCLUDED.follow_up,
			signed_by = EXCLUDED.signed_by,
			total_amount = EXCLUDED.total_amount,
			amount_paid = EXCLUDED.amount_paid,
			balance_due = EXCLUDED.balance_due`,
		s.AdmissionID, s.Investigations, s.DischargeMedications, s.Condition,
		s.Response, s.FollowUp, s.SignedBy, s.TotalAmount, s.AmountPaid, s.BalanceDue)
	return err
}

// ---------------------------------------------------------------------------
// Timeline appends
// ---------------------------------------------------------------------------

func (r *repoPG) AddVital(ctx context.Context, v *Vital) error {
	v.ID = uuid.New()
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO admission_vital (id, admission_id, temperature, pulse, resp_rate,
			blood_pressure, spo2, notes, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.AdmissionID, v.Temperature, v.Pulse, v.RespRate,
		v.BloodPressure, v.SpO2, v.Notes, v.RecordedAt)
	return wrapFKNotFound(err, v.AdmissionID)
}

func (r *repoPG) AddMedication(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO admission_medication (id, admission_id, name, dosage, frequency,
			route, notes, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.AdmissionID, m.Name, m.Dosage, m.Frequency, m.Route, m.Notes, m.RecordedAt)
	return wrapFKNotFound(err, m.AdmissionID)
}

func (r *repoPG) AddLabOrder(ctx context.Context, o *LabOrder) error {
	o.ID = uuid.New()
	if o.OrderedAt.IsZero() {
		o.OrderedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO admission_lab_order (id, admission_id, test_name, notes, ordered_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.AdmissionID, o.TestName, o.Notes, o.OrderedAt)
	return wrapFKNotFound(err, o.AdmissionID)
}

func (r *repoPG) AddBillingItem(ctx context.Context, b *BillingItem) error {
	b.ID = uuid.New()
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now().UTC()
	}
	if b.Quantity == 0 {
		b.Quantity = 1
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO admission_billing_item (id, admission_id, description, quantity, amount, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.AdmissionID, b.Description, b.Quantity, b.Amount, b.RecordedAt)
	return wrapFKNotFound(err, b.AdmissionID)
}

func (r *repoPG) AddVisit(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO admission_visit (id, admission_id, doctor_id, doctor_name, visit_at, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.AdmissionID, v.DoctorID, v.DoctorName, v.VisitAt, v.Notes)
	return wrapFKNotFound(err, v.AdmissionID)
}

const visitCols = `id, admission_id, doctor_id, doctor_name, visit_at, notes, created_at`

func (r *repoPG) GetVisit(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	var v Visit
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM admission_visit WHERE id = $1`, visitID).
		Scan(&v.ID, &v.AdmissionID, &v.DoctorID, &v.DoctorName, &v.VisitAt, &v.Notes, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "visit %s not found", visitID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) UpdateVisit(ctx context.Context, v *Visit) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admission_visit SET doctor_id = $1, doctor_name = $2, visit_at = $3, notes = $4
		 WHERE id = $5`,
		v.DoctorID, v.DoctorName, v.VisitAt, v.Notes, v.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "visit %s not found", v.ID)
	}
	return nil
}

func (r *repoPG) DeleteVisit(ctx context.Context, visitID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM admission_visit WHERE id = $1`, visitID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "visit %s not found", visitID)
	}
	return nil
}

func (r *repoPG) ListVisitsBetween(ctx context.Context, from, to time.Time, doctorID *uuid.UUID) ([]*Visit, error) {
	query := `SELECT v.id, v.admission_id, v.doctor_id, v.doctor_name, v.visit_at, v.notes, v.created_at
		 FROM admission_visit v
		 JOIN admission a ON a.id = v.admission_id
		 WHERE a.status = 'admitted' AND v.visit_at >= $1 AND v.visit_at < $2`
	args := []interface{}{from, to}
	if doctorID != nil {
		query += ` AND v.doctor_id = $3`
		args = append(args, *doctorID)
	}
	query += ` ORDER BY v.visit_at`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.AdmissionID, &v.DoctorID, &v.DoctorName,
			&v.VisitAt, &v.Notes, &v.CreatedAt); err != nil {
			return nil, err
		}
		visits = append(visits, &v)
	}
	return visits, rows.Err()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (r *repoPG) loadTimeline(ctx context.Context, a *Admission) error {
	q := r.conn(ctx)

	rows, err := q.Query(ctx,
		`SELECT id, admission_id, temperature, pulse, resp_rate, blood_pressure, spo2, notes, recorded_at
		 FROM admission_vital WHERE admission_id = $1 ORDER BY recorded_at`, a.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v Vital
		if err := rows.Scan(&v.ID, &v.AdmissionID, &v.Temperature, &v.Pulse, &v.RespRate,
			&v.BloodPressure, &v.SpO2, &v.Notes, &v.RecordedAt); err != nil {
			rows.Close()
			return err
		}
		a.Vitals = append(a.Vitals, &v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT id, admission_id, name, dosage, frequency, route, notes, recorded_at
		 FROM admission_medication WHERE admission_id = $1 ORDER BY recorded_at`, a.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.AdmissionID, &m.Name, &m.Dosage, &m.Frequency,
			&m.Route, &m.Notes, &m.RecordedAt); err != nil {
			rows.Close()
			return err
		}
		a.Medications = append(a.Medications, &m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT id, admission_id, test_name, notes, ordered_at
		 FROM admission_lab_order WHERE admission_id = $1 ORDER BY ordered_at`, a.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var o LabOrder
		if err := rows.Scan(&o.ID, &o.AdmissionID, &o.TestName, &o.Notes, &o.OrderedAt); err != nil {
			rows.Close()
			return err
		}
		a.LabOrders = append(a.LabOrders, &o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT `+visitCols+` FROM admission_visit WHERE admission_id = $1 ORDER BY visit_at`, a.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.AdmissionID, &v.DoctorID, &v.DoctorName,
			&v.VisitAt, &v.Notes, &v.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		a.Visits = append(a.Visits, &v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT id, admission_id, description, quantity, amount, recorded_at
		 FROM admission_billing_item WHERE admission_id = $1 ORDER BY recorded_at`, a.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var b BillingItem
		if err := rows.Scan(&b.ID, &b.AdmissionID, &b.Description, &b.Quantity,
			&b.Amount, &b.RecordedAt); err != nil {
			rows.Close()
			return err
		}
		a.BillingItems = append(a.BillingItems, &b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var s DischargeSummary
	err = q.QueryRow(ctx,
		`SELECT admission_id, investigations, discharge_medications, condition, response,
			follow_up, signed_by, total_amount, amount_paid, balance_due, created_at
		 FROM discharge_summary WHERE admission_id = $1`, a.ID).
		Scan(&s.AdmissionID, &s.Investigations, &s.DischargeMedications, &s.Condition,
			&s.Response, &s.FollowUp, &s.SignedBy, &s.TotalAmount, &s.AmountPaid,
			&s.BalanceDue, &s.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// no summary yet
	case err != nil:
		return err
	default:
		a.Summary = &s
	}
	return nil
}

// wrapFKNotFound turns a foreign-key violation on admission_id into the
// not_found the append surface promises.
func wrapFKNotFound(err error, admissionID uuid.UUID) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.New(apperr.CodeNotFound, "admission %s not found", admissionID)
	}
	return err
}

func itoa(n int) string { return strconv.Itoa(n) }
