package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// ClaimBed is the mutual-exclusion primitive: a compare-and-swap keyed on
// the status column. The database applies the row update atomically, so of
// N concurrent claimants exactly one sees RowsAffected == 1.
func (r *repoPG) ClaimBed(ctx context.Context, bedID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = 'occupied', updated_at = NOW()
		WHERE id = $1 AND status = 'available'`, bedID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) LinkAdmission(ctx context.Context, bedID, admissionID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET admission_id = $2, updated_at = NOW()
		WHERE id = $1`, bedID, admissionID)
	return err
}

func (r *repoPG) ReleaseBed(ctx context.Context, bedID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = 'available', admission_id = NULL, updated_at = NOW()
		WHERE id = $1`, bedID)
	return err
}

func (r *repoPG) SetServiceState(ctx context.Context, bedID uuid.UUID, state string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'occupied'`, bedID, state)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) BedExists(ctx context.Context, bedID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bed WHERE id = $1)`, bedID).Scan(&exists)
	return exists, err
}

func (r *repoPG) OrphanedBeds(ctx context.Context) ([]Orphan, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.id, b.number, b.admission_id, b.updated_at
		FROM bed b
		LEFT JOIN admission a ON a.id = b.admission_id AND a.status = 'admitted'
		WHERE b.status = 'occupied' AND a.id IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []Orphan
	for rows.Next() {
		var o Orphan
		if err := rows.Scan(&o.BedID, &o.Number, &o.AdmissionID, &o.OccupiedAt); err != nil {
			return nil, err
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}
