package registry

import (
	"context"
	"errors"
	"strconv"

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

// uniqueViolation is SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) CreateFloor(ctx context.Context, f *Floor) error {
	f.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO floor (id, name) VALUES ($1, $2)`, f.ID, f.Name)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicateResource, "floor %q already exists", f.Name)
	}
	return err
}

func (r *repoPG) ListFloors(ctx context.Context) ([]*Floor, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, created_at FROM floor ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var floors []*Floor
	for rows.Next() {
		var f Floor
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		floors = append(floors, &f)
	}
	return floors, rows.Err()
}

func (r *repoPG) CreateWard(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO ward (id, floor_id, name) VALUES ($1, $2, $3)`,
		w.ID, w.FloorID, w.Name)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicateResource, "ward %q already exists on this floor", w.Name)
	}
	return err
}

func (r *repoPG) ListWards(ctx context.Context) ([]*Ward, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, floor_id, name, created_at FROM ward ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		var w Ward
		if err := rows.Scan(&w.ID, &w.FloorID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		wards = append(wards, &w)
	}
	return wards, rows.Err()
}

func (r *repoPG) WardExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ward WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) CreateRoom(ctx context.Context, rm *Room) error {
	rm.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO room (id, ward_id, name) VALUES ($1, $2, $3)`,
		rm.ID, rm.WardID, rm.Name)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicateResource, "room %q already exists in this ward", rm.Name)
	}
	return err
}

func (r *repoPG) ListRooms(ctx context.Context, wardID *uuid.UUID) ([]*Room, error) {
	query := `SELECT id, ward_id, name, created_at FROM room`
	args := []interface{}{}
	if wardID != nil {
		query += ` WHERE ward_id = $1`
		args = append(args, *wardID)
	}
	query += ` ORDER BY name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		var rm Room
		if err := rows.Scan(&rm.ID, &rm.WardID, &rm.Name, &rm.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, &rm)
	}
	return rooms, rows.Err()
}

func (r *repoPG) RoomExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM room WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

const bedCols = `id, ward_id, room_id, number, category, rate, rate_type, status, admission_id, created_at, updated_at`

func (r *repoPG) CreateBed(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bed (id, ward_id, room_id, number, category, rate, rate_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.WardID, b.RoomID, b.Number, b.Category, b.Rate, b.RateType, b.Status)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicateResource, "bed %q already exists under this parent", b.Number)
	}
	return err
}

func (r *repoPG) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	b, err := scanBed(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bedCols+` FROM bed WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "bed %s not found", id)
	}
	return b, err
}

func (r *repoPG) ListBeds(ctx context.Context, filter BedFilter, limit, offset int) ([]*Bed, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	if filter.Status != "" {
		n++
		where += ` AND status = $` + itoa(n)
		args = append(args, filter.Status)
	}
	if filter.WardID != nil {
		n++
		where += ` AND ward_id = $` + itoa(n)
		args = append(args, *filter.WardID)
	}
	if filter.RoomID != nil {
		n++
		where += ` AND room_id = $` + itoa(n)
		args = append(args, *filter.RoomID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bed`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bedCols + ` FROM bed` + where +
		` ORDER BY number LIMIT $` + itoa(n+1) + ` OFFSET $` + itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		var b Bed
		if err := rows.Scan(&b.ID, &b.WardID, &b.RoomID, &b.Number, &b.Category,
			&b.Rate, &b.RateType, &b.Status, &b.AdmissionID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		beds = append(beds, &b)
	}
	return beds, total, rows.Err()
}

// UpdateBed writes catalog attributes. Status is deliberately absent from
// the statement: occupancy transitions go through the allocation
// coordinator and service states through SetStatusIfUnoccupied.
func (r *repoPG) UpdateBed(ctx context.Context, b *Bed) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET
			number = $2, category = $3, rate = $4, rate_type = $5,
			updated_at = NOW()
		WHERE id = $1`,
		b.ID, b.Number, b.Category, b.Rate, b.RateType)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicateResource, "bed %q already exists under this parent", b.Number)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "bed %s not found", b.ID)
	}
	return nil
}

func (r *repoPG) SetStatusIfUnoccupied(ctx context.Context, id uuid.UUID, status BedStatus) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'occupied'`,
		id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) DeleteBed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM bed WHERE id = $1 AND status <> 'occupied'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bed WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return apperr.New(apperr.CodeResourceOccupied, "bed %s is occupied", id)
	}
	return apperr.New(apperr.CodeNotFound, "bed %s not found", id)
}

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.WardID, &b.RoomID, &b.Number, &b.Category,
		&b.Rate, &b.RateType, &b.Status, &b.AdmissionID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
