package validation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type validationRepoPG struct{ pool *pgxpool.Pool }

// NewValidationRepoPG creates the PostgreSQL-backed repository.
func NewValidationRepoPG(pool *pgxpool.Pool) ValidationRepository {
	return &validationRepoPG{pool: pool}
}

const validationCols = `id, subject_id, owner_id, ai_result, reviewer_id,
	expert_result, comments, status, created_at, reviewed_at, version`

func (r *validationRepoPG) scan(row pgx.Row) (*ValidationRecord, error) {
	var rec ValidationRecord
	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.OwnerID, &rec.AIResult,
		&rec.ReviewerID, &rec.ExpertResult, &rec.Comments, &rec.Status,
		&rec.CreatedAt, &rec.ReviewedAt, &rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *validationRepoPG) Create(ctx context.Context, rec *ValidationRecord) error {
	rec.ID = uuid.New()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO validation (id, subject_id, owner_id, ai_result, status, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		RETURNING created_at, version`,
		rec.ID, rec.SubjectID, rec.OwnerID, rec.AIResult, rec.Status)
	return row.Scan(&rec.CreatedAt, &rec.Version)
}

func (r *validationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ValidationRecord, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+validationCols+` FROM validation WHERE id = $1`, id))
}

// CommitReview is the version-guarded write. The WHERE clause is the whole
// concurrency story: if another reviewer bumped the version between our read
// and this write, zero rows match and a re-read decides between conflict and
// not-found.
func (r *validationRepoPG) CommitReview(ctx context.Context, rec *ValidationRecord, expectedVersion int) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE validation
		SET status = $3, reviewer_id = $4, expert_result = $5, comments = $6,
		    reviewed_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING reviewed_at, version`,
		rec.ID, expectedVersion, rec.Status, rec.ReviewerID, rec.ExpertResult, rec.Comments)

	err := row.Scan(&rec.ReviewedAt, &rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, rec.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return err
}

func (r *validationRepoPG) ListPending(ctx context.Context, limit, offset int) ([]*ValidationRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM validation WHERE status = $1`, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+validationCols+` FROM validation WHERE status = $1
		 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *validationRepoPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ValidationRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM validation WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+validationCols+` FROM validation WHERE owner_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *validationRepoPG) collect(rows pgx.Rows) ([]*ValidationRecord, error) {
	var items []*ValidationRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
