package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Object Types ---

func (s *PostgresStore) ListObjectTypes(ctx context.Context) ([]*models.ObjectType, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM object_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list object types: %w", err)
	}
	defer rows.Close()

	types := []*models.ObjectType{}
	for rows.Next() {
		var ot models.ObjectType
		if err := rows.Scan(&ot.ID, &ot.Name, &ot.Description, &ot.CreatedAt, &ot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan object type: %w", err)
		}
		types = append(types, &ot)
	}
	return types, rows.Err()
}

func (s *PostgresStore) GetObjectTypeByName(ctx context.Context, name string) (*models.ObjectType, error) {
	return scanObjectType(s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM object_types WHERE name = $1`, name))
}

func (s *PostgresStore) CountObjectTypes(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM object_types`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count object types: %w", err)
	}
	return n, nil
}

func scanObjectType(row pgx.Row) (*models.ObjectType, error) {
	var ot models.ObjectType
	err := row.Scan(&ot.ID, &ot.Name, &ot.Description, &ot.CreatedAt, &ot.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object type: %w", err)
	}
	return &ot, nil
}

// --- Results ---

const resultColumns = `o.id, o.input_id, o.object_type_id, t.name, o.predicted_count, o.corrected_count,
	i.image_path, i.description, o.total_segments, o.processing_time, o.created_at, o.updated_at`

const resultJoin = `FROM outputs o
	JOIN inputs i ON i.id = o.input_id
	JOIN object_types t ON t.id = o.object_type_id`

func scanResult(row pgx.Row) (*models.Result, error) {
	var r models.Result
	err := row.Scan(&r.ID, &r.InputID, &r.ObjectTypeID, &r.ObjectType, &r.PredictedCount, &r.CorrectedCount,
		&r.ImagePath, &r.Description, &r.TotalSegments, &r.ProcessingTime, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveResult stores the input image record and its prediction in one transaction.
// When in.ObjectType is unknown the lowest-id object type is used instead.
func (s *PostgresStore) SaveResult(ctx context.Context, in models.NewResult) (*models.Result, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin save result: %w", err)
	}
	defer tx.Rollback(ctx)

	ot, err := scanObjectType(tx.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM object_types WHERE name = $1`, in.ObjectType))
	if errors.Is(err, ErrNotFound) {
		ot, err = scanObjectType(tx.QueryRow(ctx,
			`SELECT id, name, description, created_at, updated_at FROM object_types ORDER BY id LIMIT 1`))
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoObjectTypes
		}
	}
	if err != nil {
		return nil, err
	}

	var inputID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO inputs (image_path, description) VALUES ($1, $2) RETURNING id`,
		in.ImagePath, in.Description,
	).Scan(&inputID); err != nil {
		return nil, fmt.Errorf("insert input: %w", err)
	}

	r := &models.Result{
		InputID:        inputID,
		ObjectTypeID:   ot.ID,
		ObjectType:     ot.Name,
		PredictedCount: in.PredictedCount,
		ImagePath:      in.ImagePath,
		Description:    in.Description,
		TotalSegments:  in.TotalSegments,
		ProcessingTime: in.ProcessingTime,
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO outputs (input_id, object_type_id, predicted_count, total_segments, processing_time)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		inputID, ot.ID, in.PredictedCount, in.TotalSegments, in.ProcessingTime,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert output: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit save result: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetResult(ctx context.Context, id int64) (*models.Result, error) {
	r, err := scanResult(s.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` `+resultJoin+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) UpdateCorrection(ctx context.Context, id int64, corrected int, opts ...CorrectionOption) (*models.Result, error) {
	params := ApplyCorrectionOptions(opts...)

	query := `UPDATE outputs SET corrected_count = $2, updated_at = NOW()`
	args := []any{id, corrected}
	if params.ObjectType != nil && *params.ObjectType != "" {
		query += `, object_type_id = COALESCE((SELECT id FROM object_types WHERE name = $3), object_type_id)`
		args = append(args, *params.ObjectType)
	}
	query += ` WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update correction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetResult(ctx, id)
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]*models.Result, int, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.ObjectType != "" && filter.ObjectType != "all" {
		conditions = append(conditions, fmt.Sprintf("t.name = $%d", argIdx))
		args = append(args, filter.ObjectType)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) "+resultJoin+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	page, perPage := NormalizePage(filter.Page, filter.PerPage)
	offset := (page - 1) * perPage

	dataQuery := fmt.Sprintf(`SELECT %s %s%s ORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d`,
		resultColumns, resultJoin, where, argIdx, argIdx+1)
	args = append(args, perPage, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []*models.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// DeleteResult removes the prediction and its input record, returning the
// deleted row so the caller can clean up the stored image.
func (s *PostgresStore) DeleteResult(ctx context.Context, id int64) (*models.Result, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete result: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := deleteResultTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete result: %w", err)
	}
	return r, nil
}

// BulkDelete removes every existing id in one transaction. Missing ids are
// reported as failures and do not abort the batch.
func (s *PostgresStore) BulkDelete(ctx context.Context, ids []int64) (*BulkDeleteResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin bulk delete: %w", err)
	}
	defer tx.Rollback(ctx)

	out := &BulkDeleteResult{
		Deleted:    []int64{},
		ImagePaths: []string{},
		Failures:   []DeleteFailure{},
	}
	for _, id := range ids {
		r, err := deleteResultTx(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			out.Failures = append(out.Failures, DeleteFailure{ID: id, Reason: "Result not found"})
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Deleted = append(out.Deleted, id)
		if r.ImagePath != "" {
			out.ImagePaths = append(out.ImagePaths, r.ImagePath)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bulk delete: %w", err)
	}
	return out, nil
}

func deleteResultTx(ctx context.Context, tx pgx.Tx, id int64) (*models.Result, error) {
	r, err := scanResult(tx.QueryRow(ctx,
		`SELECT `+resultColumns+` `+resultJoin+` WHERE o.id = $1 FOR UPDATE OF o`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load result %d: %w", id, err)
	}

	// outputs cascade from inputs
	if _, err := tx.Exec(ctx, `DELETE FROM inputs WHERE id = $1`, r.InputID); err != nil {
		return nil, fmt.Errorf("delete result %d: %w", id, err)
	}
	return r, nil
}

// NormalizePage clamps pagination input: page >= 1, 1 <= perPage <= 100, default 10.
func NormalizePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// isDuplicateKeyError checks if a pgx error is a unique violation (23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
