package instance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore is the production Store backed by the instances table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-bootstrapped database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create inserts a new instance. The id must not already exist.
func (s *SQLiteStore) Create(ctx context.Context, in *Instance) error {
	if in == nil {
		return fmt.Errorf("instance is nil")
	}
	if in.ID == "" {
		return fmt.Errorf("instance id is empty")
	}
	if in.BundleID == "" {
		return fmt.Errorf("bundle id is empty")
	}

	props, err := in.Properties.JSON()
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
INSERT INTO instances(id, bundle_id, bundle_version, properties, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?);
`, in.ID, in.BundleID, in.BundleVersion, string(props), now, now)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// Get returns the instance, or (nil, nil) if the id is unknown.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Instance, error) {
	if id == "" {
		return nil, fmt.Errorf("instance id is empty")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id, bundle_id, bundle_version, properties, created_at, updated_at
FROM instances
WHERE id = ?;
`, id)

	in, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Update replaces the stored instance wholesale under its id. Returns false
// if the id is unknown.
func (s *SQLiteStore) Update(ctx context.Context, in *Instance) (bool, error) {
	if in == nil {
		return false, fmt.Errorf("instance is nil")
	}
	if in.ID == "" {
		return false, fmt.Errorf("instance id is empty")
	}

	props, err := in.Properties.JSON()
	if err != nil {
		return false, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
UPDATE instances
SET bundle_version = ?, properties = ?, updated_at = ?
WHERE id = ?;
`, in.BundleVersion, string(props), now, in.ID)
	if err != nil {
		return false, fmt.Errorf("update instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetPage returns one page of the bundle's instances in insertion order.
func (s *SQLiteStore) GetPage(ctx context.Context, bundleID string, page, pageSize int) ([]*Instance, error) {
	if bundleID == "" {
		return nil, fmt.Errorf("bundle id is empty")
	}
	cursor, err := NewCursor(page, pageSize)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, bundle_id, bundle_version, properties, created_at, updated_at
FROM instances
WHERE bundle_id = ?
ORDER BY rowid ASC
LIMIT ? OFFSET ?;
`, bundleID, cursor.PageSize, cursor.Skip())
	if err != nil {
		return nil, fmt.Errorf("query instance page: %w", err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instance page: %w", err)
	}
	return out, nil
}

// CountByBundle returns the number of instances owned by a bundle.
func (s *SQLiteStore) CountByBundle(ctx context.Context, bundleID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM instances WHERE bundle_id = ?;", bundleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*Instance, error) {
	var (
		in         Instance
		propsRaw   string
		createdAtS string
		updatedAtS string
	)
	if err := row.Scan(&in.ID, &in.BundleID, &in.BundleVersion, &propsRaw, &createdAtS, &updatedAtS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan instance: %w", err)
	}

	props, err := MapFromJSON([]byte(propsRaw))
	if err != nil {
		return nil, fmt.Errorf("instance %q: %w", in.ID, err)
	}
	in.Properties = props

	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		in.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAtS); err == nil {
		in.UpdatedAt = t
	}
	return &in, nil
}
