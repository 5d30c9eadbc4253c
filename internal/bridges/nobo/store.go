package nobo

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore implements SnapshotStore on the nobo_entities table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure SQLiteStore implements SnapshotStore.
var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a snapshot store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Save inserts or replaces the line stored for an entity.
func (s *SQLiteStore) Save(ctx context.Context, kind EntityKind, key, line string) error {
	if kind == "" || key == "" {
		return fmt.Errorf("kind and key are required")
	}
	const query = `INSERT INTO nobo_entities (kind, key, line, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, key) DO UPDATE SET line = excluded.line, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		string(kind), key, line, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, key, err)
	}
	return nil
}

// Delete removes the stored line of an entity. Deleting an unknown
// entity is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, kind EntityKind, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM nobo_entities WHERE kind = ? AND key = ?`, string(kind), key)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, key, err)
	}
	return nil
}

// kindOrder replays week profiles before the zones that reference them
// and the hub last, mirroring the order of a G00 dump.
const kindOrder = `CASE kind
		WHEN 'weekprofile' THEN 0
		WHEN 'zone' THEN 1
		WHEN 'component' THEN 2
		WHEN 'override' THEN 3
		WHEN 'hub' THEN 4
		ELSE 5 END`

// LoadAll returns every stored line in replay order.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, key, line, updated_at FROM nobo_entities ORDER BY `+kindOrder+`, key`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			kind    string
			updated string
		)
		if err := rows.Scan(&kind, &snap.Key, &snap.Line, &updated); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.Kind = EntityKind(kind)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			snap.UpdatedAt = t
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return out, nil
}
