package store

import (
	"context"
	"fmt"
)

const entryColumns = `id, seq, scenario, query, query_hash, model_hash, snapshot, created_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a row into an Entry. Scan errors, including
// sql.ErrNoRows, are returned unwrapped.
func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var snapJSON, created string
	if err := row.Scan(
		&e.ID, &e.Seq, &e.Scenario, &e.Query,
		&e.QueryHash, &e.ModelHash, &snapJSON, &created,
	); err != nil {
		return Entry{}, err
	}

	snap, err := unmarshalSnapshot(snapJSON)
	if err != nil {
		return Entry{}, err
	}
	e.Snapshot = snap

	t, err := parseTime(created)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt = t

	return e, nil
}

// ReadEntry retrieves a single entry by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEntry(ctx context.Context, id string) (Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM snapshots
		WHERE id = ?
	`, id))
}

// ReadAll returns every entry ordered by seq ASC, id ASC.
func (s *Store) ReadAll(ctx context.Context) ([]Entry, error) {
	return s.readEntries(ctx, `
		SELECT `+entryColumns+`
		FROM snapshots
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadScenario returns the history of one scenario, oldest first.
func (s *Store) ReadScenario(ctx context.Context, scenario string) ([]Entry, error) {
	return s.readEntries(ctx, `
		SELECT `+entryColumns+`
		FROM snapshots
		WHERE scenario = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, scenario)
}

// ReadQuery returns every model recorded for a query text, oldest first.
// More than one entry means the model of the query changed over time.
func (s *Store) ReadQuery(ctx context.Context, queryHash string) ([]Entry, error) {
	return s.readEntries(ctx, `
		SELECT `+entryColumns+`
		FROM snapshots
		WHERE query_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, queryHash)
}

// Latest returns the most recent entry of a scenario.
// Returns sql.ErrNoRows if the scenario has no history.
func (s *Store) Latest(ctx context.Context, scenario string) (Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM snapshots
		WHERE scenario = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scenario))
}

// GetLastSeq returns the highest seq in the store, or 0 when empty.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM snapshots
	`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// ListScenarios returns the distinct scenario names, alphabetically.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scenario FROM snapshots
		ORDER BY scenario COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return names, nil
}

// readEntries runs a query returning entry rows. The result is never nil.
func (s *Store) readEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return entries, nil
}
