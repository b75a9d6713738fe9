package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/relinq/internal/canon"
)

// Entry is one recorded snapshot.
type Entry struct {
	ID        string
	Seq       int64
	Scenario  string
	Query     string
	QueryHash string
	ModelHash string
	Snapshot  canon.Object
	CreatedAt time.Time
}

// Snapshot is the input to Record.
type Snapshot struct {
	Scenario string
	Query    string
	Model    canon.Object
}

// Record stores a snapshot and returns its entry. If the same query text
// was already recorded with the same model, the existing entry is returned
// with inserted=false and nothing is written.
//
// The read and the insert share a transaction, so concurrent callers
// recording the same pair store it once.
func (s *Store) Record(ctx context.Context, snap Snapshot) (entry Entry, inserted bool, err error) {
	snapJSON, err := marshalSnapshot(snap.Model)
	if err != nil {
		return Entry{}, false, fmt.Errorf("record: %w", err)
	}
	modelHash, err := canon.ModelFingerprint(snap.Model)
	if err != nil {
		return Entry{}, false, fmt.Errorf("record: %w", err)
	}
	queryHash := canon.QueryFingerprint(snap.Query)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, false, fmt.Errorf("record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := scanEntry(tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM snapshots
		WHERE query_hash = ? AND model_hash = ?
	`, queryHash, modelHash))
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return Entry{}, false, fmt.Errorf("record: commit (existing): %w", err)
		}
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return Entry{}, false, fmt.Errorf("record: select existing: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots`).Scan(&seq); err != nil {
		return Entry{}, false, fmt.Errorf("record: next seq: %w", err)
	}

	id, err := s.newID()
	if err != nil {
		return Entry{}, false, fmt.Errorf("record: new id: %w", err)
	}
	created := s.now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, seq, scenario, query, query_hash, model_hash, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		seq,
		snap.Scenario,
		snap.Query,
		queryHash,
		modelHash,
		snapJSON,
		formatTime(created),
	)
	if err != nil {
		return Entry{}, false, fmt.Errorf("record: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, false, fmt.Errorf("record: commit: %w", err)
	}

	return Entry{
		ID:        id.String(),
		Seq:       seq,
		Scenario:  snap.Scenario,
		Query:     snap.Query,
		QueryHash: queryHash,
		ModelHash: modelHash,
		Snapshot:  snap.Model,
		CreatedAt: created,
	}, true, nil
}

// Prune deletes every entry of a scenario except the newest keep entries,
// and returns how many were removed.
func (s *Store) Prune(ctx context.Context, scenario string, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep must not be negative, got %d", keep)
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE scenario = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE scenario = ?
			ORDER BY seq DESC
			LIMIT ?
		)
	`, scenario, scenario, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune: rows affected: %w", err)
	}
	return n, nil
}
