package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relinq/internal/canon"
	"github.com/roach88/relinq/internal/chain"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/parser"
	"github.com/roach88/relinq/internal/testutil"
)

// createTestStore opens a store in a temp dir with a deterministic clock
// and sequential ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(testutil.NewDeterministicClock().Now),
		WithIDGenerator(testutil.NewSequentialIDs().Next),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(model string) canon.Object {
	return canon.Object{"version": canon.String("1"), "model": canon.String(model)}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='snapshots'").Scan(&name)
	require.NoError(t, err)
	require.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	s.Close()

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestRecord_AssignsIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e, inserted, err := s.Record(ctx, Snapshot{Scenario: "adults", Query: "people.Count()", Model: testSnapshot("a")})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", e.ID)
	assert.Equal(t, int64(1), e.Seq)
	assert.Equal(t, testutil.Epoch, e.CreatedAt)
	assert.Equal(t, canon.QueryFingerprint("people.Count()"), e.QueryHash)

	want, err := canon.ModelFingerprint(testSnapshot("a"))
	require.NoError(t, err)
	assert.Equal(t, want, e.ModelHash)

	parsed, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestRecord_DefaultIDsAreV7(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	e, _, err := s.Record(context.Background(), Snapshot{Query: "q", Model: testSnapshot("a")})
	require.NoError(t, err)
	parsed, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Minute)
}

func TestRecord_IdempotentPerModel(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.Record(ctx, Snapshot{Scenario: "x", Query: "q", Model: testSnapshot("a")})
	require.NoError(t, err)
	require.True(t, inserted)

	again, inserted, err := s.Record(ctx, Snapshot{Scenario: "x", Query: "q", Model: testSnapshot("a")})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, again)

	changed, inserted, err := s.Record(ctx, Snapshot{Scenario: "x", Query: "q", Model: testSnapshot("b")})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(2), changed.Seq)
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", changed.ID, "a skipped insert consumes no id")

	history, err := s.ReadQuery(ctx, canon.QueryFingerprint("q"))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, canon.String("a"), history[0].Snapshot["model"])
	assert.Equal(t, canon.String("b"), history[1].Snapshot["model"])
}

func TestRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	res, err := parser.New().ParseResult(testutil.People().
		Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression { return testutil.Gt(p, "Age", 30) })).
		Count().MustExpr())
	require.NoError(t, err)
	snap, err := canon.Snapshot(res.Model)
	require.NoError(t, err)

	e, _, err := s.Record(ctx, Snapshot{Scenario: "adults", Query: "people.Where(p => p.Age > 30).Count()", Model: snap})
	require.NoError(t, err)

	got, err := s.ReadEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, canon.MustMarshal(snap), canon.MustMarshal(got.Snapshot))

	_, err = s.ReadEntry(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRead_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, sc := range []string{"b", "a", "b", "c"} {
		_, _, err := s.Record(ctx, Snapshot{Scenario: sc, Query: sc, Model: testSnapshot(string(rune('0' + i)))})
		require.NoError(t, err)
	}

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, e := range all {
		assert.Equal(t, int64(i+1), e.Seq)
	}

	b, err := s.ReadScenario(ctx, "b")
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, int64(1), b[0].Seq)
	assert.Equal(t, int64(3), b[1].Seq)

	latest, err := s.Latest(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Seq)

	_, err = s.Latest(ctx, "none")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	names, err := s.ListScenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	seq, err := s.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)

	none, err := s.ReadScenario(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPrune(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, m := range []string{"a", "b", "c"} {
		_, _, err := s.Record(ctx, Snapshot{Scenario: "x", Query: "q", Model: testSnapshot(m)})
		require.NoError(t, err)
	}
	_, _, err := s.Record(ctx, Snapshot{Scenario: "y", Query: "q", Model: testSnapshot("z")})
	require.NoError(t, err)

	n, err := s.Prune(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := s.ReadScenario(ctx, "x")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, canon.String("c"), left[0].Snapshot["model"])

	others, err := s.ReadScenario(ctx, "y")
	require.NoError(t, err)
	assert.Len(t, others, 1)

	_, err = s.Prune(ctx, "x", -1)
	assert.Error(t, err)
}
