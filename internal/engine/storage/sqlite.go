// Package storage is the local sqlite mirror of everything a run has
// persisted, plus the checkpoint that makes interrupted runs resumable.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvergara/leadtap/internal/engine/dedup"
	"github.com/dvergara/leadtap/internal/model"
)

// Store wraps one sqlite file. EXCLUSIVE locking enforces the
// at-most-one-writer invariant across processes, not just goroutines.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Checkpoint is the durable progress pointer. It only ever advances at
// flush boundaries, so it can never point past rows that are not in the
// mirror yet.
type Checkpoint struct {
	RunID         string
	TaskIndex     int
	ListingOffset int
	Statuses      map[int]model.TaskStatus
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA locking_mode=EXCLUSIVE",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tab TEXT NOT NULL,
		country TEXT,
		city TEXT,
		category TEXT,
		name TEXT NOT NULL,
		email TEXT,
		website TEXT,
		phone TEXT,
		review_count INTEGER,
		address TEXT,
		maps_url TEXT,
		dedup_key TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(dedup_key)
	);
	CREATE INDEX IF NOT EXISTS idx_businesses_tab ON businesses(tab);
	CREATE INDEX IF NOT EXISTS idx_businesses_city ON businesses(city);

	CREATE TABLE IF NOT EXISTS tasks (
		idx INTEGER PRIMARY KEY,
		country TEXT NOT NULL,
		region TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS progress (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		run_id TEXT NOT NULL,
		task_idx INTEGER NOT NULL,
		listing_offset INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InsertBatch appends a flushed batch to the mirror. Rows whose dedup
// key already exists are ignored, so a replayed flush after a crash
// cannot double-write. Satisfies the sheet.Sink surface.
func (s *Store) InsertBatch(ctx context.Context, tab string, rows []model.BusinessRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO businesses
		(tab, country, city, category, name, email, website, phone, review_count, address, maps_url, dedup_key)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		res, err := stmt.Exec(
			tab, r.Country, r.City, r.Category, r.Name, r.Email, r.Website,
			r.Phone, r.ReviewCount, r.Address, r.MapsURL, string(dedup.KeyFor(r)),
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting %q: %w", r.Name, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// Append implements sheet.Sink by delegating to InsertBatch.
func (s *Store) Append(ctx context.Context, tab string, rows []model.BusinessRecord) (int, error) {
	return s.InsertBatch(ctx, tab, rows)
}

// Keys returns every dedup key already persisted, for seeding the
// deduplicator at startup.
func (s *Store) Keys(ctx context.Context) ([]dedup.Key, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT dedup_key FROM businesses")
	if err != nil {
		return nil, fmt.Errorf("loading keys: %w", err)
	}
	defer rows.Close()

	var keys []dedup.Key
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, dedup.Key(k))
	}
	return keys, rows.Err()
}

// SyncTasks reconciles the task table with the input file: new rows are
// inserted pending, known unchanged rows keep their stored status except
// that failed flips back to pending so a fresh run retries it. Rows are
// matched by position; an edited row resets to pending.
func (s *Store) SyncTasks(ctx context.Context, tasks []model.SearchTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	for i, t := range tasks {
		_, err := tx.Exec(`
			INSERT INTO tasks (idx, country, region, category, status) VALUES (?,?,?,?,?)
			ON CONFLICT(idx) DO UPDATE SET
				country=excluded.country, region=excluded.region, category=excluded.category,
				status=CASE
					WHEN tasks.country=excluded.country AND tasks.region=excluded.region
					     AND tasks.category=excluded.category AND tasks.status<>'failed'
					THEN tasks.status ELSE 'pending' END,
				updated_at=CURRENT_TIMESTAMP`,
			i, t.Country, t.Region, t.Category, string(model.StatusPending))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("syncing task %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}
	return nil
}

// SetTaskStatus records a state-machine transition.
func (s *Store) SetTaskStatus(ctx context.Context, idx int, status model.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status=?, updated_at=CURRENT_TIMESTAMP WHERE idx=?", string(status), idx)
	if err != nil {
		return fmt.Errorf("setting task %d status: %w", idx, err)
	}
	return nil
}

// Load returns the current checkpoint, or a zero checkpoint for a fresh
// database.
func (s *Store) Load(ctx context.Context) (Checkpoint, error) {
	cp := Checkpoint{Statuses: map[int]model.TaskStatus{}}

	row := s.db.QueryRowContext(ctx, "SELECT run_id, task_idx, listing_offset FROM progress WHERE id=1")
	err := row.Scan(&cp.RunID, &cp.TaskIndex, &cp.ListingOffset)
	if err != nil && err != sql.ErrNoRows {
		return cp, fmt.Errorf("loading progress: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT idx, status FROM tasks")
	if err != nil {
		return cp, fmt.Errorf("loading task statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var status string
		if err := rows.Scan(&idx, &status); err != nil {
			return cp, err
		}
		cp.Statuses[idx] = model.TaskStatus(status)
	}
	return cp, rows.Err()
}

// Advance moves the progress pointer. Called only after a successful
// flush; that ordering is the crash-safety contract of the pipeline.
func (s *Store) Advance(ctx context.Context, runID string, taskIdx, listingOffset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (id, run_id, task_idx, listing_offset) VALUES (1,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			run_id=excluded.run_id, task_idx=excluded.task_idx,
			listing_offset=excluded.listing_offset, updated_at=CURRENT_TIMESTAMP`,
		runID, taskIdx, listingOffset)
	if err != nil {
		return fmt.Errorf("advancing checkpoint: %w", err)
	}
	return nil
}

// BeginRun records the run in the history table.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO runs (id, started_at) VALUES (?,?)", runID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// FinishRun stamps the run as complete.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at=? WHERE id=?", time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// Count returns the number of mirrored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM businesses").Scan(&count)
	return count, err
}

// All returns every mirrored record in insertion order, for export.
func (s *Store) All(ctx context.Context) ([]model.BusinessRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country, city, category, name, email, website, phone, review_count, address, maps_url
		FROM businesses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		var r model.BusinessRecord
		if err := rows.Scan(&r.Country, &r.City, &r.Category, &r.Name, &r.Email,
			&r.Website, &r.Phone, &r.ReviewCount, &r.Address, &r.MapsURL); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
