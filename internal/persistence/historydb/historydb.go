// Package historydb keeps a sqlite read-model of plan and job lifecycles
// for the dashboard. It is an index, not a ledger: rows are written by a
// single goroutine behind a buffered channel and dropped when the indexer
// falls behind, because the activity log remains the source of truth.
package historydb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type reqKind int

const (
	reqPlan reqKind = iota + 1
	reqJobEvent
)

type req struct {
	kind reqKind
	plan planRow
	job  jobEventRow
}

type planRow struct {
	GoalID    string
	Item      string
	Quantity  int
	Jobs      int
	CreatedAt string
}

type jobEventRow struct {
	GoalID     string
	JobID      string
	Event      string
	Worker     string
	Detail     string
	RecordedAt string
}

// DB is the async single-writer index. It implements plan.Recorder.
type DB struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("historydb: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	h := &DB{
		db: db,
		ch: make(chan req, 8192),
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loop()
	}()
	return h, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			goal_id TEXT PRIMARY KEY,
			item TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			jobs INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS job_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			goal_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			event TEXT NOT NULL,
			worker TEXT,
			detail TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_job_events_goal ON job_events(goal_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *DB) Close() error {
	var err error
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.ch)
		h.wg.Wait()
		err = h.db.Close()
	})
	return err
}

// PlanCreated records a new plan. Non-blocking.
func (h *DB) PlanCreated(goalID, item string, quantity, jobs int) {
	if h == nil || h.closed.Load() {
		return
	}
	r := planRow{
		GoalID:    goalID,
		Item:      item,
		Quantity:  quantity,
		Jobs:      jobs,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case h.ch <- req{kind: reqPlan, plan: r}:
	default:
	}
}

// JobEvent records one job lifecycle transition. Non-blocking.
func (h *DB) JobEvent(goalID, jobID, event, worker, detail string) {
	if h == nil || h.closed.Load() {
		return
	}
	r := jobEventRow{
		GoalID:     goalID,
		JobID:      jobID,
		Event:      event,
		Worker:     worker,
		Detail:     detail,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case h.ch <- req{kind: reqJobEvent, job: r}:
	default:
	}
}

func (h *DB) loop() {
	for r := range h.ch {
		switch r.kind {
		case reqPlan:
			_, _ = h.db.Exec(
				`INSERT OR REPLACE INTO plans (goal_id, item, quantity, jobs, created_at) VALUES (?, ?, ?, ?, ?)`,
				r.plan.GoalID, r.plan.Item, r.plan.Quantity, r.plan.Jobs, r.plan.CreatedAt,
			)
		case reqJobEvent:
			_, _ = h.db.Exec(
				`INSERT INTO job_events (goal_id, job_id, event, worker, detail, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
				r.job.GoalID, r.job.JobID, r.job.Event, r.job.Worker, r.job.Detail, r.job.RecordedAt,
			)
		}
	}
}

// Plan is one recorded plan with its created timestamp.
type Plan struct {
	GoalID    string
	Item      string
	Quantity  int
	Jobs      int
	CreatedAt string
}

// Plans returns recorded plans, newest first.
func (h *DB) Plans(ctx context.Context) ([]Plan, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT goal_id, item, quantity, jobs, created_at FROM plans ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.GoalID, &p.Item, &p.Quantity, &p.Jobs, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// JobHistory is one recorded job transition.
type JobHistory struct {
	JobID      string
	Event      string
	Worker     string
	Detail     string
	RecordedAt string
}

// JobEvents returns the ordered event history of one goal.
func (h *DB) JobEvents(ctx context.Context, goalID string) ([]JobHistory, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT job_id, event, worker, detail, recorded_at FROM job_events WHERE goal_id = ? ORDER BY seq`,
		goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobHistory
	for rows.Next() {
		var e JobHistory
		if err := rows.Scan(&e.JobID, &e.Event, &e.Worker, &e.Detail, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
