// Package statsdb indexes action outcomes in SQLite. Writes are queued and
// applied by a single goroutine; the journal stays the source of truth.
package statsdb

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

	"voxelfarm.ai/internal/bot"
)

const queueSize = 4096

type RunInfo struct {
	ID      string
	Agent   string
	URL     string
	Started time.Time
}

type DB struct {
	db  *sql.DB
	run RunInfo

	ch     chan bot.ActionRecord
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool

	ticks   atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

var _ bot.Recorder = (*DB)(nil)

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTotal     uint64
	FailTotal     uint64
}

func Open(path string, run RunInfo) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO runs(id,agent,url,started_at) VALUES(?,?,?,?)`,
		run.ID, run.Agent, run.URL, run.Started.UTC().Format(time.RFC3339Nano)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	s := &DB{db: db, run: run, ch: make(chan bot.ActionRecord, queueSize)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			url TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			ticks INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			mode TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			stale INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			err TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_mode ON actions(mode, action);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and stamps the run's end.
func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		_, err = s.db.Exec(`UPDATE runs SET ended_at=?, ticks=? WHERE id=?`,
			time.Now().UTC().Format(time.RFC3339Nano), int64(s.ticks.Load()), s.run.ID)
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func (s *DB) RecordTick(bot.TickRecord) {
	if s == nil {
		return
	}
	s.ticks.Add(1)
}

func (s *DB) RecordAction(r bot.ActionRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *DB) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropped.Load(),
		FailTotal:     s.failed.Load(),
	}
}

func (s *DB) loop() {
	ctx := context.Background()
	insert, err := s.db.Prepare(`INSERT OR REPLACE INTO actions(run_id,seq,at,epoch,mode,action,x,y,z,ok,stale,latency_ms,err) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		for range s.ch {
			s.failed.Add(1)
		}
		return
	}
	defer insert.Close()

	var (
		tx            *sql.Tx
		opCount       int
		seq           int64
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = time.Second
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				s.failed.Add(1)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
		}
		seq++
		if _, err := tx.Stmt(insert).Exec(
			s.run.ID, seq, r.Time.UTC().Format(time.RFC3339Nano), int64(r.Epoch), r.Mode, r.Action,
			r.Pos[0], r.Pos[1], r.Pos[2], boolInt(r.OK), boolInt(r.Stale), r.Latency.Milliseconds(), r.Err,
		); err != nil {
			s.failed.Add(1)
			_ = tx.Rollback()
			tx = nil
			opCount = 0
			continue
		}
		opCount++
		// Commit once the burst is drained so rows become visible promptly.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ActionSummary aggregates outcomes of one action kind in one mode.
type ActionSummary struct {
	Run          string
	Mode         string
	Action       string
	Total        int
	Failed       int
	Stale        int
	AvgLatencyMs float64
}

// Summarize reads per run, mode and action totals from the database at path.
func Summarize(ctx context.Context, path string) ([]ActionSummary, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT run_id, mode, action, COUNT(*), SUM(1-ok), SUM(stale), AVG(latency_ms)
		FROM actions GROUP BY run_id, mode, action ORDER BY run_id, mode, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionSummary
	for rows.Next() {
		var a ActionSummary
		if err := rows.Scan(&a.Run, &a.Mode, &a.Action, &a.Total, &a.Failed, &a.Stale, &a.AvgLatencyMs); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
