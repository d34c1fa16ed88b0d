// Package audit persists a per-attempt audit trail to sqlite so operators
// can inspect what the router did and why. The trail records attempt
// outcomes only; the health registry never reads it back, and no health
// state survives a restart through it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite" // sqlite driver

	"agrimind/router/pkg/executor"
)

// Config configures the recorder.
type Config struct {
	// DBPath is the sqlite database file path.
	DBPath string

	// RetentionDays is how long attempt rows are kept.
	RetentionDays int

	// PruneSchedule is the cron schedule for retention pruning.
	PruneSchedule string
}

// Recorder writes attempt records to sqlite and prunes old rows on a cron
// schedule.
type Recorder struct {
	db        *sql.DB
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	attempt_id  TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL,
	task        TEXT NOT NULL,
	number      INTEGER NOT NULL,
	endpoint    TEXT NOT NULL,
	credential  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	error       TEXT,
	latency_ms  INTEGER NOT NULL,
	tokens      INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON attempts(created_at);
CREATE INDEX IF NOT EXISTS idx_attempts_request_id ON attempts(request_id);
`

// Open opens (creating if needed) the audit database.
func Open(cfg Config) (*Recorder, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database %q: %w", cfg.DBPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}

	return &Recorder{
		db:        db,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  cfg.PruneSchedule,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "audit.recorder"),
	}, nil
}

// Record inserts one attempt row. Failures are logged, not returned: the
// audit trail must never break a live request.
func (r *Recorder) Record(a executor.Attempt) {
	if r == nil {
		return
	}
	errText := ""
	if a.Err != nil {
		errText = a.Err.Error()
	}

	_, err := r.db.Exec(
		`INSERT INTO attempts
		 (attempt_id, request_id, task, number, endpoint, credential, kind, error, latency_ms, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AttemptID, a.RequestID, a.Task, a.Number, a.EndpointID, a.CredentialID,
		a.Kind, errText, a.Latency.Milliseconds(), a.Tokens, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("failed to record attempt", "request_id", a.RequestID, "error", err)
	}
}

// Prune deletes rows older than the retention period and returns how many
// were removed.
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.retention)
	res, err := r.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartRetention schedules retention pruning. An empty schedule disables
// it.
func (r *Recorder) StartRetention(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.schedule == "" {
		return nil
	}

	_, err := r.cron.AddFunc(r.schedule, func() {
		n, err := r.Prune(ctx)
		if err != nil {
			r.logger.Error("audit prune failed", "error", err)
			return
		}
		r.logger.Info("audit rows pruned", "deleted", n)
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("audit retention started", "schedule", r.schedule, "retention", r.retention)
	return nil
}

// Close stops the retention schedule and closes the database.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.running {
		r.cron.Stop()
		r.running = false
	}
	r.mu.Unlock()
	return r.db.Close()
}

// RequestAttempts returns the attempts recorded for one request id, in
// attempt order. Used by operators to reconstruct a retry chain.
func (r *Recorder) RequestAttempts(ctx context.Context, requestID string) ([]executor.Attempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT attempt_id, task, number, endpoint, credential, kind, error, latency_ms, tokens
		 FROM attempts WHERE request_id = ? ORDER BY number`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts for %q: %w", requestID, err)
	}
	defer rows.Close()

	var out []executor.Attempt
	for rows.Next() {
		var (
			a         executor.Attempt
			errText   string
			latencyMS int64
		)
		a.RequestID = requestID
		if err := rows.Scan(&a.AttemptID, &a.Task, &a.Number, &a.EndpointID, &a.CredentialID,
			&a.Kind, &errText, &latencyMS, &a.Tokens); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		if errText != "" {
			a.Err = fmt.Errorf("%s", errText)
		}
		a.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}
