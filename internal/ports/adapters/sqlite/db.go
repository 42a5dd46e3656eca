// Package sqlite keeps the export job log in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/forPelevin/tlcut/internal/logging"
	"github.com/forPelevin/tlcut/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrExportNotFound = errors.New("export not found")

type DB struct {
	conn  *sql.DB
	log   *logrus.Entry
	pid   int
	alive func(pid int) bool
}

type Option func(*DB)

// WithOwnerPID sets the process id stamped on exports this DB starts.
func WithOwnerPID(pid int) Option {
	return func(d *DB) { d.pid = pid }
}

// WithProcessCheck replaces the liveness test applied to owners of running exports.
func WithProcessCheck(alive func(pid int) bool) Option {
	return func(d *DB) { d.alive = alive }
}

// Open creates the database file if needed, applies pending migrations and
// marks running exports whose owning process has exited as failed. Exports
// of a live process, such as a concurrent serve, are left alone.
func Open(dbPath string, log *logrus.Entry, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if log == nil {
		log = logrus.NewEntry(logging.Discard())
	}
	db := &DB{conn: conn, log: log.WithField("component", "exportlog"), pid: os.Getpid(), alive: processAlive}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if n, err := db.markInterrupted(); err != nil {
		db.log.WithError(err).Warn("failed to mark interrupted exports")
	} else if n > 0 {
		db.log.WithField("count", n).Info("marked interrupted exports as failed")
	}
	return db, nil
}

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if d.migrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := d.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := d.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		d.log.WithField("name", name).Debug("applied migration")
	}
	return nil
}

func (d *DB) migrationApplied(name string) bool {
	var one int
	if err := d.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&one); err != nil {
		return false
	}
	err := d.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&one)
	return err == nil
}

func (d *DB) markInterrupted() (int64, error) {
	rows, err := d.conn.Query(`SELECT id, owner_pid FROM exports WHERE status = ?`, string(ports.JobRunning))
	if err != nil {
		return 0, err
	}
	var orphaned []string
	for rows.Next() {
		var (
			id  string
			pid int
		)
		if err := rows.Scan(&id, &pid); err != nil {
			rows.Close()
			return 0, err
		}
		if pid == d.pid || (pid > 0 && d.alive(pid)) {
			continue
		}
		orphaned = append(orphaned, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var n int64
	now := formatTime(time.Now())
	for _, id := range orphaned {
		res, err := d.conn.Exec(
			`UPDATE exports SET status = ?, error = 'interrupted by restart', finished_at = ? WHERE id = ? AND status = ?`,
			string(ports.JobFailed), now, id, string(ports.JobRunning))
		if err != nil {
			return n, err
		}
		c, _ := res.RowsAffected()
		n += c
	}
	return n, nil
}

// processAlive reports whether pid names a running process. Errors count as alive.
func processAlive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return ok || err != nil
}

func (d *DB) RecordStart(ctx context.Context, rec ports.ExportRecord) error {
	spec, err := json.Marshal(rec.Spec)
	if err != nil {
		return fmt.Errorf("encode render spec: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = ports.JobRunning
	}
	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO exports (id, project, output_path, spec, status, error, started_at, owner_pid) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Project, rec.OutputPath, string(spec), string(status), rec.Error, formatTime(rec.StartedAt), d.pid)
	if err != nil {
		return fmt.Errorf("insert export %s: %w", rec.ID, err)
	}
	return nil
}

func (d *DB) RecordFinish(ctx context.Context, id string, status ports.JobStatus, errMsg string, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("export %s: %q is not a final status", id, status)
	}
	res, err := d.conn.ExecContext(ctx,
		`UPDATE exports SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errMsg, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update export %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}
	return nil
}

// List returns the most recent exports first. limit <= 0 means no limit.
func (d *DB) List(ctx context.Context, limit int) ([]ports.ExportRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, project, output_path, spec, status, error, started_at, finished_at
		 FROM exports ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var out []ports.ExportRecord
	for rows.Next() {
		var (
			rec          ports.ExportRecord
			spec, status string
			started      string
			finished     sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Project, &rec.OutputPath, &spec, &status, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		if err := json.Unmarshal([]byte(spec), &rec.Spec); err != nil {
			return nil, fmt.Errorf("decode render spec of %s: %w", rec.ID, err)
		}
		rec.Status = ports.JobStatus(status)
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// tsLayout has a fixed-width fraction so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

var _ ports.ExportLog = (*DB)(nil)
