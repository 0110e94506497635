// Package journal keeps a sqlite record of dispatcher events: windows
// opening and closing, page commands, and messages crossing to and from
// the script runtime.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one recorded event
type Entry struct {
	ID       int64
	At       time.Time
	Kind     host.EventKind
	WindowID types.ID
	Payload  string
	Error    string
}

// String formats the entry as a single log line
func (e Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-13s", e.At.Format(time.RFC3339Nano), e.Kind)
	if e.WindowID != "" {
		fmt.Fprintf(&sb, " [%s]", e.WindowID)
	}
	if e.Payload != "" {
		fmt.Fprintf(&sb, " %q", e.Payload)
	}
	if e.Error != "" {
		sb.WriteString(" error: " + e.Error)
	}
	return sb.String()
}

// Stats counts journal writes
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Source is anything publishing dispatcher events
type Source interface {
	OnEvent(fn func(host.Event)) listeners.Unsubscribe
}

// Journal writes events on a background goroutine so dispatcher listeners
// never wait on the database.
type Journal struct {
	db     *sql.DB
	logger *logger.Logger
	queue  chan Entry
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// Open opens the journal database at path, creating and migrating it as
// needed. queueSize bounds the events waiting to be written.
func Open(path string, queueSize int, log *logger.Logger) (*Journal, error) {
	if path == "" {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "journal path is required")
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = logger.Global()
	}

	db, err := openDB(path)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to open journal", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, types.WrapError(types.ErrCodeInternal, "failed to migrate journal", err)
	}

	j := &Journal{
		db:     db,
		logger: log.With("component", "journal", "path", path),
		queue:  make(chan Entry, queueSize),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp applies the embedded migrations. The migrate instance is not
// closed since that would close db too.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Attach records every event src publishes until the returned handle is called
func (j *Journal) Attach(src Source) listeners.Unsubscribe {
	return src.OnEvent(j.Record)
}

// Record queues e for writing. It never blocks: events arriving while the
// queue is full, or after Close, are counted as dropped.
func (j *Journal) Record(e host.Event) {
	entry := Entry{
		At:       time.Now().UTC(),
		Kind:     e.Kind,
		WindowID: e.WindowID,
		Payload:  e.Payload,
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- entry:
	default:
		j.dropped.Add(1)
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for e := range j.queue {
		_, err := j.db.Exec(
			`INSERT INTO events (at_unix_ns, kind, window_id, payload, error) VALUES (?, ?, ?, ?, ?)`,
			e.At.UnixNano(), string(e.Kind), e.WindowID.String(), e.Payload, e.Error)
		if err != nil {
			j.failed.Add(1)
			j.logger.Warn("Journal write failed", "kind", string(e.Kind), "error", err)
			continue
		}
		j.written.Add(1)
	}
}

// Query filters Recent. Zero values match everything.
type Query struct {
	Kind     host.EventKind
	WindowID types.ID
	Limit    int
}

// Recent returns the newest entries matching q, oldest first
func (j *Journal) Recent(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	var (
		where []string
		args  []any
	)
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.WindowID != "" {
		where = append(where, "window_id = ?")
		args = append(args, q.WindowID.String())
	}
	query := `SELECT id, at_unix_ns, kind, window_id, payload, error FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "failed to query journal", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			at     int64
			kind   string
			window string
		)
		if err := rows.Scan(&e.ID, &at, &kind, &window, &e.Payload, &e.Error); err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "failed to read journal row", err)
		}
		e.At = time.Unix(0, at).UTC()
		e.Kind = host.EventKind(kind)
		e.WindowID = types.NewID(window)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "failed to read journal", err)
	}

	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Count returns the number of recorded entries
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, types.WrapError(types.ErrCodeInternal, "failed to count journal entries", err)
	}
	return n, nil
}

// Stats returns write counters
func (j *Journal) Stats() Stats {
	return Stats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Failed:  j.failed.Load(),
	}
}

// Close writes the queued events and closes the database
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Debug("Journal closed", "written", j.written.Load(), "dropped", j.dropped.Load())
	return j.db.Close()
}
