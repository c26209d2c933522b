package timelinestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/timeline"
)

// Store persists the working timeline backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// MetaShareableURL records the link produced by the last cloud save.
const MetaShareableURL = "shareable_url"

// Open initializes or connects to the workspace database of cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.WorkspaceDBPath())
}

// OpenPath opens the database file at path.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the persisted list with entries, keeping their order.
func (s *Store) Save(ctx context.Context, entries []timeline.PhotoEntry) error {
	ctx = ensureContext(ctx)
	stamp := s.timestamp()
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM photo_entries"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO photo_entries
            (id, position, image_url, date, message, status, generated_image_url, error_detail, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, e := range entries {
			if _, err := stmt.ExecContext(ctx,
				e.ID, i, nullableString(e.ImageURL), e.Date, e.Message, string(e.Status),
				nullableString(e.GeneratedURL), nullableString(e.ErrorDetail), stamp,
			); err != nil {
				return fmt.Errorf("insert entry %s: %w", e.ID, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save timeline: %w", err)
	}
	return nil
}

// Load returns the persisted entries in insertion order.
func (s *Store) Load(ctx context.Context) ([]timeline.PhotoEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, image_url, date, message, status, generated_image_url, error_detail
        FROM photo_entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	defer rows.Close()

	var entries []timeline.PhotoEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return entries, nil
}

// ResetInterrupted turns entries left uploading or pending by an earlier
// process into errors. It returns how many entries changed.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE photo_entries
         SET status = ?,
             error_detail = CASE status WHEN ? THEN ? ELSE ? END,
             updated_at = ?
         WHERE status IN (?, ?)`,
		timeline.StatusError,
		timeline.StatusUploading, timeline.UploadInterruptedMessage, timeline.GenerateInterruptedDetail,
		s.timestamp(),
		timeline.StatusUploading, timeline.StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted entries: %w", err)
	}
	return res.RowsAffected()
}

// StatusCounts returns the number of persisted entries per status.
func (s *Store) StatusCounts(ctx context.Context) (map[timeline.Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(1) FROM photo_entries GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[timeline.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[timeline.Status(status)] = count
	}
	return counts, rows.Err()
}

// SetMeta stores a workspace metadata value. An empty value removes the key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	if strings.TrimSpace(value) == "" {
		if err := s.execWithoutResultRetry(ctx, "DELETE FROM workspace_meta WHERE key = ?", key); err != nil {
			return fmt.Errorf("clear meta %s: %w", key, err)
		}
		return nil
	}
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO workspace_meta (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.timestamp(),
	); err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// Meta returns a workspace metadata value, or "" when unset.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT value FROM workspace_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (timeline.PhotoEntry, error) {
	var (
		entry        timeline.PhotoEntry
		imageURL     sql.NullString
		status       string
		generatedURL sql.NullString
		errorDetail  sql.NullString
	)
	if err := scanner.Scan(&entry.ID, &imageURL, &entry.Date, &entry.Message, &status, &generatedURL, &errorDetail); err != nil {
		return timeline.PhotoEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	entry.ImageURL = imageURL.String
	entry.Status = timeline.Status(status)
	entry.GeneratedURL = generatedURL.String
	entry.ErrorDetail = errorDetail.String
	return entry, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
