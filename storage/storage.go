package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"interest-profiler/profile"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// Run is a saved analysis result.
type Run struct {
	ID          string
	User        string
	ChatID      int64
	CreatedAt   time.Time
	Profile     profile.Profile
	Suggestions []string
	SourceCount int
	Sources     []RunSource
}

// RunSource is how one source was weighted in a saved run.
type RunSource struct {
	URL          string
	Kind         profile.Kind
	Multiplier   float64
	DurationSecs *int64
	Distribution profile.Distribution
}

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		user TEXT NOT NULL,
		chat_id INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		profile TEXT NOT NULL DEFAULT '[]',
		suggestions TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_user_created ON runs(user, created_at);

	CREATE TABLE IF NOT EXISTS run_sources (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		multiplier REAL NOT NULL,
		duration_secs INTEGER,
		distribution TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, position)
	);

	CREATE TABLE IF NOT EXISTS watched_sources (
		chat_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		added_at DATETIME NOT NULL,
		PRIMARY KEY (chat_id, url)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

type entryJSON struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
}

type scoreJSON struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SaveReport stores a finished report and the weighting of each source.
func (db *DB) SaveReport(ctx context.Context, chatID int64, rep *profile.Report) error {
	entries := make([]entryJSON, len(rep.Profile))
	for i, e := range rep.Profile {
		entries[i] = entryJSON{Label: e.Label, Percentage: e.Percentage}
	}
	profileJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	suggestions := rep.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, user, chat_id, created_at, profile, suggestions) VALUES (?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.User, chatID, rep.CreatedAt.UTC(), string(profileJSON), string(suggestionsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, src := range rep.Sources {
		scores := make([]scoreJSON, len(src.Distribution))
		for j, ls := range src.Distribution {
			scores[j] = scoreJSON{Label: ls.Label, Score: ls.Score}
		}
		distJSON, err := json.Marshal(scores)
		if err != nil {
			return fmt.Errorf("marshal distribution: %w", err)
		}

		var duration sql.NullInt64
		if src.Duration.Known {
			duration = sql.NullInt64{Int64: src.Duration.Seconds, Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_sources (run_id, position, url, kind, multiplier, duration_secs, distribution)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, i, src.Source.URL, src.Source.Kind.String(), float64(src.Multiplier), duration, string(distJSON),
		)
		if err != nil {
			return fmt.Errorf("insert run source: %w", err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recent run for a user, with its sources.
func (db *DB) LatestRun(ctx context.Context, user string) (*Run, error) {
	runs, err := db.ListRuns(ctx, user, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}

	run := runs[0]
	run.Sources, err = db.runSources(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns a user's most recent runs, newest first, without sources.
func (db *DB) ListRuns(ctx context.Context, user string, limit int) ([]Run, error) {
	query := `
	SELECT id, user, chat_id, created_at, profile, suggestions,
		(SELECT COUNT(*) FROM run_sources WHERE run_id = runs.id)
	FROM runs WHERE user = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, user, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var profileJSON, suggestionsJSON string
		if err := rows.Scan(&run.ID, &run.User, &run.ChatID, &run.CreatedAt, &profileJSON, &suggestionsJSON, &run.SourceCount); err != nil {
			return nil, err
		}

		var entries []entryJSON
		if err := json.Unmarshal([]byte(profileJSON), &entries); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
		run.Profile = make(profile.Profile, len(entries))
		for i, e := range entries {
			run.Profile[i] = profile.Entry{Label: e.Label, Percentage: e.Percentage}
		}

		if err := json.Unmarshal([]byte(suggestionsJSON), &run.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal suggestions: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (db *DB) runSources(ctx context.Context, runID string) ([]RunSource, error) {
	query := `
	SELECT url, kind, multiplier, duration_secs, distribution
	FROM run_sources WHERE run_id = ? ORDER BY position
	`
	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []RunSource
	for rows.Next() {
		var src RunSource
		var kind, distJSON string
		var duration sql.NullInt64
		if err := rows.Scan(&src.URL, &kind, &src.Multiplier, &duration, &distJSON); err != nil {
			return nil, err
		}
		if kind == profile.KindVideo.String() {
			src.Kind = profile.KindVideo
		}
		if duration.Valid {
			src.DurationSecs = &duration.Int64
		}

		var scores []scoreJSON
		if err := json.Unmarshal([]byte(distJSON), &scores); err != nil {
			return nil, fmt.Errorf("unmarshal distribution: %w", err)
		}
		src.Distribution = make(profile.Distribution, len(scores))
		for i, s := range scores {
			src.Distribution[i] = profile.LabelScore{Label: s.Label, Score: s.Score}
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// WatchSource adds a URL to a chat's watch list. It reports whether the URL
// was newly added.
func (db *DB) WatchSource(ctx context.Context, chatID int64, url string) (bool, error) {
	query := `INSERT OR IGNORE INTO watched_sources (chat_id, url, added_at) VALUES (?, ?, ?)`
	res, err := db.conn.ExecContext(ctx, query, chatID, url, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UnwatchSource removes a URL from a chat's watch list.
func (db *DB) UnwatchSource(ctx context.Context, chatID int64, url string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM watched_sources WHERE chat_id = ? AND url = ?`, chatID, url)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// WatchedSources returns a chat's watch list in the order URLs were added.
func (db *DB) WatchedSources(ctx context.Context, chatID int64) ([]string, error) {
	query := `SELECT url FROM watched_sources WHERE chat_id = ? ORDER BY added_at, rowid`
	rows, err := db.conn.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// WatchingChats returns every chat with at least one watched source.
func (db *DB) WatchingChats(ctx context.Context) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT chat_id FROM watched_sources ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSetting retrieves a setting value by key.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM settings WHERE key = ?`
	var value string
	err := db.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting stores or updates a setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := db.conn.ExecContext(ctx, query, key, value)
	return err
}
