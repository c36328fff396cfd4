// Package store provides the SQLite-backed configuration storage the
// pipeline reads its run snapshot from: sources, topics, the keyword
// blocklist, settings, and the digest history log.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pheme/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding pipeline configuration.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database under dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pheme.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			url TEXT NOT NULL,
			category TEXT DEFAULT 'general',
			config TEXT DEFAULT '{}',
			enabled INTEGER DEFAULT 1,
			last_fetched DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS topics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			keywords TEXT DEFAULT '[]',
			patterns TEXT DEFAULT '[]',
			priority INTEGER DEFAULT 0,
			max_articles INTEGER DEFAULT 10,
			enabled INTEGER DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS blocked_keywords (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			keyword TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS digest_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			generated_at DATETIME,
			source_count INTEGER,
			fetched INTEGER,
			entry_count INTEGER,
			status TEXT,
			failure TEXT
		);`,
	}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

// --- Sources ---

// AddSource inserts a source and returns its assigned ID.
func (s *Store) AddSource(src core.Source) (int64, error) {
	cfg, err := json.Marshal(src.Config)
	if err != nil {
		return 0, fmt.Errorf("failed to encode source config: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO sources (name, kind, url, category, config, enabled) VALUES (?, ?, ?, ?, ?, ?)`,
		src.Name, string(src.Kind), src.URL, src.Category, string(cfg), boolToInt(src.Enabled),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source: %w", err)
	}
	return res.LastInsertId()
}

// ListSources returns all sources in configuration (insertion) order.
// When enabledOnly is set, disabled sources are omitted.
func (s *Store) ListSources(enabledOnly bool) ([]core.Source, error) {
	query := `SELECT id, name, kind, url, category, config, enabled, last_fetched FROM sources`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		var src core.Source
		var kind, cfg string
		var enabled int
		var lastFetched sql.NullTime
		if err := rows.Scan(&src.ID, &src.Name, &kind, &src.URL, &src.Category, &cfg, &enabled, &lastFetched); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.Kind = core.SourceKind(kind)
		src.Enabled = enabled != 0
		if lastFetched.Valid {
			src.LastFetched = lastFetched.Time.UTC()
		}
		if err := json.Unmarshal([]byte(cfg), &src.Config); err != nil {
			src.Config = map[string]string{}
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// ListEnabledSources returns the enabled sources in configuration
// order; this is the snapshot a digest run fetches from.
func (s *Store) ListEnabledSources() ([]core.Source, error) {
	return s.ListSources(true)
}

// UpdateSourceLastFetched stamps a source after a successful fetch.
func (s *Store) UpdateSourceLastFetched(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE sources SET last_fetched = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update source %d: %w", id, err)
	}
	return nil
}

// SetSourceEnabled toggles a source.
func (s *Store) SetSourceEnabled(id int64, enabled bool) error {
	_, err := s.db.Exec(`UPDATE sources SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("failed to toggle source %d: %w", id, err)
	}
	return nil
}

// --- Topics ---

// AddTopic inserts a topic and returns its assigned ID. Insertion order
// is the canonical tie-break order used by cross-topic dedup.
func (s *Store) AddTopic(t core.Topic) (int64, error) {
	kw, err := json.Marshal(t.Keywords)
	if err != nil {
		return 0, fmt.Errorf("failed to encode keywords: %w", err)
	}
	pat, err := json.Marshal(t.Patterns)
	if err != nil {
		return 0, fmt.Errorf("failed to encode patterns: %w", err)
	}
	if t.MaxArticles <= 0 {
		t.MaxArticles = 10
	}
	res, err := s.db.Exec(
		`INSERT INTO topics (name, keywords, patterns, priority, max_articles, enabled) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, string(kw), string(pat), t.Priority, t.MaxArticles, boolToInt(t.Enabled),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert topic: %w", err)
	}
	return res.LastInsertId()
}

// ListTopics returns enabled topics in configuration order.
func (s *Store) ListTopics() ([]core.Topic, error) {
	rows, err := s.db.Query(
		`SELECT id, name, keywords, patterns, priority, max_articles, enabled
		 FROM topics WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	var topics []core.Topic
	for rows.Next() {
		var t core.Topic
		var kw, pat string
		var enabled int
		if err := rows.Scan(&t.ID, &t.Name, &kw, &pat, &t.Priority, &t.MaxArticles, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		t.Enabled = enabled != 0
		if err := json.Unmarshal([]byte(kw), &t.Keywords); err != nil {
			t.Keywords = nil
		}
		if err := json.Unmarshal([]byte(pat), &t.Patterns); err != nil {
			t.Patterns = nil
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// --- Blocklist ---

// AddBlockedKeyword adds a keyword to the global blocklist.
func (s *Store) AddBlockedKeyword(keyword string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO blocked_keywords (keyword) VALUES (?)`, keyword)
	if err != nil {
		return fmt.Errorf("failed to insert blocked keyword: %w", err)
	}
	return nil
}

// BlockedKeywords returns the blocklist in insertion order, plus the
// run-wide filter scope from settings.
func (s *Store) BlockedKeywords() ([]string, core.BlockScope, error) {
	rows, err := s.db.Query(`SELECT keyword FROM blocked_keywords ORDER BY id`)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query blocked keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, "", fmt.Errorf("failed to scan blocked keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	scope := core.ScopeNarrow
	if v, err := s.GetSetting("filter_scope", string(core.ScopeNarrow)); err == nil && v == string(core.ScopeFull) {
		scope = core.ScopeFull
	}
	return keywords, scope, nil
}

// --- Settings ---

// SetSetting upserts an application setting.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetSetting reads an application setting, returning def when unset.
func (s *Store) GetSetting(key, def string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// --- Digest history ---

// LogDigest records the outcome of one digest run.
func (s *Store) LogDigest(result *core.DigestResult, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO digest_log (run_id, generated_at, source_count, fetched, entry_count, status, failure)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.Stats.RunID,
		result.GeneratedAt,
		len(result.Stats.Sources),
		result.Stats.Fetched,
		result.EntryCount(),
		status,
		result.Stats.Failure,
	)
	if err != nil {
		return fmt.Errorf("failed to log digest: %w", err)
	}
	return nil
}

// LogDigestFailure records a run that failed before composing a digest.
func (s *Store) LogDigestFailure(reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO digest_log (generated_at, status, failure) VALUES (?, ?, ?)`,
		time.Now().UTC(), "failed", reason,
	)
	if err != nil {
		return fmt.Errorf("failed to log digest failure: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
