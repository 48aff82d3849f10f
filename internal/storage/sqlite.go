package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage handles all database operations for a crawl run
type Storage struct {
	db    *sql.DB
	runID string
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath, runID string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db, runID: runID}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		run_id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		mapped INTEGER DEFAULT 0,
		unmapped INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pages (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		content TEXT,
		stored_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, url)
	);

	CREATE TABLE IF NOT EXISTS edges (
		run_id TEXT NOT NULL,
		parent_url TEXT NOT NULL,
		child_url TEXT NOT NULL,
		external INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, child_url)
	);

	CREATE TABLE IF NOT EXISTS external_links (
		link_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edges_parent ON edges(run_id, parent_url);
	CREATE INDEX IF NOT EXISTS idx_external_source ON external_links(run_id, source_url);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RunID returns the crawl run this storage writes under
func (s *Storage) RunID() string {
	return s.runID
}

// StartRun records the beginning of a crawl run
func (s *Storage) StartRun(seedURL string, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_runs (run_id, seed_url, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, s.runID, seedURL, startedAt)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of the crawl run
func (s *Storage) FinishRun(finishedAt time.Time, mapped, unmapped int) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET finished_at = ?, mapped = ?, unmapped = ?
		WHERE run_id = ?
	`, finishedAt, mapped, unmapped, s.runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun loads the crawl_runs row of this run
func (s *Storage) GetRun() (Run, error) {
	run := Run{RunID: s.runID}
	var finished sql.NullTime
	err := s.db.QueryRow(`
		SELECT seed_url, started_at, finished_at, mapped, unmapped
		FROM crawl_runs WHERE run_id = ?
	`, s.runID).Scan(&run.SeedURL, &run.StartedAt, &finished, &run.Mapped, &run.Unmapped)
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, nil
}

// Write stores the text of a page, keeping the first content seen for a URL
func (s *Storage) Write(url, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO pages (run_id, url, content)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, url) DO NOTHING
	`, s.runID, url, content)
	if err != nil {
		return fmt.Errorf("failed to store page: %w", err)
	}
	return nil
}

// UpsertEdge records the parent of a URL; the first parent written wins
func (s *Storage) UpsertEdge(edge Edge) error {
	_, err := s.db.Exec(`
		INSERT INTO edges (run_id, parent_url, child_url, external)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, child_url) DO NOTHING
	`, s.runID, edge.Parent, edge.Child, edge.External)
	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}
	return nil
}

// ReplaceExternalLinks rewrites the external links of the run in one transaction
func (s *Storage) ReplaceExternalLinks(links []ExternalLink) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM external_links WHERE run_id = ?", s.runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear external links: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO external_links (run_id, source_url, target_url) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare external link insert: %w", err)
	}
	defer stmt.Close()

	for _, link := range links {
		if _, err := stmt.Exec(s.runID, link.Source, link.Target); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert external link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit external links: %w", err)
	}
	return nil
}

// GetPage retrieves the stored text for a URL, returns false if not found
func (s *Storage) GetPage(url string) (string, bool, error) {
	var content string
	err := s.db.QueryRow(`
		SELECT content FROM pages WHERE run_id = ? AND url = ?
	`, s.runID, url).Scan(&content)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get page: %w", err)
	}

	return content, true, nil
}

// LoadEdges returns all parent/child edges of the run
func (s *Storage) LoadEdges() ([]Edge, error) {
	rows, err := s.db.Query(`
		SELECT parent_url, child_url, external
		FROM edges
		WHERE run_id = ?
		ORDER BY child_url ASC
	`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var edge Edge
		if err := rows.Scan(&edge.Parent, &edge.Child, &edge.External); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

// CountExternalLinks returns how many external links the run recorded
func (s *Storage) CountExternalLinks() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM external_links WHERE run_id = ?", s.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count external links: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
