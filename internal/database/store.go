package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/a11yscan/a11yscan/internal/model"
)

// Store provides SQLite-based persistence for scan data.
//
// Design decision: One database file holds all scans rather than one
// file per scan. Cross-scan queries (history, re-rendering old reports)
// stay simple and backup is a single file copy.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when
	// they do not exist yet.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended: progress
	// observers read while phase batches write.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, "a11yscan.db")

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer; a single connection avoids busy
	// errors between concurrent batch writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the schema if it does not exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		root_url TEXT NOT NULL,
		status TEXT NOT NULL,
		config TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		finished_at DATETIME,
		total_pages INTEGER DEFAULT 0,
		pages_scanned INTEGER DEFAULT 0,
		pages_errored INTEGER DEFAULT 0,
		total_issues_raw INTEGER DEFAULT 0,
		total_issues_deduplicated INTEGER DEFAULT 0,
		group_count INTEGER DEFAULT 0,
		score REAL DEFAULT 0,
		error_message TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);

	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT DEFAULT '',
		status TEXT NOT NULL,
		http_status INTEGER DEFAULT 0,
		load_time_ms INTEGER DEFAULT 0,
		depth INTEGER DEFAULT 0,
		fingerprints TEXT DEFAULT '{}',
		error_message TEXT DEFAULT '',
		UNIQUE(scan_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_scan ON pages(scan_id);

	CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL,
		page_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		description TEXT DEFAULT '',
		help_url TEXT DEFAULT '',
		severity TEXT NOT NULL,
		target TEXT NOT NULL,
		html TEXT DEFAULT '',
		tags TEXT DEFAULT '[]',
		failure_summary TEXT DEFAULT '',
		region TEXT DEFAULT '',
		fingerprint TEXT DEFAULT '',
		grouped INTEGER DEFAULT 0,
		group_id TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_issues_scan ON issues(scan_id);
	CREATE INDEX IF NOT EXISTS idx_issues_page ON issues(page_id);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		label TEXT DEFAULT '',
		page_count INTEGER DEFAULT 0,
		issue_count INTEGER DEFAULT 0,
		page_urls TEXT DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_groups_scan ON groups(scan_id);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// CreateScan inserts a new scan record.
func (s *Store) CreateScan(ctx context.Context, scan *model.Scan) error {
	cfg, err := json.Marshal(scan.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize scan config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, root_url, status, config, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		scan.ID, scan.RootURL, string(scan.Status), string(cfg), scan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// UpdateScan persists the scan's mutable fields.
func (s *Store) UpdateScan(ctx context.Context, scan *model.Scan) error {
	var finished any
	if !scan.FinishedAt.IsZero() {
		finished = scan.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, finished_at = ?, total_pages = ?,
			pages_scanned = ?, pages_errored = ?, total_issues_raw = ?,
			total_issues_deduplicated = ?, group_count = ?, score = ?,
			error_message = ?
		WHERE id = ?`,
		string(scan.Status), finished, scan.TotalPages,
		scan.PagesScanned, scan.PagesErrored, scan.TotalIssuesRaw,
		scan.TotalIssuesDeduplicated, scan.GroupCount, scan.Score,
		scan.ErrorMessage, scan.ID)
	if err != nil {
		return fmt.Errorf("failed to update scan %s: %w", scan.ID, err)
	}
	return nil
}

// GetScan fetches one scan by id.
func (s *Store) GetScan(ctx context.Context, id string) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, root_url, status, config, created_at, finished_at,
			total_pages, pages_scanned, pages_errored, total_issues_raw,
			total_issues_deduplicated, group_count, score, error_message
		FROM scans WHERE id = ?`, id)

	var scan model.Scan
	var status, cfg string
	var finished sql.NullTime
	err := row.Scan(&scan.ID, &scan.RootURL, &status, &cfg, &scan.CreatedAt, &finished,
		&scan.TotalPages, &scan.PagesScanned, &scan.PagesErrored, &scan.TotalIssuesRaw,
		&scan.TotalIssuesDeduplicated, &scan.GroupCount, &scan.Score, &scan.ErrorMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", id, err)
	}
	scan.Status = model.ScanStatus(status)
	if finished.Valid {
		scan.FinishedAt = finished.Time
	}
	if err := json.Unmarshal([]byte(cfg), &scan.Config); err != nil {
		return nil, fmt.Errorf("failed to parse scan config: %w", err)
	}
	return &scan, nil
}

// LatestScan returns the most recently created scan, or nil when the
// store is empty.
func (s *Store) LatestScan(ctx context.Context) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id FROM scans ORDER BY created_at DESC, id DESC LIMIT 1`)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest scan: %w", err)
	}
	return s.GetScan(ctx, id)
}

// DeleteScan removes a scan and everything it owns. This is the only
// deletion path; pages, issues, and groups never outlive their scan.
func (s *Store) DeleteScan(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM issues WHERE scan_id = ?`,
		`DELETE FROM groups WHERE scan_id = ?`,
		`DELETE FROM pages WHERE scan_id = ?`,
		`DELETE FROM scans WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete scan %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// InsertPage inserts a discovered page.
func (s *Store) InsertPage(ctx context.Context, page *model.Page) error {
	fps, err := json.Marshal(page.Fingerprints)
	if err != nil {
		return fmt.Errorf("failed to serialize fingerprints: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages (id, scan_id, url, title, status, http_status,
			load_time_ms, depth, fingerprints, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		page.ID, page.ScanID, page.URL, page.Title, string(page.Status),
		page.HTTPStatus, page.LoadTime.Milliseconds(), page.Depth,
		string(fps), page.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
	}
	return nil
}

// BulkInsertPages inserts a crawl batch's pages in one transaction so
// progress observers never see a half-recorded batch.
func (s *Store) BulkInsertPages(ctx context.Context, pages []*model.Page) error {
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin page transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pages (id, scan_id, url, title, status, http_status,
			load_time_ms, depth, fingerprints, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, page := range pages {
		fps, err := json.Marshal(page.Fingerprints)
		if err != nil {
			return fmt.Errorf("failed to serialize fingerprints: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, page.ID, page.ScanID, page.URL,
			page.Title, string(page.Status), page.HTTPStatus,
			page.LoadTime.Milliseconds(), page.Depth, string(fps),
			page.ErrorMessage); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
		}
	}
	return tx.Commit()
}

// UpdatePage persists a page's mutable fields.
func (s *Store) UpdatePage(ctx context.Context, page *model.Page) error {
	fps, err := json.Marshal(page.Fingerprints)
	if err != nil {
		return fmt.Errorf("failed to serialize fingerprints: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE pages SET title = ?, status = ?, http_status = ?,
			load_time_ms = ?, fingerprints = ?, error_message = ?
		WHERE id = ?`,
		page.Title, string(page.Status), page.HTTPStatus,
		page.LoadTime.Milliseconds(), string(fps), page.ErrorMessage, page.ID)
	if err != nil {
		return fmt.Errorf("failed to update page %s: %w", page.ID, err)
	}
	return nil
}

// PagesByScan returns all pages of a scan ordered by discovery.
func (s *Store) PagesByScan(ctx context.Context, scanID string) ([]*model.Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, url, title, status, http_status, load_time_ms,
			depth, fingerprints, error_message
		FROM pages WHERE scan_id = ? ORDER BY rowid`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages for scan %s: %w", scanID, err)
	}
	defer rows.Close()

	var pages []*model.Page
	for rows.Next() {
		var p model.Page
		var status, fps string
		var loadMS int64
		if err := rows.Scan(&p.ID, &p.ScanID, &p.URL, &p.Title, &status,
			&p.HTTPStatus, &loadMS, &p.Depth, &fps, &p.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		p.Status = model.PageStatus(status)
		p.LoadTime = time.Duration(loadMS) * time.Millisecond
		if err := json.Unmarshal([]byte(fps), &p.Fingerprints); err != nil {
			return nil, fmt.Errorf("failed to parse fingerprints: %w", err)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// BulkInsertIssues inserts a batch of issues in one transaction so
// observers never see a half-written batch.
func (s *Store) BulkInsertIssues(ctx context.Context, issues []*model.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin issue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issues (id, scan_id, page_id, rule_id, description,
			help_url, severity, target, html, tags, failure_summary,
			region, fingerprint, grouped, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		tags, err := json.Marshal(issue.Tags)
		if err != nil {
			return fmt.Errorf("failed to serialize tags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			issue.ID, issue.ScanID, issue.PageID, issue.RuleID, issue.Description,
			issue.HelpURL, issue.Severity.String(), issue.Target, issue.HTML,
			string(tags), issue.FailureSummary, string(issue.Region),
			issue.Fingerprint, boolToInt(issue.Grouped), issue.GroupID); err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}
	return tx.Commit()
}

// IssuesByScan returns all issues of a scan.
func (s *Store) IssuesByScan(ctx context.Context, scanID string) ([]*model.Issue, error) {
	return s.queryIssues(ctx, `scan_id = ?`, scanID)
}

// IssuesByPage returns all issues recorded on one page.
func (s *Store) IssuesByPage(ctx context.Context, pageID string) ([]*model.Issue, error) {
	return s.queryIssues(ctx, `page_id = ?`, pageID)
}

// queryIssues runs an issue point query with the given WHERE clause.
func (s *Store) queryIssues(ctx context.Context, where string, arg any) ([]*model.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, page_id, rule_id, description, help_url,
			severity, target, html, tags, failure_summary, region,
			fingerprint, grouped, group_id
		FROM issues WHERE `+where+` ORDER BY rowid`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []*model.Issue
	for rows.Next() {
		var i model.Issue
		var severity, tags, region string
		var grouped int
		if err := rows.Scan(&i.ID, &i.ScanID, &i.PageID, &i.RuleID, &i.Description,
			&i.HelpURL, &severity, &i.Target, &i.HTML, &tags, &i.FailureSummary,
			&region, &i.Fingerprint, &grouped, &i.GroupID); err != nil {
			return nil, fmt.Errorf("failed to scan issue row: %w", err)
		}
		i.Severity = model.ParseSeverity(severity)
		i.Region = model.Region(region)
		i.Grouped = grouped != 0
		if err := json.Unmarshal([]byte(tags), &i.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags: %w", err)
		}
		issues = append(issues, &i)
	}
	return issues, rows.Err()
}

// UpdateIssueGroups persists group assignments for the given issues in
// one transaction.
func (s *Store) UpdateIssueGroups(ctx context.Context, issues []*model.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin group transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE issues SET grouped = ?, group_id = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare group update: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.ExecContext(ctx, boolToInt(issue.Grouped), issue.GroupID, issue.ID); err != nil {
			return fmt.Errorf("failed to update issue %s: %w", issue.ID, err)
		}
	}
	return tx.Commit()
}

// InsertGroups inserts the deduplication output in one transaction.
func (s *Store) InsertGroups(ctx context.Context, groups []*model.ComponentGroup) error {
	if len(groups) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin groups transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO groups (id, scan_id, kind, fingerprint, label,
			page_count, issue_count, page_urls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare group insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range groups {
		urls, err := json.Marshal(g.PageURLs)
		if err != nil {
			return fmt.Errorf("failed to serialize page URLs: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, g.ID, g.ScanID, g.Kind, g.Fingerprint,
			g.Label, g.PageCount, g.IssueCount, string(urls)); err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteGroups removes all groups of a scan. Used when re-analyzing a
// stored scan: the dedup engine replaces its previous output wholesale.
func (s *Store) DeleteGroups(ctx context.Context, scanID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("failed to delete groups for scan %s: %w", scanID, err)
	}
	return nil
}

// GroupsByScan returns all groups of a scan.
func (s *Store) GroupsByScan(ctx context.Context, scanID string) ([]*model.ComponentGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, kind, fingerprint, label, page_count,
			issue_count, page_urls
		FROM groups WHERE scan_id = ? ORDER BY rowid`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for scan %s: %w", scanID, err)
	}
	defer rows.Close()

	var groups []*model.ComponentGroup
	for rows.Next() {
		var g model.ComponentGroup
		var urls string
		if err := rows.Scan(&g.ID, &g.ScanID, &g.Kind, &g.Fingerprint, &g.Label,
			&g.PageCount, &g.IssueCount, &urls); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		if err := json.Unmarshal([]byte(urls), &g.PageURLs); err != nil {
			return nil, fmt.Errorf("failed to parse page URLs: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// boolToInt maps Go bools onto SQLite integers.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
