package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"docsim/pkg/contract"
)

// Options: SQLite 报告存储选项。
type Options struct {
	Path string `json:"path"`
	// SkipText: 不写入 text_content（库体积敏感时使用）。
	SkipText bool `json:"skip_text,omitempty"`
}

// Store 将报告写入 runs/files/matches 三张表；同一 run_id 重复保存会先删除旧记录。
type Store struct {
	path     string
	skipText bool
	now      func() time.Time
}

func New(opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("store sqlite: path required: %w", contract.ErrInvalidInput)
	}
	return &Store{path: opts.Path, skipText: opts.SkipText, now: time.Now}, nil
}

var _ contract.Store = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		method TEXT NOT NULL,
		threshold REAL NOT NULL,
		reference_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size REAL NOT NULL,
		processing_time_ms REAL NOT NULL,
		encoding TEXT NOT NULL,
		text_content TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		file_id INTEGER NOT NULL REFERENCES files(id),
		reference_index INTEGER NOT NULL,
		reference_name TEXT,
		similarity REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_file ON matches(file_id)`,
}

// Save 在单个事务中写入整份报告；失败均包装为 contract.ErrStoreFailed。
func (s *Store) Save(ctx context.Context, rep contract.Report) error {
	if err := s.save(ctx, rep); err != nil {
		return fmt.Errorf("%w: %w", contract.ErrStoreFailed, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, rep contract.Report) (err error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store sqlite: %w", err)
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("store sqlite: open: %w", err)
	}
	defer db.Close()
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store sqlite: schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM matches WHERE file_id IN (SELECT id FROM files WHERE run_id = ?)`, rep.RunID); err != nil {
		return fmt.Errorf("store sqlite: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM files WHERE run_id = ?`, rep.RunID); err != nil {
		return fmt.Errorf("store sqlite: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs (run_id, method, threshold, reference_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		rep.RunID, rep.Method, rep.Threshold, rep.ReferenceCount, s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("store sqlite: insert run: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx, `INSERT INTO files (run_id, name, mime_type, size, processing_time_ms, encoding, text_content) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store sqlite: %w", err)
	}
	defer fileStmt.Close()
	matchStmt, err := tx.PrepareContext(ctx, `INSERT INTO matches (file_id, reference_index, reference_name, similarity) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store sqlite: %w", err)
	}
	defer matchStmt.Close()

	for _, g := range rep.Groups {
		for _, f := range g.Files {
			var text any = f.TextContent
			if s.skipText {
				text = nil
			}
			res, err := fileStmt.ExecContext(ctx, rep.RunID, f.Name, g.MimeType, f.Size, f.ProcessingTimeMS, f.Encoding, text)
			if err != nil {
				return fmt.Errorf("store sqlite: insert file %s: %w", f.Name, err)
			}
			fileID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("store sqlite: %w", err)
			}
			for _, m := range f.SimilarityMatches {
				var refName any
				if m.ReferenceIndex < len(rep.References) {
					refName = rep.References[m.ReferenceIndex]
				}
				if _, err := matchStmt.ExecContext(ctx, fileID, m.ReferenceIndex, refName, m.SimilarityPercentage); err != nil {
					return fmt.Errorf("store sqlite: insert match: %w", err)
				}
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store sqlite: commit: %w", err)
	}
	return nil
}
