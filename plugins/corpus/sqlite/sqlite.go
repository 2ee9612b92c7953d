package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"docsim/pkg/contract"
)

// Options: 从 SQLite 表读取参考语料。
type Options struct {
	Path   string `json:"path"`
	Table  string `json:"table"`
	Column string `json:"column"`
	// NameColumn: 可选，报告中的参考名称列。
	NameColumn string `json:"name_column,omitempty"`
	// OrderBy: 排序列，默认 rowid；决定参考下标。
	OrderBy string `json:"order_by,omitempty"`
}

type Corpus struct {
	opts Options

	mu    sync.Mutex
	names []string
}

func New(opts *Options) (*Corpus, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" || strings.TrimSpace(opts.Table) == "" || strings.TrimSpace(opts.Column) == "" {
		return nil, fmt.Errorf("corpus sqlite: path, table and column required: %w", contract.ErrInvalidInput)
	}
	o := *opts
	if o.OrderBy == "" {
		o.OrderBy = "rowid"
	}
	return &Corpus{opts: o}, nil
}

var _ contract.NamedCorpus = (*Corpus)(nil)

// quoteIdent 以双引号包裹标识符（内部双引号加倍）。
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (c *Corpus) query() string {
	name := "NULL"
	if c.opts.NameColumn != "" {
		name = quoteIdent(c.opts.NameColumn)
	}
	order := quoteIdent(c.opts.OrderBy)
	if strings.EqualFold(c.opts.OrderBy, "rowid") {
		order = "rowid"
	}
	return fmt.Sprintf(`SELECT %s, %s FROM %s ORDER BY %s`,
		quoteIdent(c.opts.Column), name, quoteIdent(c.opts.Table), order)
}

// Load 读取整列；NULL 视为空文本以保持下标对齐。
func (c *Corpus) Load(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(c.opts.Path); err != nil {
		return nil, fmt.Errorf("corpus sqlite: %w", err)
	}
	db, err := sql.Open("sqlite", c.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("corpus sqlite: open: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, c.query())
	if err != nil {
		return nil, fmt.Errorf("corpus sqlite: query: %w", err)
	}
	defer rows.Close()

	texts := []string{}
	var names []string
	for rows.Next() {
		var text, name sql.NullString
		if err := rows.Scan(&text, &name); err != nil {
			return nil, fmt.Errorf("corpus sqlite: scan: %w", err)
		}
		if !name.Valid {
			name.String = fmt.Sprintf("%s[%d]", c.opts.Table, len(texts))
		}
		texts = append(texts, text.String)
		names = append(names, name.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corpus sqlite: %w", err)
	}
	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	return texts, nil
}

func (c *Corpus) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}
