package fs

import (
	"context"
	"fmt"
	"io"
	"sync"

	"docsim/pkg/contract"
	rfs "docsim/plugins/reader/filesystem"
)

// Options: 文件系统参考语料选项。
type Options struct {
	Roots           []string `json:"roots"`
	ExcludeDirNames []string `json:"exclude_dir_names,omitempty"`
	IncludeExts     []string `json:"include_exts,omitempty"`
	// SkipUnreadable: 丢弃无法提取的文件；默认保留为空文本以保持下标与文件列表对齐。
	SkipUnreadable bool `json:"skip_unreadable,omitempty"`
	// MaxFileBytes: 单文件上限，<=0 使用 64MiB。
	MaxFileBytes int64 `json:"max_file_bytes,omitempty"`
}

// Corpus 遍历目录并经路由器提取每个文件的文本作为参考语料。
// 顺序与文件系统 Reader 一致（稳定字典序）。
type Corpus struct {
	roots  []string
	reader contract.Reader
	router contract.TextRouter
	skip   bool
	max    int64

	mu    sync.Mutex
	names []string
}

func New(opts *Options, router contract.TextRouter) (*Corpus, error) {
	if opts == nil || len(opts.Roots) == 0 {
		return nil, fmt.Errorf("corpus fs: roots required: %w", contract.ErrInvalidInput)
	}
	for _, r := range opts.Roots {
		if r == "-" {
			return nil, fmt.Errorf("corpus fs: stdin not allowed as corpus root: %w", contract.ErrInvalidInput)
		}
	}
	if router == nil {
		return nil, fmt.Errorf("corpus fs: router required: %w", contract.ErrInvariantViolation)
	}
	c := &Corpus{
		roots:  append([]string(nil), opts.Roots...),
		reader: rfs.New(&rfs.Options{ExcludeDirNames: opts.ExcludeDirNames, IncludeExts: opts.IncludeExts}),
		router: router,
		skip:   opts.SkipUnreadable,
		max:    opts.MaxFileBytes,
	}
	if c.max <= 0 {
		c.max = 64 << 20
	}
	return c, nil
}

var _ contract.NamedCorpus = (*Corpus)(nil)

// Load 读取并提取全部参考文件。单文件提取失败不是错误；I/O 错误会中止加载。
func (c *Corpus) Load(ctx context.Context) ([]string, error) {
	texts := []string{}
	var names []string
	err := c.reader.Iterate(ctx, c.roots, func(id contract.FileID, rc io.ReadCloser) error {
		data, err := contract.ReadLimited(rc, c.max)
		_ = rc.Close()
		var text string
		if err == nil {
			text, err = c.router.ExtractText(ctx, string(id), data)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if c.skip {
				return nil
			}
			text = ""
		}
		texts = append(texts, text)
		names = append(names, string(id))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus fs: %w", err)
	}
	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	return texts, nil
}

// Names 返回最近一次 Load 的文件标识（与文本一一对应）。
func (c *Corpus) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}
