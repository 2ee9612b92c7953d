package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RotatingFile 将日志行写入指定目录，并按文件大小轮转。并发安全。
// - 当前文件固定名：docsim-current.txt
// - 轮转：当 size+len(line) 超过 maxBytes 时，将当前文件重命名为 docsim-YYYYMMDD-HHMMSS.txt，重新创建 docsim-current.txt。
type RotatingFile struct {
	dir      string
	maxBytes int64
	mu       sync.Mutex
	f        *os.File
	curSize  int64
	// keep: 保留的历史文件数；<=0 不清理。
	keep int
}

func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024 // 10 MiB 默认
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes}
}

// SetRetention 设置保留的历史轮转文件数量（最旧的先删除）。
func (w *RotatingFile) SetRetention(n int) {
	w.mu.Lock()
	w.keep = n
	w.mu.Unlock()
}

func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	lineLen := int64(len(b) + 1) // 包含换行
	if err := w.ensureOpen(); err != nil {
		return err
	}
	if w.curSize+lineLen > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(append(b, '\n'))
	if err != nil {
		return err
	}
	w.curSize += int64(n)
	return nil
}

func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(w.dir, "docsim-current.txt")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	// 初始化当前大小
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	} else {
		w.curSize = 0
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.ensureOpen()
	}
	oldPath := w.f.Name()
	_ = w.f.Close()
	w.f = nil
	// 高精度时间戳，同秒内多次轮转不覆盖
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	rotated := filepath.Join(filepath.Dir(oldPath), fmt.Sprintf("docsim-%s.txt", ts))
	if err := os.Rename(oldPath, rotated); err != nil {
		return fmt.Errorf("rename rotated file: %w", err)
	}
	w.prune()
	// 打开新 current
	return w.ensureOpen()
}

// prune 删除超出保留数量的历史文件；时间戳文件名按字典序即时间序。
func (w *RotatingFile) prune() {
	if w.keep <= 0 {
		return
	}
	olds, _ := filepath.Glob(filepath.Join(w.dir, "docsim-*.txt"))
	rotated := olds[:0]
	for _, p := range olds {
		if filepath.Base(p) != "docsim-current.txt" {
			rotated = append(rotated, p)
		}
	}
	sort.Strings(rotated)
	for len(rotated) > w.keep {
		_ = os.Remove(rotated[0])
		rotated = rotated[1:]
	}
}

// Close 关闭当前打开的文件句柄
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		err := w.f.Close()
		w.f = nil
		return err
	}
	return nil
}
