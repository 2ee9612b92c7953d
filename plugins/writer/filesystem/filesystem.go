package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"

	"docsim/pkg/contract"
)

// Options: 文件系统 Writer 选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Atomic: 是否原子替换（同目录临时文件 + rename）。nil 视为 true。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 是否仅保留文件名。nil 视为 false（保留 ArtifactID 的相对层级）。
	Flat *bool `json:"flat,omitempty"`
	// Compress: "" 不压缩；"br" 以 brotli 压缩并追加 ".br" 后缀。
	Compress string `json:"compress,omitempty"`
	// BrotliQuality: 0..11，默认 brotli.DefaultCompression。
	BrotliQuality *int `json:"brotli_quality,omitempty"`
	// PermFile/PermDir: 为 0 时使用 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

type FS struct {
	root    string
	atomic  bool
	flat    bool
	brotli  bool
	quality int
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("writer fs: output_dir required: %w", contract.ErrInvalidInput)
	}
	w := &FS{root: opts.OutputDir, atomic: true, bufSize: 64 * 1024, permF: 0o644, permD: 0o755, quality: brotli.DefaultCompression}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if opts.Flat != nil {
		w.flat = *opts.Flat
	}
	switch strings.ToLower(opts.Compress) {
	case "":
	case "br", "brotli":
		w.brotli = true
	default:
		return nil, fmt.Errorf("writer fs: unknown compress %q: %w", opts.Compress, contract.ErrInvalidInput)
	}
	if opts.BrotliQuality != nil {
		q := *opts.BrotliQuality
		if q < brotli.BestSpeed || q > brotli.BestCompression {
			return nil, fmt.Errorf("writer fs: brotli_quality out of range: %w", contract.ErrInvalidInput)
		}
		w.quality = q
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	return w, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入 id 映射的目标路径（启用压缩时为 <path>.br）。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeOverwrite(ctx, dest, r)
}

// mapPath: Clean + Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(string(id))
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == string(filepath.Separator) {
			return "", contract.ErrPathInvalid
		}
	} else {
		// 禁止绝对路径、父级逃逸、Windows 卷名
		if rel == "." || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
			return "", contract.ErrPathInvalid
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", contract.ErrPathInvalid
		}
	}
	if w.brotli {
		rel += ".br"
	}
	return filepath.Join(w.root, rel), nil
}

// copyTo 经缓冲（及可选 brotli）把 r 写入 dst。
func (w *FS) copyTo(ctx context.Context, dst io.Writer, r io.Reader) error {
	bw := bufio.NewWriterSize(dst, w.bufSize)
	src := readerWithCtx(ctx, r)
	if w.brotli {
		zw := brotli.NewWriterLevel(bw, w.quality)
		if _, err := io.Copy(zw, src); err != nil {
			_ = zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else if _, err := io.Copy(bw, src); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	if err := w.copyTo(ctx, f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) (err error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, w.permF)

	if err = w.copyTo(ctx, tmp, r); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	// Windows 上 os.Rename 使用 MoveFileEx(REPLACE_EXISTING)
	if err = os.Rename(tmpPath, dest); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
