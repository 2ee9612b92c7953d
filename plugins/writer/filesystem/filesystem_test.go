package filesystem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"docsim/pkg/contract"
)

func noTemp(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("临时文件未清理: %s", e.Name())
		}
	}
}

// TestWriteAtomicReplaceExisting 原子写入并替换已有文件
func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, v := range []string{"v1", "v2"} {
		if err := w.Write(context.Background(), "report.json", bytes.NewBufferString(v)); err != nil {
			t.Fatalf("write %s: %v", v, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil || string(b) != "v2" {
		t.Fatalf("应替换为 v2: %v %q", err, string(b))
	}
	noTemp(t, dir)
}

// TestWritePathInvalid 路径越界
func TestWritePathInvalid(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	err := w.Write(context.Background(), "../bad", bytes.NewBufferString("x"))
	if !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("应返回 path invalid, got %v", err)
	}
}

// TestWriteNested 非扁平 + 非原子写入保留层级
func TestWriteNested(t *testing.T) {
	dir := t.TempDir()
	off := false
	w, _ := New(&Options{OutputDir: dir, Atomic: &off})
	if err := w.Write(context.Background(), "runs/r1/report.json", bytes.NewBufferString("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", "r1", "report.json")); err != nil {
		t.Fatalf("文件未创建")
	}
}

// TestWriteFlat 扁平化仅保留文件名
func TestWriteFlat(t *testing.T) {
	dir := t.TempDir()
	on := true
	w, _ := New(&Options{OutputDir: dir, Flat: &on})
	if err := w.Write(context.Background(), "a/b/report.json", bytes.NewBufferString("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.json")); err != nil {
		t.Fatalf("扁平文件未创建")
	}
}

// TestWriteBrotli 压缩输出可被解压还原
func TestWriteBrotli(t *testing.T) {
	dir := t.TempDir()
	q := 5
	w, err := New(&Options{OutputDir: dir, Compress: "br", BrotliQuality: &q})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	payload := strings.Repeat(`{"name":"a.txt"}`, 100)
	if err := w.Write(context.Background(), "report.json", strings.NewReader(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "report.json.br"))
	if err != nil {
		t.Fatalf("压缩文件缺失: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(brotli.NewReader(f))
	if err != nil || string(got) != payload {
		t.Fatalf("解压结果不一致: %v", err)
	}
	noTemp(t, dir)
}

// TestWriteCtxCancel 上下文取消
func TestWriteCtxCancel(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, "a.txt", strings.NewReader("data")); err == nil {
		t.Fatalf("应返回 ctx 错误")
	}
}

// TestNewInvalid 参数缺失或非法
func TestNewInvalid(t *testing.T) {
	q := 42
	for _, o := range []*Options{nil, {}, {OutputDir: "x", Compress: "zip"}, {OutputDir: "x", BrotliQuality: &q}} {
		if _, err := New(o); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("应报 invalid input: %+v -> %v", o, err)
		}
	}
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

// TestWriteAtomicCopyError 原子写入时拷贝失败不残留文件
func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	w, _ := New(&Options{OutputDir: dir})
	if err := w.Write(context.Background(), "a.txt", errReader{}); err == nil {
		t.Fatalf("应返回拷贝错误")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("残留文件 %v", entries)
	}
}

// TestMapPathInvalid 各类非法标识
func TestMapPathInvalid(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	abs := "/abs"
	if filepath.Separator == '\\' {
		abs = `C:\abs`
	}
	for _, id := range []string{abs, "..", "."} {
		if _, err := w.mapPath(contract.ArtifactID(id)); err != contract.ErrPathInvalid {
			t.Fatalf("id %s 应为非法", id)
		}
	}
}
