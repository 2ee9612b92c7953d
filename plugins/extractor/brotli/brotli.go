package brotli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/andybalholm/brotli"

	"docsim/pkg/contract"
)

// Options: brotli 提取器选项。
type Options struct {
	// MaxDecompressedBytes: 解压后上限，<=0 使用 64MiB；超出即失败。
	MaxDecompressedBytes int64 `json:"max_decompressed_bytes,omitempty"`
}

// Extractor 解压 .br 文件，按去掉 .br 后的文件名交给路由器提取内部文本。
type Extractor struct {
	max    int64
	router contract.TextRouter
}

func New(opts *Options) *Extractor {
	e := &Extractor{max: 64 << 20}
	if opts != nil && opts.MaxDecompressedBytes > 0 {
		e.max = opts.MaxDecompressedBytes
	}
	return e
}

var (
	_ contract.Extractor   = (*Extractor)(nil)
	_ contract.RouterAware = (*Extractor)(nil)
)

func (e *Extractor) BindRouter(r contract.TextRouter) { e.router = r }

func (e *Extractor) Supports(mime string) bool {
	switch strings.ToLower(mime) {
	case "application/x-brotli", "application/brotli":
		return true
	}
	return false
}

func (e *Extractor) Extract(ctx context.Context, content []byte, filename, _ string) (string, error) {
	if e.router == nil {
		return "", fmt.Errorf("brotli: no router bound: %w", contract.ErrInvariantViolation)
	}
	inner := strings.TrimSuffix(filename, path.Ext(filename))
	if strings.EqualFold(path.Ext(filename), ".br") && strings.EqualFold(path.Ext(inner), ".br") {
		return "", fmt.Errorf("brotli: nested archive %s: %w", filename, contract.ErrExtractFailed)
	}
	data, err := io.ReadAll(io.LimitReader(brotli.NewReader(bytes.NewReader(content)), e.max+1))
	if err != nil {
		return "", fmt.Errorf("brotli: decompress: %v: %w", err, contract.ErrExtractFailed)
	}
	if int64(len(data)) > e.max {
		return "", fmt.Errorf("brotli: decompressed size exceeds %d bytes: %w", e.max, contract.ErrTooLarge)
	}
	return e.router.ExtractText(ctx, inner, data)
}
