// Package extract 将文件路由到首个支持其 MIME 类型的提取器，并把结果归一为报告所需的形态。
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"docsim/pkg/contract"
	"docsim/pkg/registry"
)

// Named: 带名称的提取器（名称用于日志与报告）。
type Named struct {
	Name      string
	Extractor contract.Extractor
}

// Outcome: 单文件提取结果。
// 成功：Encoding=utf-8，Comparable=true；
// 提取失败：Text="Error: <msg>"，Encoding=error；
// 无可用提取器：Text=""，Encoding=application/octet-stream。
type Outcome struct {
	Text       string
	Encoding   string
	MimeType   string
	Extractor  string
	Comparable bool
	Err        error
}

// Router: 有序提取器链，首个 Supports 为真的提取器胜出。
type Router struct {
	chain []Named
}

// NewRouter 构造路由器，并向实现 contract.RouterAware 的提取器注入自身。
func NewRouter(chain ...Named) *Router {
	r := &Router{chain: append([]Named(nil), chain...)}
	for _, n := range r.chain {
		if ra, ok := n.Extractor.(contract.RouterAware); ok {
			ra.BindRouter(r)
		}
	}
	return r
}

// Names 返回链上提取器名称（按顺序）。
func (r *Router) Names() []string {
	out := make([]string, len(r.chain))
	for i, n := range r.chain {
		out[i] = n.Name
	}
	return out
}

// Pick 返回处理该 MIME 的提取器。
func (r *Router) Pick(mime string) (Named, bool) {
	for _, n := range r.chain {
		if n.Extractor.Supports(mime) {
			return n, true
		}
	}
	return Named{}, false
}

// Route 嗅探 MIME 后提取文本。
func (r *Router) Route(ctx context.Context, filename string, content []byte) Outcome {
	return r.RouteMIME(ctx, filename, DetectMIME(filename, content), content)
}

// RouteMIME 按给定 MIME 提取文本；提取错误作为数据返回（Outcome.Err），不中断调用方。
func (r *Router) RouteMIME(ctx context.Context, filename, mime string, content []byte) Outcome {
	out := Outcome{MimeType: mime}
	n, ok := r.Pick(mime)
	if !ok {
		out.Encoding = contract.EncodingUnknown
		out.Err = fmt.Errorf("%s: %w", mime, contract.ErrUnsupportedType)
		return out
	}
	out.Extractor = n.Name
	text, err := n.Extractor.Extract(ctx, content, filename, mime)
	if err != nil {
		out.Text = "Error: " + err.Error()
		out.Encoding = contract.EncodingError
		out.Err = err
		return out
	}
	out.Text = text
	out.Encoding = contract.EncodingUTF8
	out.Comparable = true
	return out
}

// ExtractText 实现 contract.TextRouter。
func (r *Router) ExtractText(ctx context.Context, filename string, content []byte) (string, error) {
	o := r.Route(ctx, filename, content)
	if o.Err != nil {
		return "", o.Err
	}
	return o.Text, nil
}

// DefaultOrder: 默认链顺序。
var DefaultOrder = []string{"docx", "pdf", "text", "xlsx", "brotli"}

// Build 按名称顺序从注册表构造提取器链；options 以名称索引各自的原始 JSON 选项。
func Build(names []string, options map[string]json.RawMessage) (*Router, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}
	chain := make([]Named, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("extract: duplicate extractor %q: %w", name, contract.ErrInvalidInput)
		}
		seen[name] = true
		f, ok := registry.Extractor[name]
		if !ok {
			return nil, fmt.Errorf("extract: unknown extractor %q: %w", name, contract.ErrInvalidInput)
		}
		ex, err := f(options[name])
		if err != nil {
			return nil, fmt.Errorf("extract: %s options: %w", name, err)
		}
		chain = append(chain, Named{Name: name, Extractor: ex})
	}
	return NewRouter(chain...), nil
}

var (
	defaultOnce   sync.Once
	defaultRouter *Router
)

// Default 返回以默认选项构造的进程级共享路由器（惰性构造一次）。
func Default() *Router {
	defaultOnce.Do(func() {
		r, err := Build(DefaultOrder, nil)
		if err != nil {
			panic(err)
		}
		defaultRouter = r
	})
	return defaultRouter
}
