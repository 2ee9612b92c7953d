package contract

import "context"

// Extractor: 将某类文档的原始字节转换为纯文本。
// 约束：同步、无状态、可并发调用；不做相似度计算。
// 无法解析时返回包装 ErrExtractFailed 的错误。
type Extractor interface {
	Supports(mime string) bool
	Extract(ctx context.Context, content []byte, filename, mime string) (string, error)
}

// Corpus: 参考语料来源。每次运行加载一次；下标即参考文本身份，顺序不得重排。
type Corpus interface {
	Load(ctx context.Context) ([]string, error)
}

// NamedCorpus: 可选扩展。若实现，报告中会附带与 Load 结果一一对应的参考名称。
type NamedCorpus interface {
	Corpus
	Names() []string
}

// TextRouter: 按文件名与内容选择提取器并返回文本。
// 容器类提取器（如 brotli）通过它委托内部文件；无可用提取器时返回 ErrUnsupportedType。
type TextRouter interface {
	ExtractText(ctx context.Context, filename string, content []byte) (string, error)
}

// RouterAware: 可选扩展。路由器构造时会把自身注入实现了该接口的提取器。
type RouterAware interface {
	BindRouter(r TextRouter)
}
