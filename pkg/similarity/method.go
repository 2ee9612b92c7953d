package similarity

import "strings"

// Method: 相似度算法（封闭集合）。
// 零值为 Hybrid，即默认方法。
type Method int

const (
	Hybrid Method = iota
	Jaccard
	Ngram
	Levenshtein
)

// String 返回调用边界使用的小写名称。
func (m Method) String() string {
	switch m {
	case Jaccard:
		return "jaccard"
	case Ngram:
		return "ngram"
	case Levenshtein:
		return "levenshtein"
	default:
		return "hybrid"
	}
}

// MarshalText 以名称形式序列化（报告/配置回显）。
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMethod 按名称解析方法（大小写不敏感，忽略首尾空白）。
// 缺省或无法识别的名称静默回退为 Hybrid，调用永不失败；
// ok=false 仅供编排层记录告警（调用方拼写错误会静默改变行为）。
func ParseMethod(name string) (m Method, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jaccard":
		return Jaccard, true
	case "ngram":
		return Ngram, true
	case "levenshtein":
		return Levenshtein, true
	case "hybrid":
		return Hybrid, true
	case "":
		// 未指定：默认方法，不视为拼写错误
		return Hybrid, true
	default:
		return Hybrid, false
	}
}

// Methods 返回全部方法（固定顺序）。
func Methods() []Method { return []Method{Jaccard, Ngram, Levenshtein, Hybrid} }
