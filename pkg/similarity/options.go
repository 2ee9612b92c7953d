package similarity

import "runtime"

// 默认策略常量。数值本身没有推导依据，仅作为可配置的默认值保留。
const (
	DefaultThreshold          = 30.0
	DefaultNgramSize          = 3
	DefaultHybridGate         = 20.0
	DefaultHybridLengthCutoff = 1000
)

// Options: 评分器与批量比较器的可调参数。
// 零值字段在 normalized() 中替换为默认值（Stem 除外）。
type Options struct {
	// NgramSize: 字符 shingle 窗口宽度（rune）。<=0 使用默认 3。
	NgramSize int `json:"ngram_size,omitempty" yaml:"ngram_size,omitempty"`
	// HybridGate: Hybrid 首轮 Jaccard 闸门（百分比）；低于该值直接返回 Jaccard 分数。
	// <=0 使用默认 20。
	HybridGate float64 `json:"hybrid_gate,omitempty" yaml:"hybrid_gate,omitempty"`
	// HybridLengthCutoff: 候选文本长度（rune）低于该值走 Levenshtein，否则走 N-gram。
	// <=0 使用默认 1000。
	HybridLengthCutoff int `json:"hybrid_length_cutoff,omitempty" yaml:"hybrid_length_cutoff,omitempty"`
	// MinLengthRatio: 预过滤的最小长度比（短/长）。<=0 表示由阈值推导（threshold/100）。
	MinLengthRatio float64 `json:"min_length_ratio,omitempty" yaml:"min_length_ratio,omitempty"`
	// Workers: 批量比较的最大并行度。<=0 使用 GOMAXPROCS。
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
	// Stem: Jaccard 分词后是否做 Snowball 英文词干化（默认关闭）。
	Stem bool `json:"stem,omitempty" yaml:"stem,omitempty"`
}

// DefaultOptions 返回全部默认值已填充的 Options。
func DefaultOptions() Options { return Options{}.normalized() }

func (o Options) normalized() Options {
	if o.NgramSize <= 0 {
		o.NgramSize = DefaultNgramSize
	}
	if o.HybridGate <= 0 {
		o.HybridGate = DefaultHybridGate
	}
	if o.HybridLengthCutoff <= 0 {
		o.HybridLengthCutoff = DefaultHybridLengthCutoff
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}
