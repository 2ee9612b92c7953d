package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs      []string `json:"inputs"`
	Concurrency int      `json:"concurrency"`
	// MaxFileBytes: 单文件读取上限；0 使用流水线默认值。
	MaxFileBytes int64   `json:"max_file_bytes"`
	Logging      Logging `json:"logging"`

	Similarity Similarity `json:"similarity"`

	// 组件名选择（空则使用默认名；corpus/store 为空表示不启用）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Similarity: 相似度引擎参数。零值字段使用引擎默认值。
type Similarity struct {
	// Method: jaccard|ngram|levenshtein|hybrid；未知名称运行期回退 hybrid。
	Method string `json:"method"`
	// Threshold: 指针区分“未设置”与显式 0。
	Threshold          *float64 `json:"threshold,omitempty"`
	NgramSize          int      `json:"ngram_size"`
	HybridGate         float64  `json:"hybrid_gate"`
	HybridLengthCutoff int      `json:"hybrid_length_cutoff"`
	MinLengthRatio     float64  `json:"min_length_ratio"`
	Workers            int      `json:"workers"`
	Stem               *bool    `json:"stem,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader string `json:"reader"`
	// Extractors: 提取器链顺序；为空使用默认链。
	Extractors []string `json:"extractors"`
	Corpus     string   `json:"corpus"`
	Writer     string   `json:"writer"`
	Store      string   `json:"store"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader     json.RawMessage            `json:"reader,omitempty"`
	Extractors map[string]json.RawMessage `json:"extractors,omitempty"`
	Corpus     json.RawMessage            `json:"corpus,omitempty"`
	Writer     json.RawMessage            `json:"writer,omitempty"`
	Store      json.RawMessage            `json:"store,omitempty"`
}
