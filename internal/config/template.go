package config

import (
	"encoding/json"

	"docsim/internal/extract"
	"docsim/pkg/similarity"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），参考语料取 ./references 目录；
// - 报告写入 ./out/report.json，SQLite 存储默认关闭（options 已给出）；
// - 选项包含全部键，值为安全中性默认。
func DefaultTemplateConfig() Config {
	d := Defaults()
	th := similarity.DefaultThreshold
	stem := false
	cfg := Config{
		Inputs:       []string{"-"},
		Concurrency:  d.Concurrency,
		MaxFileBytes: 64 << 20,
		Logging:      Logging{Level: "info"},
		Similarity: Similarity{
			Method:             similarity.Hybrid.String(),
			Threshold:          &th,
			NgramSize:          similarity.DefaultNgramSize,
			HybridGate:         similarity.DefaultHybridGate,
			HybridLengthCutoff: similarity.DefaultHybridLengthCutoff,
			MinLengthRatio:     0,
			Workers:            0,
			Stem:               &stem,
		},
		Components: Components{
			Reader:     d.Components.Reader,
			Extractors: append([]string(nil), extract.DefaultOrder...),
			Corpus:     "fs",
			Writer:     d.Components.Writer,
		},
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "include_exts": [],
  "skip_hidden": true
}`)
	cfg.Options.Extractors = map[string]json.RawMessage{
		"text":   json.RawMessage(`{"encoding": "", "extra_mimes": []}`),
		"docx":   json.RawMessage(`{"headers_footers": false}`),
		"xlsx":   json.RawMessage(`{}`),
		"pdf":    json.RawMessage(`{"max_stream_bytes": 0}`),
		"brotli": json.RawMessage(`{"max_decompressed_bytes": 0}`),
	}
	cfg.Options.Corpus = json.RawMessage(`{
  "roots": ["references"],
  "exclude_dir_names": [".git"],
  "include_exts": [],
  "skip_unreadable": false,
  "max_file_bytes": 0
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": false,
  "compress": "",
  "brotli_quality": 6,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	// components.store 置为 "sqlite" 即启用
	cfg.Options.Store = json.RawMessage(`{
  "path": "out/docsim.sqlite",
  "skip_text": false
}`)
	return cfg
}
