package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"docsim/internal/extract"
	"docsim/internal/pipeline"
	"docsim/pkg/registry"
	"docsim/pkg/similarity"
)

// Validate 对最小必要边界做静态校验。方法名不在此校验：未知名称运行期回退 hybrid。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.MaxFileBytes < 0 {
		return errors.New("config: max_file_bytes must be >= 0")
	}

	s := cfg.Similarity
	if s.Threshold != nil && (math.IsNaN(*s.Threshold) || math.IsInf(*s.Threshold, 0)) {
		return errors.New("config: similarity.threshold must be finite")
	}
	if s.NgramSize < 0 || s.HybridLengthCutoff < 0 || s.Workers < 0 {
		return errors.New("config: similarity sizes must be >= 0")
	}
	if s.HybridGate < 0 || s.HybridGate > 100 {
		return errors.New("config: similarity.hybrid_gate must be within [0,100]")
	}
	if s.MinLengthRatio < 0 || s.MinLengthRatio > 1 {
		return errors.New("config: similarity.min_length_ratio must be within [0,1]")
	}

	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	seen := map[string]bool{}
	for _, name := range cfg.Components.Extractors {
		if registry.Extractor[name] == nil {
			return fmt.Errorf("config: extractor %q not registered", name)
		}
		if seen[name] {
			return fmt.Errorf("config: extractor %q listed twice", name)
		}
		seen[name] = true
	}
	for name := range cfg.Options.Extractors {
		if registry.Extractor[name] == nil {
			return fmt.Errorf("config: options for unknown extractor %q", name)
		}
	}
	if name := cfg.Components.Corpus; name != "" && registry.Corpus[name] == nil {
		return fmt.Errorf("config: corpus %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	if name := cfg.Components.Store; name != "" && registry.Store[name] == nil {
		return fmt.Errorf("config: store %q not registered", name)
	}
	return nil
}

// SimilarityOptions 将配置映射为引擎参数（零值由引擎取默认）。
func (c Config) SimilarityOptions() similarity.Options {
	o := similarity.Options{
		NgramSize:          c.Similarity.NgramSize,
		HybridGate:         c.Similarity.HybridGate,
		HybridLengthCutoff: c.Similarity.HybridLengthCutoff,
		MinLengthRatio:     c.Similarity.MinLengthRatio,
		Workers:            c.Similarity.Workers,
	}
	if c.Similarity.Stem != nil {
		o.Stem = *c.Similarity.Stem
	}
	return o
}

// EffectiveThreshold 返回阈值；未设置时使用默认值。
func (c Config) EffectiveThreshold() float64 {
	if c.Similarity.Threshold == nil {
		return similarity.DefaultThreshold
	}
	return *c.Similarity.Threshold
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()

	r, err := registry.Reader[effName(cfg.Components.Reader, d.Components.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader: %w", err)
	}
	router, err := extract.Build(cfg.Components.Extractors, cfg.Options.Extractors)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}

	comp := pipeline.Components{
		Reader:     r,
		Router:     router,
		Comparator: similarity.NewComparator(cfg.SimilarityOptions()),
		Writer:     w,
	}
	if name := cfg.Components.Corpus; name != "" {
		c, err := registry.Corpus[name](cfg.Options.Corpus, router)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("corpus: %w", err)
		}
		comp.Corpus = c
	}
	if name := cfg.Components.Store; name != "" {
		st, err := registry.Store[name](cfg.Options.Store)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("store: %w", err)
		}
		comp.Store = st
	}

	threshold := cfg.EffectiveThreshold()
	set := pipeline.Settings{
		Inputs:       cloneStrings(cfg.Inputs),
		Concurrency:  cfg.Concurrency,
		MaxFileBytes: cfg.MaxFileBytes,
		Method:       cfg.Similarity.Method,
		Threshold:    &threshold,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
