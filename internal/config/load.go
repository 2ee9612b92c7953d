package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"docsim/pkg/similarity"
)

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "DOCSIM_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	th := similarity.DefaultThreshold
	return Config{
		Concurrency: 1,
		Similarity: Similarity{
			Method:    similarity.Hybrid.String(),
			Threshold: &th,
		},
		Components: Components{
			Reader: "fs",
			Writer: "fs",
		},
	}
}

// Load 按扩展名选择格式：.yaml/.yml 走 YAML，其余走 JSON。raw 非空时按内容首字符判断。
func Load(path string, raw []byte) (Config, error) {
	if len(raw) > 0 {
		if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '{' {
			return LoadJSON("", raw)
		}
		return LoadYAML("", raw)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, nil)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	b, err := source(path, raw)
	if err != nil {
		return Config{}, err
	}
	return decodeStrict(b)
}

// LoadYAML 从文件路径或原始 YAML 解析 Config。
// YAML 先经 yaml.v2 严格解码（重复键报错），再转为 JSON 走同一严格解码路径，
// 因此 options 子树保持原样 JSON 语义。
func LoadYAML(path string, raw []byte) (Config, error) {
	b, err := source(path, raw)
	if err != nil {
		return Config{}, err
	}
	var doc any
	if err := yaml.UnmarshalStrict(b, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, nil
	}
	js, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return decodeStrict(js)
}

func source(path string, raw []byte) ([]byte, error) {
	switch {
	case len(raw) > 0:
		return raw, nil
	case path != "":
		return os.ReadFile(path)
	default:
		return nil, errors.New("no config source provided")
	}
}

func decodeStrict(b []byte) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// jsonCompatible 将 yaml.v2 的 map[interface{}]interface{} 递归转为 map[string]any。
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = jsonCompatible(vv)
		}
		return m
	case []any:
		for i := range t {
			t[i] = jsonCompatible(t[i])
		}
		return t
	default:
		return v
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.MaxFileBytes != 0 {
		out.MaxFileBytes = over.MaxFileBytes
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// Similarity
	s, o := &out.Similarity, over.Similarity
	if strings.TrimSpace(o.Method) != "" {
		s.Method = strings.TrimSpace(o.Method)
	}
	if o.Threshold != nil {
		v := *o.Threshold
		s.Threshold = &v
	}
	if o.NgramSize != 0 {
		s.NgramSize = o.NgramSize
	}
	if o.HybridGate != 0 {
		s.HybridGate = o.HybridGate
	}
	if o.HybridLengthCutoff != 0 {
		s.HybridLengthCutoff = o.HybridLengthCutoff
	}
	if o.MinLengthRatio != 0 {
		s.MinLengthRatio = o.MinLengthRatio
	}
	if o.Workers != 0 {
		s.Workers = o.Workers
	}
	if o.Stem != nil {
		v := *o.Stem
		s.Stem = &v
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if len(over.Components.Extractors) > 0 {
		out.Components.Extractors = cloneStrings(over.Components.Extractors)
	}
	if over.Components.Corpus != "" {
		out.Components.Corpus = over.Components.Corpus
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.Store != "" {
		out.Components.Store = over.Components.Store
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Extractors) > 0 {
		m := make(map[string]json.RawMessage, len(out.Options.Extractors)+len(over.Options.Extractors))
		for k, v := range out.Options.Extractors {
			m[k] = v
		}
		for k, v := range over.Options.Extractors {
			m[k] = cloneRaw(v)
		}
		out.Options.Extractors = m
	}
	if len(over.Options.Corpus) > 0 {
		out.Options.Corpus = cloneRaw(over.Options.Corpus)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Store) > 0 {
		out.Options.Store = cloneRaw(over.Options.Store)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合，前缀 DOCSIM_）。
// 支持：INPUTS, CONCURRENCY, MAX_FILE_BYTES, LOG_LEVEL,
// METHOD, THRESHOLD, NGRAM_SIZE, HYBRID_GATE, HYBRID_LENGTH_CUTOFF, MIN_LENGTH_RATIO, WORKERS, STEM,
// COMPONENTS_{READER,EXTRACTORS,CORPUS,WRITER,STORE},
// OPTIONS_{READER,CORPUS,WRITER,STORE}_JSON 以及 OPTIONS_EXTRACTOR__<name>_JSON。
// 空值视为未设置；数值非法时报错。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			continue
		}
		var err error
		switch key {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "CONCURRENCY":
			over.Concurrency, err = strconv.Atoi(val)
		case "MAX_FILE_BYTES":
			over.MaxFileBytes, err = strconv.ParseInt(val, 10, 64)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "METHOD":
			over.Similarity.Method = val
		case "THRESHOLD":
			var f float64
			if f, err = strconv.ParseFloat(val, 64); err == nil {
				over.Similarity.Threshold = &f
			}
		case "NGRAM_SIZE":
			over.Similarity.NgramSize, err = strconv.Atoi(val)
		case "HYBRID_GATE":
			over.Similarity.HybridGate, err = strconv.ParseFloat(val, 64)
		case "HYBRID_LENGTH_CUTOFF":
			over.Similarity.HybridLengthCutoff, err = strconv.Atoi(val)
		case "MIN_LENGTH_RATIO":
			over.Similarity.MinLengthRatio, err = strconv.ParseFloat(val, 64)
		case "WORKERS":
			over.Similarity.Workers, err = strconv.Atoi(val)
		case "STEM":
			var b bool
			if b, err = strconv.ParseBool(val); err == nil {
				over.Similarity.Stem = &b
			}
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_EXTRACTORS":
			over.Components.Extractors = splitComma(val)
		case "COMPONENTS_CORPUS":
			over.Components.Corpus = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "COMPONENTS_STORE":
			over.Components.Store = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader, err = rawJSON(val)
		case "OPTIONS_CORPUS_JSON":
			over.Options.Corpus, err = rawJSON(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer, err = rawJSON(val)
		case "OPTIONS_STORE_JSON":
			over.Options.Store, err = rawJSON(val)
		default:
			// OPTIONS_EXTRACTOR__<name>_JSON
			if name, ok := extractorOptionKey(key); ok {
				var raw json.RawMessage
				if raw, err = rawJSON(val); err == nil {
					if over.Options.Extractors == nil {
						over.Options.Extractors = map[string]json.RawMessage{}
					}
					over.Options.Extractors[name] = raw
				}
			}
		}
		if err != nil {
			return Config{}, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
	}
	return over, nil
}

func extractorOptionKey(key string) (string, bool) {
	const pre, suf = "OPTIONS_EXTRACTOR__", "_JSON"
	if !strings.HasPrefix(key, pre) || !strings.HasSuffix(key, suf) || len(key) <= len(pre)+len(suf) {
		return "", false
	}
	return strings.ToLower(key[len(pre) : len(key)-len(suf)]), true
}

func rawJSON(s string) (json.RawMessage, error) {
	if !json.Valid([]byte(s)) {
		return nil, errors.New("invalid JSON")
	}
	return json.RawMessage(s), nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
