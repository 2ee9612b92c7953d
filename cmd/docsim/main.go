package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cfgpkg "docsim/internal/config"
	"docsim/internal/diag"
	"docsim/internal/explain"
	"docsim/internal/extract"
	"docsim/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 默认子命令 run。
// 位置参数为 inputs（文件/目录 或 "-" 表示 STDIN，不能与其他根混用）。
// --explain A B 对两份文档给出逐方法诊断后退出。
func main() {
	os.Exit(run())
}

// 缺省配置文件查找顺序
var defaultConfigNames = []string{"config.json", "config.yaml", "config.yml"}

func run() int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）
	_ = loadDotEnv(".env")
	logLevel := "info"
	// 先占位默认，合并配置后按最终 level 重建
	logger := diag.NewLogger(corrID, logLevel)
	defer func() { _ = logger.Close() }()

	var (
		flagConfig      string
		flagMethod      string
		flagThreshold   string
		flagConcurrency int
		flagCorpus      string
		flagInitDir     string
		flagStatus      bool
		flagExplain     bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON 或 YAML）；缺省读取 ./config.json|config.yaml（若存在）")
	flag.StringVar(&flagMethod, "method", "", "相似度方法 jaccard|ngram|levenshtein|hybrid（覆盖配置）")
	// threshold 允许显式 0，故以字符串接收
	flag.StringVar(&flagThreshold, "threshold", "", "相似度阈值 0..100（覆盖配置）")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "文件级并发度（覆盖配置）")
	flag.StringVar(&flagCorpus, "corpus", "", "参考语料目录（等价于 components.corpus=fs 且 roots=[DIR]）")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（不覆盖已有文件）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	flag.BoolVar(&flagExplain, "explain", false, "诊断模式：docsim --explain CANDIDATE REFERENCE")
	normalizeInitArg()
	flag.Parse()

	inputs := flag.Args()

	if dir := strings.TrimSpace(flagInitDir); dir != "" {
		if err := initConfig(dir); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "init failed", &start)
			return 3
		}
		return 0
	}

	// 配置来源：--config > DOCSIM_CONFIG_FILE > DOCSIM_CONFIG_JSON > 缺省文件
	var cfgRaw []byte
	if s := os.Getenv("DOCSIM_CONFIG_JSON"); s != "" {
		cfgRaw = []byte(s)
	}
	if flagConfig == "" {
		flagConfig = os.Getenv("DOCSIM_CONFIG_FILE")
	}
	if flagConfig == "" && len(cfgRaw) == 0 {
		for _, name := range defaultConfigNames {
			if _, err := os.Stat(name); err == nil {
				flagConfig = name
				break
			}
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgRaw) > 0 {
		var (
			base cfgpkg.Config
			err  error
		)
		if flagConfig != "" {
			base, err = cfgpkg.Load(flagConfig, nil)
		} else {
			base, err = cfgpkg.Load("", cfgRaw)
		}
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "first error", &start)
			return 3
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI, err := cliOverlay(flagMethod, flagThreshold, flagConcurrency, flagCorpus)
	if err != nil {
		fprintf(os.Stderr, "参数错误: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	if !flagExplain && len(inputs) > 0 {
		overCLI.Inputs = inputs
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if strings.TrimSpace(cfg.Logging.Level) != "" {
		logLevel = strings.TrimSpace(cfg.Logging.Level)
	}
	_ = logger.Close()
	logger = diag.NewLogger(corrID, logLevel)

	if flagExplain {
		return runExplain(context.Background(), cfg, inputs, os.Stdout, logger)
	}

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	// 预检：fs writer 的输出目录可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	set.RunID = corrID

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", map[string]string{
		"inputs_count": strconv.Itoa(len(cfg.Inputs)),
		"concurrency":  strconv.Itoa(cfg.Concurrency),
		"method":       cfg.Similarity.Method,
		"threshold":    strconv.FormatFloat(cfg.EffectiveThreshold(), 'f', -1, 64),
		"reader":       cfg.Components.Reader,
		"extractors":   strings.Join(cfg.Components.Extractors, ","),
		"corpus":       cfg.Components.Corpus,
		"writer":       cfg.Components.Writer,
		"store":        cfg.Components.Store,
	})

	t := logger.Start("pipeline", "run")
	rep, err := pipelineRun(context.Background(), comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != "" && code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		if term != nil {
			term.RunFinish(false, time.Since(start))
		}
		return 1
	}
	t.Finish("run", int64(rep.FileCount()))
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	logMetrics(logger)
	if term != nil {
		term.RunFinish(true, time.Since(start))
	}
	return 0
}

// cliOverlay 将命令行旗标映射为覆盖层（零值表示未覆盖）。
func cliOverlay(method, threshold string, concurrency int, corpusDir string) (cfgpkg.Config, error) {
	var over cfgpkg.Config
	over.Similarity.Method = strings.TrimSpace(method)
	if s := strings.TrimSpace(threshold); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return over, fmt.Errorf("--threshold %q: %w", s, err)
		}
		over.Similarity.Threshold = &v
	}
	if concurrency > 0 {
		over.Concurrency = concurrency
	}
	if dir := strings.TrimSpace(corpusDir); dir != "" {
		b, err := json.Marshal(struct {
			Roots []string `json:"roots"`
		}{Roots: []string{dir}})
		if err != nil {
			return over, err
		}
		over.Components.Corpus = "fs"
		over.Options.Corpus = b
	}
	return over, nil
}

// explainReport: --explain 的输出。
type explainReport struct {
	Candidate string         `json:"candidate"`
	Reference string         `json:"reference"`
	Method    string         `json:"method"`
	Threshold float64        `json:"threshold"`
	Result    explain.Result `json:"result"`
}

// runExplain 用默认提取器链读取两份文档，输出 JSON 诊断。
func runExplain(ctx context.Context, cfg cfgpkg.Config, args []string, w io.Writer, logger *diag.Logger) int {
	if len(args) != 2 {
		fprintf(os.Stderr, "用法: docsim --explain CANDIDATE REFERENCE\n")
		return 3
	}
	texts := make([]string, 2)
	for i, p := range args {
		b, err := os.ReadFile(p)
		if err != nil {
			fprintf(os.Stderr, "读取失败: %v\n", err)
			logger.ErrorWith("explain", string(diag.Classify(err)), "read failed", nil, p)
			return 1
		}
		text, err := extract.Default().ExtractText(ctx, p, b)
		if err != nil {
			fprintf(os.Stderr, "提取失败: %v\n", err)
			logger.ErrorWith("explain", string(diag.Classify(err)), "extract failed", nil, p)
			return 1
		}
		texts[i] = text
	}
	out := explainReport{
		Candidate: args[0],
		Reference: args[1],
		Method:    cfg.Similarity.Method,
		Threshold: cfg.EffectiveThreshold(),
		Result:    explain.Explain(texts[0], texts[1], cfg.SimilarityOptions(), cfg.EffectiveThreshold()),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fprintf(os.Stderr, "输出失败: %v\n", err)
		return 1
	}
	return 0
}

// logMetrics 以 debug 级别输出本次运行的计数快照。
func logMetrics(logger *diag.Logger) {
	s := diag.TakeSnapshot()
	kv := map[string]string{}
	for _, c := range s.Ops {
		kv["op:"+c.Key] = strconv.FormatInt(c.Value, 10)
	}
	for _, c := range s.Errors {
		kv["err:"+c.Key] = strconv.FormatInt(c.Value, 10)
	}
	logger.DebugStart("metrics", "snapshot", "", kv)
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		return err
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, _ = f.Write([]byte("\n"))
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// loadDotEnv 读取简单的 .env 文件并注入进程环境。
// - 文件不存在时忽略；
// - 跳过空行与 # 注释，支持可选的 "export " 前缀；
// - 仅按首个 '=' 分割，成对引号去除，双引号内处理 \n \t \r \" \\；
// - 不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '\'' || val[0] == '"') && val[len(val)-1] == val[0] {
			quoted := val[0]
			val = val[1 : len(val)-1]
			if quoted == '"' {
				val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

// normalizeInitArg: 裸 --init-config（位于末尾或后接其他开关）补默认值 "."。
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板；文件已存在时跳过。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	var b strings.Builder
	b.WriteString("# docsim .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（二选一）\n")
	b.WriteString("DOCSIM_CONFIG_FILE=\n")
	b.WriteString("DOCSIM_CONFIG_JSON=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"INPUTS", "CONCURRENCY", "MAX_FILE_BYTES", "LOG_LEVEL"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 相似度参数\n")
	for _, k := range []string{"METHOD", "THRESHOLD", "NGRAM_SIZE", "HYBRID_GATE", "HYBRID_LENGTH_CUTOFF", "MIN_LENGTH_RATIO", "WORKERS", "STEM"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择（提取器链以逗号分隔）\n")
	for _, k := range []string{"READER", "EXTRACTORS", "CORPUS", "WRITER", "STORE"} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件 Options（原样 JSON）\n")
	for _, k := range []string{"READER", "CORPUS", "WRITER", "STORE"} {
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	for _, name := range extract.DefaultOrder {
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_EXTRACTOR__" + strings.ToUpper(name) + "_JSON=\n")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: Writer 为 fs 时，启动前检查输出目录可写性。
// 目录存在则尝试创建并删除临时文件；不存在则检查父目录可写性。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	writerName := strings.TrimSpace(cfg.Components.Writer)
	if writerName == "" {
		writerName = cfgpkg.Defaults().Components.Writer
	}
	if writerName != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 交由装配阶段报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(dir)
	if parent == "" || parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
