package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"docsim/internal/diag"
	"docsim/internal/extract"
	"docsim/pkg/contract"
	"docsim/pkg/similarity"
)

// - 单点并发：仅此层管理文件级并发与背压；提取器为同步实现。
// - 参考语料每次运行只加载一次，下标即参考身份。
// - 首错取消：Reader/Writer/Store/ctx 错误记录首错并 cancel 整体；单文件提取失败是数据，不是错误。
// - 归并：worker 只产出单文件结果，唯一的收集者按 MIME 分组；输出顺序与并发度无关。

// DefaultReportName: 报告工件名。
const DefaultReportName = "report.json"

// DefaultMaxFileBytes: 单文件读取上限（64 MiB）。
const DefaultMaxFileBytes int64 = 64 << 20

// Router: 文件 → 提取结果。*extract.Router 实现该接口。
type Router interface {
	Route(ctx context.Context, filename string, content []byte) extract.Outcome
}

// Components 聚合运行所需的组件。Corpus 与 Store 可选。
type Components struct {
	Reader     contract.Reader
	Router     Router
	Comparator *similarity.Comparator
	Corpus     contract.Corpus
	Writer     contract.Writer
	Store      contract.Store
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Concurrency int
	// MaxFileBytes: <=0 使用默认值。
	MaxFileBytes int64
	// Method: 方法名；未知名称回退 hybrid 并记录 warn。
	Method string
	// Threshold: nil 使用 similarity.DefaultThreshold；显式 0 表示全部保留。
	Threshold *float64
	RunID     string
	// ReportName: 为空时使用 report.json。
	ReportName string
}

type job struct {
	fid  contract.FileID
	data []byte
	err  error // 读取失败（如超限），按错误文件记录
}

type result struct {
	meta contract.FileMetadata
	err  error
}

// Run 执行完整流水线：Reader → (worker: Router → Comparator) → 分组 → Writer → Store。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Report, error) {
	set, err := sanity(comp, set)
	if err != nil {
		return contract.Report{}, fmt.Errorf("sanity: %w", err)
	}
	method, ok := similarity.ParseMethod(set.Method)
	if !ok {
		logger.Warn("similarity", "unknown method, falling back to hybrid", map[string]string{"method": set.Method})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	threshold := similarity.DefaultThreshold
	if set.Threshold != nil {
		threshold = *set.Threshold
	}
	rep := contract.Report{RunID: set.RunID, Method: method.String(), Threshold: threshold}

	// 参考语料：一次加载
	var refs []string
	if comp.Corpus != nil {
		ct := logger.Start("corpus", "load")
		refs, err = comp.Corpus.Load(ctx)
		if err != nil {
			fail(logger, "corpus", "load failed", "", err)
			return contract.Report{}, fmt.Errorf("corpus load: %w", err)
		}
		if refs == nil {
			refs = []string{}
		}
		if nc, ok := comp.Corpus.(contract.NamedCorpus); ok {
			rep.References = nc.Names()
		}
		rep.ReferenceCount = len(refs)
		ct.Finish("load", int64(len(refs)))
		diag.IncOp("corpus", "finish", "success")
	}

	if t := diag.GetTerminal(); t != nil {
		t.RunStart(set.Concurrency, method.String(), len(refs))
	}

	// 有界通道：2×并发度，形成自然背压
	inCh := make(chan job, set.Concurrency*2)
	outCh := make(chan result, set.Concurrency*2)

	var wg sync.WaitGroup
	for i := 0; i < set.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range inCh {
				if ctx.Err() != nil {
					// 已取消：只排空
					continue
				}
				outCh <- processFile(ctx, comp, refs, method, threshold, j, logger)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outCh)
	}()

	// 生产者：Reader 顺序遍历，读取整文件后投递
	readErr := make(chan error, 1)
	go func() {
		defer close(inCh)
		rt := logger.Start("reader", "iterate")
		n := int64(0)
		err := comp.Reader.Iterate(ctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
			defer rc.Close()
			data, rerr := contract.ReadLimited(rc, set.MaxFileBytes)
			if rerr != nil && !errors.Is(rerr, contract.ErrTooLarge) {
				return fmt.Errorf("read %s: %w", fid, rerr)
			}
			n++
			select {
			case inCh <- job{fid: fid, data: data, err: rerr}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			fail(logger, "reader", "iterate failed", "", err)
			readErr <- fmt.Errorf("reader iterate: %w", err)
			return
		}
		rt.Finish("iterate", n)
		diag.IncOp("reader", "finish", "success")
		readErr <- nil
	}()

	// 收集者：单点归并
	groups := map[string][]contract.FileMetadata{}
	var firstErr error
	for r := range outCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		groups[r.meta.MimeType] = append(groups[r.meta.MimeType], r.meta)
	}
	if err := <-readErr; err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		return contract.Report{}, firstErr
	}

	rep.Groups = groupSorted(groups)

	if err := writeReport(ctx, comp.Writer, set.ReportName, rep, logger); err != nil {
		return contract.Report{}, err
	}
	if comp.Store != nil {
		st := logger.Start("store", "save")
		if err := comp.Store.Save(ctx, rep); err != nil {
			fail(logger, "store", "save failed", "", err)
			return contract.Report{}, fmt.Errorf("store save: %w", err)
		}
		st.Finish("save", int64(rep.FileCount()))
		diag.IncOp("store", "finish", "success")
	}
	return rep, nil
}

// processFile 提取单个文件并（在有参考语料时）比较。只有 ctx 取消会返回 err。
func processFile(ctx context.Context, comp Components, refs []string, m similarity.Method, threshold float64, j job, logger *diag.Logger) result {
	start := time.Now()
	fid := string(j.fid)
	meta := contract.FileMetadata{Name: fid, Size: float64(len(j.data))}
	// 有参考语料时每个文件都带匹配列表（不可比较的文件为空列表）
	if refs != nil {
		meta.SimilarityMatches = []similarity.Match{}
	}

	if j.err != nil {
		meta.MimeType = extract.DetectMIME(fid, nil)
		meta.Encoding = contract.EncodingError
		meta.TextContent = "Error: " + j.err.Error()
		logger.WarnWith("extract", string(diag.Classify(j.err)), "read failed", fid)
	} else {
		et := logger.StartWith("extract", "extract", fid)
		out := comp.Router.Route(ctx, fid, j.data)
		meta.MimeType = out.MimeType
		meta.Encoding = out.Encoding
		meta.TextContent = out.Text
		if out.Err != nil {
			code := diag.Classify(out.Err)
			if ctx.Err() != nil {
				return result{err: ctx.Err()}
			}
			logger.WarnWith("extract", string(code), out.Err.Error(), fid)
			diag.IncOp("extract", "finish", "error")
			diag.IncError("extract", string(code))
		} else {
			et.FinishKV("extract", int64(len(out.Text)), map[string]string{"extractor": out.Extractor, "mime": out.MimeType})
			diag.IncOp("extract", "finish", "success")
		}

		if refs != nil && out.Comparable && strings.TrimSpace(out.Text) != "" {
			ct := logger.StartWith("compare", "compare", fid)
			matches, err := comp.Comparator.CompareContext(ctx, out.Text, refs, threshold, m)
			if err != nil {
				return result{err: fmt.Errorf("compare %s: %w", fid, err)}
			}
			meta.SimilarityMatches = matches
			ct.Finish("compare", int64(len(matches)))
			diag.IncOp("compare", "finish", "success")
		}
	}

	dur := time.Since(start)
	meta.ProcessingTimeMS = float64(dur.Microseconds()) / 1000
	diag.ObserveDuration("pipeline", "file", dur.Milliseconds())
	if t := diag.GetTerminal(); t != nil {
		t.FileDone(fid, meta.Encoding != contract.EncodingError, len(meta.SimilarityMatches), dur)
	}
	return result{meta: meta}
}

// groupSorted: 分组按 MIME 排序，组内按文件名排序。
func groupSorted(groups map[string][]contract.FileMetadata) []contract.GroupedFiles {
	out := make([]contract.GroupedFiles, 0, len(groups))
	for mime, files := range groups {
		sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })
		out = append(out, contract.GroupedFiles{MimeType: mime, Files: files})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MimeType < out[j].MimeType })
	return out
}

// writeReport 以缩进 JSON 流式写出报告。
func writeReport(ctx context.Context, w contract.Writer, name string, rep contract.Report, logger *diag.Logger) error {
	wt := logger.StartWith("writer", "write", name)
	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		enc.SetIndent("", "  ")
		pw.CloseWithError(enc.Encode(rep))
	}()
	err := w.Write(ctx, contract.ArtifactID(name), pr)
	// Writer 提前返回时解除编码协程阻塞
	_ = pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		fail(logger, "writer", "write failed", name, err)
		return fmt.Errorf("writer write: %w", err)
	}
	wt.Finish("write", int64(rep.FileCount()))
	diag.IncOp("writer", "finish", "success")
	return nil
}

func fail(logger *diag.Logger, comp, msg, fileID string, err error) {
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), msg+": "+err.Error(), nil, fileID)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(c Components, s Settings) (Settings, error) {
	if c.Reader == nil || c.Router == nil || c.Writer == nil {
		return s, errors.New("pipeline: missing components")
	}
	if c.Corpus != nil && c.Comparator == nil {
		return s, errors.New("pipeline: corpus configured without comparator")
	}
	if len(s.Inputs) == 0 {
		return s, errors.New("pipeline: empty inputs")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.MaxFileBytes <= 0 {
		s.MaxFileBytes = DefaultMaxFileBytes
	}
	if s.ReportName == "" {
		s.ReportName = DefaultReportName
	}
	return s, nil
}
