package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cfgpkg "docsim/internal/config"
	"docsim/internal/pipeline"
	"docsim/pkg/similarity"
)

var vocab = strings.Fields("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon phi chi psi omega")

func sentence(r *rand.Rand, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = vocab[r.Intn(len(vocab))]
	}
	return strings.Join(parts, " ")
}

// corpusDirs 生成输入与参考目录：一部分输入复制自参考，其余随机。
func corpusDirs(t *testing.T, inputs, refs int) (inDir, refDir string) {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	root := t.TempDir()
	inDir = filepath.Join(root, "in")
	refDir = filepath.Join(root, "refs")
	for _, d := range []string{inDir, refDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	texts := make([]string, refs)
	for i := range texts {
		// 长短混合，覆盖 Hybrid 的三个分支
		n := 5 + r.Intn(20)
		if i%5 == 0 {
			n = 200 + r.Intn(100)
		}
		texts[i] = sentence(r, n)
		if err := os.WriteFile(filepath.Join(refDir, fmt.Sprintf("ref-%04d.txt", i)), []byte(texts[i]), 0o644); err != nil {
			t.Fatalf("write ref: %v", err)
		}
	}
	for i := 0; i < inputs; i++ {
		text := sentence(r, 5+r.Intn(20))
		if i%3 == 0 {
			text = texts[r.Intn(refs)]
		}
		if err := os.WriteFile(filepath.Join(inDir, fmt.Sprintf("in-%04d.txt", i)), []byte(text), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}
	return inDir, refDir
}

func baseConfig(inDir, refDir, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{inDir}
	cfg.Logging.Level = "error"
	cfg.Components.Corpus = "fs"
	cfg.Options.Corpus = json.RawMessage(fmt.Sprintf(`{"roots":[%q]}`, refDir))
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"atomic":false,"flat":true}`, outDir))
	return cfg
}

// runPipeline 执行完整流水线。
func runPipeline(cfg cfgpkg.Config) (int, error) {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return 0, err
	}
	rep, err := pipeline.Run(context.Background(), comp, set, nil)
	return rep.FileCount(), err
}

func stats(latencies []time.Duration) (avg, p95 time.Duration) {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var total time.Duration
	for _, d := range latencies {
		total += d
	}
	avg = total / time.Duration(len(latencies))
	idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
	if idx < 0 {
		idx = 0
	}
	return avg, latencies[idx]
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	const inputs = 120
	inDir, refDir := corpusDirs(t, inputs, 300)
	for _, conc := range []int{1, 8, 16, 32, 64} {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 3
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				cfg := baseConfig(inDir, refDir, t.TempDir())
				cfg.Concurrency = conc
				start := time.Now()
				n, err := runPipeline(cfg)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				if n != inputs {
					t.Errorf("run %d: 期望 %d 个文件，得到 %d", i, inputs, n)
					continue
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			avg, p95 := stats(latencies)
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v", conc, float64(successes)/float64(runs), avg, p95)
		})
	}
}

// TestStressComparatorWorkers 对单条候选与大参考集在不同 worker 数下比较，结果须一致。
func TestStressComparatorWorkers(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	r := rand.New(rand.NewSource(9))
	refs := make([]string, 5000)
	for i := range refs {
		refs[i] = sentence(r, 3+r.Intn(30))
	}
	candidate := refs[1234]
	var want []similarity.Match
	for _, workers := range []int{1, 4, 32, 256} {
		c := similarity.NewComparator(similarity.Options{Workers: workers})
		latencies := make([]time.Duration, 0, 5)
		for i := 0; i < 5; i++ {
			start := time.Now()
			got := c.Compare(candidate, refs, 30, similarity.Hybrid)
			latencies = append(latencies, time.Since(start))
			if want == nil {
				want = got
			}
			if len(got) != len(want) {
				t.Fatalf("workers=%d 结果数不一致: %d vs %d", workers, len(got), len(want))
			}
			for k := range got {
				if got[k] != want[k] {
					t.Fatalf("workers=%d 第 %d 条不一致: %+v vs %+v", workers, k, got[k], want[k])
				}
			}
		}
		avg, p95 := stats(latencies)
		t.Logf("workers%d 命中%d 平均%v 95%%延迟%v", workers, len(want), avg, p95)
	}
}
