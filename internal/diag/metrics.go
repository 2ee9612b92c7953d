package diag

import (
	"sort"
	"strings"
	"sync"
)

// 进程内计数器：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）
var metrics = struct {
	mu    sync.Mutex
	ops   map[string]int64
	errs  map[string]int64
	durMS map[string]int64
}{ops: map[string]int64{}, errs: map[string]int64{}, durMS: map[string]int64{}}

func key(parts ...string) string { return strings.Join(parts, "/") }

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	metrics.mu.Lock()
	metrics.ops[key(comp, stage, result)]++
	metrics.mu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metrics.mu.Lock()
	metrics.errs[key(comp, code)]++
	metrics.mu.Unlock()
}

// ObserveDuration 累计阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metrics.mu.Lock()
	metrics.durMS[key(comp, stage)] += durMS
	metrics.mu.Unlock()
}

// Counter 为快照中的单个计数。
type Counter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Snapshot: 计数器只读副本（按 key 排序）。
type Snapshot struct {
	Ops        []Counter `json:"ops"`
	Errors     []Counter `json:"errors"`
	DurationMS []Counter `json:"duration_ms"`
}

// Op 返回 comp/stage/result 的计数。
func (s Snapshot) Op(comp, stage, result string) int64 { return find(s.Ops, key(comp, stage, result)) }

// Err 返回 comp/code 的计数。
func (s Snapshot) Err(comp, code string) int64 { return find(s.Errors, key(comp, code)) }

func find(cs []Counter, k string) int64 {
	i := sort.Search(len(cs), func(i int) bool { return cs[i].Key >= k })
	if i < len(cs) && cs[i].Key == k {
		return cs[i].Value
	}
	return 0
}

// TakeSnapshot 返回当前计数器副本。
func TakeSnapshot() Snapshot {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return Snapshot{Ops: sorted(metrics.ops), Errors: sorted(metrics.errs), DurationMS: sorted(metrics.durMS)}
}

// ResetMetrics 清零（每次运行开始时调用）。
func ResetMetrics() {
	metrics.mu.Lock()
	metrics.ops = map[string]int64{}
	metrics.errs = map[string]int64{}
	metrics.durMS = map[string]int64{}
	metrics.mu.Unlock()
}

func sorted(m map[string]int64) []Counter {
	out := make([]Counter, 0, len(m))
	for k, v := range m {
		out = append(out, Counter{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
