package similarity

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Match: 候选文本与某条参考文本的命中结果（仅当分数 >= 阈值时产生）。
// ReferenceIndex 为调用方参考切片中的 0 基下标。
type Match struct {
	ReferenceIndex       int     `json:"reference_index"`
	SimilarityPercentage float64 `json:"similarity_percentage"`
}

// Comparator 将一条候选文本与整个参考集合并行比较。
// 每次调用独立：不缓存、不持有调用间状态，可被多个 goroutine 同时使用。
type Comparator struct {
	scorer *Scorer
}

func NewComparator(opts Options) *Comparator { return &Comparator{scorer: NewScorer(opts)} }

// Scorer 暴露底层评分器（explain/测试用）。
func (c *Comparator) Scorer() *Scorer { return c.scorer }

// Compare 返回所有分数 >= threshold 的参考下标与分数，按下标升序。
// 参考集合为空时返回空切片（非 nil）。
func (c *Comparator) Compare(candidate string, references []string, threshold float64, m Method) []Match {
	out, _ := c.CompareContext(context.Background(), candidate, references, threshold, m)
	return out
}

// CompareByName 以名称选择方法；未知名称静默回退为 Hybrid。
func (c *Comparator) CompareByName(candidate string, references []string, threshold float64, name string) []Match {
	m, _ := ParseMethod(name)
	return c.Compare(candidate, references, threshold, m)
}

// CompareContext 同 Compare，但受 ctx 约束：取消/超时作用于整批，
// 在两次评分之间检查，不打断单个评分器。
//
// 并行模型（partition → reduce）：
//   - 参考集合按连续区间切分，每个 worker 只写自己区间内的 scores[i]；
//   - 全部完成后单次合并，筛出 score >= threshold。
//
// 预过滤拒绝的文本对按 0 分处理，不运行评分器。
func (c *Comparator) CompareContext(ctx context.Context, candidate string, references []string, threshold float64, m Method) ([]Match, error) {
	if len(references) == 0 {
		return []Match{}, nil
	}
	opts := c.scorer.opts
	minRatio := MinRatioFor(opts.MinLengthRatio, threshold)

	workers := opts.Workers
	if workers > len(references) {
		workers = len(references)
	}
	chunk := (len(references) + workers - 1) / workers

	scores := make([]float64, len(references))
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(references); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(references))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if !PreFilter(candidate, references[i], minRatio) {
					continue
				}
				scores[i] = c.scorer.Score(candidate, references[i], m, threshold)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0)
	for i, s := range scores {
		if s >= threshold {
			matches = append(matches, Match{ReferenceIndex: i, SimilarityPercentage: s})
		}
	}
	return matches, nil
}
