// Package explain 说明一对文本为何得到某个分数：各方法的分数、Hybrid 选用的分支，
// 以及基于 diff 的编辑脚本。仅用于诊断，不参与批量比较。
package explain

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"docsim/pkg/similarity"
)

// Scores: 各方法的分数（threshold=0，即 Levenshtein 不提前终止）。
type Scores struct {
	Jaccard     float64 `json:"jaccard"`
	Ngram       float64 `json:"ngram"`
	Levenshtein float64 `json:"levenshtein"`
	Hybrid      float64 `json:"hybrid"`
}

// Result: 一对文本的诊断结果。
type Result struct {
	Scores       Scores            `json:"scores"`
	HybridBranch similarity.Branch `json:"hybrid_branch"`
	// PreFilter: 按比较器同样的规则（min_length_ratio，未配置时 threshold/100）是否通过。
	PreFilter bool    `json:"pre_filter"`
	MinRatio  float64 `json:"min_length_ratio"`
	LenRatio  float64 `json:"length_ratio"`
	Threshold float64 `json:"threshold"`
	// Distance: 精确编辑距离（rune）。
	Distance int `json:"levenshtein_distance"`
	// DiffLevenshtein: 由 diff 推导的编辑距离，是 Distance 的上界。
	DiffLevenshtein int    `json:"diff_levenshtein"`
	Inserted        int    `json:"inserted_runes"`
	Deleted         int    `json:"deleted_runes"`
	Equal           int    `json:"equal_runes"`
	Inline          string `json:"inline"`
}

// Explain 计算候选文本与参考文本的诊断信息；threshold 只影响预过滤判定。
func Explain(candidate, reference string, opts similarity.Options, threshold float64) Result {
	s := similarity.NewScorer(opts)
	minRatio := similarity.MinRatioFor(opts.MinLengthRatio, threshold)
	res := Result{
		Scores: Scores{
			Jaccard:     s.Jaccard(candidate, reference),
			Ngram:       s.Ngram(candidate, reference),
			Levenshtein: s.Levenshtein(candidate, reference, 0),
			Hybrid:      s.Hybrid(candidate, reference, 0),
		},
		HybridBranch: s.HybridBranch(candidate, reference),
		PreFilter:    similarity.PreFilter(candidate, reference, minRatio),
		MinRatio:     minRatio,
		LenRatio:     lengthRatio(candidate, reference),
		Threshold:    threshold,
		Distance:     similarity.LevenshteinDistance(candidate, reference, -1),
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(reference, candidate, false)
	res.DiffLevenshtein = dmp.DiffLevenshtein(diffs)

	// 展示用：语义清理后的 diff 更易读
	var b strings.Builder
	for _, d := range dmp.DiffCleanupSemantic(diffs) {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			res.Inserted += n
			b.WriteString("{+")
			b.WriteString(d.Text)
			b.WriteString("+}")
		case diffmatchpatch.DiffDelete:
			res.Deleted += n
			b.WriteString("[-")
			b.WriteString(d.Text)
			b.WriteString("-]")
		case diffmatchpatch.DiffEqual:
			res.Equal += n
			b.WriteString(d.Text)
		}
	}
	res.Inline = b.String()
	return res
}

func lengthRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1
	}
	return float64(min(la, lb)) / float64(max(la, lb))
}
