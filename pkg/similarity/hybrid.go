package similarity

import "unicode/utf8"

// Branch: Hybrid 级联最终选用的子评分器。
type Branch int

const (
	BranchJaccard Branch = iota
	BranchLevenshtein
	BranchNgram
)

func (b Branch) String() string {
	switch b {
	case BranchLevenshtein:
		return "levenshtein"
	case BranchNgram:
		return "ngram"
	default:
		return "jaccard"
	}
}

func (b Branch) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// Scorer 按 Options 计算单对文本的分数。无状态，可并发使用。
type Scorer struct {
	opts Options
}

// NewScorer 构造评分器；零值字段使用默认值。
func NewScorer(opts Options) *Scorer { return &Scorer{opts: opts.normalized()} }

// Options 返回归一化后的参数副本。
func (s *Scorer) Options() Options { return s.opts }

func (s *Scorer) Jaccard(a, b string) float64 {
	return setRatio(tokenSet(a, s.opts.Stem), tokenSet(b, s.opts.Stem), 0)
}

func (s *Scorer) Ngram(a, b string) float64 { return NgramSimilarity(a, b, s.opts.NgramSize) }

func (s *Scorer) Levenshtein(a, b string, threshold float64) float64 {
	return LevenshteinSimilarity(a, b, threshold)
}

// Hybrid 渐进式级联：
//  1. Jaccard 低于闸门直接返回 Jaccard 分数（词面差异大但字符相近的文本会被低估）；
//  2. 候选文本短于长度阈值走 Levenshtein（带阈值推导的提前终止）；
//  3. 否则走 N-gram。
func (s *Scorer) Hybrid(candidate, reference string, threshold float64) float64 {
	j := s.Jaccard(candidate, reference)
	switch s.branch(candidate, j) {
	case BranchLevenshtein:
		return s.Levenshtein(candidate, reference, threshold)
	case BranchNgram:
		return s.Ngram(candidate, reference)
	default:
		return j
	}
}

// HybridBranch 返回 Hybrid 对该文本对会选用的子评分器。
func (s *Scorer) HybridBranch(candidate, reference string) Branch {
	return s.branch(candidate, s.Jaccard(candidate, reference))
}

func (s *Scorer) branch(candidate string, jaccard float64) Branch {
	if jaccard < s.opts.HybridGate {
		return BranchJaccard
	}
	if utf8.RuneCountInString(candidate) < s.opts.HybridLengthCutoff {
		return BranchLevenshtein
	}
	return BranchNgram
}

// Score 按方法分派。threshold 仅影响 Levenshtein 的提前终止（含 Hybrid 内部）。
func (s *Scorer) Score(candidate, reference string, m Method, threshold float64) float64 {
	switch m {
	case Jaccard:
		return s.Jaccard(candidate, reference)
	case Ngram:
		return s.Ngram(candidate, reference)
	case Levenshtein:
		return s.Levenshtein(candidate, reference, threshold)
	default:
		return s.Hybrid(candidate, reference, threshold)
	}
}
