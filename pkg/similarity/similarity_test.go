package similarity

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/hbollon/go-edlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in   string
		want Method
		ok   bool
	}{
		{"jaccard", Jaccard, true},
		{" NGRAM ", Ngram, true},
		{"Levenshtein", Levenshtein, true},
		{"hybrid", Hybrid, true},
		{"", Hybrid, true},
		{"cosine", Hybrid, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			m, ok := ParseMethod(tc.in)
			assert.Equal(t, tc.want, m)
			assert.Equal(t, tc.ok, ok)
		})
	}
	assert.Equal(t, "ngram", Ngram.String())
	var zero Method
	assert.Equal(t, Hybrid, zero)
}

func TestJaccardSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "the quick brown fox", "the quick brown fox", 100},
		{"case_insensitive", "The Quick", "the quick", 100},
		{"partial", "a b c", "a b d", 50},
		{"disjoint", "a b", "c d", 0},
		{"duplicates_ignored", "a a a b", "a b", 100},
		{"both_empty", "", "", 0},
		{"one_empty", "a", "", 0},
		{"whitespace_only", " \t\n", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, JaccardSimilarity(tc.a, tc.b), 1e-9)
		})
	}
}

func TestJaccardStemming(t *testing.T) {
	plain := NewScorer(Options{})
	stem := NewScorer(Options{Stem: true})
	assert.Less(t, plain.Jaccard("running dogs", "run dog"), 100.0)
	assert.InDelta(t, 100.0, stem.Jaccard("running dogs", "run dog"), 1e-9)
}

func TestNgramSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		n    int
		want float64
	}{
		{"identical", "abcdef", "abcdef", 3, 100},
		{"one_edit", "abcd", "abce", 3, 100.0 / 3},
		{"whitespace_collapse", "a  b\tc", " A b c ", 3, 100},
		{"shorter_than_window", "ab", "ab", 3, 100},
		{"shorter_differs", "ab", "ac", 3, 0},
		{"both_empty", "", "", 3, 100},
		{"candidate_empty", "", "abc", 3, 0},
		{"reference_empty", "ab", "", 3, 0},
		{"whitespace_vs_empty", "  \t", "", 3, 100},
		{"window_below_one", "ab", "ba", 0, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, NgramSimilarity(tc.a, tc.b, tc.n), 1e-9)
		})
	}
}

func TestLevenshteinDistanceMatchesOracle(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	alphabet := []rune("abcé中 ")
	gen := func() string {
		n := r.Intn(24)
		rs := make([]rune, n)
		for i := range rs {
			rs[i] = alphabet[r.Intn(len(alphabet))]
		}
		return string(rs)
	}
	for i := 0; i < 300; i++ {
		a, b := gen(), gen()
		want := edlib.LevenshteinDistance(a, b)
		require.Equal(t, want, LevenshteinDistance(a, b, -1), "a=%q b=%q", a, b)
		require.Equal(t, want, LevenshteinDistance(b, a, -1), "a=%q b=%q", a, b)
	}
}

func TestLevenshteinEarlyTermination(t *testing.T) {
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting", -1))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting", 3))
	assert.Equal(t, 2, LevenshteinDistance("kitten", "sitting", 1))
	assert.Equal(t, 1, LevenshteinDistance("", "abc", 0))
	assert.Equal(t, 3, LevenshteinDistance("", "abc", 5))
	assert.Equal(t, 4, LevenshteinDistance("aaaa", "zzzz", 3))
}

func TestLevenshteinSimilarity(t *testing.T) {
	assert.InDelta(t, 100.0, LevenshteinSimilarity("", "", 30), 1e-9)
	// 一侧为空：距离等于另一侧长度，相似度为 0
	assert.Equal(t, 0.0, LevenshteinSimilarity("", "abc", 0))
	assert.Equal(t, 0.0, LevenshteinSimilarity("abc", "", 0))
	assert.Equal(t, 0.0, LevenshteinSimilarity("", "abc", 30))
	assert.InDelta(t, 400.0/7, LevenshteinSimilarity("kitten", "sitting", 0), 1e-9)
	assert.InDelta(t, 400.0/7, LevenshteinSimilarity("kitten", "sitting", 50), 1e-9)
	// 上界 floor(7*0.4)=2 < 3：提前终止
	assert.Equal(t, 0.0, LevenshteinSimilarity("kitten", "sitting", 60))
	assert.Equal(t, 0.0, LevenshteinSimilarity("abc", "abc", 150))
}

func TestThresholdIsInclusive(t *testing.T) {
	c := NewComparator(Options{Workers: 2})
	// 10 个字符，3 处替换：恰好 70
	got := c.Compare("abcdefghij", []string{"abcdefgxyz"}, 70, Levenshtein)
	require.Len(t, got, 1)
	assert.InDelta(t, 70.0, got[0].SimilarityPercentage, 1e-9)

	// 3/5 = 60
	got = c.Compare("a b c d", []string{"a b c e"}, 60, Jaccard)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].SimilarityPercentage)

	assert.Empty(t, c.Compare("a b c d", []string{"a b c e"}, 60.0001, Jaccard))
}

func TestPreFilter(t *testing.T) {
	assert.True(t, PreFilter("", "", 1))
	assert.True(t, PreFilter("abc", "abcdefghij", 0.3))
	assert.False(t, PreFilter("abc", "abcdefghij", 0.31))
	assert.True(t, PreFilter("中文", "中文字", 0.6))

	// 长度比 0.3 < 0.5：不评分，按 0 处理
	c := NewComparator(Options{MinLengthRatio: 0.5})
	assert.Empty(t, c.Compare("abc", []string{"abc abc abc abc"}, 10, Jaccard))
	// 阈值 <= 0 时 0 分也满足阈值
	got := c.Compare("abc", []string{"abc abc abc abc"}, 0, Jaccard)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].SimilarityPercentage)
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	words := []string{"alpha", "beta", "Gamma", "delta", "中文", "x"}
	gen := func() string {
		n := 1 + r.Intn(12)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = words[r.Intn(len(words))]
		}
		return strings.Join(parts, " ")
	}
	s := NewScorer(Options{})
	for i := 0; i < 200; i++ {
		a, b := gen(), gen()
		for _, m := range []Method{Jaccard, Ngram, Levenshtein} {
			ab := s.Score(a, b, m, 0)
			ba := s.Score(b, a, m, 0)
			require.InDelta(t, ab, ba, 1e-9, "symmetry %s a=%q b=%q", m, a, b)
			require.GreaterOrEqual(t, ab, 0.0)
			require.LessOrEqual(t, ab, 100.0)
		}
		for _, m := range Methods() {
			require.Equal(t, 100.0, s.Score(a, a, m, 30), "identity %s a=%q", m, a)
		}
		h := s.Score(a, b, Hybrid, 0)
		require.GreaterOrEqual(t, h, 0.0)
		require.LessOrEqual(t, h, 100.0)
	}
}

func TestHybridBranch(t *testing.T) {
	s := NewScorer(Options{})
	assert.Equal(t, BranchJaccard, s.HybridBranch("x y z", "a b c"))
	assert.Equal(t, 0.0, s.Hybrid("x y z", "a b c", 30))

	assert.Equal(t, BranchLevenshtein, s.HybridBranch("the quick brown fox", "the quick brown box"))
	assert.InDelta(t, LevenshteinSimilarity("the quick brown fox", "the quick brown box", 30),
		s.Hybrid("the quick brown fox", "the quick brown box", 30), 1e-9)

	long, ref := longPair()
	assert.Equal(t, BranchNgram, s.HybridBranch(long, ref))
	assert.InDelta(t, s.Ngram(long, ref), s.Hybrid(long, ref, 30), 1e-9)

	// 闸门含端点：Jaccard 恰为 20（1/5）时继续走 Levenshtein
	require.InDelta(t, 20.0, s.Jaccard("a b c", "a d e"), 1e-12)
	assert.Equal(t, BranchLevenshtein, s.HybridBranch("a b c", "a d e"))
	assert.InDelta(t, LevenshteinSimilarity("a b c", "a d e", 0), s.Hybrid("a b c", "a d e", 0), 1e-9)
	// 12.5 < 20：直接返回 Jaccard
	assert.Equal(t, BranchJaccard, s.HybridBranch("a b c d", "a e f g h"))
	assert.InDelta(t, 12.5, s.Hybrid("a b c d", "a e f g h", 0), 1e-9)
	strict := NewScorer(Options{HybridGate: 20.5})
	assert.Equal(t, BranchJaccard, strict.HybridBranch("a b c", "a d e"))

	small := NewScorer(Options{HybridLengthCutoff: 5, HybridGate: 50})
	assert.Equal(t, BranchNgram, small.HybridBranch("a b c", "a b c"))
	assert.Equal(t, BranchJaccard, small.HybridBranch("a b c", "a d e"))
}

// longPair: 超过 1000 个字符、仅末词不同的文本对
func longPair() (string, string) {
	var b strings.Builder
	for i := 0; b.Len() < 1500; i++ {
		b.WriteString("word")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteByte(' ')
	}
	long := strings.TrimSpace(b.String())
	return long, long[:len(long)-4] + "tail"
}

func TestCompareScenarios(t *testing.T) {
	c := NewComparator(DefaultOptions())

	t.Run("identical_hybrid", func(t *testing.T) {
		got := c.Compare("the quick brown fox", []string{"the quick brown fox"}, 30, Hybrid)
		assert.Equal(t, []Match{{ReferenceIndex: 0, SimilarityPercentage: 100}}, got)
	})
	t.Run("early_termination", func(t *testing.T) {
		assert.Empty(t, c.Compare("aaaa", []string{"zzzz"}, 10, Levenshtein))
	})
	t.Run("long_uses_ngram", func(t *testing.T) {
		long, ref := longPair()
		got := c.Compare(long, []string{ref}, 30, Hybrid)
		require.Len(t, got, 1)
		assert.InDelta(t, c.Scorer().Ngram(long, ref), got[0].SimilarityPercentage, 1e-9)
	})
	t.Run("unknown_method_falls_back", func(t *testing.T) {
		refs := []string{"the quick brown fox", "lorem ipsum", "the quick brown box"}
		assert.Equal(t, c.Compare("the quick brown fox", refs, 30, Hybrid),
			c.CompareByName("the quick brown fox", refs, 30, "cosine"))
	})
	t.Run("empty_references", func(t *testing.T) {
		got := c.Compare("anything", nil, 30, Hybrid)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestCompareAttributesIndicesUnderConcurrency(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	refs := make([]string, 777)
	for i := range refs {
		n := 1 + r.Intn(6)
		parts := make([]string, n)
		for j := range parts {
			parts[j] = []string{"a", "b", "c", "d", "e"}[r.Intn(5)]
		}
		refs[i] = strings.Join(parts, " ")
	}
	candidate := "a b c"
	serial := NewScorer(Options{})

	for _, workers := range []int{1, 3, 8, 64, 1000} {
		c := NewComparator(Options{Workers: workers})
		got := c.Compare(candidate, refs, 40, Jaccard)
		want := make([]Match, 0)
		for i, ref := range refs {
			if !PreFilter(candidate, ref, 0.4) {
				continue
			}
			if s := serial.Jaccard(candidate, ref); s >= 40 {
				want = append(want, Match{ReferenceIndex: i, SimilarityPercentage: s})
			}
		}
		require.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestCompareContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewComparator(Options{}).CompareContext(ctx, "a", []string{"a", "b"}, 30, Jaccard)
	require.Error(t, err)
}
