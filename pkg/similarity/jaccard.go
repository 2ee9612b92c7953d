package similarity

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// JaccardSimilarity 词级集合重叠：小写、按空白切分、去重后计算 |A∩B|/|A∪B|*100。
// 对称；两侧均无词元时返回 0（没有词元即没有相似证据）。
func JaccardSimilarity(a, b string) float64 {
	return setRatio(tokenSet(a, false), tokenSet(b, false), 0)
}

// tokenSet 构造去重词元集合；stem=true 时使用 Snowball 英文词干。
func tokenSet(s string, stem bool) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tok := strings.ToLower(f)
		if stem {
			if st := english.Stem(tok, true); st != "" {
				tok = st
			}
		}
		set[tok] = struct{}{}
	}
	return set
}

// setRatio 计算两集合的 Jaccard 百分比；并集为空时返回 empty。
func setRatio(a, b map[string]struct{}, empty float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return empty
	}
	return clamp(100 * float64(inter) / float64(union))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
