package similarity

import "strings"

// NgramSimilarity 字符 shingle 重叠（窗口 n 个 rune），返回百分比。
// 归一化：小写、空白串折叠为单个空格并去除首尾空白。
// 短于窗口的文本（含空文本）产出单个 shingle，即整段归一化文本；n<1 按 1 处理。
func NgramSimilarity(a, b string, n int) float64 {
	return setRatio(shingles(a, n), shingles(b, n), 0)
}

func shingles(s string, n int) map[string]struct{} {
	if n < 1 {
		n = 1
	}
	norm := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	rs := []rune(norm)
	if len(rs) < n {
		return map[string]struct{}{norm: {}}
	}
	set := make(map[string]struct{}, len(rs)-n+1)
	for i := 0; i+n <= len(rs); i++ {
		set[string(rs[i:i+n])] = struct{}{}
	}
	return set
}
