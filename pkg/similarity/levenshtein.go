package similarity

import (
	"math"
	"unicode/utf8"
)

// LevenshteinDistance 计算单字符插入/删除/替换编辑距离（按 rune）。
// 实现：两行滚动 DP，较短串作为行维度，内存 O(min(n,m))。
// maxDistance>=0 时启用提前终止：某行最小值已超过 maxDistance 即放弃，返回 maxDistance+1。
// maxDistance<0 表示不限制。
func LevenshteinDistance(a, b string, maxDistance int) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if maxDistance >= 0 && len(long) > maxDistance {
			return maxDistance + 1
		}
		return len(long)
	}

	prev := make([]int, len(short)+1)
	cur := make([]int, len(short)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(long); i++ {
		cur[0] = i
		rowMin := i
		for j := 1; j <= len(short); j++ {
			cost := 1
			if long[i-1] == short[j-1] {
				cost = 0
			}
			cur[j] = min(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		// 行最小值单调不减，可作为最终距离的下界
		if maxDistance >= 0 && rowMin > maxDistance {
			return maxDistance + 1
		}
		prev, cur = cur, prev
	}
	d := prev[len(short)]
	if maxDistance >= 0 && d > maxDistance {
		return maxDistance + 1
	}
	return d
}

// LevenshteinSimilarity 将编辑距离换算为百分比：(1 - d/max(len)) * 100，夹取到 [0,100]。
// 两者皆空返回 100。
// threshold>0 时按 floor(maxLen*(100-threshold)/100) 推导可接受距离上界，
// 超出即提前终止并返回 0（“过于不相似”，此时真实分数必然低于 threshold）。
func LevenshteinSimilarity(a, b string, threshold float64) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}
	bound := distanceBound(maxLen, threshold)
	if bound == tooStrict {
		return 0
	}
	d := LevenshteinDistance(a, b, bound)
	if bound >= 0 && d > bound {
		return 0
	}
	return clamp(100 * float64(maxLen-d) / float64(maxLen))
}

// tooStrict: 阈值超过 100，任何距离都无法满足。
const tooStrict = math.MinInt

// distanceBound 返回可接受的最大编辑距离；-1 表示不限制。
func distanceBound(maxLen int, threshold float64) int {
	if threshold <= 0 {
		return -1
	}
	if threshold > 100 {
		return tooStrict
	}
	// 容差吸收浮点误差，保证恰好等于阈值的距离仍被完整计算
	return int(math.Floor(float64(maxLen)*(100-threshold)/100 + 1e-9))
}
