package similarity

import "unicode/utf8"

// PreFilter 基于长度比（短/长，按 rune 计）判断一对文本是否值得评分。
// 比值低于 minRatio 时视为不相似（由调用方按 0 分处理），不运行任何评分器。
// 两者皆空时返回 true。
// 说明：仅为充分拒绝的启发式，不保证与真实分数一致。
func PreFilter(a, b string, minRatio float64) bool {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	return lengthRatio(la, lb) >= minRatio
}

// lengthRatio: 短/长；两者皆为 0 时为 1。
func lengthRatio(la, lb int) float64 {
	longer, shorter := la, lb
	if shorter > longer {
		longer, shorter = shorter, longer
	}
	if longer == 0 {
		return 1
	}
	return float64(shorter) / float64(longer)
}

// MinRatioFor 计算比较器使用的预过滤阈值：显式配置优先，否则由 threshold/100 推导
// （等价于 |la-lb|/max*100 <= 100-threshold）。
func MinRatioFor(configured, threshold float64) float64 {
	if configured > 0 {
		return configured
	}
	return threshold / 100
}
