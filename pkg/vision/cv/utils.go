package cv

import "math"

// clampUnit 将值截断到 [0, 1]，NaN 返回 fallback
func clampUnit(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// abs 返回绝对值
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// absDiff 返回两个字节的差的绝对值
func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
