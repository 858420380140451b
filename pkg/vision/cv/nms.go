package cv

import "sort"

// DefaultOverlapThreshold 默认 NMS 重叠阈值
const DefaultOverlapThreshold = 0.3

// NonMaxSuppression 非极大值抑制
//
// candidates 需按光栅顺序（先行后列）给出，这样得分完全相同时先出现者优先。
// 按得分降序遍历，与任一已接受结果的 IoU >= overlap 的候选被丢弃。
// 复杂度 O(n*k)，k 为接受数量；候选很多时可改用网格索引。
func NonMaxSuppression(candidates []Match, overlap float64) []Match {
	sorted := make([]Match, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]Match, 0, min(len(sorted), 16))
	for _, c := range sorted {
		if !overlapsAny(c.Region, kept, overlap) {
			kept = append(kept, c)
		}
	}
	return kept
}

// overlapsAny 判断 r 与任一已接受结果的 IoU 是否达到阈值
func overlapsAny(r Region, kept []Match, overlap float64) bool {
	for _, k := range kept {
		if r.IoU(k.Region) >= overlap {
			return true
		}
	}
	return false
}
