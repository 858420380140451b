package cv

import "fmt"

// Point 表示二维坐标点
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add 返回平移后的点
func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Match 一次被接受的检测结果
// Region 与模板尺寸相同，Score 位于 [阈值, 1]
type Match struct {
	// Region 匹配区域
	Region Region `json:"region"`
	// Score 匹配置信度 (0-1)
	Score float64 `json:"score"`
	// Offset 目标点相对中心的偏移（来自 Pattern）
	Offset Point `json:"offset"`
}

// Center 返回匹配区域中心
func (m Match) Center() Point {
	return m.Region.Center()
}

// TargetPoint 返回动作点：中心 + 目标偏移
func (m Match) TargetPoint() Point {
	return m.Region.Center().Add(m.Offset.X, m.Offset.Y)
}

// IsGoodMatch 判断置信度是否达到阈值
func (m Match) IsGoodMatch(threshold float64) bool {
	return m.Score >= threshold
}

// ScorePercent 以百分比形式返回置信度，如 "85.7%"
func (m Match) ScorePercent() string {
	return fmt.Sprintf("%.1f%%", m.Score*100)
}

func (m Match) String() string {
	return fmt.Sprintf("Match%s@%s", m.Region, m.ScorePercent())
}
