package cv

import (
	"fmt"
	"image"
)

// Region 轴对齐整数矩形（屏幕坐标，X/Y 可为负）
// Width/Height >= 0，面积为 0 的区域合法但不会匹配任何内容
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRegion 创建区域，负的宽高按 0 处理
func NewRegion(x, y, width, height int) Region {
	return Region{X: x, Y: y, Width: max(width, 0), Height: max(height, 0)}
}

// RegionFromCorners 由任意两个对角点创建区域
func RegionFromCorners(x1, y1, x2, y2 int) Region {
	return Region{
		X:      min(x1, x2),
		Y:      min(y1, y2),
		Width:  abs(x2 - x1),
		Height: abs(y2 - y1),
	}
}

// Center 返回中心点
func (r Region) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// TopLeft 返回左上角
func (r Region) TopLeft() Point {
	return Point{X: r.X, Y: r.Y}
}

// BottomRight 返回右下角（不包含）
func (r Region) BottomRight() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Area 返回面积
func (r Region) Area() int64 {
	return int64(r.Width) * int64(r.Height)
}

// IsEmpty 面积为 0 时返回 true
func (r Region) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains 判断点是否在区域内（左闭右开）
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersects 判断两个区域是否相交，仅接触边缘不算相交
func (r Region) Intersects(o Region) bool {
	return r.X < o.X+o.Width &&
		r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height &&
		r.Y+r.Height > o.Y
}

// Intersection 返回交集，不相交时 ok 为 false
func (r Region) Intersection(o Region) (Region, bool) {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x1 >= x2 || y1 >= y2 {
		return Region{}, false
	}
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

// Offset 返回平移后的副本
func (r Region) Offset(dx, dy int) Region {
	r.X += dx
	r.Y += dy
	return r
}

// Expand 返回向四周扩展 amount 像素的副本，负值收缩，宽高最小为 0
func (r Region) Expand(amount int) Region {
	return Region{
		X:      r.X - amount,
		Y:      r.Y - amount,
		Width:  max(r.Width+2*amount, 0),
		Height: max(r.Height+2*amount, 0),
	}
}

// IoU 返回交并比，范围 [0, 1]
func (r Region) IoU(o Region) float64 {
	// 先做轴对齐快速排除
	if !r.Intersects(o) {
		return 0
	}
	inter, _ := r.Intersection(o)
	interArea := float64(inter.Area())
	union := float64(r.Area()) + float64(o.Area()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// ToImageRect 转换为 image.Rectangle
func (r Region) ToImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
