// Package grid 把匹配区域划分为网格，用于点击区域内的某个格子
package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Position 网格位置，行列从 1 开始
type Position struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
	Row  int `json:"row"`
	Col  int `json:"col"`
}

// String 格式化为 rows.cols.row.col
func (p Position) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", p.Rows, p.Cols, p.Row, p.Col)
}

// Parse 解析网格位置字符串
// 格式: rows.cols.row.col (如 "2.2.1.1" 表示 2x2 网格的第1行第1列)
func Parse(s string) (*Position, error) {
	if s == "" {
		return nil, fmt.Errorf("网格位置字符串为空")
	}
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("无效的网格位置格式: %s (期望格式: rows.cols.row.col)", s)
	}

	var v [4]int
	names := [4]string{"行数", "列数", "目标行", "目标列"}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("无效的%s: %s", names[i], part)
		}
		v[i] = n
	}

	p := &Position{Rows: v[0], Cols: v[1], Row: v[2], Col: v[3]}
	if p.Rows < 1 || p.Cols < 1 {
		return nil, fmt.Errorf("行数和列数必须大于 0: rows=%d, cols=%d", p.Rows, p.Cols)
	}
	if p.Row < 1 || p.Col < 1 {
		return nil, fmt.Errorf("目标行和目标列必须大于 0: row=%d, col=%d", p.Row, p.Col)
	}
	if p.Row > p.Rows || p.Col > p.Cols {
		return nil, fmt.Errorf("目标位置超出范围: row=%d/%d col=%d/%d", p.Row, p.Rows, p.Col, p.Cols)
	}
	return p, nil
}

// Center 计算格子中心，pos 为 nil 时返回区域中心
func Center(r cv.Region, pos *Position) cv.Point {
	if pos == nil {
		return r.Center()
	}
	cellW := float64(r.Width) / float64(pos.Cols)
	cellH := float64(r.Height) / float64(pos.Rows)
	return cv.Point{
		X: int(float64(r.X) + (float64(pos.Col)-0.5)*cellW),
		Y: int(float64(r.Y) + (float64(pos.Row)-0.5)*cellH),
	}
}

// CalculateGridCenterFromString 解析 s 并计算格子中心，s 为空时返回区域中心
func CalculateGridCenterFromString(r cv.Region, s string) (cv.Point, error) {
	if s == "" {
		return r.Center(), nil
	}
	pos, err := Parse(s)
	if err != nil {
		return cv.Point{}, err
	}
	return Center(r, pos), nil
}

// Cell 返回格子的区域
func Cell(r cv.Region, pos Position) cv.Region {
	cellW := float64(r.Width) / float64(pos.Cols)
	cellH := float64(r.Height) / float64(pos.Rows)
	return cv.NewRegion(
		int(float64(r.X)+float64(pos.Col-1)*cellW),
		int(float64(r.Y)+float64(pos.Row-1)*cellH),
		int(cellW),
		int(cellH),
	)
}
