package input

import (
	"fmt"
	"time"

	"github.com/zoeyai/zoeymatch/pkg/auto"
	"github.com/zoeyai/zoeymatch/pkg/auto/grid"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// settleDelay 移动后等待鼠标到位
const settleDelay = 50 * time.Millisecond

// ClickAt 在截图坐标 p 点击，按 Options 决定按键和单双击
func ClickAt(p cv.Point, o *auto.Options) {
	MoveTo(p)
	time.Sleep(settleDelay)

	d := currentDriver()
	switch {
	case o.RightClick:
		d.Click("right", false)
	case o.DoubleClick:
		d.Click("left", true)
	default:
		d.Click("left", false)
	}
}

// ClickTarget 返回点击匹配时的目标点
// 设置了 Grid 时取匹配区域内对应网格的中心，否则取动作点
func ClickTarget(m cv.Match, o *auto.Options) (cv.Point, error) {
	if o.Grid == "" {
		return m.TargetPoint(), nil
	}
	p, err := grid.CalculateGridCenterFromString(m.Region, o.Grid)
	if err != nil {
		return cv.Point{}, fmt.Errorf("计算网格位置失败: %w", err)
	}
	return p.Add(m.Offset.X, m.Offset.Y), nil
}

// ClickMatch 点击匹配结果
func ClickMatch(m cv.Match, opts ...auto.Option) (cv.Point, error) {
	o := auto.ApplyOptions(opts...)
	p, err := ClickTarget(m, o)
	if err != nil {
		return cv.Point{}, err
	}
	ClickAt(p, o)
	return p, nil
}
