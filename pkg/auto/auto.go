// Package auto 提供 UI 自动化的共享类型和坐标换算。
// 具体功能分布在子包中：screen, input, image, observer, grid。
//
// 坐标空间：
//   - 截图坐标：截图的实际像素，匹配结果都在此空间
//   - 输入坐标：robotgo.Move/Click 使用的坐标
//
// 高 DPI 屏幕上两者可能不同，CoordScale = 截图像素尺寸 / 输入坐标尺寸。
package auto

import (
	"math"
	"sync"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// CoordScale 截图坐标相对输入坐标的缩放比
type CoordScale struct {
	X float64
	Y float64
}

// IdentityScale 两个坐标空间一致
var IdentityScale = CoordScale{X: 1, Y: 1}

// DetectScale 根据截图尺寸与输入坐标空间尺寸计算缩放比
// 接近 1 或异常的比值按 1 处理
func DetectScale(captureW, captureH, reportedW, reportedH int) CoordScale {
	if captureW <= 0 || captureH <= 0 || reportedW <= 0 || reportedH <= 0 {
		return IdentityScale
	}
	return CoordScale{
		X: normalizeScale(float64(captureW) / float64(reportedW)),
		Y: normalizeScale(float64(captureH) / float64(reportedH)),
	}
}

func normalizeScale(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0.5 || v > 4.0 {
		return 1.0
	}
	if math.Abs(v-1.0) < 0.05 {
		return 1.0
	}
	return v
}

// ToInput 截图坐标 → 输入坐标
func (s CoordScale) ToInput(p cv.Point) cv.Point {
	return cv.Point{X: ScaleCoord(p.X, s.X), Y: ScaleCoord(p.Y, s.Y)}
}

// ToScreen 输入坐标 → 截图坐标
func (s CoordScale) ToScreen(p cv.Point) cv.Point {
	return cv.Point{X: ScaleInt(p.X, s.X), Y: ScaleInt(p.Y, s.Y)}
}

// RegionToInput 截图区域 → 输入区域，非空区域至少保留 1 像素
func (s CoordScale) RegionToInput(r cv.Region) cv.Region {
	out := cv.NewRegion(ScaleCoord(r.X, s.X), ScaleCoord(r.Y, s.Y), ScaleCoord(r.Width, s.X), ScaleCoord(r.Height, s.Y))
	if r.Width > 0 && out.Width < 1 {
		out.Width = 1
	}
	if r.Height > 0 && out.Height < 1 {
		out.Height = 1
	}
	return out
}

var (
	scaleMu       sync.Mutex
	cachedScale   CoordScale
	scaleDetected bool
)

// CurrentScale 返回当前环境的坐标缩放比，首次调用时探测并缓存
func CurrentScale() CoordScale {
	scaleMu.Lock()
	defer scaleMu.Unlock()
	if !scaleDetected {
		cachedScale = detectScale()
		scaleDetected = true
		logger.Debug("坐标缩放: x=%.3f y=%.3f", cachedScale.X, cachedScale.Y)
	}
	return cachedScale
}

// ResetScaleCache 显示器配置变化后重新探测
func ResetScaleCache() {
	scaleMu.Lock()
	defer scaleMu.Unlock()
	scaleDetected = false
}

// ScaleCoord 按比例缩小坐标值
func ScaleCoord(value int, scale float64) int {
	if scale <= 0 {
		return value
	}
	return int(math.Round(float64(value) / scale))
}

// ScaleInt 按比例放大整数值
func ScaleInt(value int, factor float64) int {
	if factor <= 0 {
		return value
	}
	return int(math.Round(float64(value) * factor))
}
