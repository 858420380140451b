package ocv

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// minScaledSide 缩放后模板的最小边长，更小的模板没有区分度
const minScaledSide = 10

// MultiScaleOptions 多尺度搜索参数
// 适用于录制与回放分辨率或 DPI 缩放不同的场景
type MultiScaleOptions struct {
	// MinScale/MaxScale 模板缩放范围
	MinScale float64
	MaxScale float64
	// Step 缩放步长
	Step float64
	// Timeout 超时后若已有结果达到阈值则提前返回，0 表示不限制
	Timeout time.Duration
}

// DefaultMultiScaleOptions 默认覆盖 100%-200% 的常见 DPI 缩放
func DefaultMultiScaleOptions() MultiScaleOptions {
	return MultiScaleOptions{
		MinScale: 0.5,
		MaxScale: 2.0,
		Step:     0.05,
		Timeout:  3 * time.Second,
	}
}

// scaleResult 单个尺度的最佳结果
type scaleResult struct {
	scale float64
	score float64
	x, y  int
	w, h  int
}

// FindMultiScale 在多个缩放比例下查找模板
// 返回的 Region 为缩放后模板在屏幕上的实际尺寸
func (m *Matcher) FindMultiScale(screen *cv.PixelBuffer, p *cv.Pattern, opts MultiScaleOptions) (*cv.Match, error) {
	startTime := time.Now()

	if opts.Step <= 0 || opts.MinScale <= 0 || opts.MaxScale < opts.MinScale {
		return nil, fmt.Errorf("非法的缩放参数: %+v", opts)
	}
	if screen == nil || p == nil {
		return nil, fmt.Errorf("%w: 屏幕或模板为空", cv.ErrInvalidBuffer)
	}

	sg, err := ToGrayMat(screen)
	if err != nil {
		return nil, err
	}
	defer sg.Close()
	tg, err := ToGrayMat(p.Template())
	if err != nil {
		return nil, err
	}
	defer tg.Close()

	var best *scaleResult
	for scale := opts.MinScale; scale <= opts.MaxScale+1e-9; scale += opts.Step {
		w := int(float64(p.Width())*scale + 0.5)
		h := int(float64(p.Height())*scale + 0.5)
		if w < minScaledSide || h < minScaledSide || w > screen.Width() || h > screen.Height() {
			continue
		}

		scaled := resize(tg, w, h)
		result := scoreMap(sg, scaled)
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
		result.Close()
		scaled.Close()

		score := remap(maxVal)
		if best == nil || score > best.score {
			best = &scaleResult{scale: scale, score: score, x: maxLoc.X, y: maxLoc.Y, w: w, h: h}
		}

		if opts.Timeout > 0 && time.Since(startTime) > opts.Timeout && best.score >= p.Similarity() {
			break
		}
	}

	elapsed := float64(time.Since(startTime).Microseconds()) / 1000
	if best == nil || best.score < p.Similarity() {
		logger.LogEvent("OCV", false, elapsed, fmt.Sprintf("%s 多尺度未找到", p.Name()))
		return nil, nil
	}

	match := &cv.Match{
		Region: cv.NewRegion(best.x, best.y, best.w, best.h),
		Score:  best.score,
		Offset: p.Offset(),
	}
	logger.LogEvent("OCV", true, elapsed, fmt.Sprintf("%s %s scale=%.2f", p.Name(), match, best.scale))
	return match, nil
}
