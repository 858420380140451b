// Package ocv 提供基于 OpenCV (gocv) 的参考匹配后端
//
// 得分与 cv 包一致: TM_CCOEFF_NORMED 的相关系数 r 映射为 (r+1)/2，
// 用于交叉验证纯 Go 引擎以及多尺度搜索。
package ocv

import (
	"fmt"
	"image"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Matcher OpenCV 模板匹配器
type Matcher struct {
	overlapThreshold float64
}

// Option 匹配器选项
type Option func(*Matcher)

// WithOverlapThreshold 设置 NMS 重叠阈值
func WithOverlapThreshold(overlap float64) Option {
	return func(m *Matcher) {
		m.overlapThreshold = overlap
	}
}

// NewMatcher 创建 OpenCV 匹配器
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{overlapThreshold: cv.DefaultOverlapThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ToGrayMat 将像素缓冲区转换为灰度 Mat，调用方负责 Close
func ToGrayMat(buf *cv.PixelBuffer) (gocv.Mat, error) {
	bgr, err := gocv.ImageToMatRGB(buf.ToImage())
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("转换图像失败: %w", err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// scoreMap 计算完整得分图，调用方负责 Close
func scoreMap(screen, tmpl gocv.Mat) gocv.Mat {
	result := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(screen, tmpl, &result, gocv.TmCcoeffNormed, mask)
	return result
}

// remap 将相关系数映射到 [0, 1]，平坦区域产生的 NaN 记为 0.5
func remap(r float32) float64 {
	v := float64(r)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.5
	}
	return math.Max(0, math.Min(1, (v+1)/2))
}

// Find 查找得分最高的位置，未找到时返回 (nil, nil)
func (m *Matcher) Find(screen *cv.PixelBuffer, p *cv.Pattern) (*cv.Match, error) {
	startTime := time.Now()

	sg, tg, err := prepare(screen, p)
	if err != nil {
		return nil, err
	}
	defer sg.Close()
	defer tg.Close()

	result := scoreMap(sg, tg)
	defer result.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	score := remap(maxVal)
	elapsed := float64(time.Since(startTime).Microseconds()) / 1000

	if score < p.Similarity() {
		logger.LogEvent("OCV", false, elapsed, fmt.Sprintf("%s 最高得分 %.3f", p.Name(), score))
		return nil, nil
	}
	match := &cv.Match{
		Region: cv.NewRegion(maxLoc.X, maxLoc.Y, p.Width(), p.Height()),
		Score:  score,
		Offset: p.Offset(),
	}
	logger.LogEvent("OCV", true, elapsed, fmt.Sprintf("%s %s", p.Name(), match))
	return match, nil
}

// FindAll 查找所有达到阈值的位置，经 NMS 后按得分降序返回
func (m *Matcher) FindAll(screen *cv.PixelBuffer, p *cv.Pattern) ([]cv.Match, error) {
	sg, tg, err := prepare(screen, p)
	if err != nil {
		return nil, err
	}
	defer sg.Close()
	defer tg.Close()

	result := scoreMap(sg, tg)
	defer result.Close()

	threshold := p.Similarity()
	var cands []cv.Match
	for y := 0; y < result.Rows(); y++ {
		for x := 0; x < result.Cols(); x++ {
			score := remap(result.GetFloatAt(y, x))
			if score < threshold {
				continue
			}
			cands = append(cands, cv.Match{
				Region: cv.NewRegion(x, y, p.Width(), p.Height()),
				Score:  score,
				Offset: p.Offset(),
			})
		}
	}
	return cv.NonMaxSuppression(cands, m.overlapThreshold), nil
}

// prepare 校验尺寸并转换为灰度 Mat
func prepare(screen *cv.PixelBuffer, p *cv.Pattern) (gocv.Mat, gocv.Mat, error) {
	if screen == nil || p == nil {
		return gocv.Mat{}, gocv.Mat{}, fmt.Errorf("%w: 屏幕或模板为空", cv.ErrInvalidBuffer)
	}
	if p.Width() > screen.Width() || p.Height() > screen.Height() {
		return gocv.Mat{}, gocv.Mat{}, &cv.DimensionError{
			Op:           "find",
			SourceSize:   [2]int{screen.Width(), screen.Height()},
			TemplateSize: [2]int{p.Width(), p.Height()},
		}
	}

	sg, err := ToGrayMat(screen)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, err
	}
	tg, err := ToGrayMat(p.Template())
	if err != nil {
		sg.Close()
		return gocv.Mat{}, gocv.Mat{}, err
	}
	return sg, tg, nil
}

// resize 缩放 Mat，调用方负责 Close
func resize(src gocv.Mat, w, h int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)
	return dst
}
