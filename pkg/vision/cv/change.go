package cv

import (
	"fmt"
	"time"

	"github.com/zoeyai/zoeymatch/internal/logger"
)

// DefaultChangeThreshold 默认单通道差异阈值 (0-255)
const DefaultChangeThreshold uint8 = 20

// ChangeDetector 比较两张同尺寸图像的像素变化比例
type ChangeDetector struct {
	threshold uint8
	workers   int
}

// ChangeOption 变化检测选项
type ChangeOption func(*ChangeDetector)

// NewChangeDetector 创建变化检测器
func NewChangeDetector(opts ...ChangeOption) *ChangeDetector {
	d := &ChangeDetector{
		threshold: DefaultChangeThreshold,
		workers:   defaultWorkers(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithChannelThreshold 设置单通道差异阈值，任一通道差异超过该值即视为变化
func WithChannelThreshold(threshold uint8) ChangeOption {
	return func(d *ChangeDetector) {
		d.threshold = threshold
	}
}

// WithChangeWorkers 设置并发数
func WithChangeWorkers(workers int) ChangeOption {
	return func(d *ChangeDetector) {
		if workers <= 0 {
			workers = defaultWorkers()
		}
		d.workers = workers
	}
}

// Threshold 返回单通道差异阈值
func (d *ChangeDetector) Threshold() uint8 { return d.threshold }

// Diff 返回变化像素占比 [0, 1]
// 尺寸不一致时返回 *DimensionError；两张图的通道布局可以不同
func (d *ChangeDetector) Diff(a, b *PixelBuffer) (float64, error) {
	startTime := time.Now()

	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: 比较图像为空", ErrInvalidBuffer)
	}
	if err := checkSameSize(a, b); err != nil {
		logger.LogEvent("DIFF", false, elapsedMs(startTime), err.Error())
		return 0, err
	}

	w, h := a.width, a.height
	ra, rb := a.reader(), b.reader()
	counts := make([]int, bandCount(h, d.workers))
	parallelRows(h, d.workers, func(band, y0, y1 int) {
		changed := 0
		for y := y0; y < y1; y++ {
			rowA := ra.row(y, w)
			rowB := rb.row(y, w)
			for x := 0; x < w; x++ {
				i, j := x*ra.bpp, x*rb.bpp
				if absDiff(rowA[i], rowB[j]) > d.threshold ||
					absDiff(rowA[i+1], rowB[j+1]) > d.threshold ||
					absDiff(rowA[i+2], rowB[j+2]) > d.threshold {
					changed++
				}
			}
		}
		counts[band] = changed
	})

	total := 0
	for _, c := range counts {
		total += c
	}
	ratio := float64(total) / float64(w*h)

	logger.LogEvent("DIFF", true, elapsedMs(startTime), fmt.Sprintf("变化 %.2f%% (%d/%d)", ratio*100, total, w*h))
	return ratio, nil
}

// Changed 判断变化比例是否达到 minFraction
func (d *ChangeDetector) Changed(a, b *PixelBuffer, minFraction float64) (bool, float64, error) {
	ratio, err := d.Diff(a, b)
	if err != nil {
		return false, 0, err
	}
	return ratio >= minFraction, ratio, nil
}
