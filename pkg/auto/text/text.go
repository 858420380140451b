// Package text 通过 OCR 在屏幕上查找、等待和点击文字
package text

import (
	"context"
	"fmt"
	"time"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/auto"
	"github.com/zoeyai/zoeymatch/pkg/auto/input"
	"github.com/zoeyai/zoeymatch/pkg/auto/screen"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
	"github.com/zoeyai/zoeymatch/pkg/vision/ocr"
)

// Recognizer 文字查找接口，*ocr.Recognizer 实现了该接口
type Recognizer interface {
	FindText(buf *cv.PixelBuffer, region cv.Region, text string) (*ocr.Result, error)
}

// Finder 组合截图来源与 OCR 识别器
type Finder struct {
	capturer   screen.Capturer
	recognizer Recognizer
	opts       *auto.Options
}

// NewFinder 创建文字查找器，capturer 为 nil 时截取真实屏幕
func NewFinder(capturer screen.Capturer, recognizer Recognizer, opts *auto.Options) *Finder {
	if capturer == nil {
		capturer = screen.NewRobotCapturer()
	}
	if opts == nil {
		opts = auto.DefaultOptions()
	}
	return &Finder{capturer: capturer, recognizer: recognizer, opts: opts}
}

// Exists 在 timeout 内查找文字，未找到返回 (nil, nil)
func (f *Finder) Exists(ctx context.Context, text string, timeout time.Duration, opts ...auto.Option) (*ocr.Result, error) {
	return f.poll(ctx, text, timeout, f.opts.Apply(opts...))
}

// Wait 同 Exists，超时返回 *cv.FindFailedError
func (f *Finder) Wait(ctx context.Context, text string, timeout time.Duration, opts ...auto.Option) (*ocr.Result, error) {
	res, err := f.poll(ctx, text, timeout, f.opts.Apply(opts...))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &cv.FindFailedError{Pattern: text, Timeout: timeout}
	}
	return res, nil
}

// Click 等待文字出现并点击其中心，返回点击位置
func (f *Finder) Click(ctx context.Context, text string, opts ...auto.Option) (cv.Point, error) {
	o := f.opts.Apply(opts...)
	res, err := f.Wait(ctx, text, o.Timeout, opts...)
	if err != nil {
		return cv.Point{}, err
	}
	p := res.Center()
	input.ClickAt(p, o)
	return p, nil
}

func (f *Finder) poll(ctx context.Context, text string, timeout time.Duration, o *auto.Options) (*ocr.Result, error) {
	startTime := time.Now()
	for {
		res, err := f.findOnce(ctx, text, o)
		if err != nil {
			return nil, err
		}
		if res != nil {
			logger.LogEvent("TEXT", true, elapsedMs(startTime), fmt.Sprintf("%q 位于 %s", text, res.Region))
			return res, nil
		}
		if timeout <= 0 || time.Since(startTime) >= timeout {
			logger.LogEvent("TEXT", false, elapsedMs(startTime), fmt.Sprintf("%q 未找到", text))
			return nil, nil
		}

		t := time.NewTimer(o.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// findOnce 截图并识别一次，结果换算为屏幕坐标
func (f *Finder) findOnce(ctx context.Context, text string, o *auto.Options) (*ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := f.capturer.Capture(o.Region)
	if err != nil {
		return nil, err
	}
	res, err := f.recognizer.FindText(buf, buf.Bounds(), text)
	if err != nil || res == nil {
		return nil, err
	}
	if o.Region != nil {
		res.Region = res.Region.Offset(max(o.Region.X, 0), max(o.Region.Y, 0))
	}
	return res, nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
