// Package image 在屏幕上查找、等待和点击模板图像
package image

import (
	"context"
	"fmt"
	"time"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/auto"
	"github.com/zoeyai/zoeymatch/pkg/auto/input"
	"github.com/zoeyai/zoeymatch/pkg/auto/screen"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Finder 组合截图来源与匹配器
// 每次查找都会重新截图，Finder 本身可被多个 goroutine 共享
type Finder struct {
	capturer screen.Capturer
	matcher  *cv.Matcher
	opts     *auto.Options
}

// FinderOption Finder 选项
type FinderOption func(*Finder)

// WithMatcher 使用指定的匹配器
func WithMatcher(m *cv.Matcher) FinderOption {
	return func(f *Finder) {
		f.matcher = m
	}
}

// WithOptions 设置默认的自动化选项
func WithOptions(o *auto.Options) FinderOption {
	return func(f *Finder) {
		f.opts = o
	}
}

// NewFinder 创建 Finder，capturer 为 nil 时截取真实屏幕
func NewFinder(capturer screen.Capturer, opts ...FinderOption) *Finder {
	if capturer == nil {
		capturer = screen.NewRobotCapturer()
	}
	f := &Finder{
		capturer: capturer,
		matcher:  cv.NewMatcher(),
		opts:     auto.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Matcher 返回使用的匹配器
func (f *Finder) Matcher() *cv.Matcher {
	return f.matcher
}

// Capture 按选项中的区域截图
func (f *Finder) Capture(opts ...auto.Option) (*cv.PixelBuffer, error) {
	return f.capturer.Capture(f.opts.Apply(opts...).Region)
}

// Exists 在 timeout 内查找 p，超时未找到返回 (nil, nil)
// timeout 为 0 时只尝试一次
func (f *Finder) Exists(ctx context.Context, p *cv.Pattern, timeout time.Duration, opts ...auto.Option) (*cv.Match, error) {
	return f.poll(ctx, p, timeout, f.opts.Apply(opts...))
}

// Wait 同 Exists，但超时返回 *cv.FindFailedError
func (f *Finder) Wait(ctx context.Context, p *cv.Pattern, timeout time.Duration, opts ...auto.Option) (*cv.Match, error) {
	m, err := f.poll(ctx, p, timeout, f.opts.Apply(opts...))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &cv.FindFailedError{Pattern: p.Name(), Timeout: timeout}
	}
	return m, nil
}

// Find 使用选项中的超时等待 p
func (f *Finder) Find(ctx context.Context, p *cv.Pattern, opts ...auto.Option) (*cv.Match, error) {
	o := f.opts.Apply(opts...)
	return f.Wait(ctx, p, o.Timeout, opts...)
}

// FindAll 截图一次，返回全部匹配（屏幕坐标）
func (f *Finder) FindAll(ctx context.Context, p *cv.Pattern, opts ...auto.Option) ([]cv.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := f.opts.Apply(opts...)
	buf, err := f.capturer.Capture(o.Region)
	if err != nil {
		return nil, err
	}
	matches, err := f.matcher.FindAll(buf, withSimilarity(p, o))
	if err != nil {
		return nil, err
	}
	origin := regionOrigin(o.Region)
	for i := range matches {
		matches[i].Region = matches[i].Region.Offset(origin.X, origin.Y)
	}
	return matches, nil
}

// WaitVanish 等待 p 从屏幕上消失，超时仍存在时返回 false
func (f *Finder) WaitVanish(ctx context.Context, p *cv.Pattern, timeout time.Duration, opts ...auto.Option) (bool, error) {
	o := f.opts.Apply(opts...)
	startTime := time.Now()
	for {
		m, err := f.findOnce(ctx, p, o)
		if err != nil {
			return false, err
		}
		if m == nil {
			logger.LogEvent("WAIT", true, elapsedMs(startTime), fmt.Sprintf("%s 已消失", p.Name()))
			return true, nil
		}
		if timeout <= 0 || time.Since(startTime) >= timeout {
			logger.LogEvent("WAIT", false, elapsedMs(startTime), fmt.Sprintf("%s 仍然存在", p.Name()))
			return false, nil
		}
		if err := sleep(ctx, o.PollInterval); err != nil {
			return false, err
		}
	}
}

// Click 等待 p 出现并点击，返回点击位置
func (f *Finder) Click(ctx context.Context, p *cv.Pattern, opts ...auto.Option) (cv.Point, error) {
	m, err := f.Find(ctx, p, opts...)
	if err != nil {
		return cv.Point{}, err
	}
	o := f.opts.Apply(opts...)
	target, err := input.ClickTarget(*m, o)
	if err != nil {
		return cv.Point{}, err
	}
	input.ClickAt(target, o)
	return target, nil
}

// poll 重复查找直到找到、超时或 ctx 取消
func (f *Finder) poll(ctx context.Context, p *cv.Pattern, timeout time.Duration, o *auto.Options) (*cv.Match, error) {
	startTime := time.Now()
	attempts := 0
	for {
		attempts++
		m, err := f.findOnce(ctx, p, o)
		if err != nil {
			return nil, err
		}
		if m != nil {
			logger.LogEvent("WAIT", true, elapsedMs(startTime), fmt.Sprintf("%s %s 第 %d 次", p.Name(), m, attempts))
			return m, nil
		}
		if timeout <= 0 || time.Since(startTime) >= timeout {
			logger.LogEvent("WAIT", false, elapsedMs(startTime), fmt.Sprintf("%s 尝试 %d 次未找到", p.Name(), attempts))
			return nil, nil
		}
		if err := sleep(ctx, o.PollInterval); err != nil {
			return nil, err
		}
	}
}

// findOnce 截图并查找一次，结果换算为屏幕坐标
func (f *Finder) findOnce(ctx context.Context, p *cv.Pattern, o *auto.Options) (*cv.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := f.capturer.Capture(o.Region)
	if err != nil {
		return nil, err
	}
	m, err := f.matcher.Find(buf, withSimilarity(p, o))
	if err != nil || m == nil {
		return nil, err
	}
	origin := regionOrigin(o.Region)
	m.Region = m.Region.Offset(origin.X, origin.Y)
	return m, nil
}

func withSimilarity(p *cv.Pattern, o *auto.Options) *cv.Pattern {
	if o.Similarity > 0 {
		return p.Similar(o.Similarity)
	}
	return p
}

// regionOrigin 区域截图左上角在屏幕上的位置，负坐标会被截图裁掉
func regionOrigin(r *cv.Region) cv.Point {
	if r == nil {
		return cv.Point{}
	}
	return cv.Point{X: max(r.X, 0), Y: max(r.Y, 0)}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
