// Package observer 周期性截图并触发出现、消失和变化事件
//
// 基本用法:
//
//	obs := observer.New(nil, observer.WithRegion(cv.NewRegion(0, 0, 800, 600)))
//	obs.OnAppear(button, func(m cv.Match) {
//	    fmt.Println("按钮出现在", m.Region)
//	})
//	obs.OnChange(0.1, func(fraction float64) {
//	    fmt.Printf("区域变化 %.1f%%\n", fraction*100)
//	})
//	if err := obs.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Stop()
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/auto/screen"
	"github.com/zoeyai/zoeymatch/pkg/config"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

const (
	// DefaultInterval 默认观察间隔
	DefaultInterval = config.DefaultObserveIntervalMs * time.Millisecond
	// MinInterval 最小观察间隔
	MinInterval = config.MinObserveIntervalMs * time.Millisecond
)

// ErrAlreadyRunning 观察循环已在运行
var ErrAlreadyRunning = errors.New("观察器已在运行")

// errStopped Stop 的取消原因
var errStopped = errors.New("观察器已停止")

type appearHandler struct {
	pattern *cv.Pattern
	fn      func(cv.Match)
	visible bool
}

type vanishHandler struct {
	pattern *cv.Pattern
	fn      func()
	seen    bool
}

type changeHandler struct {
	minFraction float64
	fn          func(float64)
	baseline    *cv.PixelBuffer
}

// Observer 观察器
// 事件处理函数在观察循环所在的 goroutine 中依次调用
type Observer struct {
	capturer screen.Capturer
	matcher  *cv.Matcher
	detector *cv.ChangeDetector
	interval time.Duration
	region   *cv.Region

	mu      sync.Mutex
	appear  []*appearHandler
	vanish  []*vanishHandler
	change  []*changeHandler
	running bool
	cancel  context.CancelCauseFunc
	done    chan struct{}
	err     error
}

// Option 观察器选项
type Option func(*Observer)

// WithInterval 设置观察间隔，小于 MinInterval 时取 MinInterval
func WithInterval(d time.Duration) Option {
	return func(o *Observer) {
		o.interval = max(d, MinInterval)
	}
}

// WithRegion 只观察屏幕的该区域
func WithRegion(r cv.Region) Option {
	return func(o *Observer) {
		o.region = &r
	}
}

// WithMatcher 使用指定的匹配器
func WithMatcher(m *cv.Matcher) Option {
	return func(o *Observer) {
		o.matcher = m
	}
}

// WithChangeDetector 使用指定的变化检测器
func WithChangeDetector(d *cv.ChangeDetector) Option {
	return func(o *Observer) {
		o.detector = d
	}
}

// New 创建观察器，capturer 为 nil 时截取真实屏幕
func New(capturer screen.Capturer, opts ...Option) *Observer {
	if capturer == nil {
		capturer = screen.NewRobotCapturer()
	}
	o := &Observer{
		capturer: capturer,
		matcher:  cv.NewMatcher(),
		detector: cv.NewChangeDetector(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Interval 返回观察间隔
func (o *Observer) Interval() time.Duration { return o.interval }

// OnAppear p 从不可见变为可见时调用 fn，匹配坐标为屏幕坐标
func (o *Observer) OnAppear(p *cv.Pattern, fn func(cv.Match)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appear = append(o.appear, &appearHandler{pattern: p, fn: fn})
}

// OnVanish p 出现过之后消失时调用 fn，每次消失只调用一次
func (o *Observer) OnVanish(p *cv.Pattern, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.vanish = append(o.vanish, &vanishHandler{pattern: p, fn: fn})
}

// OnChange 变化比例达到 minFraction 时调用 fn
// 第一帧作为基准，触发后以当前帧为新的基准
func (o *Observer) OnChange(minFraction float64, fn func(float64)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.change = append(o.change, &changeHandler{minFraction: max(0, min(1, minFraction)), fn: fn})
}

// Observe 在当前 goroutine 中观察，timeout <= 0 时直到 ctx 取消或 Stop
// 超时或 Stop 返回 nil，ctx 取消返回 ctx.Err()
func (o *Observer) Observe(ctx context.Context, timeout time.Duration) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancelCause(ctx)
	o.running = true
	o.cancel = cancel
	o.done = make(chan struct{})
	o.err = nil
	done := o.done
	o.mu.Unlock()

	err := o.loop(ctx, timeout)
	cancel(nil)

	o.mu.Lock()
	o.running = false
	o.err = err
	o.mu.Unlock()
	close(done)
	return err
}

// Start 在后台 goroutine 中观察，直到 ctx 取消或 Stop
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancelCause(ctx)
	o.running = true
	o.cancel = cancel
	o.done = make(chan struct{})
	o.err = nil
	done := o.done
	o.mu.Unlock()

	go func() {
		err := o.loop(ctx, 0)
		cancel(nil)
		o.mu.Lock()
		o.running = false
		o.err = err
		o.mu.Unlock()
		close(done)
	}()
	return nil
}

// Stop 请求停止观察，不等待循环退出
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel(errStopped)
	}
}

// Wait 等待观察循环退出，返回其错误；Stop 导致的退出返回 nil
func (o *Observer) Wait() error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// IsRunning 是否正在观察
func (o *Observer) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// loop 观察主循环
func (o *Observer) loop(ctx context.Context, timeout time.Duration) error {
	startTime := time.Now()
	rounds := 0
	logger.Debug("观察开始: 区域=%v 间隔=%s 超时=%s", o.region, o.interval, timeout)
	defer func() {
		logger.LogEvent("OBSV", true, float64(time.Since(startTime).Microseconds())/1000,
			fmt.Sprintf("观察结束, 共 %d 轮", rounds))
	}()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return o.exitErr(ctx)
		}
		if timeout > 0 && time.Since(startTime) >= timeout {
			return nil
		}

		rounds++
		o.step()

		select {
		case <-ctx.Done():
			return o.exitErr(ctx)
		case <-ticker.C:
		}
	}
}

// exitErr Stop 导致的退出返回 nil，外部取消返回 ctx.Err()
func (o *Observer) exitErr(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), errStopped) {
		return nil
	}
	return ctx.Err()
}

// step 截图一次并分发事件，截图失败只记录日志
func (o *Observer) step() {
	buf, err := o.capturer.Capture(o.region)
	if err != nil {
		logger.Warn("观察截图失败: %v", err)
		return
	}

	o.mu.Lock()
	appear := append([]*appearHandler(nil), o.appear...)
	vanish := append([]*vanishHandler(nil), o.vanish...)
	change := append([]*changeHandler(nil), o.change...)
	o.mu.Unlock()

	origin := cv.Point{}
	if o.region != nil {
		origin = cv.Point{X: max(o.region.X, 0), Y: max(o.region.Y, 0)}
	}

	for _, h := range appear {
		m, err := o.matcher.Find(buf, h.pattern)
		if err != nil {
			logger.Warn("出现检测失败: %s %v", h.pattern.Name(), err)
			continue
		}
		if m == nil {
			h.visible = false
			continue
		}
		if !h.visible {
			h.visible = true
			m.Region = m.Region.Offset(origin.X, origin.Y)
			logger.LogEvent("OBSV", true, 0, fmt.Sprintf("%s 出现 %s", h.pattern.Name(), m))
			h.fn(*m)
		}
	}

	for _, h := range vanish {
		m, err := o.matcher.Find(buf, h.pattern)
		if err != nil {
			logger.Warn("消失检测失败: %s %v", h.pattern.Name(), err)
			continue
		}
		switch {
		case m != nil:
			h.seen = true
		case h.seen:
			h.seen = false
			logger.LogEvent("OBSV", true, 0, fmt.Sprintf("%s 消失", h.pattern.Name()))
			h.fn()
		}
	}

	for _, h := range change {
		if h.baseline == nil {
			h.baseline = buf
			continue
		}
		fraction, err := o.detector.Diff(h.baseline, buf)
		if err != nil {
			// 区域尺寸变化（如分辨率切换）时重置基准
			logger.Warn("变化检测失败: %v", err)
			h.baseline = buf
			continue
		}
		if fraction >= h.minFraction && fraction > 0 {
			h.baseline = buf
			logger.LogEvent("OBSV", true, 0, fmt.Sprintf("变化 %.1f%%", fraction*100))
			h.fn(fraction)
		}
	}
}
