package observer

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/zoeyai/zoeymatch/pkg/auto/screen"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

func noise(w, h int, seed int64) *cv.PixelBuffer {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return cv.FromImage(img)
}

type events struct {
	mu      sync.Mutex
	appear  []cv.Match
	vanish  int
	changes []float64
}

func (e *events) counts() (int, int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.appear), e.vanish, len(e.changes)
}

func watch(o *Observer, p *cv.Pattern) *events {
	e := &events{}
	o.OnAppear(p, func(m cv.Match) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.appear = append(e.appear, m)
	})
	o.OnVanish(p, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.vanish++
	})
	o.OnChange(0.5, func(f float64) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.changes = append(e.changes, f)
	})
	return e
}

func TestObserveEvents(t *testing.T) {
	present := noise(80, 60, 1)
	absent := noise(80, 60, 2)
	tmpl, _ := present.Crop(cv.NewRegion(30, 20, 16, 12))
	p, _ := cv.NewPattern(tmpl, cv.WithSimilarity(0.9), cv.WithName("icon"))

	sc := screen.NewStaticCapturer(absent, present, present, absent, absent)
	o := New(sc, WithInterval(MinInterval))
	e := watch(o, p)

	if err := o.Observe(context.Background(), 300*time.Millisecond); err != nil {
		t.Fatalf("Observe 失败: %v", err)
	}

	appear, vanish, changes := e.counts()
	if appear != 1 {
		t.Errorf("出现事件应触发 1 次, 实际 %d", appear)
	}
	if vanish != 1 {
		t.Errorf("消失事件应触发 1 次, 实际 %d", vanish)
	}
	if changes != 2 {
		t.Errorf("变化事件应触发 2 次, 实际 %d", changes)
	}
	if appear == 1 && e.appear[0].Region != cv.NewRegion(30, 20, 16, 12) {
		t.Errorf("出现位置错误: %s", e.appear[0].Region)
	}
	for _, f := range e.changes {
		if f < 0.5 || f > 1 {
			t.Errorf("变化比例越界: %f", f)
		}
	}
	if sc.Count() < 5 {
		t.Errorf("超时前应截图至少 5 次, 实际 %d", sc.Count())
	}
	if o.IsRunning() {
		t.Error("Observe 返回后不应处于运行状态")
	}
}

func TestObserveRegionOffset(t *testing.T) {
	present := noise(80, 60, 3)
	tmpl, _ := present.Crop(cv.NewRegion(50, 40, 12, 10))
	p, _ := cv.NewPattern(tmpl, cv.WithSimilarity(0.9))

	o := New(screen.NewStaticCapturer(present), WithInterval(MinInterval), WithRegion(cv.NewRegion(40, 30, 40, 30)))
	var got []cv.Match
	o.OnAppear(p, func(m cv.Match) { got = append(got, m) })

	if err := o.Observe(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("Observe 失败: %v", err)
	}
	if len(got) != 1 || got[0].Region != cv.NewRegion(50, 40, 12, 10) {
		t.Errorf("出现事件应使用屏幕坐标: %v", got)
	}
}

func TestStartStop(t *testing.T) {
	o := New(screen.NewStaticCapturer(noise(20, 20, 4)), WithInterval(MinInterval))

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start 失败: %v", err)
	}
	if !o.IsRunning() {
		t.Error("Start 后应处于运行状态")
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("重复 Start 应返回 ErrAlreadyRunning, 实际 %v", err)
	}
	if err := o.Observe(context.Background(), time.Millisecond); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("运行中 Observe 应返回 ErrAlreadyRunning, 实际 %v", err)
	}

	o.Stop()
	if err := o.Wait(); err != nil {
		t.Errorf("Stop 后 Wait 应返回 nil, 实际 %v", err)
	}
	if o.IsRunning() {
		t.Error("Stop 后不应处于运行状态")
	}

	// 停止后可以再次启动
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("再次 Start 失败: %v", err)
	}
	o.Stop()
	o.Wait()
}

func TestObserveContextCancel(t *testing.T) {
	o := New(screen.NewStaticCapturer(noise(20, 20, 5)), WithInterval(MinInterval))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := o.Observe(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("外部取消应返回 ctx.Err(), 实际 %v", err)
	}
}

func TestObserveSurvivesCaptureErrors(t *testing.T) {
	calls := 0
	o := New(screen.CapturerFunc(func(*cv.Region) (*cv.PixelBuffer, error) {
		calls++
		return nil, &cv.CaptureError{Err: errors.New("display lost")}
	}), WithInterval(MinInterval))

	if err := o.Observe(context.Background(), 50*time.Millisecond); err != nil {
		t.Errorf("截图失败不应中断观察: %v", err)
	}
	if calls < 2 {
		t.Errorf("截图失败后应继续重试, 实际 %d 次", calls)
	}
}

func TestIntervalClamp(t *testing.T) {
	if got := New(nil, WithInterval(time.Millisecond)).Interval(); got != MinInterval {
		t.Errorf("间隔应被提升到 %s, 实际 %s", MinInterval, got)
	}
	if got := New(nil).Interval(); got != DefaultInterval {
		t.Errorf("默认间隔应为 %s, 实际 %s", DefaultInterval, got)
	}
}
