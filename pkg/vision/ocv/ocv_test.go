package ocv

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
	"github.com/zoeyai/zoeymatch/pkg/vision/imgio"
)

// noiseBuffer 生成固定种子的随机灰度纹理
func noiseBuffer(w, h int, seed int64) *cv.PixelBuffer {
	return blockNoise(w, h, 1, seed)
}

// blockNoise 每个 block*block 方块取同一随机灰度，缩放插值对它影响较小
func blockNoise(w, h, block int, seed int64) *cv.PixelBuffer {
	rng := rand.New(rand.NewSource(seed))
	bw := (w + block - 1) / block
	values := make([]uint8, bw*((h+block-1)/block))
	for i := range values {
		values[i] = uint8(rng.Intn(256))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := values[(y/block)*bw+x/block]
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return cv.FromImage(img)
}

func TestFindMatchesNativeEngine(t *testing.T) {
	screen := noiseBuffer(80, 60, 1)
	r := cv.NewRegion(23, 17, 14, 12)
	tmpl, err := screen.Crop(r)
	if err != nil {
		t.Fatalf("裁剪失败: %v", err)
	}
	p, _ := cv.NewPattern(tmpl, cv.WithSimilarity(0.9))

	got, err := NewMatcher().Find(screen, p)
	if err != nil || got == nil {
		t.Fatalf("OpenCV 查找失败: %v %v", got, err)
	}
	want, err := cv.NewMatcher().Find(screen, p)
	if err != nil || want == nil {
		t.Fatalf("原生引擎查找失败: %v %v", want, err)
	}

	if got.Region != want.Region || got.Region != r {
		t.Errorf("位置不一致: opencv=%s native=%s 期望 %s", got.Region, want.Region, r)
	}
	if math.Abs(got.Score-want.Score) > 1e-3 {
		t.Errorf("得分差异过大: opencv=%.5f native=%.5f", got.Score, want.Score)
	}
}

func TestFindAllAppliesNMS(t *testing.T) {
	screen := noiseBuffer(60, 40, 2)
	tmpl, _ := screen.Crop(cv.NewRegion(10, 10, 12, 12))
	p, _ := cv.NewPattern(tmpl, cv.WithSimilarity(0.6))

	matches, err := NewMatcher(WithOverlapThreshold(0.2)).FindAll(screen, p)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}
	if len(matches) == 0 || matches[0].Region != cv.NewRegion(10, 10, 12, 12) {
		t.Fatalf("得分最高的应为精确位置: %v", matches)
	}
	for i := range matches {
		for j := i + 1; j < len(matches); j++ {
			if iou := matches[i].Region.IoU(matches[j].Region); iou >= 0.2 {
				t.Errorf("%s 与 %s 的 IoU=%f", matches[i].Region, matches[j].Region, iou)
			}
		}
	}
}

func TestFindDimensionError(t *testing.T) {
	p, _ := cv.NewPattern(noiseBuffer(30, 30, 3))
	_, err := NewMatcher().Find(noiseBuffer(20, 20, 4), p)
	var dimErr *cv.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("期望 DimensionError, 实际 %v", err)
	}
}

func TestFindMultiScale(t *testing.T) {
	// 模板以 1.5 倍大小出现在屏幕上
	base := blockNoise(16, 16, 4, 5)
	big := imgio.Resize(base, 1.5)

	canvas := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0x80
	}
	src := big.ToImage()
	for y := 0; y < big.Height(); y++ {
		for x := 0; x < big.Width(); x++ {
			canvas.Set(40+x, 30+y, src.At(x, y))
		}
	}
	screen := cv.FromImage(canvas)
	p, _ := cv.NewPattern(base, cv.WithSimilarity(0.8))

	opts := DefaultMultiScaleOptions()
	opts.MinScale, opts.MaxScale, opts.Step = 1.0, 2.0, 0.25
	m, err := NewMatcher().FindMultiScale(screen, p, opts)
	if err != nil {
		t.Fatalf("多尺度查找失败: %v", err)
	}
	if m == nil {
		t.Fatal("应找到缩放后的模板")
	}
	if m.Region.Width != 24 || m.Region.TopLeft() != (cv.Point{X: 40, Y: 30}) {
		t.Errorf("多尺度结果错误: %s", m)
	}

	if _, err := NewMatcher().FindMultiScale(screen, p, MultiScaleOptions{}); err == nil {
		t.Error("非法参数应返回错误")
	}
}
