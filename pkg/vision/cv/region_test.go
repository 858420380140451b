package cv

import (
	"errors"
	"image"
	"testing"
)

func TestRegionGeometry(t *testing.T) {
	r := NewRegion(10, 20, 30, 40)

	if r.Center() != (Point{X: 25, Y: 40}) {
		t.Errorf("Center 错误: %v", r.Center())
	}
	if r.TopLeft() != (Point{X: 10, Y: 20}) || r.BottomRight() != (Point{X: 40, Y: 60}) {
		t.Errorf("角点错误: %v %v", r.TopLeft(), r.BottomRight())
	}
	if r.Area() != 1200 {
		t.Errorf("面积错误: %d", r.Area())
	}
	if r.ToImageRect() != image.Rect(10, 20, 40, 60) {
		t.Errorf("ToImageRect 错误: %v", r.ToImageRect())
	}
	if r.String() != "(10,20 30x40)" {
		t.Errorf("String 错误: %s", r)
	}

	if NewRegion(0, 0, -5, 3) != (Region{Width: 0, Height: 3}) {
		t.Error("负宽度应按 0 处理")
	}
	if !NewRegion(0, 0, 0, 3).IsEmpty() {
		t.Error("零宽区域应为空")
	}
	if RegionFromCorners(40, 60, 10, 20) != r {
		t.Errorf("RegionFromCorners 错误: %s", RegionFromCorners(40, 60, 10, 20))
	}
	if r.Offset(-10, 5) != NewRegion(0, 25, 30, 40) {
		t.Error("Offset 错误")
	}
	if r.Expand(5) != NewRegion(5, 15, 40, 50) || r.Expand(-20) != NewRegion(30, 40, 0, 0) {
		t.Errorf("Expand 错误: %s %s", r.Expand(5), r.Expand(-20))
	}
}

func TestRegionContains(t *testing.T) {
	r := NewRegion(0, 0, 10, 10)
	tests := []struct {
		x, y int
		want bool
	}{
		{0, 0, true},
		{9, 9, true},
		{10, 5, false},
		{5, 10, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d,%d) = %v, 期望 %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestRegionIoU(t *testing.T) {
	a := NewRegion(0, 0, 10, 10)
	tests := []struct {
		name string
		b    Region
		want float64
	}{
		{"相同", a, 1},
		{"不相交", NewRegion(20, 20, 10, 10), 0},
		{"仅接触边缘", NewRegion(10, 0, 10, 10), 0},
		{"半重叠", NewRegion(5, 0, 10, 10), 50.0 / 150.0},
		{"包含", NewRegion(0, 0, 5, 5), 0.25},
		{"空区域", NewRegion(2, 2, 0, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.IoU(tt.b)
			if diff := got - tt.want; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("IoU = %f, 期望 %f", got, tt.want)
			}
			if sym := tt.b.IoU(a); sym != got {
				t.Errorf("IoU 不对称: %f != %f", sym, got)
			}
			if got < 0 || got > 1 {
				t.Errorf("IoU 超出 [0,1]: %f", got)
			}
		})
	}
}

func TestRegionIntersection(t *testing.T) {
	a := NewRegion(0, 0, 10, 10)
	inter, ok := a.Intersection(NewRegion(5, -5, 10, 10))
	if !ok || inter != NewRegion(5, 0, 5, 5) {
		t.Errorf("交集错误: %s %v", inter, ok)
	}
	if _, ok := a.Intersection(NewRegion(10, 10, 5, 5)); ok {
		t.Error("仅接触角点不应有交集")
	}
}

func TestNewPixelBufferValidation(t *testing.T) {
	tests := []struct {
		name         string
		w, h, stride int
		layout       ChannelLayout
		pixLen       int
	}{
		{"零宽", 0, 5, 0, LayoutRGBA, 0},
		{"负高", 5, -1, 20, LayoutRGBA, 0},
		{"stride 过小", 5, 5, 19, LayoutRGBA, 100},
		{"数据过短", 5, 5, 15, LayoutRGB, 74},
		{"未知布局", 5, 5, 20, ChannelLayout(9), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPixelBuffer(tt.w, tt.h, tt.stride, tt.layout, make([]byte, tt.pixLen))
			if !errors.Is(err, ErrInvalidBuffer) {
				t.Errorf("期望 ErrInvalidBuffer, 实际 %v", err)
			}
		})
	}

	buf, err := NewPixelBuffer(5, 5, 15, LayoutRGB, make([]byte, 75))
	if err != nil {
		t.Fatalf("合法参数不应报错: %v", err)
	}
	if buf.Bounds() != NewRegion(0, 0, 5, 5) || buf.Layout().BytesPerPixel() != 3 {
		t.Errorf("缓冲区属性错误: %s %s", buf.Bounds(), buf.Layout())
	}
}

func TestPixelBufferImageRoundTrip(t *testing.T) {
	c := newCanvas(6, 4, colorBlack)
	c.noise(1)
	buf := c.buffer(t)

	img := buf.ToImage()
	back := FromImage(img)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			r1, g1, b1 := buf.RGBAt(x, y)
			r2, g2, b2 := back.RGBAt(x, y)
			if r1 != r2 || g1 != g2 || b1 != b2 {
				t.Fatalf("(%d,%d) 像素不一致", x, y)
			}
		}
	}

	// 非零原点的子图走通用路径
	sub := img.SubImage(image.Rect(2, 1, 5, 3))
	cropped := FromImage(sub)
	if cropped.Width() != 3 || cropped.Height() != 2 {
		t.Fatalf("子图尺寸错误: %dx%d", cropped.Width(), cropped.Height())
	}
	r1, g1, b1 := buf.RGBAt(2, 1)
	r2, g2, b2 := cropped.RGBAt(0, 0)
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Error("子图像素偏移错误")
	}
}

func TestPixelBufferCrop(t *testing.T) {
	c := newCanvas(10, 10, colorGray)
	c.set(7, 8, colorRed)
	buf := c.buffer(t)

	// 超出边界的部分被裁掉
	cropped, err := buf.Crop(NewRegion(5, 5, 20, 20))
	if err != nil {
		t.Fatalf("裁剪失败: %v", err)
	}
	if cropped.Width() != 5 || cropped.Height() != 5 {
		t.Errorf("裁剪尺寸错误: %dx%d", cropped.Width(), cropped.Height())
	}
	if r, _, _ := cropped.RGBAt(2, 3); r != 255 {
		t.Error("裁剪后像素位置错误")
	}

	if _, err := buf.Crop(NewRegion(20, 20, 5, 5)); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("区域在图像外应报错, 实际 %v", err)
	}
}
