package cv

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
)

// ChannelLayout 像素通道布局
type ChannelLayout int

const (
	// LayoutRGBA 每像素 4 字节 R,G,B,A
	LayoutRGBA ChannelLayout = iota
	// LayoutRGB 每像素 3 字节 R,G,B
	LayoutRGB
)

// BytesPerPixel 返回每像素字节数
func (l ChannelLayout) BytesPerPixel() int {
	switch l {
	case LayoutRGB:
		return 3
	default:
		return 4
	}
}

func (l ChannelLayout) String() string {
	switch l {
	case LayoutRGBA:
		return "RGBA"
	case LayoutRGB:
		return "RGB"
	default:
		return fmt.Sprintf("ChannelLayout(%d)", int(l))
	}
}

func (l ChannelLayout) valid() bool {
	return l == LayoutRGBA || l == LayoutRGB
}

// ErrInvalidBuffer 像素缓冲区参数非法
var ErrInvalidBuffer = errors.New("像素缓冲区非法")

// PixelBuffer 截图或解码得到的光栅图像，构造后不可变
type PixelBuffer struct {
	width  int
	height int
	stride int
	layout ChannelLayout
	pix    []byte

	grayOnce sync.Once
	gray     *grayPlane
}

// NewPixelBuffer 创建像素缓冲区
// stride 为每行字节数，必须 >= width*BytesPerPixel；pix 长度必须 >= stride*height
func NewPixelBuffer(width, height, stride int, layout ChannelLayout, pix []byte) (*PixelBuffer, error) {
	if !layout.valid() {
		return nil, fmt.Errorf("%w: 不支持的通道布局 %s", ErrInvalidBuffer, layout)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: 尺寸必须为正 (%dx%d)", ErrInvalidBuffer, width, height)
	}
	if stride < width*layout.BytesPerPixel() {
		return nil, fmt.Errorf("%w: stride %d 小于行宽 %d", ErrInvalidBuffer, stride, width*layout.BytesPerPixel())
	}
	if len(pix) < stride*height {
		return nil, fmt.Errorf("%w: 数据长度 %d 小于 %d", ErrInvalidBuffer, len(pix), stride*height)
	}
	return &PixelBuffer{
		width:  width,
		height: height,
		stride: stride,
		layout: layout,
		pix:    pix,
	}, nil
}

// Width 返回宽度
func (b *PixelBuffer) Width() int { return b.width }

// Height 返回高度
func (b *PixelBuffer) Height() int { return b.height }

// Stride 返回每行字节数
func (b *PixelBuffer) Stride() int { return b.stride }

// Layout 返回通道布局
func (b *PixelBuffer) Layout() ChannelLayout { return b.layout }

// Pix 返回底层字节，调用方不得修改
func (b *PixelBuffer) Pix() []byte { return b.pix }

// Bounds 返回以 (0,0) 为原点的区域
func (b *PixelBuffer) Bounds() Region {
	return Region{Width: b.width, Height: b.height}
}

// RGBAt 返回 (x, y) 处的 RGB 值
func (b *PixelBuffer) RGBAt(x, y int) (r, g, bl uint8) {
	i := y*b.stride + x*b.layout.BytesPerPixel()
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// rowReader 按行读取像素，每个缓冲区只解析一次布局
type rowReader struct {
	pix    []byte
	stride int
	bpp    int
}

func (b *PixelBuffer) reader() rowReader {
	return rowReader{pix: b.pix, stride: b.stride, bpp: b.layout.BytesPerPixel()}
}

// row 返回第 y 行（不含 stride 填充）
func (r rowReader) row(y, width int) []byte {
	start := y * r.stride
	return r.pix[start : start+width*r.bpp]
}

// FromImage 将 image.Image 转换为 RGBA 布局的 PixelBuffer
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.RGBA:
		if src.Rect.Min == (image.Point{}) {
			pix := make([]byte, len(src.Pix))
			copy(pix, src.Pix)
			return &PixelBuffer{width: w, height: h, stride: src.Stride, layout: LayoutRGBA, pix: pix}
		}
	case *image.NRGBA:
		// 模板通常不透明，直接按 RGB 读取即可
		if src.Rect.Min == (image.Point{}) {
			pix := make([]byte, len(src.Pix))
			copy(pix, src.Pix)
			return &PixelBuffer{width: w, height: h, stride: src.Stride, layout: LayoutRGBA, pix: pix}
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return &PixelBuffer{width: w, height: h, stride: dst.Stride, layout: LayoutRGBA, pix: dst.Pix}
}

// ToImage 转换为 *image.RGBA（alpha 固定为 255）
func (b *PixelBuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	rd := b.reader()
	for y := 0; y < b.height; y++ {
		src := rd.row(y, b.width)
		dst := img.Pix[y*img.Stride : y*img.Stride+b.width*4]
		for x := 0; x < b.width; x++ {
			s := x * rd.bpp
			d := x * 4
			dst[d] = src[s]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s+2]
			dst[d+3] = 0xff
		}
	}
	return img
}

// Crop 复制区域内的像素为新的缓冲区
// 区域会先与缓冲区边界求交，交集为空时返回错误
func (b *PixelBuffer) Crop(r Region) (*PixelBuffer, error) {
	clipped, ok := r.Intersection(b.Bounds())
	if !ok {
		return nil, fmt.Errorf("%w: 裁剪区域 %s 不在图像 %dx%d 内", ErrInvalidBuffer, r, b.width, b.height)
	}
	bpp := b.layout.BytesPerPixel()
	stride := clipped.Width * bpp
	pix := make([]byte, stride*clipped.Height)
	for y := 0; y < clipped.Height; y++ {
		start := (clipped.Y+y)*b.stride + clipped.X*bpp
		copy(pix[y*stride:(y+1)*stride], b.pix[start:start+stride])
	}
	return &PixelBuffer{
		width:  clipped.Width,
		height: clipped.Height,
		stride: stride,
		layout: b.layout,
		pix:    pix,
	}, nil
}

// grayPlaneOf 返回缓存的灰度平面，首次调用时计算
func (b *PixelBuffer) grayPlaneOf() *grayPlane {
	b.grayOnce.Do(func() {
		b.gray = newGrayPlane(b)
	})
	return b.gray
}
