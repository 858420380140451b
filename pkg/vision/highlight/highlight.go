// Package highlight 在截图上绘制匹配框和置信度标签，用于调试匹配结果
package highlight

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
	"github.com/zoeyai/zoeymatch/pkg/vision/imgio"
)

// Style 绘制样式
type Style struct {
	// Color 边框颜色
	Color color.RGBA
	// LabelColor 标签文字颜色
	LabelColor color.RGBA
	// Thickness 边框粗细
	Thickness int
	// FontSize 标签字号，<= 0 时不绘制标签
	FontSize float64
	// Target 是否标记动作点
	Target bool
}

// DefaultStyle 默认样式：红框白字
func DefaultStyle() Style {
	return Style{
		Color:      color.RGBA{R: 255, G: 0, B: 0, A: 255},
		LabelColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Thickness:  2,
		FontSize:   14,
		Target:     true,
	}
}

// cjkFontPaths 标签含非 ASCII 字符时尝试的系统字体
var cjkFontPaths = []string{
	"/System/Library/Fonts/PingFang.ttc",
	"/System/Library/Fonts/STHeiti Medium.ttc",
	"C:\\Windows\\Fonts\\simhei.ttf",
	"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
}

var (
	fontOnce    sync.Once
	latinFont   *truetype.Font
	cjkFont     *truetype.Font
	fontLoadErr error
)

func loadFonts() {
	latinFont, fontLoadErr = truetype.Parse(goregular.TTF)
	for _, path := range cjkFontPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if f, err := truetype.Parse(data); err == nil {
			cjkFont = f
			return
		}
	}
}

// fontFor 选择能显示 label 的字体
func fontFor(label string) (*truetype.Font, error) {
	fontOnce.Do(loadFonts)
	if cjkFont != nil && utf8.RuneCountInString(label) != len(label) {
		return cjkFont, nil
	}
	return latinFont, fontLoadErr
}

// Label 返回匹配的标签文字，如 "btn 97.3%"
func Label(name string, m cv.Match) string {
	if name == "" {
		return m.ScorePercent()
	}
	return fmt.Sprintf("%s %s", name, m.ScorePercent())
}

// Render 复制 screen 并绘制所有匹配
func Render(screen *cv.PixelBuffer, name string, matches []cv.Match, style Style) (*image.RGBA, error) {
	img := screen.ToImage()
	for _, m := range matches {
		drawRect(img, m.Region, style.Color, style.Thickness)
		if style.Target {
			drawCross(img, m.TargetPoint(), style.Color)
		}
		if style.FontSize > 0 {
			if err := drawLabel(img, m.Region, Label(name, m), style); err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}

// Save 绘制并保存到文件，格式由扩展名决定
func Save(path string, screen *cv.PixelBuffer, name string, matches []cv.Match, style Style) error {
	img, err := Render(screen, name, matches, style)
	if err != nil {
		return err
	}
	return imgio.WriteImage(path, img)
}

// drawRect 绘制矩形边框，超出图像的部分被裁掉
func drawRect(img *image.RGBA, r cv.Region, col color.RGBA, thickness int) {
	thickness = max(thickness, 1)
	src := image.NewUniform(col)
	outer := r.ToImageRect()
	edges := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+thickness),
		image.Rect(outer.Min.X, outer.Max.Y-thickness, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+thickness, outer.Max.Y),
		image.Rect(outer.Max.X-thickness, outer.Min.Y, outer.Max.X, outer.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawCross 在动作点绘制十字
func drawCross(img *image.RGBA, p cv.Point, col color.RGBA) {
	const arm = 4
	for d := -arm; d <= arm; d++ {
		img.SetRGBA(p.X+d, p.Y, col)
		img.SetRGBA(p.X, p.Y+d, col)
	}
}

// drawLabel 在区域上方（空间不足时在区域内）绘制带底色的标签
func drawLabel(img *image.RGBA, r cv.Region, text string, style Style) error {
	f, err := fontFor(text)
	if err != nil {
		return fmt.Errorf("加载字体失败: %w", err)
	}

	face := truetype.NewFace(f, &truetype.Options{Size: style.FontSize, DPI: 72})
	defer face.Close()
	width := font.MeasureString(face, text).Ceil()
	height := int(style.FontSize + 0.5)

	y := r.Y - height - 2
	if y < 0 {
		y = r.Y + style.Thickness
	}
	bg := image.Rect(r.X, y, r.X+width+4, y+height+2).Intersect(img.Bounds())
	draw.Draw(img, bg, image.NewUniform(style.Color), image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(style.FontSize)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(image.NewUniform(style.LabelColor))
	c.SetHinting(font.HintingFull)

	pt := freetype.Pt(r.X+2, y+int(c.PointToFixed(style.FontSize)>>6))
	if _, err := c.DrawString(text, pt); err != nil {
		return fmt.Errorf("绘制标签失败: %w", err)
	}
	return nil
}
