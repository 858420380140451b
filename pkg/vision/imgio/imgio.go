// Package imgio 负责模板和截图文件的解码与编码
//
// 支持的输入格式: png, jpeg, gif, bmp, tiff, webp，
// 以及 "data:image/...;base64," 形式的 data URL。
package imgio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

const dataURLPrefix = "data:image/"

// ErrUnsupportedInput 不支持的图像输入类型
var ErrUnsupportedInput = errors.New("不支持的图像输入类型")

// BaseDir 相对路径的基准目录，为空时使用当前工作目录
var BaseDir string

// Decode 解码图像字节
func Decode(data []byte) (*cv.PixelBuffer, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图像失败: %w", err)
	}
	return cv.FromImage(img), nil
}

// DecodeReader 从 io.Reader 解码图像
func DecodeReader(r io.Reader) (*cv.PixelBuffer, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("解码图像失败: %w", err)
	}
	return cv.FromImage(img), nil
}

// IsDataURL 判断字符串是否为图像 data URL
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix)
}

// DecodeDataURL 解码 base64 data URL
func DecodeDataURL(s string) (*cv.PixelBuffer, error) {
	if !IsDataURL(s) {
		return nil, fmt.Errorf("不是图像 data URL: %.32s", s)
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
		return nil, fmt.Errorf("data URL 缺少 base64 数据")
	}
	data, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("base64 解码失败: %w", err)
	}
	return Decode(data)
}

// ReadFile 读取图像文件，相对路径基于 BaseDir
func ReadFile(path string) (*cv.PixelBuffer, error) {
	if BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开图像文件失败: %w", err)
	}
	defer f.Close()

	buf, err := DecodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Load 加载多种形式的图像输入
// 支持: 文件路径或 data URL (string)、[]byte、image.Image、*cv.PixelBuffer
func Load(input any) (*cv.PixelBuffer, error) {
	switch v := input.(type) {
	case *cv.PixelBuffer:
		if v == nil {
			return nil, fmt.Errorf("%w: nil", ErrUnsupportedInput)
		}
		return v, nil
	case string:
		if IsDataURL(v) {
			return DecodeDataURL(v)
		}
		return ReadFile(v)
	case []byte:
		return Decode(v)
	case image.Image:
		return cv.FromImage(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedInput, input)
	}
}

// Format 编码格式
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat 解析格式名，未知格式返回错误
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg", "":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("不支持的图像格式: %s", s)
	}
}

// FormatFromPath 根据扩展名推断格式，默认 PNG
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// Encode 编码图像，quality 仅对 JPEG 生效 (1-100，非法值取 80)
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	if img == nil {
		return fmt.Errorf("图像为空")
	}
	switch format {
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("PNG 编码失败: %w", err)
		}
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("JPEG 编码失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的图像格式: %s", format)
	}
	return nil
}

// WriteFile 按扩展名编码并写入文件
func WriteFile(path string, buf *cv.PixelBuffer) error {
	return WriteImage(path, buf.ToImage())
}

// WriteImage 按扩展名编码并写入 image.Image
func WriteImage(path string, img image.Image) error {
	var b bytes.Buffer
	if err := Encode(&b, img, FormatFromPath(path), 90); err != nil {
		return err
	}
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		return fmt.Errorf("写入图像文件失败: %w", err)
	}
	return nil
}

// ToBase64 编码为 data URL，format 为空时使用 JPEG
func ToBase64(buf *cv.PixelBuffer, format Format, quality int) (string, error) {
	if buf == nil {
		return "", fmt.Errorf("图像为空")
	}
	if format == "" {
		format = FormatJPEG
	}
	var b bytes.Buffer
	if err := Encode(&b, buf.ToImage(), format, quality); err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(b.Bytes())), nil
}

// Resize 按比例缩放图像，用于在不同 DPI 下复用同一模板
// scale <= 0 或等于 1 时原样返回
func Resize(buf *cv.PixelBuffer, scale float64) *cv.PixelBuffer {
	if scale <= 0 || scale == 1 {
		return buf
	}
	w := max(1, int(float64(buf.Width())*scale+0.5))
	h := max(1, int(float64(buf.Height())*scale+0.5))

	src := buf.ToImage()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return cv.FromImage(dst)
}
