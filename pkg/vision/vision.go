// Package vision 提供图像匹配、变化检测与 OCR 的便捷入口
//
// 主要功能:
//   - 模板匹配: 纯 Go NCC 引擎，或 OpenCV 后端 (单尺度/多尺度)
//   - 变化检测: 两帧之间变化像素的比例
//   - 文字识别: 基于 PaddleOCR 的中英文识别
//
// 基本用法:
//
//	res, err := vision.FindLocation("screen.png", "button.png", vision.WithSimilarity(0.9))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if res != nil {
//	    fmt.Printf("找到位置: (%d, %d)\n", res.Result.X, res.Result.Y)
//	}
package vision

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
	"github.com/zoeyai/zoeymatch/pkg/vision/imgio"
	"github.com/zoeyai/zoeymatch/pkg/vision/ocr"
	"github.com/zoeyai/zoeymatch/pkg/vision/ocv"
)

// ============ CV 便捷函数 ============

// NewPattern 加载模板并应用选项
// template 支持文件路径、data URL、[]byte、image.Image 或 *cv.PixelBuffer
func NewPattern(template any, opts ...Option) (*cv.Pattern, error) {
	return buildMatchConfig(opts).pattern(template)
}

func (c *matchConfig) pattern(template any) (*cv.Pattern, error) {
	buf, err := imgio.Load(template)
	if err != nil {
		return nil, fmt.Errorf("加载模板失败: %w", err)
	}
	name := c.name
	if name == "" {
		if path, ok := template.(string); ok && !imgio.IsDataURL(path) {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}
	popts := []cv.PatternOption{
		cv.WithSimilarity(c.similarity),
		cv.WithTargetOffset(c.offset.X, c.offset.Y),
		cv.WithRGB(c.rgb),
	}
	if name != "" {
		popts = append(popts, cv.WithName(name))
	}
	return cv.NewPattern(buf, popts...)
}

// FindLocation 在屏幕中查找模板，未找到返回 (nil, nil)
// screen 和 template 支持的输入同 NewPattern
func FindLocation(screen, template any, opts ...Option) (*MatchResult, error) {
	cfg := buildMatchConfig(opts)
	scr, p, err := cfg.load(screen, template)
	if err != nil {
		return nil, err
	}
	return cfg.find(scr, p)
}

// FindAllLocations 查找全部匹配，按得分降序
func FindAllLocations(screen, template any, opts ...Option) ([]*MatchResult, error) {
	cfg := buildMatchConfig(opts)
	scr, p, err := cfg.load(screen, template)
	if err != nil {
		return nil, err
	}
	return cfg.findAll(scr, p)
}

// Find 在已加载的屏幕中查找 Pattern
func Find(screen *cv.PixelBuffer, p *cv.Pattern, opts ...Option) (*MatchResult, error) {
	return buildMatchConfig(opts).find(screen, p)
}

// FindAll 在已加载的屏幕中查找 Pattern 的全部匹配
func FindAll(screen *cv.PixelBuffer, p *cv.Pattern, opts ...Option) ([]*MatchResult, error) {
	return buildMatchConfig(opts).findAll(screen, p)
}

func (c *matchConfig) load(screen, template any) (*cv.PixelBuffer, *cv.Pattern, error) {
	scr, err := imgio.Load(screen)
	if err != nil {
		return nil, nil, fmt.Errorf("加载屏幕图像失败: %w", err)
	}
	p, err := c.pattern(template)
	if err != nil {
		return nil, nil, err
	}
	return scr, p, nil
}

// searchArea 按 region 裁剪屏幕，返回裁剪结果和坐标偏移
func (c *matchConfig) searchArea(screen *cv.PixelBuffer) (*cv.PixelBuffer, cv.Point, error) {
	if c.region == nil {
		return screen, cv.Point{}, nil
	}
	sub, err := screen.Crop(*c.region)
	if err != nil {
		return nil, cv.Point{}, err
	}
	clipped, _ := c.region.Intersection(screen.Bounds())
	return sub, clipped.TopLeft(), nil
}

func (c *matchConfig) nativeMatcher() *cv.Matcher {
	opts := []cv.MatcherOption{cv.WithOverlapThreshold(c.overlap), cv.WithWorkers(c.workers)}
	if c.maxResults > 0 {
		opts = append(opts, cv.WithMaxResults(c.maxResults))
	}
	return cv.NewMatcher(opts...)
}

func (c *matchConfig) find(screen *cv.PixelBuffer, p *cv.Pattern) (*MatchResult, error) {
	startTime := time.Now()
	area, origin, err := c.searchArea(screen)
	if err != nil {
		return nil, err
	}

	var m *cv.Match
	switch c.method {
	case MatchMethodOpenCV:
		m, err = ocv.NewMatcher(ocv.WithOverlapThreshold(c.overlap)).Find(area, p)
	case MatchMethodMultiScale:
		m, err = ocv.NewMatcher().FindMultiScale(area, p, ocv.DefaultMultiScaleOptions())
	case MatchMethodNative, "":
		m, err = c.nativeMatcher().Find(area, p)
	default:
		return nil, fmt.Errorf("不支持的匹配方法: %s", c.method)
	}
	if err != nil || m == nil {
		return nil, err
	}
	m.Region = m.Region.Offset(origin.X, origin.Y)
	return NewMatchResult(*m, elapsedMs(startTime)), nil
}

func (c *matchConfig) findAll(screen *cv.PixelBuffer, p *cv.Pattern) ([]*MatchResult, error) {
	startTime := time.Now()
	area, origin, err := c.searchArea(screen)
	if err != nil {
		return nil, err
	}

	var matches []cv.Match
	switch c.method {
	case MatchMethodOpenCV:
		matches, err = ocv.NewMatcher(ocv.WithOverlapThreshold(c.overlap)).FindAll(area, p)
		if c.maxResults > 0 && len(matches) > c.maxResults {
			matches = matches[:c.maxResults]
		}
	case MatchMethodMultiScale:
		var m *cv.Match
		m, err = ocv.NewMatcher().FindMultiScale(area, p, ocv.DefaultMultiScaleOptions())
		if m != nil {
			matches = []cv.Match{*m}
		}
	case MatchMethodNative, "":
		matches, err = c.nativeMatcher().FindAll(area, p)
	default:
		return nil, fmt.Errorf("不支持的匹配方法: %s", c.method)
	}
	if err != nil {
		return nil, err
	}

	elapsed := elapsedMs(startTime)
	results := make([]*MatchResult, len(matches))
	for i, m := range matches {
		m.Region = m.Region.Offset(origin.X, origin.Y)
		results[i] = NewMatchResult(m, elapsed)
	}
	return results, nil
}

// ============ 变化检测 ============

// Diff 返回两张图像中变化像素的比例
func Diff(a, b any, threshold uint8) (float64, error) {
	ba, err := imgio.Load(a)
	if err != nil {
		return 0, fmt.Errorf("加载图像失败: %w", err)
	}
	bb, err := imgio.Load(b)
	if err != nil {
		return 0, fmt.Errorf("加载图像失败: %w", err)
	}
	workers := GetOptions().Workers
	return cv.NewChangeDetector(cv.WithChannelThreshold(threshold), cv.WithChangeWorkers(workers)).Diff(ba, bb)
}

// ============ OCR 便捷函数 ============

// RecognizeText 识别图像中的所有文字，rec 为 nil 时使用默认配置临时创建
func RecognizeText(rec *ocr.Recognizer, img any) ([]ocr.Result, error) {
	buf, err := imgio.Load(img)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = ocr.NewRecognizer(ocr.DefaultConfig())
		if err != nil {
			return nil, err
		}
		defer rec.Close()
	}
	return rec.Recognize(buf)
}

// ============ 工具函数 ============

// LoadImage 加载图像 (支持多种输入类型)
func LoadImage(input any) (*cv.PixelBuffer, error) {
	return imgio.Load(input)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
