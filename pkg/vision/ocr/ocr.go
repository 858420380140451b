// Package ocr 提供基于 PaddleOCR (go-ocr) 的文字识别
//
// 基本用法:
//
//	rec, err := ocr.NewRecognizer(ocr.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close()
//
//	// 只识别屏幕的一部分，结果坐标仍为屏幕坐标
//	results, err := rec.RecognizeRegion(screen, cv.NewRegion(0, 0, 400, 300))
package ocr

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	goocr "github.com/getcharzp/go-ocr"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// ErrClosed 识别器已关闭
var ErrClosed = errors.New("OCR 识别器已关闭")

// engine go-ocr 引擎的最小接口
type engine interface {
	RunOCR(img image.Image) ([]goocr.RecResult, error)
	Destroy()
}

// Recognizer OCR 识别器，内部引擎非并发安全，调用被串行化
type Recognizer struct {
	mu     sync.Mutex
	engine engine
	config Config
}

// NewRecognizer 加载模型并创建识别器
func NewRecognizer(config Config) (*Recognizer, error) {
	eng, err := goocr.NewPaddleOcrEngine(goocr.Config{
		OnnxRuntimeLibPath: config.OnnxRuntimeLibPath,
		DetModelPath:       config.DetModelPath,
		RecModelPath:       config.RecModelPath,
		DictPath:           config.DictPath,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OCR 引擎失败: %w", err)
	}
	logger.Info("OCR 引擎初始化成功")
	return newRecognizer(eng, config), nil
}

func newRecognizer(eng engine, config Config) *Recognizer {
	return &Recognizer{engine: eng, config: config}
}

// Recognize 识别整张图像
func (r *Recognizer) Recognize(buf *cv.PixelBuffer) ([]Result, error) {
	if buf == nil {
		return nil, cv.ErrInvalidBuffer
	}
	return r.RecognizeRegion(buf, buf.Bounds())
}

// RecognizeRegion 识别 region 内的文字，结果坐标已换算回 buf 坐标系
func (r *Recognizer) RecognizeRegion(buf *cv.PixelBuffer, region cv.Region) ([]Result, error) {
	if buf == nil {
		return nil, cv.ErrInvalidBuffer
	}
	sub, err := buf.Crop(region)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return nil, ErrClosed
	}

	startTime := time.Now()
	raw, err := r.engine.RunOCR(sub.ToImage())
	elapsed := float64(time.Since(startTime).Microseconds()) / 1000
	if err != nil {
		logger.LogEvent("OCR", false, elapsed, "识别失败")
		return nil, fmt.Errorf("OCR 识别失败: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, rr := range raw {
		if float64(rr.Score) < r.config.MinConfidence || strings.TrimSpace(rr.Text) == "" {
			continue
		}
		box := cv.RegionFromCorners(rr.Box[0], rr.Box[1], rr.Box[2], rr.Box[3])
		results = append(results, Result{
			Text:       rr.Text,
			Confidence: float64(rr.Score),
			Region:     box.Offset(region.X, region.Y),
		})
	}
	logger.LogEvent("OCR", true, elapsed, fmt.Sprintf("%s 识别到 %d 个文本", region, len(results)))
	return results, nil
}

// FindText 在 region 内查找包含 text 的文字（忽略大小写），未找到返回 (nil, nil)
func (r *Recognizer) FindText(buf *cv.PixelBuffer, region cv.Region, text string) (*Result, error) {
	if text == "" {
		return nil, nil
	}
	results, err := r.RecognizeRegion(buf, region)
	if err != nil {
		return nil, err
	}
	target := strings.ToLower(text)
	for i := range results {
		if strings.Contains(strings.ToLower(results[i].Text), target) {
			return &results[i], nil
		}
	}
	return nil, nil
}

// GetAllText 返回 region 内全部文字，以空格拼接
func (r *Recognizer) GetAllText(buf *cv.PixelBuffer, region cv.Region) (string, error) {
	results, err := r.RecognizeRegion(buf, region)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Text)
	}
	return strings.Join(texts, " "), nil
}

// Close 释放引擎，可重复调用
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		r.engine.Destroy()
		r.engine = nil
	}
	return nil
}
