package cv

import (
	"errors"
	"fmt"
	"time"
)

// ErrImageNotFound 图像未在屏幕上找到
// Find/FindAll/Exists 不返回该错误，只有 Wait 超时才会返回
var ErrImageNotFound = errors.New("未在屏幕上找到图像")

// DimensionError 尺寸错误：模板大于屏幕，或变化检测的两张图尺寸不一致
type DimensionError struct {
	Op           string
	SourceSize   [2]int
	TemplateSize [2]int
}

func (e *DimensionError) Error() string {
	if e.Op == "diff" {
		return fmt.Sprintf("图像尺寸不一致: %dx%d vs %dx%d",
			e.SourceSize[0], e.SourceSize[1], e.TemplateSize[0], e.TemplateSize[1])
	}
	return fmt.Sprintf("模板尺寸 %dx%d 大于源图像 %dx%d",
		e.TemplateSize[0], e.TemplateSize[1], e.SourceSize[0], e.SourceSize[1])
}

// FindFailedError Wait 在超时时间内未找到模板
type FindFailedError struct {
	Pattern string
	Timeout time.Duration
}

func (e *FindFailedError) Error() string {
	return fmt.Sprintf("FindFailed: %s 在 %.1fs 内未找到", e.Pattern, e.Timeout.Seconds())
}

// Unwrap 使 errors.Is(err, ErrImageNotFound) 成立
func (e *FindFailedError) Unwrap() error {
	return ErrImageNotFound
}

// CaptureError 截图失败，原样包装采集端错误
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("截屏失败: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// checkSourceLargerThanSearch 检查源图像是否不小于模板
func checkSourceLargerThanSearch(source, search *PixelBuffer) error {
	if source.height < search.height || source.width < search.width {
		return &DimensionError{
			Op:           "find",
			SourceSize:   [2]int{source.width, source.height},
			TemplateSize: [2]int{search.width, search.height},
		}
	}
	return nil
}

// checkSameSize 检查两张图尺寸一致
func checkSameSize(a, b *PixelBuffer) error {
	if a.width != b.width || a.height != b.height {
		return &DimensionError{
			Op:           "diff",
			SourceSize:   [2]int{a.width, a.height},
			TemplateSize: [2]int{b.width, b.height},
		}
	}
	return nil
}
