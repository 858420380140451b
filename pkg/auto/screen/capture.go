// Package screen 提供屏幕截图
package screen

import (
	"errors"
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/zoeyai/zoeymatch/pkg/auto"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Capturer 截图来源
// region 为 nil 时截取全屏，否则只截取该区域（截图坐标）
type Capturer interface {
	Capture(region *cv.Region) (*cv.PixelBuffer, error)
}

// CapturerFunc 函数适配为 Capturer
type CapturerFunc func(region *cv.Region) (*cv.PixelBuffer, error)

// Capture 调用函数本身
func (f CapturerFunc) Capture(region *cv.Region) (*cv.PixelBuffer, error) {
	return f(region)
}

// RobotCapturer 通过 robotgo 截取真实屏幕
type RobotCapturer struct{}

// NewRobotCapturer 创建屏幕截图器
func NewRobotCapturer() *RobotCapturer {
	return &RobotCapturer{}
}

// Capture 截取屏幕，失败时返回 *cv.CaptureError
func (RobotCapturer) Capture(region *cv.Region) (*cv.PixelBuffer, error) {
	var args []int
	if region != nil {
		r := auto.CurrentScale().RegionToInput(*region)
		args = []int{r.X, r.Y, r.Width, r.Height}
	}
	img, err := robotgo.CaptureImg(args...)
	if err != nil {
		return nil, &cv.CaptureError{Err: err}
	}
	if img == nil {
		return nil, &cv.CaptureError{Err: errors.New("robotgo 返回空图像")}
	}
	return cv.FromImage(img), nil
}

// StaticCapturer 依次返回预先准备的帧，最后一帧会一直重复
// 用于测试和基于文件的匹配
type StaticCapturer struct {
	mu     sync.Mutex
	frames []*cv.PixelBuffer
	next   int
	count  int
}

// NewStaticCapturer 创建静态截图器，至少需要一帧
func NewStaticCapturer(frames ...*cv.PixelBuffer) *StaticCapturer {
	return &StaticCapturer{frames: frames}
}

// Capture 返回下一帧，region 不为 nil 时裁剪
func (s *StaticCapturer) Capture(region *cv.Region) (*cv.PixelBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil, &cv.CaptureError{Err: errors.New("没有可用的帧")}
	}
	frame := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	s.count++

	if region == nil {
		return frame, nil
	}
	sub, err := frame.Crop(*region)
	if err != nil {
		return nil, &cv.CaptureError{Err: err}
	}
	return sub, nil
}

// Count 返回已截图次数
func (s *StaticCapturer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// GetScreenSize 获取屏幕尺寸（物理像素，与截图分辨率一致）
func GetScreenSize() (width, height int) {
	return auto.GetPhysicalScreenSize()
}

// GetDisplayCount 获取显示器数量
func GetDisplayCount() int {
	return robotgo.DisplaysNum()
}
