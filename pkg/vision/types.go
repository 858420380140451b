package vision

import (
	"fmt"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Version 版本号
const Version = "1.0.0"

// Point 二维坐标点
type Point = cv.Point

// Rectangle 表示矩形区域（四个角点）
type Rectangle struct {
	TopLeft     Point `json:"top_left"`
	BottomLeft  Point `json:"bottom_left"`
	BottomRight Point `json:"bottom_right"`
	TopRight    Point `json:"top_right"`
}

// NewRectangle 由区域创建矩形，右下角为区域外的第一个像素
func NewRectangle(r cv.Region) Rectangle {
	return Rectangle{
		TopLeft:     Point{X: r.X, Y: r.Y},
		BottomLeft:  Point{X: r.X, Y: r.Y + r.Height},
		BottomRight: Point{X: r.X + r.Width, Y: r.Y + r.Height},
		TopRight:    Point{X: r.X + r.Width, Y: r.Y},
	}
}

// MatchResult 图像匹配结果，CLI 以 JSON 输出
type MatchResult struct {
	// Result 动作点（中心 + 目标偏移）
	Result Point `json:"result"`
	// Rectangle 匹配区域的四个角点
	Rectangle Rectangle `json:"rectangle"`
	// Confidence 匹配置信度 (0-1)
	Confidence float64 `json:"confidence"`
	// Time 匹配耗时（毫秒）
	Time float64 `json:"time,omitempty"`

	match cv.Match
}

// NewMatchResult 由 cv.Match 创建结果
func NewMatchResult(m cv.Match, elapsedMs float64) *MatchResult {
	return &MatchResult{
		Result:     m.TargetPoint(),
		Rectangle:  NewRectangle(m.Region),
		Confidence: m.Score,
		Time:       elapsedMs,
		match:      m,
	}
}

// Match 返回底层匹配
func (r *MatchResult) Match() cv.Match {
	return r.match
}

// TargetPos 目标位置枚举，用于指定返回匹配结果的哪个位置
type TargetPos int

const (
	// TargetPosMid 动作点（默认）
	TargetPosMid TargetPos = iota
	// TargetPosTopLeft 左上角
	TargetPosTopLeft
	// TargetPosTopRight 右上角
	TargetPosTopRight
	// TargetPosBottomLeft 左下角
	TargetPosBottomLeft
	// TargetPosBottomRight 右下角
	TargetPosBottomRight
)

// GetPosition 根据 TargetPos 从 MatchResult 获取对应位置
func (t TargetPos) GetPosition(result *MatchResult) Point {
	if result == nil {
		return Point{}
	}
	switch t {
	case TargetPosTopLeft:
		return result.Rectangle.TopLeft
	case TargetPosTopRight:
		return result.Rectangle.TopRight
	case TargetPosBottomLeft:
		return result.Rectangle.BottomLeft
	case TargetPosBottomRight:
		return result.Rectangle.BottomRight
	default:
		return result.Result
	}
}

// MatchMethod 匹配后端
type MatchMethod string

const (
	// MatchMethodNative 纯 Go NCC 引擎（默认）
	MatchMethodNative MatchMethod = "native"
	// MatchMethodOpenCV OpenCV TM_CCOEFF_NORMED
	MatchMethodOpenCV MatchMethod = "opencv"
	// MatchMethodMultiScale OpenCV 多尺度模板匹配，只返回最佳结果
	MatchMethodMultiScale MatchMethod = "multiscale"
)

// ParseMatchMethod 解析匹配方法，空字符串为 native
func ParseMatchMethod(s string) (MatchMethod, error) {
	switch m := MatchMethod(s); m {
	case "":
		return MatchMethodNative, nil
	case MatchMethodNative, MatchMethodOpenCV, MatchMethodMultiScale:
		return m, nil
	default:
		return "", fmt.Errorf("不支持的匹配方法: %s", s)
	}
}
