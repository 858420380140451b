package cv

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// DefaultSimilarity 默认相似度阈值
const DefaultSimilarity = 0.7

// TemplateStats 模板亮度统计量，每个 Pattern 只计算一次
type TemplateStats struct {
	// Sum 亮度和
	Sum float64 `json:"sum"`
	// SumSq 亮度平方和
	SumSq float64 `json:"sum_sq"`
	// Count 像素数
	Count int `json:"count"`
	// Mean 平均亮度
	Mean float64 `json:"mean"`
	// Variance 总体方差
	Variance float64 `json:"variance"`

	sum   int64
	sumSq int64
}

// Flat 模板亮度完全一致时返回 true
func (s TemplateStats) Flat() bool {
	return int64(s.Count)*s.sumSq == s.sum*s.sum
}

// templateCache 模板的派生数据，随 Pattern 生命周期存在
// 模板像素构造后不再修改，因此缓存永不失效
type templateCache struct {
	once  sync.Once
	plane *grayPlane
	stats TemplateStats
}

// Pattern 模板图像及其匹配配置
type Pattern struct {
	template   *PixelBuffer
	similarity float64
	offset     Point
	name       string
	rgb        bool

	cache *templateCache
}

// PatternOption 模板选项
type PatternOption func(*Pattern)

// NewPattern 创建模板
func NewPattern(template *PixelBuffer, opts ...PatternOption) (*Pattern, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: 模板为空", ErrInvalidBuffer)
	}
	p := &Pattern{
		template:   template,
		similarity: DefaultSimilarity,
		name:       "pattern",
		cache:      &templateCache{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// WithSimilarity 设置相似度阈值，超出 [0, 1] 的值会被截断而不是报错，NaN 使用默认值
func WithSimilarity(similarity float64) PatternOption {
	return func(p *Pattern) {
		p.similarity = clampUnit(similarity, DefaultSimilarity)
	}
}

// WithTargetOffset 设置动作点相对匹配中心的偏移
func WithTargetOffset(dx, dy int) PatternOption {
	return func(p *Pattern) {
		p.offset = Point{X: dx, Y: dy}
	}
}

// WithName 设置模板名称（用于日志和错误信息）
func WithName(name string) PatternOption {
	return func(p *Pattern) {
		p.name = name
	}
}

// WithRGB 启用 RGB 三通道校验
func WithRGB(rgb bool) PatternOption {
	return func(p *Pattern) {
		p.rgb = rgb
	}
}

// Similar 返回使用新阈值的副本，共享模板和统计缓存
func (p *Pattern) Similar(similarity float64) *Pattern {
	cp := *p
	cp.similarity = clampUnit(similarity, DefaultSimilarity)
	return &cp
}

// TargetOffset 返回使用新目标偏移的副本
func (p *Pattern) TargetOffset(dx, dy int) *Pattern {
	cp := *p
	cp.offset = Point{X: dx, Y: dy}
	return &cp
}

// Template 返回模板图像
func (p *Pattern) Template() *PixelBuffer { return p.template }

// Similarity 返回相似度阈值
func (p *Pattern) Similarity() float64 { return p.similarity }

// Offset 返回目标偏移
func (p *Pattern) Offset() Point { return p.offset }

// Name 返回模板名称
func (p *Pattern) Name() string { return p.name }

// RGB 是否启用三通道校验
func (p *Pattern) RGB() bool { return p.rgb }

// Width 返回模板宽度
func (p *Pattern) Width() int { return p.template.width }

// Height 返回模板高度
func (p *Pattern) Height() int { return p.template.height }

// Stats 返回模板统计量，首次调用时计算
func (p *Pattern) Stats() TemplateStats {
	p.load()
	return p.cache.stats
}

func (p *Pattern) plane() *grayPlane {
	p.load()
	return p.cache.plane
}

func (p *Pattern) load() {
	p.cache.once.Do(func() {
		plane := p.template.grayPlaneOf()
		sum := floats.Sum(plane.lum)
		sumSq := floats.Dot(plane.lum, plane.lum)
		n := len(plane.lum)
		mean := sum / float64(n)
		p.cache.plane = plane
		p.cache.stats = TemplateStats{
			Sum:      sum,
			SumSq:    sumSq,
			Count:    n,
			Mean:     mean,
			Variance: sumSq/float64(n) - mean*mean,
			sum:      int64(sum),
			sumSq:    int64(sumSq),
		}
	})
}

func (p *Pattern) String() string {
	return fmt.Sprintf("Pattern(%s %dx%d similar=%.2f)", p.name, p.template.width, p.template.height, p.similarity)
}
