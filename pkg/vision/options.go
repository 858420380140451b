package vision

import (
	"sync"

	"github.com/zoeyai/zoeymatch/pkg/config"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Options 全局配置选项
type Options struct {
	// Similarity 默认匹配阈值
	Similarity float64
	// OverlapThreshold NMS 重叠阈值
	OverlapThreshold float64
	// Workers 并行评分的 worker 数，<= 0 为自动
	Workers int
	// Method 默认匹配后端
	Method MatchMethod
}

// DefaultOptions 默认配置
var DefaultOptions = Options{
	Similarity:       config.DefaultSimilarity,
	OverlapThreshold: config.DefaultOverlapThreshold,
	Method:           MatchMethodNative,
}

var (
	optionsMu     sync.RWMutex
	globalOptions = DefaultOptions
)

// GetOptions 获取当前全局配置的副本
func GetOptions() Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return globalOptions
}

// SetOptions 设置全局配置
func SetOptions(opts Options) {
	optionsMu.Lock()
	defer optionsMu.Unlock()
	globalOptions = opts
}

// ResetOptions 重置为默认配置
func ResetOptions() {
	SetOptions(DefaultOptions)
}

// ApplyConfig 用持久化配置更新全局选项
func ApplyConfig(cfg *config.MatchConfig) {
	opts := GetOptions()
	opts.Similarity = cfg.Similarity
	opts.OverlapThreshold = cfg.OverlapThreshold
	opts.Workers = cfg.EffectiveWorkers()
	SetOptions(opts)
}

// Option 单次匹配的选项
type Option func(*matchConfig)

// matchConfig 匹配时的临时配置
type matchConfig struct {
	similarity float64
	overlap    float64
	workers    int
	maxResults int
	method     MatchMethod
	region     *cv.Region
	rgb        bool
	offset     cv.Point
	name       string
}

// defaultMatchConfig 由全局配置生成
func defaultMatchConfig() *matchConfig {
	g := GetOptions()
	return &matchConfig{
		similarity: g.Similarity,
		overlap:    g.OverlapThreshold,
		workers:    g.Workers,
		method:     g.Method,
	}
}

func buildMatchConfig(opts []Option) *matchConfig {
	cfg := defaultMatchConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSimilarity 设置匹配阈值
func WithSimilarity(similarity float64) Option {
	return func(c *matchConfig) {
		c.similarity = similarity
	}
}

// WithOverlapThreshold 设置 NMS 重叠阈值
func WithOverlapThreshold(overlap float64) Option {
	return func(c *matchConfig) {
		c.overlap = overlap
	}
}

// WithWorkers 设置并行 worker 数
func WithWorkers(workers int) Option {
	return func(c *matchConfig) {
		c.workers = workers
	}
}

// WithMaxResults 限制 FindAll 返回数量
func WithMaxResults(n int) Option {
	return func(c *matchConfig) {
		c.maxResults = n
	}
}

// WithMethod 选择匹配后端
func WithMethod(method MatchMethod) Option {
	return func(c *matchConfig) {
		c.method = method
	}
}

// WithRegion 只在屏幕的该区域内搜索，结果仍为屏幕坐标
func WithRegion(region cv.Region) Option {
	return func(c *matchConfig) {
		c.region = &region
	}
}

// WithRGB 启用三通道校验
func WithRGB(rgb bool) Option {
	return func(c *matchConfig) {
		c.rgb = rgb
	}
}

// WithTargetOffset 设置动作点相对中心的偏移
func WithTargetOffset(dx, dy int) Option {
	return func(c *matchConfig) {
		c.offset = cv.Point{X: dx, Y: dy}
	}
}

// WithName 设置模板名称，用于日志
func WithName(name string) Option {
	return func(c *matchConfig) {
		c.name = name
	}
}
