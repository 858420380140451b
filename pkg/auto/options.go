package auto

import (
	"time"

	"github.com/zoeyai/zoeymatch/pkg/config"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Option 配置选项函数类型
type Option func(*Options)

// Options 自动化操作配置
type Options struct {
	// Timeout 查找超时，0 表示只尝试一次
	Timeout time.Duration
	// PollInterval 两次查找之间的间隔
	PollInterval time.Duration
	// Similarity 覆盖模板自带的阈值，0 表示使用模板阈值
	Similarity float64
	// Region 搜索区域 (nil 表示全屏)
	Region *cv.Region
	// Grid 点击匹配区域内的网格位置，格式 rows.cols.row.col
	Grid string
	// DoubleClick 是否双击
	DoubleClick bool
	// RightClick 是否右键点击
	RightClick bool
}

// DefaultOptions 默认配置
func DefaultOptions() *Options {
	return &Options{
		Timeout:      config.DefaultFindTimeoutMs * time.Millisecond,
		PollInterval: config.DefaultPollIntervalMs * time.Millisecond,
	}
}

// OptionsFromConfig 由持久化配置生成默认选项
func OptionsFromConfig(cfg *config.MatchConfig) *Options {
	return &Options{
		Timeout:      cfg.FindTimeout(),
		PollInterval: cfg.PollInterval(),
	}
}

// ApplyOptions 应用配置选项
func ApplyOptions(opts ...Option) *Options {
	return DefaultOptions().Apply(opts...)
}

// Apply 在当前配置上应用选项，返回新副本
func (o *Options) Apply(opts ...Option) *Options {
	c := *o
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// WithTimeout 设置超时时间
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.PollInterval = d
	}
}

// WithSimilarity 设置匹配阈值
func WithSimilarity(s float64) Option {
	return func(o *Options) {
		o.Similarity = s
	}
}

// WithRegion 设置搜索区域
func WithRegion(x, y, width, height int) Option {
	return func(o *Options) {
		r := cv.NewRegion(x, y, width, height)
		o.Region = &r
	}
}

// WithGrid 设置网格点击位置
func WithGrid(grid string) Option {
	return func(o *Options) {
		o.Grid = grid
	}
}

// WithDoubleClick 设置双击
func WithDoubleClick() Option {
	return func(o *Options) {
		o.DoubleClick = true
	}
}

// WithRightClick 设置右键点击
func WithRightClick() Option {
	return func(o *Options) {
		o.RightClick = true
	}
}
