// Package config 管理匹配引擎的持久化配置
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// 默认值
const (
	DefaultSimilarity        = 0.7
	DefaultOverlapThreshold  = 0.3
	DefaultChangeThreshold   = 20
	DefaultPollIntervalMs    = 200
	DefaultObserveIntervalMs = 500
	DefaultFindTimeoutMs     = 3000
	DefaultWaitTimeoutMs     = 3000
	DefaultExistsTimeoutMs   = 0
	DefaultLogLevel          = "info"

	// MinObserveIntervalMs 观察循环的最小间隔
	MinObserveIntervalMs = 10
)

// MatchConfig 匹配配置
type MatchConfig struct {
	// Similarity 默认相似度阈值 (0-1)
	Similarity float64 `json:"similarity"`
	// OverlapThreshold NMS 重叠阈值 (0-1)
	OverlapThreshold float64 `json:"overlap_threshold"`
	// ChangeThreshold 变化检测单通道阈值 (0-255)
	ChangeThreshold int `json:"change_threshold"`
	// Workers 并发数，0 表示按 CPU 自动选择
	Workers int `json:"workers"`

	PollIntervalMs    int `json:"poll_interval_ms"`
	ObserveIntervalMs int `json:"observe_interval_ms"`
	FindTimeoutMs     int `json:"find_timeout_ms"`
	WaitTimeoutMs     int `json:"wait_timeout_ms"`
	ExistsTimeoutMs   int `json:"exists_timeout_ms"`

	// LogLevel 日志级别: debug/info/warn/error/off
	LogLevel string `json:"log_level"`
}

// DefaultMatchConfig 默认匹配配置
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Similarity:        DefaultSimilarity,
		OverlapThreshold:  DefaultOverlapThreshold,
		ChangeThreshold:   DefaultChangeThreshold,
		Workers:           0,
		PollIntervalMs:    DefaultPollIntervalMs,
		ObserveIntervalMs: DefaultObserveIntervalMs,
		FindTimeoutMs:     DefaultFindTimeoutMs,
		WaitTimeoutMs:     DefaultWaitTimeoutMs,
		ExistsTimeoutMs:   DefaultExistsTimeoutMs,
		LogLevel:          DefaultLogLevel,
	}
}

// Validate 规范化越界的配置值，返回被修正的字段名
func (c *MatchConfig) Validate() []string {
	var fixed []string
	clamp := func(name string, v *float64, def float64) {
		if math.IsNaN(*v) {
			*v = def
			fixed = append(fixed, name)
		} else if *v < 0 {
			*v = 0
			fixed = append(fixed, name)
		} else if *v > 1 {
			*v = 1
			fixed = append(fixed, name)
		}
	}
	clamp("similarity", &c.Similarity, DefaultSimilarity)
	clamp("overlap_threshold", &c.OverlapThreshold, DefaultOverlapThreshold)

	if c.ChangeThreshold < 0 || c.ChangeThreshold > 255 {
		c.ChangeThreshold = DefaultChangeThreshold
		fixed = append(fixed, "change_threshold")
	}
	if c.Workers < 0 {
		c.Workers = 0
		fixed = append(fixed, "workers")
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
		fixed = append(fixed, "poll_interval_ms")
	}
	if c.ObserveIntervalMs < MinObserveIntervalMs {
		c.ObserveIntervalMs = MinObserveIntervalMs
		fixed = append(fixed, "observe_interval_ms")
	}

	timeouts := []struct {
		name string
		v    *int
	}{
		{"find_timeout_ms", &c.FindTimeoutMs},
		{"wait_timeout_ms", &c.WaitTimeoutMs},
		{"exists_timeout_ms", &c.ExistsTimeoutMs},
	}
	for _, t := range timeouts {
		if *t.v < 0 {
			*t.v = 0
			fixed = append(fixed, t.name)
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
		fixed = append(fixed, "log_level")
	}
	return fixed
}

// EffectiveWorkers 返回实际使用的并发数
func (c *MatchConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers()
}

// PollInterval exists/wait 轮询间隔
func (c *MatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ObserveInterval 观察循环间隔
func (c *MatchConfig) ObserveInterval() time.Duration {
	return time.Duration(c.ObserveIntervalMs) * time.Millisecond
}

// FindTimeout find 超时
func (c *MatchConfig) FindTimeout() time.Duration {
	return time.Duration(c.FindTimeoutMs) * time.Millisecond
}

// WaitTimeout wait 超时
func (c *MatchConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMs) * time.Millisecond
}

// ExistsTimeout exists 超时
func (c *MatchConfig) ExistsTimeout() time.Duration {
	return time.Duration(c.ExistsTimeoutMs) * time.Millisecond
}

var (
	workersOnce sync.Once
	workers     int
)

// DefaultWorkers 返回逻辑 CPU 数，获取失败时退回 GOMAXPROCS
func DefaultWorkers() int {
	workersOnce.Do(func() {
		n, err := cpu.Counts(true)
		if err != nil || n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		workers = min(n, runtime.GOMAXPROCS(0))
	})
	return workers
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器，配置保存在 ~/.zoey-match/config.json
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".zoey-match"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// Load 加载配置，文件不存在时返回默认配置
// 文件中缺失的字段保留默认值
func (m *Manager) Load() (*MatchConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.configFile)
	if os.IsNotExist(err) {
		return DefaultMatchConfig(), nil
	}
	if err != nil {
		return DefaultMatchConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := DefaultMatchConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return DefaultMatchConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.Validate()
	return config, nil
}

// Save 保存配置
func (m *Manager) Save(config *MatchConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.configFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除配置文件失败: %w", err)
	}
	return nil
}

// GetConfigDir 获取配置目录
func (m *Manager) GetConfigDir() string {
	return m.configDir
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*MatchConfig, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(config *MatchConfig) error {
	return defaultManager.Save(config)
}

// Clear 使用默认管理器清除配置
func Clear() error {
	return defaultManager.Clear()
}
