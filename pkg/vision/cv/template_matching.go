package cv

import (
	"fmt"
	"time"

	"github.com/zoeyai/zoeymatch/internal/logger"
)

// Matcher 模板匹配器
// 不持有任何可变状态，可被多个 goroutine 共享
type Matcher struct {
	overlapThreshold float64
	minSimilarity    float64
	workers          int
	maxResults       int
}

// MatcherOption 匹配器选项
type MatcherOption func(*Matcher)

// NewMatcher 创建模板匹配器
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		overlapThreshold: DefaultOverlapThreshold,
		workers:          defaultWorkers(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithOverlapThreshold 设置 NMS 重叠阈值
func WithOverlapThreshold(overlap float64) MatcherOption {
	return func(m *Matcher) {
		m.overlapThreshold = clampUnit(overlap, DefaultOverlapThreshold)
	}
}

// WithMinSimilarity 设置匹配器级别的最低相似度，实际阈值取它与模板阈值的较大者
func WithMinSimilarity(similarity float64) MatcherOption {
	return func(m *Matcher) {
		m.minSimilarity = clampUnit(similarity, 0)
	}
}

// WithWorkers 设置并发数，<= 0 时使用 GOMAXPROCS
func WithWorkers(workers int) MatcherOption {
	return func(m *Matcher) {
		if workers <= 0 {
			workers = defaultWorkers()
		}
		m.workers = workers
	}
}

// WithMaxResults 限制 FindAll 返回数量，0 表示不限制
func WithMaxResults(n int) MatcherOption {
	return func(m *Matcher) {
		m.maxResults = max(n, 0)
	}
}

// OverlapThreshold 返回 NMS 重叠阈值
func (m *Matcher) OverlapThreshold() float64 { return m.overlapThreshold }

// Workers 返回并发数
func (m *Matcher) Workers() int { return m.workers }

// Threshold 返回对指定模板生效的阈值
func (m *Matcher) Threshold(p *Pattern) float64 {
	return max(p.similarity, m.minSimilarity)
}

// Find 查找得分最高的位置
// 未找到时返回 (nil, nil)；模板大于屏幕时返回 *DimensionError
func (m *Matcher) Find(screen *PixelBuffer, p *Pattern) (*Match, error) {
	startTime := time.Now()

	if err := m.validate(screen, p); err != nil {
		logger.LogEvent("FIND", false, elapsedMs(startTime), err.Error())
		return nil, err
	}

	threshold := m.Threshold(p)
	var best *Match

	if p.rgb {
		cands := m.verifyRGB(screen, p, threshold, m.candidates(screen, p, threshold))
		for i := range cands {
			if best == nil || cands[i].Score > best.Score {
				best = &cands[i]
			}
		}
	} else {
		for _, r := range m.scan(screen, p, threshold, false) {
			if r.found && (best == nil || r.best.Score > best.Score) {
				b := r.best
				best = &b
			}
		}
	}

	if best == nil {
		logger.LogEvent("FIND", false, elapsedMs(startTime), fmt.Sprintf("%s 未找到", p.name))
		return nil, nil
	}
	logger.LogEvent("FIND", true, elapsedMs(startTime), fmt.Sprintf("%s %s", p.name, best))
	return best, nil
}

// FindAll 查找所有匹配，经 NMS 去重后按得分降序返回
func (m *Matcher) FindAll(screen *PixelBuffer, p *Pattern) ([]Match, error) {
	startTime := time.Now()

	if err := m.validate(screen, p); err != nil {
		logger.LogEvent("ALL", false, elapsedMs(startTime), err.Error())
		return nil, err
	}

	threshold := m.Threshold(p)
	cands := m.candidates(screen, p, threshold)
	if p.rgb {
		cands = m.verifyRGB(screen, p, threshold, cands)
	}

	results := NonMaxSuppression(cands, m.overlapThreshold)
	if m.maxResults > 0 && len(results) > m.maxResults {
		results = results[:m.maxResults]
	}

	logger.LogEvent("ALL", len(results) > 0, elapsedMs(startTime),
		fmt.Sprintf("%s 候选 %d 个, 保留 %d 个", p.name, len(cands), len(results)))
	return results, nil
}

// Score 计算模板在 (x, y) 处的灰度得分，位置越界时返回错误
func (m *Matcher) Score(screen *PixelBuffer, p *Pattern, x, y int) (float64, error) {
	if err := m.validate(screen, p); err != nil {
		return 0, err
	}
	if x < 0 || y < 0 || x+p.Width() > screen.width || y+p.Height() > screen.height {
		return 0, fmt.Errorf("%w: 位置 (%d,%d) 超出可搜索范围", ErrInvalidBuffer, x, y)
	}
	return scoreAt(screen.grayPlaneOf(), p.plane(), p.Stats(), x, y), nil
}

func (m *Matcher) validate(screen *PixelBuffer, p *Pattern) error {
	if screen == nil || p == nil || p.template == nil {
		return fmt.Errorf("%w: 屏幕或模板为空", ErrInvalidBuffer)
	}
	return checkSourceLargerThanSearch(screen, p.template)
}

// bandResult 单个行带的扫描结果
type bandResult struct {
	best  Match
	found bool
	cands []Match
}

// scan 并发扫描所有位置，低于阈值的位置在同一遍中丢弃
func (m *Matcher) scan(screen *PixelBuffer, p *Pattern, threshold float64, collect bool) []bandResult {
	sp := screen.grayPlaneOf()
	tp := p.plane()
	ts := p.Stats()
	tw, th := p.Width(), p.Height()
	rows := screen.height - th + 1
	cols := screen.width - tw + 1

	results := make([]bandResult, bandCount(rows, m.workers))
	parallelRows(rows, m.workers, func(band, y0, y1 int) {
		r := &results[band]
		for y := y0; y < y1; y++ {
			for x := 0; x < cols; x++ {
				score := scoreAt(sp, tp, ts, x, y)
				if score < threshold {
					continue
				}
				mt := Match{
					Region: Region{X: x, Y: y, Width: tw, Height: th},
					Score:  score,
					Offset: p.offset,
				}
				if collect {
					r.cands = append(r.cands, mt)
				}
				// 严格大于：同分时保留光栅顺序中先出现的位置
				if !r.found || score > r.best.Score {
					r.best = mt
					r.found = true
				}
			}
		}
	})
	return results
}

// candidates 收集所有达到阈值的位置，保持光栅顺序
func (m *Matcher) candidates(screen *PixelBuffer, p *Pattern, threshold float64) []Match {
	bands := m.scan(screen, p, threshold, true)
	total := 0
	for _, b := range bands {
		total += len(b.cands)
	}
	cands := make([]Match, 0, total)
	for _, b := range bands {
		cands = append(cands, b.cands...)
	}
	return cands
}

// verifyRGB 用三通道置信度重新打分，保留仍达到阈值的候选
func (m *Matcher) verifyRGB(screen *PixelBuffer, p *Pattern, threshold float64, cands []Match) []Match {
	kept := cands[:0]
	for _, c := range cands {
		c.Score = rgbConfidence(screen, p.template, c.Region.X, c.Region.Y)
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// elapsedMs 返回耗时（毫秒）
func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
