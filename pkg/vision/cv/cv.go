// Package cv 提供屏幕模板匹配引擎
//
// 核心算法:
//   - 归一化互相关 (NCC) 滑窗匹配，窗口统计量由积分图增量得到
//   - 非极大值抑制 (NMS) 去除重叠的重复检测
//   - 像素级变化检测 (ChangeDetector)
//
// 基本用法:
//
//	pattern, err := cv.NewPattern(template, cv.WithSimilarity(0.9))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := cv.NewMatcher().Find(screen, pattern)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if m != nil {
//	    fmt.Printf("找到位置: %s 置信度 %s\n", m.Region, m.ScorePercent())
//	}
//
// 所有匹配函数都是同步、无共享可变状态的，可在多个 goroutine 中并发调用。
package cv
