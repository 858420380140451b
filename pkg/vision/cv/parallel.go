package cv

import (
	"runtime"
	"sync"
)

// defaultWorkers 默认并发数
func defaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// bandCount 计算行带数量
func bandCount(rows, workers int) int {
	if workers < 1 {
		workers = 1
	}
	return max(1, min(workers, rows))
}

// parallelRows 将 [0, rows) 切成连续行带并发执行
// fn 只能写入属于自己 band 下标的输出槽位，因此无需加锁
func parallelRows(rows, workers int, fn func(band, y0, y1 int)) int {
	bands := bandCount(rows, workers)
	if bands == 1 {
		fn(0, 0, rows)
		return 1
	}

	per := rows / bands
	extra := rows % bands

	var wg sync.WaitGroup
	y0 := 0
	for i := 0; i < bands; i++ {
		y1 := y0 + per
		if i < extra {
			y1++
		}
		wg.Add(1)
		go func(band, y0, y1 int) {
			defer wg.Done()
			fn(band, y0, y1)
		}(i, y0, y1)
		y0 = y1
	}
	wg.Wait()
	return bands
}
