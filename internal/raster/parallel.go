package raster

import (
	"runtime"
	"sync"
)

// minRowsPerWorker keeps tiny images on a single goroutine.
const minRowsPerWorker = 16

// ParallelRows splits [0, h) into horizontal stripes and runs fn on each
// stripe concurrently. fn must only write rows inside its stripe so results
// do not depend on scheduling.
func ParallelRows(h int, fn func(y0, y1 int)) {
	if h <= 0 {
		return
	}
	workers := runtime.NumCPU()
	if max := h / minRowsPerWorker; workers > max {
		workers = max
	}
	if workers <= 1 {
		fn(0, h)
		return
	}
	rowsPerWorker := (h + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startY := w * rowsPerWorker
		if startY >= h {
			break
		}
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(startY, endY)
	}
	wg.Wait()
}
