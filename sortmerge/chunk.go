package sortmerge

import (
	"runtime"
	"sort"
	"sync"

	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/threadpool"
)

// sortChunk sorts buf in place with a stable comparator. When
// singleThreaded is false it partitions buf into
// min(len(buf)/MinParallelSortChunk, cores) contiguous sub-ranges,
// sorts each sub-range concurrently on sortPool, then merges adjacent
// sub-ranges pairwise, pass by pass, until one run remains — the shape read_sorter.cpp's SortJob
// used, ported from per-shard mutex-as-completion-latch to a plain
// WaitGroup since nothing here needs the shard's own lock, only a
// join point.
func sortChunk(buf []*sam.Alignment, less sam.By, singleThreaded bool, sortPool *threadpool.Pool) {
	n := len(buf)
	if n < 2 {
		return
	}
	shards := n / MinParallelSortChunk
	if cores := runtime.GOMAXPROCS(0); shards > cores {
		shards = cores
	}
	if singleThreaded || shards < 2 {
		sort.SliceStable(buf, func(i, j int) bool { return less(buf[i], buf[j]) })
		return
	}

	bounds := make([]int, shards+1)
	for i := 0; i <= shards; i++ {
		bounds[i] = i * n / shards
	}

	var wg sync.WaitGroup
	for i := 0; i < shards; i++ {
		lo, hi := bounds[i], bounds[i+1]
		wg.Add(1)
		sortPool.Add(func() {
			defer wg.Done()
			sub := buf[lo:hi]
			sort.SliceStable(sub, func(i, j int) bool { return less(sub[i], sub[j]) })
		})
	}
	wg.Wait()

	// Pairwise in-place merge, front to back: each pass merges runs 2k
	// and 2k+1 into one, halving the number of sorted runs, as the
	// teacher's read sorter merges its sub-ranges.
	runs := make([][]*sam.Alignment, shards)
	for i := 0; i < shards; i++ {
		runs[i] = buf[bounds[i]:bounds[i+1]]
	}
	for len(runs) > 1 {
		next := make([][]*sam.Alignment, 0, (len(runs)+1)/2)
		for i := 0; i < len(runs); i += 2 {
			if i+1 == len(runs) {
				next = append(next, runs[i])
				continue
			}
			next = append(next, mergeTwo(runs[i], runs[i+1], less))
		}
		runs = next
	}
}

// mergeTwo merges two adjacent, already-sorted, contiguous slices of
// the same backing array into a freshly allocated, sorted slice
// covering the same span, then copies the result back in place so the
// backing array stays the single source of truth.
func mergeTwo(a, b []*sam.Alignment, less sam.By) []*sam.Alignment {
	merged := make([]*sam.Alignment, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if !less(b[j], a[i]) {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)

	copy(a, merged[:len(a)])
	copy(b, merged[len(a):])
	return a[:len(a)+len(b)] // a and b are adjacent, so this is the now-merged span of the backing array
}
