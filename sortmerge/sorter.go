package sortmerge

import (
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/threadpool"
)

// Stage builds the external-merge-sort module's Loop: accumulate
// alignments from the input queue into a buffer, spilling full
// buffers to temp files on spillPool (sorted first, using sortPool
// for the in-chunk parallel sort shards — two pools so a burst of
// spills never starves sort shards or vice versa), then k-way merge
// every spilled run back out through PutOutput.
//
// If only one chunk was ever accumulated (input fit in memory), it is
// sorted and emitted directly without touching disk.
func Stage(opts Options, spillPool, sortPool *threadpool.Pool) pipeline.Loop {
	opts = opts.withDefaults()
	less := Comparator(opts.Order)

	return func(m *pipeline.Module) int {
		var (
			mu      sync.Mutex
			spilled = make(map[int]string) // chunk index -> temp file path
			wg      sync.WaitGroup
			failed  int32
		)

		spill := func(idx int, chunk []*sam.Alignment) {
			defer wg.Done()
			sortChunk(chunk, less, opts.SingleThreaded, sortPool)
			path, err := writeTempFile(opts.TempDir, opts.CompressTempFiles, chunk)
			if err != nil {
				log.Println("sort: spill failed:", err)
				atomic.StoreInt32(&failed, 1)
				return
			}
			mu.Lock()
			spilled[idx] = path
			mu.Unlock()
		}
		// submit takes idx and chunk as arguments, so the job spills the
		// chunk it was handed even after the caller reuses its variables.
		submit := func(idx int, chunk []*sam.Alignment) {
			wg.Add(1)
			spillPool.Add(func() { spill(idx, chunk) })
		}

		var buf []*sam.Alignment
		var firstChunk []*sam.Alignment
		chunkCount := 0
		for {
			aln, ok := m.GetInput()
			if !ok {
				break
			}
			buf = append(buf, aln)
			if len(buf) >= opts.AlignmentsPerTempFile {
				chunk := buf
				buf = nil
				chunkCount++
				if chunkCount == 1 {
					// Keep the possibility of an in-memory-only run open
					// until we know whether a second chunk ever arrives.
					firstChunk = chunk
					continue
				}
				if firstChunk != nil {
					submit(0, firstChunk)
					firstChunk = nil
				}
				submit(chunkCount-1, chunk)
			}
		}
		if len(buf) > 0 {
			chunkCount++
			if chunkCount == 1 {
				firstChunk = buf
			} else {
				if firstChunk != nil {
					submit(0, firstChunk)
					firstChunk = nil
				}
				submit(chunkCount-1, buf)
			}
		}

		if chunkCount <= 1 {
			// Single chunk (or none): sort and emit directly, no temp files.
			sortChunk(firstChunk, less, opts.SingleThreaded, sortPool)
			for _, a := range firstChunk {
				m.PutOutput(a)
			}
			return 0
		}

		wg.Wait()
		if atomic.LoadInt32(&failed) != 0 {
			return 1
		}

		// Runs are listed in input order, so the merge's tie-break by run
		// id keeps equal keys in source order across chunks.
		tempPaths := make([]string, 0, chunkCount)
		for i := 0; i < chunkCount; i++ {
			tempPaths = append(tempPaths, spilled[i])
		}

		if err := mergeRuns(tempPaths, opts.CompressTempFiles, less, m.PutOutput); err != nil {
			log.Println("sort: merge failed:", err)
			for _, p := range tempPaths {
				os.Remove(p)
			}
			return 1
		}
		return 0
	}
}
