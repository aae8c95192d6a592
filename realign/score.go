package realign

import (
	"github.com/exascience/pargo/parallel"

	"github.com/vbi-informatics/gecore/sam"
)

// mismatchQualitySum sums the base qualities of every position where
// read, placed at offset bases into candidate, disagrees with
// candidate — the per-read cost GATK's cleaner minimizes. best is the
// lowest sum this read has reached so far at another offset; once the
// partial sum exceeds it, scoring stops early, since this offset can
// no longer be the read's best placement.
func mismatchQualitySum(read *sam.Alignment, candidate []byte, offset int32, best int) int {
	seq := read.SEQ
	qual := read.QUAL
	sum := 0
	for i := 0; i < len(seq); i++ {
		pos := offset + int32(i)
		if pos < 0 || int(pos) >= len(candidate) {
			continue
		}
		if toUpperBase(seq[i]) != toUpperBase(candidate[pos]) {
			q := 30
			if i < len(qual) && qual != "*" {
				q = int(qual[i]) - 33
			}
			sum += q
			if sum > best {
				return sum
			}
		}
	}
	return sum
}

func toUpperBase(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

const scoreReadsGrainSize = 64

// readOffset records, for one read scored against one candidate, the
// best-placement offset into the candidate sequence and the mismatch
// quality sum that placement cost.
type readOffset struct {
	offset int32
	score  int
}

// scoreReads places every read in reads against candidate in
// parallel, grounded on the teacher's use of parallel.Range for
// per-read work over a read batch (sam/sam-types.go's sorter uses the
// same pargo package for its own parallel split). Each read's mismatch
// search is independent of every other read's, so the grain size only
// needs to amortize goroutine overhead, not coordinate shared state.
func scoreReads(reads []*sam.Alignment, candidate []byte, candidateStart int32, searchRadius int32) ([]readOffset, int) {
	results := make([]readOffset, len(reads))
	parallel.Range(0, len(reads), scoreReadsGrainSize, func(low, high int) {
		for i := low; i < high; i++ {
			offset, score := findBestOffset(reads[i], candidate, candidateStart, searchRadius)
			results[i] = readOffset{offset: offset, score: score}
		}
	})
	total := 0
	for _, r := range results {
		total += r.score
	}
	return results, total
}

// findBestOffset scans a bounded window of offsets around a read's
// position on the candidate, returning the offset with the lowest
// mismatch sum. Ties prefer the offset closest to the read's original
// position, matching the tie-break spec calls out for indel-offset
// search.
func findBestOffset(read *sam.Alignment, candidate []byte, candidateStart int32, searchRadius int32) (bestOffset int32, bestScore int) {
	original := read.POS - candidateStart
	bestOffset = original
	bestScore = mismatchQualitySum(read, candidate, original, 1<<30)
	for d := int32(1); d <= searchRadius; d++ {
		for _, cand := range [2]int32{original - d, original + d} {
			score := mismatchQualitySum(read, candidate, cand, bestScore)
			if score < bestScore {
				bestScore = score
				bestOffset = cand
			}
		}
	}
	return bestOffset, bestScore
}
