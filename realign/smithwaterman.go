package realign

import "github.com/vbi-informatics/gecore/sam"

// swScores are the affine-gap scoring parameters for the alternate
// consensus search; values follow GATK's IndelRealigner defaults.
const (
	swMatch    = 30
	swMismatch = -10
	swGapOpen  = -10
	swGapExtend = -2
)

// smithWaterman computes a full (unbanded — these windows are at most
// a few hundred bases) affine-gap local alignment of query against
// ref, returning the CIGAR of the best-scoring alignment and the
// reference offset where it starts.
//
// This is consensusModel=UseSW's candidate source: spec.md leaves the
// exact DP out of detailed scope and describes it only as a pure
// (reads, ref) -> candidates function, so this is a standard
// Gotoh-style affine-gap DP, not ported from any one example file.
func smithWaterman(query, ref []byte) (cigar []sam.CigarOperation, refOffset int32) {
	n, m := len(query), len(ref)
	if n == 0 || m == 0 {
		return nil, 0
	}

	const negInf = -1 << 30
	// h = best local score ending at (i, j), e = ending with a gap in
	// query (a ref base consumed alone: deletion), f = ending with a gap
	// in ref (a query base consumed alone: insertion).
	h := make([][]int, n+1)
	e := make([][]int, n+1)
	f := make([][]int, n+1)
	for i := range h {
		h[i] = make([]int, m+1)
		e[i] = make([]int, m+1)
		f[i] = make([]int, m+1)
	}

	best, bi, bj := 0, 0, 0
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			e[i][j] = max2(h[i][j-1]+swGapOpen, e[i][j-1]+swGapExtend)
			f[i][j] = max2(h[i-1][j]+swGapOpen, f[i-1][j]+swGapExtend)
			score := swMismatch
			if toUpperBase(query[i-1]) == toUpperBase(ref[j-1]) {
				score = swMatch
			}
			diag := h[i-1][j-1] + score
			h[i][j] = max3(0, diag, max2(e[i][j], f[i][j]))
			if h[i][j] > best {
				best, bi, bj = h[i][j], i, j
			}
		}
	}
	if best == 0 {
		return nil, 0
	}

	// Trace back from (bi, bj) to a zero cell, emitting CIGAR ops in
	// reverse, then flip.
	i, j := bi, bj
	var ops []sam.CigarOperation
	push := func(op byte) {
		if n := len(ops); n > 0 && ops[n-1].Operation == op {
			ops[n-1].Length++
			return
		}
		ops = append(ops, sam.CigarOperation{Length: 1, Operation: op})
	}
	for i > 0 && j > 0 && h[i][j] > 0 {
		score := swMismatch
		if toUpperBase(query[i-1]) == toUpperBase(ref[j-1]) {
			score = swMatch
		}
		switch {
		case h[i][j] == h[i-1][j-1]+score:
			push('M')
			i--
			j--
		case h[i][j] == e[i][j]:
			push('D')
			j--
		case h[i][j] == f[i][j]:
			push('I')
			i--
		default:
			i, j = 0, 0
		}
	}
	refOffset = int32(j)
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops, refOffset
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c int) int {
	return max2(a, max2(b, c))
}
