package realign

import (
	"math"

	"github.com/willf/bitset"

	"github.com/vbi-informatics/gecore/sam"
)

// searchRadius bounds how far findBestOffset scans around a read's
// current placement when scoring it against a candidate consensus —
// realignment never relocates a read further than this from where the
// aligner already put it.
const searchRadius = 20

// cleanResult reports what cleaning an interval's bin produced:
// whether any read was actually repositioned, and which of the bin's
// readsToClean (by index) were.
type cleanResult struct {
	modified *bitset.BitSet
	improved bool
}

// clean runs the GATK-derived consensus search against b's reads:
// build candidate alternate references from known indels and, per
// opts.ConsensusModel, from the reads' own CIGARs and/or a
// Smith-Waterman realignment; score every read against every
// candidate; and, if the best candidate clears both the LOD and
// per-base mismatch thresholds, reposition the reads it improves.
//
// refWindow is the reference sequence spanning
// [refWindowStart, refWindowStart+len(refWindow)), already padded by
// opts.IntervalPad on both sides of b's interval.
func clean(b *bin, refWindow []byte, refWindowStart int32, opts Options) cleanResult {
	reads := b.readsToClean
	if len(reads) == 0 || len(refWindow) == 0 {
		return cleanResult{}
	}
	if len(reads) > opts.MaxReadsForConsensuses {
		reads = reads[:opts.MaxReadsForConsensuses]
	}

	candidates := buildCandidates(b, reads, refWindow, refWindowStart, opts)
	if len(candidates) == 0 {
		return cleanResult{}
	}

	referenceScore := 0
	refOffsets := make([]readOffset, len(b.readsToClean))
	for i, r := range b.readsToClean {
		offset, score := findBestOffset(r, refWindow, refWindowStart, searchRadius)
		refOffsets[i] = readOffset{offset: offset, score: score}
		referenceScore += score
	}

	var (
		best       *consensus
		bestOffsets []readOffset
		bestScore  = referenceScore
	)
	for _, c := range candidates {
		offsets, total := scoreReads(b.readsToClean, c.seq, c.positionOnRef, searchRadius)
		if total < bestScore {
			bestScore = total
			best = c
			bestOffsets = offsets
		}
	}
	if best == nil {
		return cleanResult{}
	}

	lod := lodScore(referenceScore, bestScore)
	if lod < opts.LODThreshold {
		return cleanResult{}
	}

	modified := bitset.New(uint(len(b.readsToClean)))
	improved := false
	for i, read := range b.readsToClean {
		if bestOffsets[i].score >= refOffsets[i].score {
			continue
		}
		if mismatchRate(bestOffsets[i].score, len(read.SEQ)) > opts.MismatchThreshold {
			continue
		}
		if updateRead(best.cigar, best.positionOnRef-refWindowStart, bestOffsets[i].offset, read, refWindowStart, opts.NoOriginalAlignmentTags, opts.MaxPosMoveAllowed) {
			modified.Set(uint(i))
			improved = true
		}
	}
	return cleanResult{modified: modified, improved: improved}
}

// buildCandidates assembles every alternate-reference candidate worth
// scoring: one per known indel overlapping the bin, and — per
// opts.ConsensusModel — one per read's own indel-bearing CIGAR and/or
// one from a Smith-Waterman alignment of the read against the window.
// Candidates are deduplicated by sequence and capped at
// opts.MaxConsensuses, the same bound local_realignment.h enforces on
// its consensus set.
func buildCandidates(b *bin, reads []*sam.Alignment, refWindow []byte, refWindowStart int32, opts Options) []*consensus {
	var candidates []*consensus
	seen := func(c *consensus) bool {
		for _, existing := range candidates {
			if existing.equalSeq(c) {
				return true
			}
		}
		return false
	}
	add := func(c *consensus) bool {
		if c == nil || seen(c) {
			return len(candidates) < opts.MaxConsensuses
		}
		candidates = append(candidates, c)
		return len(candidates) < opts.MaxConsensuses
	}

	for _, ki := range b.knownIndels {
		for _, alt := range ki.variant.Alt {
			if len(ki.variant.Ref) == len(alt) {
				continue
			}
			if !add(consensusFromKnownIndel(refWindow, refWindowStart, ki.variant.Pos, ki.variant.Ref, alt)) {
				return candidates
			}
		}
	}

	if opts.ConsensusModel == KnownsOnly {
		return candidates
	}

	for _, r := range reads {
		if !add(consensusFromCigar(refWindow, refWindowStart, r)) {
			return candidates
		}
	}

	if opts.ConsensusModel != UseSW {
		return candidates
	}
	for _, r := range reads {
		cigar, offset := smithWaterman([]byte(r.SEQ), refWindow)
		if cigar == nil {
			continue
		}
		alt := applyCigarToRef(refWindow, cigar, offset)
		if !add(newConsensus(alt, refWindowStart, cigar)) {
			return candidates
		}
	}
	return candidates
}

// applyCigarToRef reconstructs the alternate sequence a Smith-Waterman
// alignment implies by walking its CIGAR against ref starting at
// offset, passing reference bases through on M and skipping them on D
// — the inverse of the DP's own traceback.
func applyCigarToRef(ref []byte, cigar []sam.CigarOperation, offset int32) []byte {
	pos := offset
	var out []byte
	for _, op := range cigar {
		switch op.Operation {
		case 'M', '=', 'X':
			if int(pos+op.Length) > len(ref) {
				return ref
			}
			out = append(out, ref[pos:pos+op.Length]...)
			pos += op.Length
		case 'D':
			pos += op.Length
		case 'I':
			// insertion bases aren't part of the reference; the
			// candidate still needs filler so offsets stay aligned to
			// the read, using N as a neutral placeholder.
			for i := int32(0); i < op.Length; i++ {
				out = append(out, 'N')
			}
		}
	}
	return out
}

// lodScore converts a reference-vs-candidate quality-sum difference
// into a log10 odds score: each unit of Phred-scaled quality
// corresponds to a factor of 10 in error probability, so the
// difference in summed qualities divided by 10 approximates the log10
// likelihood ratio GATK's IndelRealigner thresholds against.
func lodScore(referenceScore, candidateScore int) float64 {
	return float64(referenceScore-candidateScore) / 10.0
}

func mismatchRate(score, readLen int) float64 {
	if readLen == 0 {
		return 0
	}
	// a mismatching base contributes roughly its quality in the sum;
	// treat 30 as the typical per-base quality to convert the summed
	// cost back into an approximate mismatched-base fraction.
	return math.Min(1.0, float64(score)/30.0/float64(readLen))
}
