package matefix

import "github.com/vbi-informatics/gecore/sam"

// fivePrimePosition returns the 5' coordinate of an alignment: its end
// position if reversed, its start otherwise.
func fivePrimePosition(a *sam.Alignment) int32 {
	if a.IsReversed() {
		return a.End()
	}
	return a.POS
}

// computeInsertSize derives the signed distance between two mapped,
// same-contig mates' 5' ends, with the ±1 adjustment that makes the
// value agree with the half-open convention callers expect: when the
// second end's 5' position is at or past the first end's, the
// adjustment is +1, otherwise -1.
func computeInsertSize(first, second *sam.Alignment) int32 {
	if !first.IsMapped() || !second.IsMapped() {
		return 0
	}
	if first.REFID() != second.REFID() {
		return 0
	}

	firstFive := fivePrimePosition(first)
	secondFive := fivePrimePosition(second)

	adjustment := int32(-1)
	if secondFive >= firstFive {
		adjustment = 1
	}
	return secondFive - firstFive + adjustment
}

// setMateInfo rewrites rec1 and rec2's mate-facing fields from each
// other: reference id, position, strand, the mapped flag, and the MQ
// tag copied from the partner's mapping quality. When both are
// unmapped their coordinates are cleared instead. The resulting
// insert size is written to both, normalized by one unit toward zero
// and negated between the two mates.
func setMateInfo(rec1, rec2 *sam.Alignment) {
	switch {
	case rec1.IsMapped() && rec2.IsMapped():
		copyMateFields(rec1, rec2)
		copyMateFields(rec2, rec1)
	case !rec1.IsMapped() && !rec2.IsMapped():
		rec1.SetREFID(-1)
		rec1.POS = 0
		rec2.SetREFID(-1)
		rec2.POS = 0
		copyMateFields(rec1, rec2)
		copyMateFields(rec2, rec1)
	case rec1.IsMapped():
		rec2.SetREFID(rec1.REFID())
		rec2.POS = rec1.POS
		copyMateFields(rec1, rec2)
		copyMateFields(rec2, rec1)
	default:
		rec1.SetREFID(rec2.REFID())
		rec1.POS = rec2.POS
		copyMateFields(rec1, rec2)
		copyMateFields(rec2, rec1)
	}

	insertSize := computeInsertSize(rec1, rec2)
	if insertSize > 0 {
		insertSize--
	} else if insertSize < 0 {
		insertSize++
	}
	rec1.TLEN = insertSize
	rec2.TLEN = -insertSize
}

// copyMateFields writes self's own reference/strand/mapped-state onto
// other's mate-facing fields, and stamps other's MQ tag with self's
// mapping quality — the half of setMateInfo that makes other point at
// self.
func copyMateFields(self, other *sam.Alignment) {
	other.SetMateREFID(self.REFID())
	other.PNEXT = self.POS
	if self.IsReversed() {
		other.FLAG |= sam.NextReversed
	} else {
		other.FLAG &^= sam.NextReversed
	}
	if self.IsMapped() {
		other.FLAG &^= sam.NextUnmapped
	} else {
		other.FLAG |= sam.NextUnmapped
	}
	other.SetTag("MQ", self.MAPQ)
}
