package realign

import (
	"github.com/vbi-informatics/gecore/sam"
)

// readSpan records which half-open range of a candidate's bases a
// particular read's best-scoring placement covers, ported from the
// AlignedRead::readIndexes bookkeeping used to rebuild each read's new
// CIGAR once a winning consensus is chosen.
type readSpan struct {
	read *sam.Alignment
	lo   int
}

// consensus is one candidate alternate reference sequence considered
// during interval cleaning: either a known indel spliced into the
// reference, a read's own indel lifted onto the reference, or a
// Smith-Waterman alignment of a read against the reference window.
type consensus struct {
	seq                []byte
	positionOnRef       int32 // reference position of seq[0] (the padded window's start)
	cigar              []sam.CigarOperation
	mismatchSum        int
	reads              []readSpan
}

func newConsensus(seq []byte, positionOnRef int32, cigar []sam.CigarOperation) *consensus {
	return &consensus{seq: seq, positionOnRef: positionOnRef, cigar: cigar}
}

func (c *consensus) equalSeq(other *consensus) bool {
	return string(c.seq) == string(other.seq)
}

// spliceIndel builds a candidate by inserting (op=I) or deleting
// (op=D) length bases of ref at offset (relative to the padded
// window's start) into a copy of ref, mirroring
// AlignedRead::createIndelString in the GATK-derived cleaner: an
// insertion requires bases to insert (from the read carrying it), a
// deletion only requires the length.
func spliceIndel(ref []byte, offset, length int32, op byte, insertedBases []byte) []byte {
	if offset < 0 || int(offset) > len(ref) {
		return nil
	}
	switch op {
	case 'D':
		end := offset + length
		if int(end) > len(ref) {
			return nil
		}
		out := make([]byte, 0, len(ref)-int(length))
		out = append(out, ref[:offset]...)
		out = append(out, ref[end:]...)
		return out
	case 'I':
		out := make([]byte, 0, len(ref)+len(insertedBases))
		out = append(out, ref[:offset]...)
		out = append(out, insertedBases...)
		out = append(out, ref[offset:]...)
		return out
	default:
		return nil
	}
}

// consensusFromCigar re-derives the alternate reference a read's own
// CIGAR already implies: walk the read's CIGAR against the reference
// window and splice in whatever indel it contains, so
// consensusModel=UseReads can propose "the realignment the aligner
// already tried" as a candidate even when no known-indel record
// covers it.
func consensusFromCigar(ref []byte, refStart int32, read *sam.Alignment) *consensus {
	cigars, err := sam.ScanCigarString(read.CIGAR)
	if err != nil {
		return nil
	}
	offset := read.POS - refStart
	for _, op := range cigars {
		switch op.Operation {
		case 'D':
			alt := spliceIndel(ref, offset, op.Length, 'D', nil)
			if alt == nil {
				return nil
			}
			return newConsensus(alt, refStart, cigars)
		case 'I':
			bases := indelInsertedBases(read, op)
			alt := spliceIndel(ref, offset, op.Length, 'I', bases)
			if alt == nil {
				return nil
			}
			return newConsensus(alt, refStart, cigars)
		case 'M', '=', 'X':
			offset += op.Length
		case 'N':
			offset += op.Length
		}
	}
	return nil
}

// indelInsertedBases pulls the read bases an insertion operation
// consumes, by walking the CIGAR up to that operation.
func indelInsertedBases(read *sam.Alignment, insertOp sam.CigarOperation) []byte {
	cigars, err := sam.ScanCigarString(read.CIGAR)
	if err != nil {
		return nil
	}
	readOffset := int32(0)
	for _, op := range cigars {
		if op == insertOp {
			if int(readOffset+op.Length) > len(read.SEQ) {
				return nil
			}
			return []byte(read.SEQ[readOffset : readOffset+op.Length])
		}
		switch op.Operation {
		case 'M', 'I', 'S', '=', 'X':
			readOffset += op.Length
		}
	}
	return nil
}

// consensusFromKnownIndel builds a candidate from a known-indel
// variant record: ref-length-1 deletions and single-base insertions
// are handled the way VCF represents indels (REF/ALT share an anchor
// base).
func consensusFromKnownIndel(ref []byte, refStart, variantPos int32, refAllele, altAllele string) *consensus {
	offset := variantPos - refStart
	switch {
	case len(refAllele) > len(altAllele):
		length := int32(len(refAllele) - len(altAllele))
		spliceAt := offset + int32(len(altAllele))
		alt := spliceIndel(ref, spliceAt, length, 'D', nil)
		if alt == nil {
			return nil
		}
		cigar := flankedIndelCigar(spliceAt, length, 'D', len(ref))
		return newConsensus(alt, refStart, cigar)
	case len(altAllele) > len(refAllele):
		inserted := []byte(altAllele[len(refAllele):])
		spliceAt := offset + int32(len(refAllele))
		alt := spliceIndel(ref, spliceAt, int32(len(inserted)), 'I', inserted)
		if alt == nil {
			return nil
		}
		cigar := flankedIndelCigar(spliceAt, int32(len(inserted)), 'I', len(ref))
		return newConsensus(alt, refStart, cigar)
	default:
		return nil
	}
}

// flankedIndelCigar builds the CIGAR describing a candidate built by
// splicing a single indel of the given op/length at offset into a
// window of refLen bases: matched bases before the indel, the indel
// itself, matched bases after.
func flankedIndelCigar(offset, length int32, op byte, refLen int) []sam.CigarOperation {
	var ops []sam.CigarOperation
	if offset > 0 {
		ops = append(ops, sam.CigarOperation{Length: offset, Operation: 'M'})
	}
	ops = append(ops, sam.CigarOperation{Length: length, Operation: op})
	after := int32(refLen) - offset
	if op == 'D' {
		after -= length
	}
	if after > 0 {
		ops = append(ops, sam.CigarOperation{Length: after, Operation: 'M'})
	}
	return ops
}
