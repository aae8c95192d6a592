package realign

import (
	"strconv"

	"github.com/vbi-informatics/gecore/sam"
)

// updateRead rewrites read's CIGAR and start position to reflect its
// placement against the winning consensus, preserving the original
// values as OC/OP tags (unless suppressed) so the change is
// reversible. altCigar/altPositionOnRef describe the consensus's own
// placement on the reference; myPositionOnAlt is where this read's
// bases were found within the consensus sequence; leftmostIndex is
// the reference coordinate of the consensus window's first base.
// maxPosMoveAllowed bounds how far newStart may lie from read's
// current position: a candidate that would move the read further than
// that is rejected outright and read is left untouched, per the
// mate-fixing movement-bound invariant.
func updateRead(altCigar []sam.CigarOperation, altPositionOnRef int32, myPositionOnAlt int32, read *sam.Alignment, leftmostIndex int32, suppressTags bool, maxPosMoveAllowed int32) bool {
	newStart := leftmostIndex + altPositionOnRef + myPositionOnAlt
	if move := newStart - read.POS; move > maxPosMoveAllowed || move < -maxPosMoveAllowed {
		return false
	}
	newCigar := rebaseCigar(altCigar, myPositionOnAlt, int32(len(read.SEQ)))
	if newCigar == nil {
		return false
	}

	if !suppressTags {
		read.SetTag("OC", read.CIGAR)
		read.SetTag("OP", read.POS)
	}
	read.CIGAR = sam.FormatCigar(newCigar)
	read.POS = newStart
	return true
}

// rebaseCigar extracts the portion of a consensus's CIGAR that covers
// [offset, offset+readLen) of the consensus sequence, clipping soft
// clips at the boundaries the way a read placed inside a larger
// consensus alignment needs.
func rebaseCigar(consensusCigar []sam.CigarOperation, offset, readLen int32) []sam.CigarOperation {
	if len(consensusCigar) == 0 {
		return []sam.CigarOperation{{Length: readLen, Operation: 'M'}}
	}
	var out []sam.CigarOperation
	pos := int32(0)
	remaining := readLen
	for _, op := range consensusCigar {
		if remaining <= 0 {
			break
		}
		consumesQuery := op.Operation == 'M' || op.Operation == 'I' || op.Operation == '=' || op.Operation == 'X'
		length := op.Length
		if consumesQuery {
			if pos+length <= offset {
				pos += length
				continue
			}
			start := int32(0)
			if pos < offset {
				start = offset - pos
			}
			take := length - start
			if take > remaining {
				take = remaining
			}
			if take > 0 {
				out = append(out, sam.CigarOperation{Length: take, Operation: op.Operation})
				remaining -= take
			}
			pos += length
		} else {
			if pos >= offset {
				out = append(out, op)
			}
		}
	}
	if remaining > 0 {
		out = append(out, sam.CigarOperation{Length: remaining, Operation: 'M'})
	}
	return mergeAdjacentOps(out)
}

func mergeAdjacentOps(ops []sam.CigarOperation) []sam.CigarOperation {
	var out []sam.CigarOperation
	for _, op := range ops {
		if n := len(out); n > 0 && out[n-1].Operation == op.Operation {
			out[n-1].Length += op.Length
			continue
		}
		out = append(out, op)
	}
	return out
}

// restoreOriginal applies a previously recorded OC/OP pair back onto
// read, the inverse of updateRead — used only by tests to check the
// OC/OP tag law.
func restoreOriginal(read *sam.Alignment) bool {
	oc, ok := read.GetTag("OC")
	if !ok {
		return false
	}
	op, ok := read.GetTag("OP")
	if !ok {
		return false
	}
	cigar, ok := oc.(string)
	if !ok {
		return false
	}
	var pos int32
	switch v := op.(type) {
	case int32:
		pos = v
	case int:
		pos = int32(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return false
		}
		pos = int32(n)
	default:
		return false
	}
	read.CIGAR = cigar
	read.POS = pos
	return true
}
