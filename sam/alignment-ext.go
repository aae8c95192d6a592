package sam

import (
	"strconv"
	"strings"

	"github.com/vbi-informatics/gecore/utils"
)

// MATEREFID mirrors REFID: the mate's reference id, resolved once from
// RNEXT against the same dictionary used for REFID, so mate-fixing and
// sort comparators never touch strings.
var MATEREFID = utils.Intern("MATEREFID")

func (aln *Alignment) MateREFID() int32 {
	refid, ok := aln.Temps.Get(MATEREFID)
	if !ok {
		return -1
	}
	return refid.(int32)
}

func (aln *Alignment) SetMateREFID(refid int32) {
	aln.Temps.Set(MATEREFID, refid)
}

// FILEINDEX records which input file (by position in the argument
// list) an alignment came from, giving multi-file merges a stable
// source order to break ties on even though files are read one at a
// time rather than truly interleaved.
var FILEINDEX = utils.Intern("FILEINDEX")

func (aln *Alignment) FileIndex() int32 {
	idx, ok := aln.Temps.Get(FILEINDEX)
	if !ok {
		return 0
	}
	return idx.(int32)
}

func (aln *Alignment) SetFileIndex(idx int32) {
	aln.Temps.Set(FILEINDEX, idx)
}

// Semantic aliases used by the mate-fixing and realignment packages,
// which read more naturally in terms of "paired"/"mapped" than the
// underlying FLAG-bit names.
func (aln *Alignment) IsPaired() bool     { return aln.IsMultiple() }
func (aln *Alignment) IsMapped() bool     { return !aln.IsUnmapped() }
func (aln *Alignment) IsMateMapped() bool { return !aln.IsNextUnmapped() }

// ReferenceLengthFromCigar sums the lengths of all CIGAR operations that
// consume reference bases, i.e. the number of bases an alignment spans
// on the reference.
func ReferenceLengthFromCigar(cigars []CigarOperation) int32 {
	var length int32
	for _, op := range cigars {
		if operatorConsumesReferenceBases(op.Operation) {
			length += op.Length
		}
	}
	return length
}

// ReadLengthFromCigar sums the lengths of all CIGAR operations that
// consume read bases.
func ReadLengthFromCigar(cigars []CigarOperation) int32 {
	return readLengthFromCigar(cigars)
}

// End returns the last reference base covered by aln, inclusive.
func (aln *Alignment) End() int32 {
	cigars, err := ScanCigarString(aln.CIGAR)
	if err != nil {
		return aln.POS
	}
	return end(aln, cigars)
}

// FormatCigar renders a CIGAR operation slice back to its string form,
// the inverse of ScanCigarString, needed wherever a new CIGAR is
// computed rather than parsed from input.
func FormatCigar(ops []CigarOperation) string {
	if len(ops) == 0 {
		return "*"
	}
	var b strings.Builder
	for _, op := range ops {
		b.WriteString(strconv.FormatInt(int64(op.Length), 10))
		b.WriteByte(op.Operation)
	}
	return b.String()
}

// GetTag looks up a tag by its two-letter SAM code, interning the code
// on first use.
func (aln *Alignment) GetTag(code string) (interface{}, bool) {
	return aln.TAGS.Get(utils.Intern(code))
}

// SetTag sets a tag by its two-letter SAM code.
func (aln *Alignment) SetTag(code string, value interface{}) {
	aln.TAGS.Set(utils.Intern(code), value)
}

// RemoveTag deletes a tag by its two-letter SAM code, if present.
func (aln *Alignment) RemoveTag(code string) {
	aln.TAGS, _ = aln.TAGS.Delete(utils.Intern(code))
}
