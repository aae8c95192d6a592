package realign

import (
	"github.com/willf/bitset"

	"github.com/vbi-informatics/gecore/locus"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/vcf"
)

// knownIndel pairs a variant record with the bit index it was
// assigned in a bin's seenRod set, so a record encountered again
// while scanning overlapping reads is recognized without a second
// linear search.
type knownIndel struct {
	variant vcf.Variant
	bit     uint
}

// bin holds everything loading_interval_data accumulates for one
// realignment interval: the reads that qualify for cleaning, the
// reads that don't, and the known-indel records any of them overlap.
// seenRod tracks which known-indel records have already been folded
// into knownIndels, keyed by each record's position in the caller's
// known-indel feed — a natural fit for willf/bitset since the feed is
// a dense, small, externally-indexed set.
type bin struct {
	loc locus.Locus

	readsToClean    []*sam.Alignment
	readsNotToClean []*sam.Alignment
	knownIndels     []knownIndel

	seenRod *bitset.BitSet
}

func newBin(loc locus.Locus) *bin {
	return &bin{loc: loc, seenRod: bitset.New(64)}
}

func (b *bin) addKnownIndel(idx int, v vcf.Variant) {
	bit := uint(idx)
	if b.seenRod.Test(bit) {
		return
	}
	b.seenRod.Set(bit)
	b.knownIndels = append(b.knownIndels, knownIndel{variant: v, bit: bit})
}

func (b *bin) size() int {
	return len(b.readsToClean) + len(b.readsNotToClean)
}

// qualifiesForCleaning reports whether a read meets spec's criteria
// for entering readsToClean: mapped, primary, MAPQ>0, no N operator in
// its CIGAR, and overlapping the bin. The movement cap isn't checked
// here — it can't be, since a read's eventual shift isn't known until
// a winning consensus has been scored against it — so it's enforced
// where the shift is actually computed, in updateRead.
func qualifiesForCleaning(read *sam.Alignment, binLoc locus.Locus) bool {
	if read.IsUnmapped() || read.IsSecondary() || read.IsSupplementary() {
		return false
	}
	if read.MAPQ == 0 {
		return false
	}
	cigars, err := sam.ScanCigarString(read.CIGAR)
	if err != nil {
		return false
	}
	for _, op := range cigars {
		if op.Operation == 'N' {
			return false
		}
	}
	readLoc := locus.New(read.REFID(), read.POS, read.End())
	return readLoc.Overlaps(binLoc)
}
