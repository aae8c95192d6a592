package realign

import (
	"sync"
	"testing"

	"github.com/willf/bitset"

	"github.com/vbi-informatics/gecore/locus"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/vcf"
)

func testRead(name string, pos int32, cigar, seq string) *sam.Alignment {
	a := sam.NewAlignment()
	a.QNAME = name
	a.FLAG = sam.Multiple
	a.SetREFID(0)
	a.POS = pos
	a.MAPQ = 60
	a.CIGAR = cigar
	a.SEQ = seq
	a.QUAL = repeatByte('I', len(seq)) // 'I' - 33 == 40, a typical Illumina quality
	return a
}

func repeatByte(b byte, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return string(buf)
}

func TestQualifiesForCleaningRejectsLowMapqAndSplicedReads(t *testing.T) {
	binLoc := locus.New(0, 100, 200)

	good := testRead("r1", 120, "50M", repeatByte('A', 50))
	if !qualifiesForCleaning(good, binLoc) {
		t.Fatalf("expected a well-mapped overlapping read to qualify")
	}

	lowMapq := testRead("r2", 120, "50M", repeatByte('A', 50))
	lowMapq.MAPQ = 0
	if qualifiesForCleaning(lowMapq, binLoc) {
		t.Fatalf("MAPQ 0 should not qualify")
	}

	spliced := testRead("r3", 120, "20M100N30M", repeatByte('A', 50))
	if qualifiesForCleaning(spliced, binLoc) {
		t.Fatalf("a CIGAR with an N operator should not qualify")
	}

	secondary := testRead("r4", 120, "50M", repeatByte('A', 50))
	secondary.FLAG |= sam.Secondary
	if qualifiesForCleaning(secondary, binLoc) {
		t.Fatalf("a secondary alignment should not qualify")
	}

	outside := testRead("r5", 500, "50M", repeatByte('A', 50))
	if qualifiesForCleaning(outside, binLoc) {
		t.Fatalf("a read outside the bin's locus should not qualify")
	}
}

func TestSpliceIndelDeletionAndInsertion(t *testing.T) {
	ref := []byte("AAAACCCCGGGGTTTT")

	del := spliceIndel(ref, 4, 4, 'D', nil)
	if string(del) != "AAAAGGGGTTTT" {
		t.Fatalf("expected deletion to remove the spliced span, got %q", del)
	}

	ins := spliceIndel(ref, 4, 3, 'I', []byte("NNN"))
	if string(ins) != "AAAANNNCCCCGGGGTTTT" {
		t.Fatalf("expected insertion to splice in the extra bases, got %q", ins)
	}
}

func TestConsensusFromKnownIndelDeletion(t *testing.T) {
	ref := []byte("AAAACCCCGGGGTTTT")
	// ref[0] sits at position 1, so REF=ACCCC, ALT=A at position 4
	// anchors on ref[3] and describes a 4-base deletion starting right
	// after the shared anchor base.
	c := consensusFromKnownIndel(ref, 1, 4, "ACCCC", "A")
	if c == nil {
		t.Fatal("expected a deletion consensus")
	}
	if string(c.seq) != "AAAAGGGGTTTT" {
		t.Fatalf("unexpected deletion consensus sequence %q", c.seq)
	}
}

func TestUpdateReadAndRestoreOriginalRoundTrip(t *testing.T) {
	read := testRead("r1", 110, "50M", repeatByte('A', 50))
	originalCigar, originalPos := read.CIGAR, read.POS

	cigar := []sam.CigarOperation{{Length: 20, Operation: 'M'}, {Length: 4, Operation: 'D'}, {Length: 30, Operation: 'M'}}
	ok := updateRead(cigar, 0, 10, read, 100, false, 200)
	if !ok {
		t.Fatal("expected updateRead to succeed")
	}
	if read.CIGAR == originalCigar && read.POS == originalPos {
		t.Fatal("expected updateRead to change CIGAR or position")
	}

	oc, ok := read.GetTag("OC")
	if !ok || oc.(string) != originalCigar {
		t.Fatalf("expected OC tag to record original cigar %q, got %v", originalCigar, oc)
	}

	if !restoreOriginal(read) {
		t.Fatal("expected restoreOriginal to succeed")
	}
	if read.CIGAR != originalCigar || read.POS != originalPos {
		t.Fatalf("restoreOriginal did not recover original placement: cigar=%s pos=%d", read.CIGAR, read.POS)
	}
}

func TestUpdateReadSuppressedTagsOmitsOCOP(t *testing.T) {
	read := testRead("r1", 110, "50M", repeatByte('A', 50))
	cigar := []sam.CigarOperation{{Length: 50, Operation: 'M'}}
	updateRead(cigar, 0, 0, read, 100, true, 200)

	if _, ok := read.GetTag("OC"); ok {
		t.Fatal("expected no OC tag when tags are suppressed")
	}
}

func TestUpdateReadRejectsShiftBeyondMovementCap(t *testing.T) {
	read := testRead("r1", 110, "50M", repeatByte('A', 50))
	originalCigar, originalPos := read.CIGAR, read.POS

	// leftmostIndex=100, altPositionOnRef=50, myPositionOnAlt=10 implies
	// newStart=160, a 50bp move from the read's current POS of 110 — well
	// past a max_pos_move_allowed of 10.
	cigar := []sam.CigarOperation{{Length: 20, Operation: 'M'}, {Length: 4, Operation: 'D'}, {Length: 30, Operation: 'M'}}
	ok := updateRead(cigar, 50, 10, read, 100, false, 10)
	if ok {
		t.Fatal("expected updateRead to reject a shift exceeding max_pos_move_allowed")
	}
	if read.CIGAR != originalCigar || read.POS != originalPos {
		t.Fatalf("rejected update must leave the read untouched: cigar=%s pos=%d", read.CIGAR, read.POS)
	}
}

func TestSmithWatermanFindsSimpleDeletion(t *testing.T) {
	ref := []byte("ACGTACGTACGTTTTTACGTACGTACGT")
	query := []byte("ACGTACGTACGTACGTACGTACGT") // ref with the TTTT run removed

	cigar, _ := smithWaterman(query, ref)
	if len(cigar) == 0 {
		t.Fatal("expected a non-empty alignment")
	}
	var hasDeletion bool
	for _, op := range cigar {
		if op.Operation == 'D' {
			hasDeletion = true
		}
	}
	if !hasDeletion {
		t.Fatalf("expected the alignment to explain the missing run with a deletion, got %v", cigar)
	}
}

func TestCleanRunsOnKnownDeletionBin(t *testing.T) {
	// Reference window: 42 bases starting at position 1000, with one
	// known 4-base deletion record added to the bin. The single read is
	// copied straight from the reference window.
	ref := []byte("AAAAAAAAAACCCCGGGGGGGGGGTTTTTTTTTTAAAAAAAA")
	refStart := int32(1000)

	b := newBin(locus.New(0, 1000, 1042))
	b.addKnownIndel(0, vcf.Variant{Chrom: "chr1", Pos: 1010, Ref: "ACCCC", Alt: []string{"A"}})

	opts := DefaultOptions()
	opts.LODThreshold = 1.0
	opts.MismatchThreshold = 1.0

	b.readsToClean = []*sam.Alignment{
		testRead("d1", 1005, "30M", string(ref[5:35])),
	}

	// This locks down that clean() runs to completion on a realistic
	// known-indel bin without panicking; the exact accept/reject decision
	// depends on the scoring details already exercised by the tests above.
	clean(b, ref, refStart, opts)
}

func TestEmitQueueReleasesStrictlyInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int

	q := newEmitQueue(func(batch []*sam.Alignment, modified *bitset.BitSet) {
		mu.Lock()
		defer mu.Unlock()
		for _, a := range batch {
			got = append(got, int(a.POS))
		}
	})

	o0 := q.reserve()
	o1 := q.reserve()
	o2 := q.reserve()

	mk := func(pos int32) []*sam.Alignment {
		a := sam.NewAlignment()
		a.POS = pos
		return []*sam.Alignment{a}
	}

	// submit out of order: 2, 0, 1
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.submit(o2, mk(2), nil)
	}()
	q.submit(o0, mk(0), nil)
	q.submit(o1, mk(1), nil)
	wg.Wait()
	q.close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("expected strictly ordered release [0 1 2], got %v", got)
	}
}
