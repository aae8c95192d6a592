package realign

import (
	"log"

	"github.com/willf/bitset"

	"github.com/vbi-informatics/gecore/fasta"
	"github.com/vbi-informatics/gecore/intervals"
	"github.com/vbi-informatics/gecore/locus"
	"github.com/vbi-informatics/gecore/matefix"
	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/threadpool"
	"github.com/vbi-informatics/gecore/vcf"
)

// Config bundles everything a realignment stage needs beyond its
// tuning Options: the declared target intervals to clean (keyed by
// contig name, sorted by Start — typically loaded via
// intervals.FromBedFile/FromVcfFile), known indel records to seed
// candidate consensuses with, the reference sequence to build padded
// windows from, the contig-index-to-name table a pipeline module's
// References() supplies, and the pool cleaning work is dispatched to.
type Config struct {
	Options

	DeclaredIntervals map[string][]intervals.Interval
	KnownIndels       map[string][]vcf.Variant
	Reference         *fasta.MappedFasta
	RefNames          []string

	Pool *threadpool.Pool
	Mgr  *matefix.Manager
}

// NewLoop builds the pipeline.Loop driving local realignment (C7) and
// its emit-queue serializer (C10): reads stream in already sorted by
// coordinate (the upstream merge/sort stage guarantees this); each
// read is classified against the declared interval list and, for
// reads falling inside a still-open interval, accumulated into a bin.
// Closed bins are handed to the thread pool for independent cleaning;
// the emit queue then restores the original interval order before
// forwarding each bin's reads to the mate-fixing manager. The manager's
// own emit callback, supplied by the caller via cfg.Mgr, is this
// pipeline's true sink — the module itself never calls m.PutOutput.
func NewLoop(cfg Config) pipeline.Loop {
	return func(m *pipeline.Module) int {
		s := &streamState{cfg: cfg, curContig: -1}
		s.queue = newEmitQueue(func(batch []*sam.Alignment, modified *bitset.BitSet) {
			if modified == nil && len(batch) == 1 {
				// a lone read no cleaning touched (a pass-through
				// read) is a safe point for the manager to flush
				cfg.Mgr.AddRead(batch[0], false, true)
				return
			}
			cfg.Mgr.AddReads(batch, modified)
		})

		for {
			read, ok := m.GetInput()
			if !ok {
				break
			}
			s.accept(read)
		}
		s.flushContig()
		s.queue.close()
		return 0
	}
}

type streamState struct {
	cfg Config

	queue *emitQueue

	curContig     int32
	curContigName string
	ivIdx         int
	curIntervals  []intervals.Interval

	knownIdx int
	curKnown []vcf.Variant

	bin *bin
}

func (s *streamState) accept(read *sam.Alignment) {
	if read.REFID() != s.curContig {
		s.switchContig(read.REFID())
	}

	if !read.IsUnmapped() {
		for s.ivIdx < len(s.curIntervals) && s.curIntervals[s.ivIdx].End+s.cfg.IntervalPad < read.POS {
			s.closeBin()
			s.ivIdx++
		}
	}

	if s.ivIdx < len(s.curIntervals) {
		iv := s.curIntervals[s.ivIdx]
		binLoc := locus.New(s.curContig, iv.Start, iv.End)
		if locus.New(s.curContig, read.POS, read.End()).Overlaps(binLoc.Pad(s.cfg.IntervalPad)) {
			if s.bin == nil {
				s.bin = newBin(binLoc)
			}
			s.collectKnownIndels(binLoc)
			if qualifiesForCleaning(read, binLoc) {
				s.bin.readsToClean = append(s.bin.readsToClean, read)
			} else {
				s.bin.readsNotToClean = append(s.bin.readsNotToClean, read)
			}
			return
		}
	}

	s.emitPassthrough(read)
}

// collectKnownIndels folds any known-indel records overlapping binLoc
// (and not already seen) into the active bin, advancing through the
// contig's known-indel list, which is sorted by position.
func (s *streamState) collectKnownIndels(binLoc locus.Locus) {
	for s.knownIdx < len(s.curKnown) {
		v := s.curKnown[s.knownIdx]
		if v.Start() > binLoc.Stop {
			return
		}
		if v.End() >= binLoc.Start {
			s.bin.addKnownIndel(s.knownIdx, v)
		}
		if v.Start() < binLoc.Start {
			s.knownIdx++
			continue
		}
		return
	}
}

func (s *streamState) switchContig(refid int32) {
	s.flushContig()
	s.curContig = refid
	if int(refid) >= 0 && int(refid) < len(s.cfg.RefNames) {
		s.curContigName = s.cfg.RefNames[refid]
	} else {
		s.curContigName = ""
	}
	s.curIntervals = s.cfg.DeclaredIntervals[s.curContigName]
	s.curKnown = s.cfg.KnownIndels[s.curContigName]
	s.ivIdx = 0
	s.knownIdx = 0
}

func (s *streamState) flushContig() {
	s.closeBin()
	s.ivIdx = len(s.curIntervals)
}

func (s *streamState) closeBin() {
	if s.bin == nil {
		return
	}
	b := s.bin
	s.bin = nil
	order := s.queue.reserve()
	contigName := s.curContigName

	s.cfg.Pool.Add(func() {
		var window []byte
		var windowStart int32
		if s.cfg.Reference != nil {
			// Loci are 1-based and Window takes 0-based [start, stop),
			// so window[i] holds reference position windowStart+i.
			windowStart = b.loc.Start - s.cfg.IntervalPad
			if windowStart < 1 {
				windowStart = 1
			}
			window = s.cfg.Reference.Window(contigName, windowStart-1, b.loc.Stop+s.cfg.IntervalPad)
		}
		result := clean(b, window, windowStart, s.cfg.Options)
		if s.cfg.Verbose && result.improved {
			log.Printf("realign: improved %s:%d-%d", contigName, b.loc.Start, b.loc.Stop)
		}
		batch := make([]*sam.Alignment, 0, b.size())
		batch = append(batch, b.readsToClean...)
		batch = append(batch, b.readsNotToClean...)
		modified := result.modified
		if result.improved {
			// cleaning moved at least one read's POS, so the
			// readsToClean/readsNotToClean concatenation order no
			// longer guarantees coordinate order within the bin;
			// restore it before handing the batch to mate-fixing,
			// which relies on its input arriving coordinate-sorted.
			moved := make(map[*sam.Alignment]bool)
			for i, r := range b.readsToClean {
				if modified.Test(uint(i)) {
					moved[r] = true
				}
			}
			sam.By(sam.CoordinateLess).ParallelStableSort(batch)
			// result.modified is keyed by readsToClean index; re-key
			// it by position in the sorted batch, as AddReads expects.
			modified = bitset.New(uint(len(batch)))
			for i, r := range batch {
				if moved[r] {
					modified.Set(uint(i))
				}
			}
		}
		s.queue.submit(order, batch, modified)
	})
}

func (s *streamState) emitPassthrough(read *sam.Alignment) {
	order := s.queue.reserve()
	s.queue.submit(order, []*sam.Alignment{read}, nil)
}
