// Package realign implements local realignment near known or inferred
// indels (C7), plus the emit-queue serializer (C10) that restores
// input order across concurrently cleaned intervals.
package realign

// ConsensusModel selects which sources contribute candidate alternate
// consensuses during interval cleaning.
type ConsensusModel int

const (
	// KnownsOnly builds candidates only from known-indel records.
	KnownsOnly ConsensusModel = iota
	// UseReads additionally builds candidates from each read's own
	// indel-bearing CIGAR.
	UseReads
	// UseSW additionally runs a Smith-Waterman alignment of each read
	// against the reference window to propose candidates.
	UseSW
)

func (m ConsensusModel) String() string {
	switch m {
	case UseReads:
		return "USE_READS"
	case UseSW:
		return "USE_SW"
	default:
		return "KNOWNS_ONLY"
	}
}

// Options configures the realigner. Defaults mirror the GATK-derived
// tool this is ported from; every one of them is injected per run
// rather than read from a package-level static, per the no-statics
// redesign.
type Options struct {
	ConsensusModel ConsensusModel

	LODThreshold      float64
	MismatchThreshold float64

	MaxReadsInMemory        int
	MaxISizeForMovement     int32
	MaxPosMoveAllowed       int32
	MaxConsensuses          int
	MaxReadsForConsensuses  int
	MaxReadsForRealignment  int

	NoOriginalAlignmentTags bool

	// IntervalPad is how far the reference window extends past each
	// bin's reads on either side.
	IntervalPad int32

	Verbose bool
	Debug   bool
}

// DefaultOptions returns the spec-documented defaults.
func DefaultOptions() Options {
	return Options{
		ConsensusModel:         UseReads,
		LODThreshold:           5.0,
		MismatchThreshold:      0.15,
		MaxReadsInMemory:       150000,
		MaxISizeForMovement:    3000,
		MaxPosMoveAllowed:      200,
		MaxConsensuses:         30,
		MaxReadsForConsensuses: 120,
		MaxReadsForRealignment: 20000,
		IntervalPad:            30,
	}
}
