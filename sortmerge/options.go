// Package sortmerge implements the external merge sort module (C5):
// chunked buffering with spill to temp files, parallel in-chunk sort,
// and a k-way merge of the resulting runs.
package sortmerge

// SortOrder selects the comparator used throughout a sort run.
type SortOrder int

const (
	ByCoordinate SortOrder = iota
	ByName
)

func (o SortOrder) String() string {
	if o == ByName {
		return "queryname"
	}
	return "coordinate"
}

// Defaults mirror the teacher's read_sorter.cpp constants.
const (
	DefaultAlignmentsPerTempFile = 500000
	MinParallelSortChunk         = 30000
)

// Options configures a sort run.
type Options struct {
	Order                 SortOrder
	AlignmentsPerTempFile int
	CompressTempFiles     bool
	SingleThreaded        bool
	TempDir               string
}

func (o Options) withDefaults() Options {
	if o.AlignmentsPerTempFile <= 0 {
		o.AlignmentsPerTempFile = DefaultAlignmentsPerTempFile
	}
	if o.TempDir == "" {
		o.TempDir = "."
	}
	return o
}
