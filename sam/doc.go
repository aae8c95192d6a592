// Package sam defines the in-memory alignment record (C1) used
// throughout the pipeline: header, Alignment, CIGAR scanning, and the
// comparators the sorter and mate-fixing manager key off of. Binary
// and text codecs live outside this package, behind the small
// AlignmentSource interface in package reader — this package only
// carries the record shape and the pure functions over it.
package sam
