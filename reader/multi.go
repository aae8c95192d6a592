package reader

import (
	"io"
	"log"
	"os"
	"runtime"

	hbam "github.com/biogo/hts/bam"
	hsam "github.com/biogo/hts/sam"
	"golang.org/x/sync/errgroup"

	"github.com/vbi-informatics/gecore/gerrors"
	"github.com/vbi-informatics/gecore/sam"
)

// openOne opens a single path (or stdin, for "-") as an AlignmentSource,
// auto-detecting its format from the leading bytes.
func openOne(path string) (AlignmentSource, Format, error) {
	var f io.ReadCloser
	if path == "-" {
		f = io.NopCloser(os.Stdin)
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, FormatUnknown, gerrors.Wrap(gerrors.IoError, "opening "+path, err)
		}
		f = file
	}

	format, br, err := DetectFormat(f)
	if err != nil {
		f.Close()
		return nil, format, err
	}

	switch format {
	case FormatSAM:
		r, err := hsam.NewReader(br)
		if err != nil {
			f.Close()
			return nil, format, gerrors.Wrap(gerrors.IoError, "parsing SAM header in "+path, err)
		}
		return newSAMSource(r, f.Close), format, nil
	case FormatBAM:
		r, err := hbam.NewReader(br, runtime.NumCPU())
		if err != nil {
			f.Close()
			return nil, format, gerrors.Wrap(gerrors.IoError, "parsing BAM header in "+path, err)
		}
		return newBAMSource(r, func() error { r.Close(); return f.Close() }), format, nil
	default:
		f.Close()
		return nil, format, gerrors.New(gerrors.FormatUnknown, "unrecognized format for "+path)
	}
}

// MultiSource reads a sequence of alignment files as one logical
// stream. Per spec: all inputs in a batch must share format (fatal on
// mismatch); the header is the first file's header; a warning is
// logged (not fatal) for SAM inputs with diverging headers, while a
// BAM header conflict is a hard HeaderConflict error. Files are
// consumed one at a time, in argument order — the interleaving a true
// multi-reader would do only matters once the external sorter (C5)
// re-establishes global order, so sequential concatenation here is
// observationally equivalent for every downstream stage.
type MultiSource struct {
	sources    []AlignmentSource
	format     Format
	header     *sam.Header
	references []string
	idx        int
}

// Open opens every path in paths and merges their headers. Opening and
// header parsing (the only per-file work that blocks on I/O before any
// alignment record is read) happens concurrently, one goroutine per
// path; format and header-compatibility checks below still run in
// argument order, so which file an error is attributed to never
// depends on which goroutine happened to finish first.
func Open(paths []string) (*MultiSource, error) {
	if len(paths) == 0 {
		return nil, gerrors.New(gerrors.IoError, "no input paths given")
	}
	sources := make([]AlignmentSource, len(paths))
	formats := make([]Format, len(paths))

	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			src, format, err := openOne(path)
			if err != nil {
				return err
			}
			sources[i] = src
			formats[i] = format
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, src := range sources {
			if src != nil {
				src.Close()
			}
		}
		return nil, err
	}

	ms := &MultiSource{}
	for i, path := range paths {
		src, format := sources[i], formats[i]
		if i == 0 {
			ms.format = format
			ms.header = src.Header()
			ms.references = src.References()
		} else {
			if format != ms.format {
				return nil, gerrors.New(gerrors.FormatMismatch, "input "+path+" does not match the format of earlier inputs")
			}
			if headerDiverges(ms.header, src.Header()) {
				if format == FormatBAM {
					return nil, gerrors.New(gerrors.HeaderConflict, "BAM header of "+path+" conflicts with earlier inputs")
				}
				log.Printf("warning: header of %s diverges from earlier inputs; keeping the first file's header", path)
			}
		}
		ms.sources = append(ms.sources, src)
	}
	return ms, nil
}

// headerDiverges reports whether two headers' sequence dictionaries
// disagree. Fatality is decided by the caller based on format (warn for
// SAM, reject for BAM).
func headerDiverges(a, b *sam.Header) bool {
	if len(a.SQ) != len(b.SQ) {
		return true
	}
	for i := range a.SQ {
		if a.SQ[i]["SN"] != b.SQ[i]["SN"] {
			return true
		}
	}
	return false
}

func (ms *MultiSource) Header() *sam.Header  { return ms.header }
func (ms *MultiSource) References() []string { return ms.references }

// Next returns the next alignment across the whole batch, or io.EOF
// once every input is exhausted.
func (ms *MultiSource) Next() (*sam.Alignment, error) {
	for ms.idx < len(ms.sources) {
		aln, err := ms.sources[ms.idx].Next()
		if err == nil {
			aln.SetFileIndex(int32(ms.idx))
			return aln, nil
		}
		if err != io.EOF {
			return nil, gerrors.Wrap(gerrors.IoError, "reading input", err)
		}
		ms.sources[ms.idx].Close()
		ms.idx++
	}
	return nil, io.EOF
}

func (ms *MultiSource) Close() error {
	var firstErr error
	for ; ms.idx < len(ms.sources); ms.idx++ {
		if err := ms.sources[ms.idx].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
