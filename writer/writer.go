// Package writer serializes sam.Alignment records back out to SAM or
// BAM, the mirror image of package reader: biogo/hts/bam and
// biogo/hts/sam do the actual encoding, this package only adapts our
// Alignment shape to their record types.
package writer

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	hbam "github.com/biogo/hts/bam"
	hsam "github.com/biogo/hts/sam"

	"github.com/vbi-informatics/gecore/gerrors"
	gsam "github.com/vbi-informatics/gecore/sam"
)

// Writer accepts a stream of alignments and serializes them to an
// underlying SAM or BAM file, in whatever order Write is called with —
// callers (the pipeline's final sink module) are responsible for
// calling Write in the order the output should appear in.
type Writer interface {
	Write(*gsam.Alignment) error
	Close() error
}

// Create opens path for writing, choosing BAM or SAM encoding by
// extension (".bam" selects BAM; anything else, including "-" for
// stdout, is written as SAM text).
func Create(path string, header *gsam.Header, references []string) (Writer, error) {
	var out io.WriteCloser
	if path == "-" {
		out = nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, gerrors.Wrap(gerrors.IoError, "creating "+path, err)
		}
		out = f
	}

	refs, err := buildReferences(header, references)
	if err != nil {
		out.Close()
		return nil, gerrors.Wrap(gerrors.IoError, "building header for "+path, err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".bam") {
		hdr, err := hsam.NewHeader(nil, refs)
		if err != nil {
			out.Close()
			return nil, gerrors.Wrap(gerrors.IoError, "building BAM header for "+path, err)
		}
		applyHeaderMetadata(hdr, header)
		w, err := hbam.NewWriter(out, hdr, 0)
		if err != nil {
			out.Close()
			return nil, gerrors.Wrap(gerrors.IoError, "opening BAM writer for "+path, err)
		}
		return &bamWriter{w: w, out: out, refs: refs}, nil
	}

	hdr, err := hsam.NewHeader(nil, refs)
	if err != nil {
		out.Close()
		return nil, gerrors.Wrap(gerrors.IoError, "building SAM header for "+path, err)
	}
	applyHeaderMetadata(hdr, header)
	bw := bufio.NewWriter(out)
	w, err := hsam.NewWriter(bw, hdr, 0)
	if err != nil {
		out.Close()
		return nil, gerrors.Wrap(gerrors.IoError, "opening SAM writer for "+path, err)
	}
	return &samWriter{w: w, bw: bw, out: out, refs: refs}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func buildReferences(header *gsam.Header, names []string) ([]*hsam.Reference, error) {
	refs := make([]*hsam.Reference, len(names))
	for i, name := range names {
		length := 0
		if i < len(header.SQ) {
			if ln, err := gsam.SQ_LN(header.SQ[i]); err == nil {
				length = int(ln)
			}
		}
		ref, err := hsam.NewReference(name, "", "", length, nil, nil)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

// applyHeaderMetadata copies read groups, programs, and comments onto
// the biogo header; the sort order is carried via the HD SO field,
// which our own sam.Header already tracks through the pipeline.
func applyHeaderMetadata(hdr *hsam.Header, header *gsam.Header) {
	switch header.HD["SO"] {
	case "coordinate":
		hdr.SortOrder = hsam.Coordinate
	case "queryname":
		hdr.SortOrder = hsam.QueryName
	case "unsorted":
		hdr.SortOrder = hsam.Unsorted
	}
	for _, rg := range header.RG {
		group, err := hsam.NewReadGroup(rg["ID"], "", "", "", "", "", "", "", "", "", time.Time{}, 0)
		if err == nil {
			_ = hdr.AddReadGroup(group)
		}
	}
	for _, pg := range header.PG {
		program := hsam.NewProgram(pg["ID"], pg["PN"], "", "", "")
		_ = hdr.AddProgram(program)
	}
	hdr.Comments = append(hdr.Comments, header.CO...)
}

type bamWriter struct {
	w    *hbam.Writer
	out  io.WriteCloser
	refs []*hsam.Reference
}

func (bw *bamWriter) Write(a *gsam.Alignment) error {
	rec, err := convertRecord(a, bw.refs)
	if err != nil {
		return err
	}
	return bw.w.Write(rec)
}

func (bw *bamWriter) Close() error {
	if err := bw.w.Close(); err != nil {
		bw.out.Close()
		return err
	}
	return bw.out.Close()
}

type samWriter struct {
	w    *hsam.Writer
	bw   *bufio.Writer
	out  io.WriteCloser
	refs []*hsam.Reference
}

func (sw *samWriter) Write(a *gsam.Alignment) error {
	rec, err := convertRecord(a, sw.refs)
	if err != nil {
		return err
	}
	return sw.w.Write(rec)
}

func (sw *samWriter) Close() error {
	if err := sw.bw.Flush(); err != nil {
		sw.out.Close()
		return err
	}
	return sw.out.Close()
}

func refByName(refs []*hsam.Reference, name string) *hsam.Reference {
	for _, r := range refs {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

func refByIndex(refs []*hsam.Reference, idx int32) *hsam.Reference {
	if idx < 0 || int(idx) >= len(refs) {
		return nil
	}
	return refs[idx]
}

func convertRecord(a *gsam.Alignment, refs []*hsam.Reference) (*hsam.Record, error) {
	cigar, err := convertCigar(a.CIGAR)
	if err != nil {
		return nil, err
	}

	rec := &hsam.Record{
		Name:    a.QNAME,
		Flags:   hsam.Flags(a.FLAG),
		Ref:     refByIndex(refs, a.REFID()),
		Pos:     int(a.POS) - 1,
		MapQ:    a.MAPQ,
		Cigar:   cigar,
		MateRef: refByIndex(refs, a.MateREFID()),
		MatePos: int(a.PNEXT) - 1,
		TempLen: int(a.TLEN),
		Seq:     hsam.NewSeq([]byte(a.SEQ)),
		Qual:    qualFromASCII(a.QUAL),
	}
	if rec.Ref == nil && a.RNAME != "" && a.RNAME != "*" {
		rec.Ref = refByName(refs, a.RNAME)
	}
	if rec.MateRef == nil && a.RNEXT != "" && a.RNEXT != "*" && a.RNEXT != "=" {
		rec.MateRef = refByName(refs, a.RNEXT)
	}

	for _, entry := range a.TAGS {
		code := *entry.Key
		if len(code) != 2 {
			continue
		}
		aux, err := hsam.NewAux(hsam.NewTag(code), entry.Value)
		if err != nil {
			continue
		}
		rec.AuxFields = append(rec.AuxFields, aux)
	}
	return rec, nil
}

func convertCigar(s string) (hsam.Cigar, error) {
	if s == "" || s == "*" {
		return nil, nil
	}
	ops, err := gsam.ScanCigarString(s)
	if err != nil {
		return nil, err
	}
	cigar := make(hsam.Cigar, 0, len(ops))
	for _, op := range ops {
		t, ok := cigarOpType(op.Operation)
		if !ok {
			continue
		}
		cigar = append(cigar, hsam.NewCigarOp(t, int(op.Length)))
	}
	return cigar, nil
}

func cigarOpType(op byte) (hsam.CigarOpType, bool) {
	switch op {
	case 'M':
		return hsam.CigarMatch, true
	case 'I':
		return hsam.CigarInsertion, true
	case 'D':
		return hsam.CigarDeletion, true
	case 'N':
		return hsam.CigarSkipped, true
	case 'S':
		return hsam.CigarSoftClipped, true
	case 'H':
		return hsam.CigarHardClipped, true
	case 'P':
		return hsam.CigarPadded, true
	case '=':
		return hsam.CigarEqual, true
	case 'X':
		return hsam.CigarMismatch, true
	default:
		return 0, false
	}
}

func qualFromASCII(q string) []byte {
	if q == "*" || q == "" {
		return nil
	}
	out := make([]byte, len(q))
	for i := 0; i < len(q); i++ {
		out[i] = q[i] - 33
	}
	return out
}
