package reader

import (
	hbam "github.com/biogo/hts/bam"
	hsam "github.com/biogo/hts/sam"

	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/utils"
)

// AlignmentSource produces a stream of alignments from one underlying
// file, plus the header/reference dictionary that go with it. Binary
// (BAM) and text (SAM) codecs are external collaborators behind this
// interface — biogo/hts/bam and biogo/hts/sam do the actual decoding;
// this package only adapts their records to sam.Alignment.
type AlignmentSource interface {
	Header() *sam.Header
	References() []string
	// Next returns the next alignment, or (nil, io.EOF) at end of
	// stream.
	Next() (*sam.Alignment, error)
	Close() error
}

// biogoRecordReader is implemented by both *hbam.Reader and
// *hsam.Reader — the same duck-typed interface the teacher's pack
// uses to treat BAM and SAM uniformly once opened.
type biogoRecordReader interface {
	Header() *hsam.Header
	Read() (*hsam.Record, error)
}

// convertHeader builds our Header/reference-name list from a biogo
// hts Header. Only the parts the rest of the engine reads are copied:
// the sequence dictionary (for reference resolution and the SO/GO
// tags), read groups, programs and comments are carried through as
// opaque StringMaps for round-tripping.
func convertHeader(h *hsam.Header) (*sam.Header, []string) {
	out := sam.NewHeader()
	refs := make([]string, len(h.Refs()))
	hd := utils.StringMap{}
	switch h.SortOrder {
	case hsam.Coordinate:
		hd["SO"] = "coordinate"
	case hsam.QueryName:
		hd["SO"] = "queryname"
	case hsam.Unsorted:
		hd["SO"] = "unsorted"
	default:
		hd["SO"] = "unknown"
	}
	hd["VN"] = sam.FileFormatVersion
	out.HD = hd
	for i, ref := range h.Refs() {
		refs[i] = ref.Name()
		out.SQ = append(out.SQ, utils.StringMap{
			"SN": ref.Name(),
		})
		sam.SetSQ_LN(out.SQ[len(out.SQ)-1], int32(ref.Len()))
	}
	for _, rg := range h.RGs() {
		m := utils.StringMap{"ID": rg.Name()}
		out.RG = append(out.RG, m)
	}
	for _, pg := range h.Progs() {
		m := utils.StringMap{"ID": pg.UID(), "PN": pg.Name()}
		out.PG = append(out.PG, m)
	}
	out.CO = append(out.CO, h.Comments...)
	return out, refs
}

func refID(ref *hsam.Reference) int32 {
	if ref == nil {
		return -1
	}
	return int32(ref.ID())
}

// convertRecord maps a decoded biogo hts record onto our Alignment
// shape, resolving REFID/MATEREFID from the record's own reference
// pointers rather than a separate header-lookup filter pass.
func convertRecord(r *hsam.Record) *sam.Alignment {
	aln := sam.NewAlignment()
	aln.QNAME = r.Name
	aln.FLAG = uint16(r.Flags)
	aln.POS = int32(r.Pos) + 1 // biogo is 0-based; SAM/our model is 1-based
	aln.MAPQ = r.MapQ
	aln.CIGAR = r.Cigar.String()
	aln.PNEXT = int32(r.MatePos) + 1
	aln.TLEN = int32(r.TempLen)
	aln.SEQ = string(r.Seq.Expand())
	aln.QUAL = qualToASCII(r.Qual)

	aln.SetREFID(refID(r.Ref))
	aln.SetMateREFID(refID(r.MateRef))
	if r.Ref != nil {
		aln.RNAME = r.Ref.Name()
	} else {
		aln.RNAME = "*"
	}
	if r.MateRef != nil {
		aln.RNEXT = r.MateRef.Name()
	} else {
		aln.RNEXT = "*"
	}

	for _, aux := range r.AuxFields {
		tag := aux.Tag()
		aln.SetTag(string(tag[:]), aux.Value())
	}
	return aln
}

func qualToASCII(q []byte) string {
	if len(q) == 0 {
		return "*"
	}
	out := make([]byte, len(q))
	for i, v := range q {
		out[i] = v + 33
	}
	return string(out)
}

// bamSource wraps a biogo/hts/bam.Reader.
type bamSource struct {
	r          *hbam.Reader
	header     *sam.Header
	references []string
	closer     func() error
}

func newBAMSource(r *hbam.Reader, closer func() error) *bamSource {
	hdr, refs := convertHeader(r.Header())
	return &bamSource{r: r, header: hdr, references: refs, closer: closer}
}

func (s *bamSource) Header() *sam.Header  { return s.header }
func (s *bamSource) References() []string { return s.references }
func (s *bamSource) Next() (*sam.Alignment, error) {
	rec, err := s.r.Read()
	if err != nil {
		return nil, err
	}
	return convertRecord(rec), nil
}
func (s *bamSource) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// samSource wraps a biogo/hts/sam.Reader (text SAM).
type samSource struct {
	r          *hsam.Reader
	header     *sam.Header
	references []string
	closer     func() error
}

func newSAMSource(r *hsam.Reader, closer func() error) *samSource {
	hdr, refs := convertHeader(r.Header())
	return &samSource{r: r, header: hdr, references: refs, closer: closer}
}

func (s *samSource) Header() *sam.Header  { return s.header }
func (s *samSource) References() []string { return s.references }
func (s *samSource) Next() (*sam.Alignment, error) {
	rec, err := s.r.Read()
	if err != nil {
		return nil, err
	}
	return convertRecord(rec), nil
}
func (s *samSource) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
