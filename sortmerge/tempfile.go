package sortmerge

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/vbi-informatics/gecore/gerrors"
	"github.com/vbi-informatics/gecore/sam"
)

func init() {
	// Tag values come from BAM/SAM aux fields and are one of a small
	// set of concrete types; gob needs every concrete type that will
	// flow through an interface{} registered up front.
	gob.Register(string(""))
	gob.Register(int8(0))
	gob.Register(uint8(0))
	gob.Register(int16(0))
	gob.Register(uint16(0))
	gob.Register(int32(0))
	gob.Register(uint32(0))
	gob.Register(float32(0))
	gob.Register([]byte(nil))
	gob.Register([]int32(nil))
	gob.Register([]float32(nil))
}

// wireTag and wireAlignment are the temp-file spill format. Keys are
// stored as plain strings rather than interned Symbols, since a
// Symbol is a process-local pointer that means nothing once read back
// by (possibly) a different process.
type wireTag struct {
	Key   string
	Value interface{}
}

type wireAlignment struct {
	QNAME string
	FLAG  uint16
	RNAME string
	POS   int32
	MAPQ  byte
	CIGAR string
	RNEXT string
	PNEXT int32
	TLEN  int32
	SEQ   string
	QUAL  string
	Tags  []wireTag
	RefID, MateRefID int32
}

func toWire(a *sam.Alignment) wireAlignment {
	tags := make([]wireTag, len(a.TAGS))
	for i, e := range a.TAGS {
		tags[i] = wireTag{Key: *e.Key, Value: e.Value}
	}
	return wireAlignment{
		QNAME: a.QNAME, FLAG: a.FLAG, RNAME: a.RNAME, POS: a.POS, MAPQ: a.MAPQ,
		CIGAR: a.CIGAR, RNEXT: a.RNEXT, PNEXT: a.PNEXT, TLEN: a.TLEN,
		SEQ: a.SEQ, QUAL: a.QUAL, Tags: tags,
		RefID: a.REFID(), MateRefID: a.MateREFID(),
	}
}

func fromWire(w wireAlignment) *sam.Alignment {
	a := sam.NewAlignment()
	a.QNAME, a.FLAG, a.RNAME, a.POS, a.MAPQ = w.QNAME, w.FLAG, w.RNAME, w.POS, w.MAPQ
	a.CIGAR, a.RNEXT, a.PNEXT, a.TLEN = w.CIGAR, w.RNEXT, w.PNEXT, w.TLEN
	a.SEQ, a.QUAL = w.SEQ, w.QUAL
	for _, t := range w.Tags {
		a.SetTag(t.Key, t.Value)
	}
	a.SetREFID(w.RefID)
	a.SetMateREFID(w.MateRefID)
	return a
}

// tempFileName produces a uniquely-named spill path under dir.
func tempFileName(dir string) string {
	return fmt.Sprintf("%s/gecore-sort-%s.tmp", dir, uuid.New().String())
}

// writeTempFile writes alns (already sorted) to a fresh uniquely
// named temp file and returns its path. On failure, any partial file
// is removed and the error is returned wrapped as IoError, matching
// the spec's "write failure is logged and propagated" rule.
func writeTempFile(dir string, compress bool, alns []*sam.Alignment) (path string, err error) {
	path = tempFileName(dir)
	f, err := os.Create(path)
	if err != nil {
		return "", gerrors.Wrap(gerrors.IoError, "creating temp file", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = gerrors.Wrap(gerrors.IoError, "closing temp file", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		w = gz
	}
	enc := gob.NewEncoder(w)
	if err = enc.Encode(int64(len(alns))); err != nil {
		return path, gerrors.Wrap(gerrors.IoError, "writing temp file count", err)
	}
	for _, a := range alns {
		if err = enc.Encode(toWire(a)); err != nil {
			return path, gerrors.Wrap(gerrors.IoError, "writing temp file record", err)
		}
	}
	if gz != nil {
		if err = gz.Close(); err != nil {
			return path, gerrors.Wrap(gerrors.IoError, "closing temp file compressor", err)
		}
	}
	if err = bw.Flush(); err != nil {
		return path, gerrors.Wrap(gerrors.IoError, "flushing temp file", err)
	}
	return path, nil
}

// tempFileReader streams alignments back out of a spilled temp file in
// the order they were written (they were sorted before spilling, so
// this is already one sorted run).
type tempFileReader struct {
	path string
	f    *os.File
	gz   *gzip.Reader
	dec  *gob.Decoder
	left int64
}

func openTempFile(path string, compressed bool) (*tempFileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.IoError, "opening temp file", err)
	}
	var r io.Reader = bufio.NewReader(f)
	tr := &tempFileReader{path: path, f: f}
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, gerrors.Wrap(gerrors.IoError, "opening compressed temp file", err)
		}
		tr.gz = gz
		r = gz
	}
	tr.dec = gob.NewDecoder(r)
	if err := tr.dec.Decode(&tr.left); err != nil {
		f.Close()
		return nil, gerrors.Wrap(gerrors.IoError, "reading temp file count", err)
	}
	return tr, nil
}

// next returns the next alignment from the run, or io.EOF when the
// run is exhausted.
func (tr *tempFileReader) next() (*sam.Alignment, error) {
	if tr.left <= 0 {
		return nil, io.EOF
	}
	var w wireAlignment
	if err := tr.dec.Decode(&w); err != nil {
		return nil, gerrors.Wrap(gerrors.IoError, "reading temp file record", err)
	}
	tr.left--
	return fromWire(w), nil
}

func (tr *tempFileReader) close() error {
	if tr.gz != nil {
		tr.gz.Close()
	}
	err := tr.f.Close()
	os.Remove(tr.path)
	return err
}
