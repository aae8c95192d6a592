package reader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbi-informatics/gecore/gerrors"
)

const minimalSAM = "@HD\tVN:1.6\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"read1\t0\tchr1\t100\t60\t10M\t*\t0\t0\tACGTACGTAC\tIIIIIIIIII\n"

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectFormatSAM(t *testing.T) {
	format, br, err := DetectFormat(bytes.NewBufferString(minimalSAM))
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatSAM {
		t.Fatalf("expected FormatSAM, got %v", format)
	}
	peeked, _ := br.Peek(1)
	if peeked[0] != '@' {
		t.Fatal("peek should not have consumed the leading byte")
	}
}

func TestDetectFormatUnknown(t *testing.T) {
	_, _, err := DetectFormat(bytes.NewBufferString("not a sam file"))
	if err == nil {
		t.Fatal("expected an error for unrecognized leading bytes")
	}
}

func TestOpenSingleSAMFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "in.sam", minimalSAM)

	ms, err := Open([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	defer ms.Close()

	if len(ms.Header().SQ) != 1 {
		t.Fatalf("expected 1 SQ record, got %d", len(ms.Header().SQ))
	}

	aln, err := ms.Next()
	if err != nil {
		t.Fatal(err)
	}
	if aln.QNAME != "read1" || aln.POS != 100 {
		t.Fatalf("unexpected alignment: %+v", aln)
	}

	if _, err := ms.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after the only record, got %v", err)
	}
}

func TestOpenMultipleFilesConcatenates(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTemp(t, dir, "a.sam", minimalSAM)
	p2 := writeTemp(t, dir, "b.sam", "@HD\tVN:1.6\tSO:coordinate\n@SQ\tSN:chr1\tLN:1000\n"+
		"read2\t0\tchr1\t200\t60\t10M\t*\t0\t0\tACGTACGTAC\tIIIIIIIIII\n")

	ms, err := Open([]string{p1, p2})
	if err != nil {
		t.Fatal(err)
	}
	defer ms.Close()

	var names []string
	for {
		aln, err := ms.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, aln.QNAME)
	}
	if len(names) != 2 || names[0] != "read1" || names[1] != "read2" {
		t.Fatalf("expected [read1 read2], got %v", names)
	}
}

// TestOpenFormatMismatchIsFatal pins down a detail the concurrent open
// in Open must still get right: even though every path's header is
// parsed by its own goroutine, an input whose leading bytes match
// neither SAM nor BAM still fails Open with a format-related error,
// not a data race or a silently-swallowed goroutine error.
func TestOpenFormatMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	samPath := writeTemp(t, dir, "a.sam", minimalSAM)
	garbagePath := writeTemp(t, dir, "b.bam", "not a recognizable format")

	_, err := Open([]string{samPath, garbagePath})
	require.Error(t, err)
	assert.True(t, gerrors.Is(err, gerrors.FormatMismatch) || gerrors.Is(err, gerrors.FormatUnknown),
		"expected a format-related error, got %v", err)
}

// TestOpenManyFilesConcurrently exercises Open's concurrent per-path
// header parsing with enough inputs that goroutine completion order is
// very unlikely to match argument order, then asserts the result is
// assembled in argument order regardless.
func TestOpenManyFilesConcurrently(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 8; i++ {
		paths = append(paths, writeTemp(t, dir, "f"+string(rune('a'+i))+".sam", minimalSAM))
	}

	ms, err := Open(paths)
	require.NoError(t, err)
	defer ms.Close()

	assert.Len(t, ms.Header().SQ, 1)
	assert.Len(t, ms.sources, len(paths))

	var count int
	for {
		_, err := ms.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, len(paths), count)
}
