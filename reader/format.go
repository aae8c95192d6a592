// Package reader implements the file-reader module (C4): format
// auto-detection, a small AlignmentSource interface behind which the
// binary/text codecs live as external collaborators, and multi-file
// opening with header merge/divergence handling.
package reader

import (
	"bufio"
	"io"

	"github.com/vbi-informatics/gecore/gerrors"
)

// Format is the auto-detected shape of an input stream.
type Format int

const (
	FormatUnknown Format = iota
	FormatSAM
	FormatBAM
)

// DetectFormat peeks at the first two bytes of r without consuming
// them from the caller's point of view — it returns a *bufio.Reader
// that still yields those bytes on a subsequent Read, standing in for
// the ungetc-style peek the original reader used on stdin.
func DetectFormat(r io.Reader) (Format, *bufio.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	peek, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return FormatUnknown, br, gerrors.Wrap(gerrors.IoError, "peeking input header", err)
	}
	switch {
	case len(peek) >= 1 && peek[0] == '@':
		return FormatSAM, br, nil
	case len(peek) >= 2 && peek[0] == 0x1F && peek[1] == 0x8B:
		return FormatBAM, br, nil
	default:
		return FormatUnknown, br, gerrors.New(gerrors.FormatUnknown, "could not determine input format from leading bytes")
	}
}
