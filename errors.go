package mp4seek

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers should be able to match on
// directly, rather than parsing error strings.
var (
	// ErrShortRead means the source ended mid-field.
	ErrShortRead = errors.New("mp4seek: short read")

	// ErrFormat means a structural invariant was violated: a missing
	// required child, mdat before moov in split mode, or a bad stz2
	// field size.
	ErrFormat = errors.New("mp4seek: format error")

	// ErrCannotSelect means a required child box's count fell outside
	// its expected [min,max] range.
	ErrCannotSelect = errors.New("mp4seek: cannot select child box")

	// ErrTimeOutOfRange means the requested cut time is at or beyond
	// mvhd.duration / mvhd.timescale.
	ErrTimeOutOfRange = errors.New("mp4seek: time out of range")

	// ErrMoovAfterMdat means the streaming adapter reached mdat without
	// having already observed moov, and cannot rewind to look for one.
	ErrMoovAfterMdat = errors.New("mp4seek: moov after mdat")
)

// UnsupportedVersionError reports an mvhd/tkhd/mdhd version outside {0,1}.
type UnsupportedVersionError struct {
	Box     BoxType
	Version uint8
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("mp4seek: unsupported %s version %d", e.Box, e.Version)
}

// OffsetOverflowError reports that fast-start could not fit a chunk offset
// even after upgrading stco to co64. This should not occur in practice;
// it guards against pathological inputs.
type OffsetOverflowError struct {
	Offset uint64
}

func (e *OffsetOverflowError) Error() string {
	return fmt.Sprintf("mp4seek: chunk offset %d overflows stco after co64 upgrade", e.Offset)
}
