package mp4seek

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driveSplitter simulates a pull-based caller over an in-memory source,
// answering each RequestFunc call synchronously via Feed.
func driveSplitter(s *Splitter, source []byte) {
	var request RequestFunc
	request = func(size int64, offset int64) {
		end := offset + size
		if end > int64(len(source)) {
			end = int64(len(source))
		}
		chunk := source[offset:end]
		if err := s.Feed(chunk); err != nil {
			return
		}
	}
	s.Start(request)
}

func TestSplitterMatchesSyncSplit(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFile(spec)

	wantHeader, wantOffset, err := SplitIntoBuffer(bytes.NewReader(file), 0.5)
	require.NoError(t, err)

	s := NewSplitter(0.5)
	driveSplitter(s, file)
	require.True(t, s.Done())
	require.NoError(t, s.Err())

	gotHeader, gotOffset, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, wantHeader, gotHeader)
	assert.Equal(t, wantOffset, gotOffset)
}

// TestSplitterMatchesSyncSplitWith64BitMdatHeader guards the streaming
// adapter against the same hardcoded-8-byte-header mistake as
// TestSplitHandles64BitMdatHeader: it must track the mdat header's
// actual size (8 or 16 bytes) rather than assume 8.
func TestSplitterMatchesSyncSplitWith64BitMdatHeader(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFileExt64Mdat(spec)

	wantHeader, wantOffset, err := SplitIntoBuffer(bytes.NewReader(file), 0.5)
	require.NoError(t, err)

	s := NewSplitter(0.5)
	driveSplitter(s, file)
	require.True(t, s.Done())
	require.NoError(t, s.Err())

	gotHeader, gotOffset, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, wantHeader, gotHeader)
	assert.Equal(t, wantOffset, gotOffset)
}

func TestSplitterOutOfRangeFails(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFile(spec)

	s := NewSplitter(2.0)
	driveSplitter(s, file)
	require.True(t, s.Done())
	assert.ErrorIs(t, s.Err(), ErrTimeOutOfRange)

	_, _, err := s.Result()
	assert.ErrorIs(t, err, ErrTimeOutOfRange)
}

func TestSplitterRejectsMdatBeforeMoov(t *testing.T) {
	spec := testFixtureSpec()
	file := buildMdatFirstFile(spec)

	s := NewSplitter(0)
	driveSplitter(s, file)
	require.True(t, s.Done())
	assert.ErrorIs(t, s.Err(), ErrMoovAfterMdat)
}
