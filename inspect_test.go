package mp4seek

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectReportsTrackCodecAndSamples(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFile(spec)

	rep, err := Inspect(bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, "isom", rep.MajorBrand)
	require.Len(t, rep.Tracks, 1)

	tr := rep.Tracks[0]
	assert.Equal(t, "avc1.64001f", tr.Codec)
	assert.Equal(t, uint64(spec.nSamples), tr.SampleCount)
	assert.Equal(t, uint32(fixtureTimescale), tr.Timescale)
}

func TestFillSyncStatsWithStss(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFile(spec)

	rep, err := Inspect(bytes.NewReader(file))
	require.NoError(t, err)
	tr := rep.Tracks[0]

	// The fixture marks samples 1 and 5 as sync points (one per chunk).
	assert.Equal(t, 2, tr.SyncCount)
	assert.InDelta(t, 0.5, tr.SyncIntervalMin, 1e-9)
	assert.InDelta(t, 0.5, tr.SyncIntervalMax, 1e-9)
	assert.InDelta(t, 0.5, tr.SyncIntervalAvg, 1e-9)
}

func TestDumpTreeWritesIndentedBoxes(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFile(spec)

	var out bytes.Buffer
	require.NoError(t, DumpTree(bytes.NewReader(file), &out))

	text := out.String()
	assert.True(t, strings.Contains(text, "[ftyp]"))
	assert.True(t, strings.Contains(text, "[moov]"))
	assert.True(t, strings.Contains(text, "[mdat]"))
	assert.True(t, strings.Contains(text, "[trak]"))
	assert.True(t, strings.Contains(text, "[stsd]"))
	assert.True(t, strings.Contains(text, "codec=64001f"))
}
