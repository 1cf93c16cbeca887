package mp4seek

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveHeaderAndWriteNoopWhenAlreadyFastStart(t *testing.T) {
	spec := testFixtureSpec()
	file := buildFastStartFile(spec)

	var out bytes.Buffer
	moved, err := MoveHeaderAndWrite(bytes.NewReader(file), &out)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, file, out.Bytes())
}

func TestMoveHeaderAndWriteRelocatesMoov(t *testing.T) {
	spec := testFixtureSpec()
	file := buildMdatFirstFile(spec)

	var out bytes.Buffer
	moved, err := MoveHeaderAndWrite(bytes.NewReader(file), &out)
	require.NoError(t, err)
	assert.True(t, moved)

	sc := NewScanner(bytes.NewReader(out.Bytes()))
	var order []BoxType
	var moovData []byte
	var mdatPayloadStart int64
	var mdatPayloadSize int64
	for sc.Next() {
		e := sc.Entry()
		order = append(order, e.Type)
		if e.Type == TypeMoov {
			buf := make([]byte, e.DataSize())
			require.NoError(t, sc.ReadBody(buf))
			moovData = buf
		}
		if e.Type == TypeMdat {
			mdatPayloadStart = e.Offset + int64(e.HeaderSize)
			mdatPayloadSize = e.DataSize()
		}
	}
	require.NoError(t, sc.Err())
	require.Equal(t, []BoxType{TypeFtyp, TypeMoov, TypeMdat}, order)

	origPayload := buildMdatPayload(spec)
	require.Equal(t, int64(len(origPayload)), mdatPayloadSize)
	assert.Equal(t, origPayload, out.Bytes()[mdatPayloadStart:mdatPayloadStart+mdatPayloadSize])

	movie, err := ParseMoov(moovData)
	require.NoError(t, err)
	require.Len(t, movie.Tracks, 1)
	stbl := movie.Tracks[0].Mdia.Minf.Stbl
	chunkBytes := uint64(spec.samplesPerChunk * spec.sampleSize)
	for i, off := range stbl.ChunkOffsets {
		assert.Equal(t, uint64(mdatPayloadStart)+uint64(i)*chunkBytes, off)
	}
}

func TestMoveHeaderAndWriteRejectsMissingMoov(t *testing.T) {
	spec := testFixtureSpec()
	ftyp := buildFtyp()
	payload := buildMdatPayload(spec)
	file := append(append([]byte{}, ftyp...), writeMdatBox(payload)...)

	var out bytes.Buffer
	_, err := MoveHeaderAndWrite(bytes.NewReader(file), &out)
	assert.ErrorIs(t, err, ErrFormat)
}
