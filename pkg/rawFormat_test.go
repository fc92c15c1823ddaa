package eutel

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlane(id int, width int, height int, hitIndex int, signal int16) RawPlane {
	frames := make([][]int16, 3)
	for i := range frames {
		frames[i] = make([]int16, width*height)
		for j := range frames[i] {
			frames[i][j] = 1000
		}
	}
	frames[1][hitIndex] -= signal
	frames[2][hitIndex] -= signal
	return RawPlane{PlaneID: id, Width: width, Height: height, Frames: frames}
}

func TestRawRecords(t *testing.T) {
	var buf bytes.Buffer
	writer := NewRawWriter(&buf)
	require.NoError(t, writer.WriteBORE(12, Parameters{"Ithr_0": 51, "BackBiasVoltage": -3}))
	planes := []RawPlane{testPlane(0, 4, 2, 5, 20), testPlane(3, 2, 2, 0, 7)}
	require.NoError(t, writer.WriteEvent(12, 1, 800, planes))
	require.NoError(t, writer.WriteEORE(12, 2))

	header, payload, err := ReadRawRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, BORE_EVENT, header.EventType)
	assert.Equal(t, "BackBiasVoltage=-3\nIthr_0=51\n", string(payload))

	header, payload, err = ReadRawRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, DATA_EVENT, header.EventType)
	assert.Equal(t, uint32(12), header.RunNumber)
	assert.Equal(t, uint32(1), header.EventNumber)
	assert.Equal(t, uint64(800), header.Timestamp)
	decoded, err := DecodePlanes(header, payload)
	require.NoError(t, err)
	if diff := cmp.Diff(planes, decoded); diff != "" {
		t.Errorf("DecodePlanes() mismatch (-want +got):\n%s", diff)
	}

	header, payload, err = ReadRawRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, EORE_EVENT, header.EventType)
	assert.Empty(t, payload)

	_, _, err = ReadRawRecord(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestRawRecordTruncated(t *testing.T) {
	var buf bytes.Buffer
	writer := NewRawWriter(&buf)
	require.NoError(t, writer.WriteEvent(1, 9, 0, []RawPlane{testPlane(0, 4, 4, 0, 1)}))
	data := buf.Bytes()[:buf.Len()-3]

	_, _, err := ReadRawRecord(bytes.NewReader(data))
	var truncated *ErrTruncatedRecord
	require.ErrorAs(t, err, &truncated)
	assert.Equal(t, uint32(9), truncated.EventNumber)

	_, _, err = ReadRawRecord(bytes.NewReader(data[:10]))
	assert.ErrorAs(t, err, &truncated)
}

func TestRawRecordBadMagic(t *testing.T) {
	var buf bytes.Buffer
	header := RawEventHeader{Magic: 0xDEADBEEF, EventSize: uint32(rawEventHeaderSize), EventType: DATA_EVENT}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, header))

	_, _, err := ReadRawRecord(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestRawWriterRejectsBadFrame(t *testing.T) {
	plane := testPlane(0, 4, 2, 0, 1)
	plane.Frames[2] = plane.Frames[2][:5]
	err := NewRawWriter(io.Discard).WriteEvent(1, 0, 0, []RawPlane{plane})
	assert.Error(t, err)
}

func TestRawEventTypeString(t *testing.T) {
	assert.Equal(t, "BORE", BORE_EVENT.String())
	assert.Equal(t, "RawEventType(9)", RawEventType(9).String())
}
