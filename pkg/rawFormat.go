package eutel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const RAW_MAGIC_NUMBER uint32 = 0xE0DA7E1E

type RawEventType uint16

const (
	BORE_EVENT RawEventType = iota + 1
	DATA_EVENT
	EORE_EVENT
)

func (t RawEventType) String() string {
	switch t {
	case BORE_EVENT:
		return "BORE"
	case DATA_EVENT:
		return "DATA"
	case EORE_EVENT:
		return "EORE"
	default:
		return fmt.Sprintf("RawEventType(%d)", uint16(t))
	}
}

// RawEventHeader starts every record of a raw file. EventSize includes the header.
type RawEventHeader struct {
	Magic       uint32
	EventSize   uint32
	RunNumber   uint32
	EventNumber uint32
	Timestamp   uint64
	EventType   RawEventType
	NPlanes     uint16
}

// RawPlaneHeader precedes NFrames*Width*Height int16 samples of one plane,
// frame after frame, each frame row by row along x.
type RawPlaneHeader struct {
	PlaneID uint16
	NFrames uint16
	Width   uint16
	Height  uint16
}

var rawEventHeaderSize = binary.Size(RawEventHeader{})
var rawPlaneHeaderSize = binary.Size(RawPlaneHeader{})

// RawPlane is the decoded content of one plane in a DATA record.
type RawPlane struct {
	PlaneID int
	Width   int
	Height  int
	Frames  [][]int16
}

func ReadRawHeader(r io.Reader) (RawEventHeader, error) {
	var header RawEventHeader
	headerBinary := make([]byte, rawEventHeaderSize)
	nRead, err := io.ReadFull(r, headerBinary)
	if err == io.ErrUnexpectedEOF {
		return header, &ErrTruncatedRecord{Expected: rawEventHeaderSize, Got: nRead}
	}
	if err != nil {
		return header, err
	}
	headerReader := bytes.NewReader(headerBinary)
	if err := binary.Read(headerReader, binary.LittleEndian, &header); err != nil {
		return header, err
	}
	if header.Magic != RAW_MAGIC_NUMBER {
		return header, fmt.Errorf("bad magic number 0x%08x", header.Magic)
	}
	if int(header.EventSize) < rawEventHeaderSize {
		return header, fmt.Errorf("event %d: size %d smaller than header", header.EventNumber, header.EventSize)
	}
	return header, nil
}

// ReadRawRecord reads one complete record: header and payload.
func ReadRawRecord(r io.Reader) (RawEventHeader, []byte, error) {
	header, err := ReadRawHeader(r)
	if err != nil {
		return header, nil, err
	}
	payloadSize := int(header.EventSize) - rawEventHeaderSize
	payload := make([]byte, payloadSize)
	nRead, err := io.ReadFull(r, payload)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return header, nil, &ErrTruncatedRecord{EventNumber: header.EventNumber, Expected: payloadSize, Got: nRead}
	}
	if err != nil {
		return header, nil, err
	}
	return header, payload, nil
}

func DecodePlanes(header RawEventHeader, payload []byte) ([]RawPlane, error) {
	planes := make([]RawPlane, 0, header.NPlanes)
	position := 0
	for i := 0; i < int(header.NPlanes); i++ {
		if position+rawPlaneHeaderSize > len(payload) {
			return nil, &ErrTruncatedRecord{EventNumber: header.EventNumber, Expected: position + rawPlaneHeaderSize, Got: len(payload)}
		}
		var planeHeader RawPlaneHeader
		planeReader := bytes.NewReader(payload[position : position+rawPlaneHeaderSize])
		if err := binary.Read(planeReader, binary.LittleEndian, &planeHeader); err != nil {
			return nil, err
		}
		position += rawPlaneHeaderSize

		frameSize := int(planeHeader.Width) * int(planeHeader.Height)
		dataSize := int(planeHeader.NFrames) * frameSize * 2
		if position+dataSize > len(payload) {
			return nil, &ErrTruncatedRecord{EventNumber: header.EventNumber, Expected: position + dataSize, Got: len(payload)}
		}
		plane := RawPlane{
			PlaneID: int(planeHeader.PlaneID),
			Width:   int(planeHeader.Width),
			Height:  int(planeHeader.Height),
			Frames:  make([][]int16, planeHeader.NFrames),
		}
		for frame := range plane.Frames {
			samples := make([]int16, frameSize)
			for j := range samples {
				samples[j] = int16(binary.LittleEndian.Uint16(payload[position+2*j:]))
			}
			plane.Frames[frame] = samples
			position += frameSize * 2
		}
		planes = append(planes, plane)
	}
	return planes, nil
}

// RawWriter encodes records in the format read by the MimoTel reader.
type RawWriter struct {
	w io.Writer
}

func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{w: w}
}

func (rw *RawWriter) writeRecord(header RawEventHeader, payload []byte) error {
	header.Magic = RAW_MAGIC_NUMBER
	header.EventSize = uint32(rawEventHeaderSize + len(payload))
	if err := binary.Write(rw.w, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := rw.w.Write(payload)
	return err
}

// WriteBORE writes the begin-of-run record with the run parameters.
func (rw *RawWriter) WriteBORE(runNumber int, params Parameters) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var payload bytes.Buffer
	if err := params.Format(&payload, keys); err != nil {
		return err
	}
	header := RawEventHeader{RunNumber: uint32(runNumber), EventType: BORE_EVENT}
	return rw.writeRecord(header, payload.Bytes())
}

func (rw *RawWriter) WriteEvent(runNumber int, eventNumber int, timestamp int64, planes []RawPlane) error {
	var payload bytes.Buffer
	for _, plane := range planes {
		planeHeader := RawPlaneHeader{
			PlaneID: uint16(plane.PlaneID),
			NFrames: uint16(len(plane.Frames)),
			Width:   uint16(plane.Width),
			Height:  uint16(plane.Height),
		}
		if err := binary.Write(&payload, binary.LittleEndian, planeHeader); err != nil {
			return err
		}
		for _, frame := range plane.Frames {
			if len(frame) != plane.Width*plane.Height {
				return fmt.Errorf("plane %d: frame has %d samples, expected %d", plane.PlaneID, len(frame), plane.Width*plane.Height)
			}
			if err := binary.Write(&payload, binary.LittleEndian, frame); err != nil {
				return err
			}
		}
	}
	header := RawEventHeader{
		RunNumber:   uint32(runNumber),
		EventNumber: uint32(eventNumber),
		Timestamp:   uint64(timestamp),
		EventType:   DATA_EVENT,
		NPlanes:     uint16(len(planes)),
	}
	return rw.writeRecord(header, payload.Bytes())
}

func (rw *RawWriter) WriteEORE(runNumber int, eventNumber int) error {
	header := RawEventHeader{RunNumber: uint32(runNumber), EventNumber: uint32(eventNumber), EventType: EORE_EVENT}
	return rw.writeRecord(header, nil)
}
