package smpp

import (
	"encoding/binary"
	"errors"
	"io"
)

// MinFrameLength and MaxFrameLength bound command_length (spec.md §3.1, §4.2).
const (
	MinFrameLength = 16
	MaxFrameLength = 65536
)

// ReadFrame reads one complete length-prefixed PDU frame from r: the
// first 4 octets give command_length, and exactly command_length-4
// further octets follow. It returns the full frame (header included)
// so the codec can decode it in one pass. Bounds violations are
// reported as *FrameError; I/O failures (including a clean EOF before
// any bytes are read) are returned unwrapped so callers can tell a
// closed connection from a malformed one.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	commandLength := binary.BigEndian.Uint32(lenBuf[:])
	if commandLength < MinFrameLength || commandLength > MaxFrameLength {
		return nil, NewFrameError("command_length %d outside [%d, %d]", commandLength, MinFrameLength, MaxFrameLength)
	}

	frame := make([]byte, commandLength)
	copy(frame, lenBuf[:])
	if _, err := io.ReadFull(r, frame[4:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes a complete encoded PDU (header+body, as produced by
// Encoder.Encode) to w in a single Write call, so concurrent writers
// sharing a connection via a serialized queue never interleave partial
// frames on the wire (spec.md §4.2, §5).
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) < MinFrameLength || len(frame) > MaxFrameLength {
		return NewFrameError("frame length %d outside [%d, %d]", len(frame), MinFrameLength, MaxFrameLength)
	}
	_, err := w.Write(frame)
	return err
}
