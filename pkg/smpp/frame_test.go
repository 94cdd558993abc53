package smpp

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	body := &EnquireLink{}
	frame, err := NewEncoder().Encode(&PDU{
		Header: PDUHeader{CommandID: CommandEnquireLink, SequenceNum: 7},
		Body:   body,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	out, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(out, frame) {
		t.Fatalf("frame mismatch: got %x want %x", out, frame)
	}
}

func TestReadFrameEOFBeforeAnyBytes(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameRejectsTooShortCommandLength(t *testing.T) {
	var lenBuf [4]byte
	lenBuf[3] = 8 // command_length=8, below MinFrameLength
	_, err := ReadFrame(bytes.NewReader(lenBuf[:]))
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FrameError, got %v", err)
	}
}

func TestReadFrameRejectsOversizedCommandLength(t *testing.T) {
	lenBuf := make([]byte, 4)
	lenBuf[0] = 0xFF // command_length way above MaxFrameLength
	_, err := ReadFrame(bytes.NewReader(lenBuf))
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FrameError, got %v", err)
	}
}

func TestWriteFrameRejectsUndersizedFrame(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, []byte{1, 2, 3})
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FrameError, got %v", err)
	}
}
