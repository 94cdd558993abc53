package smpp

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTripSubmitSM(t *testing.T) {
	builder := NewBuilder()
	req := builder.BuildSubmitSM(SubmitSMParams{
		SourceAddr:   "12345",
		DestAddr:     "67890",
		ShortMessage: []byte("hello world"),
	})

	frame, err := NewEncoder().Encode(&PDU{
		Header: PDUHeader{CommandID: CommandSubmitSM, SequenceNum: 1},
		Body:   req,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pdu, err := NewDecoder().Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := pdu.Body.(*SubmitSM)
	if !ok {
		t.Fatalf("expected *SubmitSM, got %T", pdu.Body)
	}
	if got.SourceAddr != "12345" || got.DestAddr != "67890" {
		t.Fatalf("address mismatch: %+v", got)
	}
	if string(got.ShortMessage) != "hello world" {
		t.Fatalf("short_message mismatch: %q", got.ShortMessage)
	}
}

func TestBuildSubmitSMMovesOversizedMessageToPayloadTLV(t *testing.T) {
	builder := NewBuilder()
	long := strings.Repeat("a", MaxShortMessageLength+1)

	req := builder.BuildSubmitSM(SubmitSMParams{
		SourceAddr:   "1",
		DestAddr:     "2",
		ShortMessage: []byte(long),
	})

	if len(req.ShortMessage) != 0 {
		t.Fatalf("expected short_message cleared, got %d bytes", len(req.ShortMessage))
	}
	tlv, ok := findTLV(req.OptionalParams, TagMessagePayload)
	if !ok {
		t.Fatal("expected message_payload TLV to be present")
	}
	if !bytes.Equal(tlv.Value, []byte(long)) {
		t.Fatal("message_payload TLV value mismatch")
	}
}

func TestDecodeUnknownCommandIDYieldsUnknownPDU(t *testing.T) {
	frame, err := NewEncoder().Encode(&PDU{
		Header: PDUHeader{CommandID: 0x000000FF, SequenceNum: 1},
		Body:   &UnknownPDU{Raw: []byte{0xAA, 0xBB}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pdu, err := NewDecoder().Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	unk, ok := pdu.Body.(*UnknownPDU)
	if !ok {
		t.Fatalf("expected *UnknownPDU, got %T", pdu.Body)
	}
	if unk.OriginalCommandID != 0x000000FF {
		t.Fatalf("expected OriginalCommandID set from header, got 0x%08X", unk.OriginalCommandID)
	}
}

func TestDecodeRejectsCommandLengthMismatch(t *testing.T) {
	frame, err := NewEncoder().Encode(&PDU{
		Header: PDUHeader{CommandID: CommandEnquireLink, SequenceNum: 1},
		Body:   &EnquireLink{},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame = append(frame, 0x00) // corrupt: body now longer than command_length claims

	if _, err := NewDecoder().Decode(frame); err == nil {
		t.Fatal("expected error on command_length/frame size mismatch")
	}
}
