package smpp

import (
	"encoding/binary"
)

// Encoder serializes a *PDU to its complete wire representation.
type Encoder struct{}

func NewEncoder() *Encoder { return &Encoder{} }

// Encode produces command_length, command_id, command_status, and
// sequence_number followed by the marshaled body, with command_length
// computed from the actual body size (spec.md §3.1, §4.1).
func (e *Encoder) Encode(pdu *PDU) ([]byte, error) {
	bodyBytes, err := pdu.Body.Marshal()
	if err != nil {
		return nil, err
	}

	commandLength := uint32(16 + len(bodyBytes))
	if commandLength < MinFrameLength || commandLength > MaxFrameLength {
		return nil, NewFrameError("encoded command_length %d outside [%d, %d]", commandLength, MinFrameLength, MaxFrameLength)
	}

	frame := make([]byte, 16, commandLength)
	binary.BigEndian.PutUint32(frame[0:4], commandLength)
	binary.BigEndian.PutUint32(frame[4:8], pdu.Header.CommandID)
	binary.BigEndian.PutUint32(frame[8:12], pdu.Header.CommandStatus)
	binary.BigEndian.PutUint32(frame[12:16], pdu.Header.SequenceNum)
	frame = append(frame, bodyBytes...)
	return frame, nil
}

// Decoder parses a complete frame (as produced by ReadFrame) into a *PDU.
type Decoder struct{}

func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses frame's 16-octet header and dispatches the remaining
// bytes to the body type registered for command_id. An unrecognized
// command_id decodes to *UnknownPDU with the raw body preserved rather
// than failing, so the caller can reply with generic_nack (spec.md §4.1).
func (d *Decoder) Decode(frame []byte) (*PDU, error) {
	if len(frame) < 16 {
		return nil, NewFrameError("frame shorter than header: %d bytes", len(frame))
	}

	header := PDUHeader{
		CommandLength: binary.BigEndian.Uint32(frame[0:4]),
		CommandID:     binary.BigEndian.Uint32(frame[4:8]),
		CommandStatus: binary.BigEndian.Uint32(frame[8:12]),
		SequenceNum:   binary.BigEndian.Uint32(frame[12:16]),
	}
	if int(header.CommandLength) != len(frame) {
		return nil, NewFrameError("command_length %d does not match frame size %d", header.CommandLength, len(frame))
	}

	body := newPDUBody(header.CommandID)
	if err := body.Unmarshal(frame[16:]); err != nil {
		return nil, err
	}
	if unk, ok := body.(*UnknownPDU); ok {
		unk.OriginalCommandID = header.CommandID
	}

	return &PDU{Header: header, Body: body}, nil
}

// newPDUBody returns a zero-valued body for command_id, or *UnknownPDU
// if command_id is not one this engine models (spec.md §4.1, §9 "PDU
// dispatch through a tagged-variant plus a handler per variant").
func newPDUBody(commandID uint32) PDUBody {
	switch commandID {
	case CommandGenericNack:
		return &GenericNack{}
	case CommandBindTransmitter:
		return &BindTransmitter{}
	case CommandBindTransmitterResp:
		return &BindTransmitterResp{}
	case CommandBindReceiver:
		return &BindReceiver{}
	case CommandBindReceiverResp:
		return &BindReceiverResp{}
	case CommandBindTransceiver:
		return &BindTransceiver{}
	case CommandBindTransceiverResp:
		return &BindTransceiverResp{}
	case CommandSubmitSM:
		return &SubmitSM{}
	case CommandSubmitSMResp:
		return &SubmitSMResp{}
	case CommandDeliverSM:
		return &DeliverSM{}
	case CommandDeliverSMResp:
		return &DeliverSMResp{}
	case CommandEnquireLink:
		return &EnquireLink{}
	case CommandEnquireLinkResp:
		return &EnquireLinkResp{}
	case CommandUnbind:
		return &Unbind{}
	case CommandUnbindResp:
		return &UnbindResp{}
	case CommandOutbind:
		return &Outbind{}
	default:
		return &UnknownPDU{OriginalCommandID: commandID}
	}
}

// Builder constructs well-formed PDUs for the call sites in Client and
// Server, centralizing the >254-byte short_message → message_payload
// TLV rule (spec.md §4.4) so it is applied consistently regardless of
// caller.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// SubmitSMParams is the caller-facing input to BuildSubmitSM.
type SubmitSMParams struct {
	ServiceType          string
	SourceAddrTON        uint8
	SourceAddrNPI        uint8
	SourceAddr           string
	DestAddrTON          uint8
	DestAddrNPI          uint8
	DestAddr             string
	EsmClass             uint8
	ProtocolID           uint8
	PriorityFlag         uint8
	ScheduleDeliveryTime string
	ValidityPeriod       string
	RegisteredDelivery   uint8
	ReplaceIfPresentFlag uint8
	DataCoding           uint8
	SMDefaultMsgID       uint8
	ShortMessage         []byte
	OptionalParams       []OptionalParameter
}

// BuildSubmitSM moves ShortMessage into a message_payload TLV with
// sm_length=0 when it exceeds MaxShortMessageLength, per spec.md §4.4:
// "short_message longer than 254 octets MUST be sent via the
// message_payload TLV".
func (b *Builder) BuildSubmitSM(p SubmitSMParams) *SubmitSM {
	s := &SubmitSM{submitOrDeliver{
		ServiceType:          p.ServiceType,
		SourceAddrTON:        p.SourceAddrTON,
		SourceAddrNPI:        p.SourceAddrNPI,
		SourceAddr:           p.SourceAddr,
		DestAddrTON:          p.DestAddrTON,
		DestAddrNPI:          p.DestAddrNPI,
		DestAddr:             p.DestAddr,
		EsmClass:             p.EsmClass,
		ProtocolID:           p.ProtocolID,
		PriorityFlag:         p.PriorityFlag,
		ScheduleDeliveryTime: p.ScheduleDeliveryTime,
		ValidityPeriod:       p.ValidityPeriod,
		RegisteredDelivery:   p.RegisteredDelivery,
		ReplaceIfPresentFlag: p.ReplaceIfPresentFlag,
		DataCoding:           p.DataCoding,
		SMDefaultMsgID:       p.SMDefaultMsgID,
		OptionalParams:       p.OptionalParams,
	}}

	if len(p.ShortMessage) > MaxShortMessageLength {
		s.OptionalParams = append(append([]OptionalParameter(nil), p.OptionalParams...), OptionalParameter{
			Tag:    TagMessagePayload,
			Length: uint16(len(p.ShortMessage)),
			Value:  p.ShortMessage,
		})
	} else {
		s.ShortMessage = p.ShortMessage
	}
	return s
}

// DeliverSMParams is the caller-facing input to BuildDeliverSM; it
// shares SubmitSMParams's field layout since deliver_sm and submit_sm
// carry the same submit_sm body layout (spec.md §4.1).
type DeliverSMParams = SubmitSMParams

// BuildDeliverSM applies the same >254-octet message_payload TLV rule
// as BuildSubmitSM (spec.md §4.4) to a server-originated deliver_sm.
func (b *Builder) BuildDeliverSM(p DeliverSMParams) *DeliverSM {
	d := &DeliverSM{submitOrDeliver{
		ServiceType:          p.ServiceType,
		SourceAddrTON:        p.SourceAddrTON,
		SourceAddrNPI:        p.SourceAddrNPI,
		SourceAddr:           p.SourceAddr,
		DestAddrTON:          p.DestAddrTON,
		DestAddrNPI:          p.DestAddrNPI,
		DestAddr:             p.DestAddr,
		EsmClass:             p.EsmClass,
		ProtocolID:           p.ProtocolID,
		PriorityFlag:         p.PriorityFlag,
		ScheduleDeliveryTime: p.ScheduleDeliveryTime,
		ValidityPeriod:       p.ValidityPeriod,
		RegisteredDelivery:   p.RegisteredDelivery,
		ReplaceIfPresentFlag: p.ReplaceIfPresentFlag,
		DataCoding:           p.DataCoding,
		SMDefaultMsgID:       p.SMDefaultMsgID,
		OptionalParams:       p.OptionalParams,
	}}

	if len(p.ShortMessage) > MaxShortMessageLength {
		d.OptionalParams = append(append([]OptionalParameter(nil), p.OptionalParams...), OptionalParameter{
			Tag:    TagMessagePayload,
			Length: uint16(len(p.ShortMessage)),
			Value:  p.ShortMessage,
		})
	} else {
		d.ShortMessage = p.ShortMessage
	}
	return d
}

// BuildEnquireLink returns an empty enquire_link body.
func (b *Builder) BuildEnquireLink() *EnquireLink { return &EnquireLink{} }

// BuildUnbind returns an empty unbind body.
func (b *Builder) BuildUnbind() *Unbind { return &Unbind{} }

// BuildGenericNack returns a generic_nack body; the caller sets
// command_status on the PDU header (generic_nack carries no body
// fields of its own).
func (b *Builder) BuildGenericNack() *GenericNack { return &GenericNack{} }
