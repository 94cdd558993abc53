package smpp

import (
	"bytes"
	"encoding/binary"
)

// PDUHeader is the 16-octet header prefixing every SMPP PDU (spec.md §3.1).
type PDUHeader struct {
	CommandLength uint32
	CommandID     uint32
	CommandStatus uint32
	SequenceNum   uint32
}

// PDU pairs a decoded header with its typed body.
type PDU struct {
	Header PDUHeader
	Body   PDUBody
}

// PDUBody is implemented by every PDU body type. CommandID identifies
// the concrete wire command this body marshals to; for response bodies
// it is the response id (request id | 0x80000000).
type PDUBody interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
	CommandID() uint32
}

// writeCOctetString appends value followed by a single NUL, rejecting
// values that contain an embedded NUL or would not fit (including the
// terminator) within maxLen (spec.md §4.1).
func writeCOctetString(buf *bytes.Buffer, value string, maxLen int) error {
	if len(value) > maxLen-1 {
		return NewProtocolError("field exceeds maximum length %d (including NUL)", maxLen)
	}
	for i := 0; i < len(value); i++ {
		if value[i] == 0 {
			return NewProtocolError("field contains an embedded NUL")
		}
	}
	buf.WriteString(value)
	buf.WriteByte(0)
	return nil
}

// readCOctetString reads a NUL-terminated string from the start of
// data, searching only within the first maxLen bytes. It returns the
// decoded string and the number of bytes consumed (including the NUL).
func readCOctetString(data []byte, maxLen int) (string, int, error) {
	limit := maxLen
	if limit > len(data) {
		limit = len(data)
	}
	idx := bytes.IndexByte(data[:limit], 0)
	if idx == -1 {
		return "", 0, NewProtocolError("missing NUL terminator within max length %d", maxLen)
	}
	return string(data[:idx]), idx + 1, nil
}

// CString is a standalone NUL-terminated field, kept for callers (e.g.
// the builder helpers in codec.go) that need to validate a field in
// isolation before it's embedded in a larger PDU.
type CString struct {
	Value  string
	MaxLen int
}

func NewCString(maxLen int) *CString { return &CString{MaxLen: maxLen} }

func (cs *CString) SetString(value string) error {
	if len(value) > cs.MaxLen-1 {
		return NewProtocolError("string too long: %d > %d", len(value), cs.MaxLen-1)
	}
	for i := 0; i < len(value); i++ {
		if value[i] == 0 {
			return NewProtocolError("string contains an embedded NUL")
		}
	}
	cs.Value = value
	return nil
}

func (cs *CString) GetString() string { return cs.Value }

func (cs *CString) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, cs.Value, cs.MaxLen); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (cs *CString) Unmarshal(data []byte) error {
	value, _, err := readCOctetString(data, cs.MaxLen)
	if err != nil {
		return err
	}
	cs.Value = value
	return nil
}

// OptionalParameter is a single TLV optional parameter (spec.md §3.2).
type OptionalParameter struct {
	Tag    uint16
	Length uint16
	Value  []byte
}

func marshalTLVs(buf *bytes.Buffer, params []OptionalParameter) {
	for _, p := range params {
		binary.Write(buf, binary.BigEndian, p.Tag)
		binary.Write(buf, binary.BigEndian, uint16(len(p.Value)))
		buf.Write(p.Value)
	}
}

// unmarshalTLVs decodes every TLV in data in order, stopping (without
// error) at the first truncated entry — the codec already bounds the
// whole PDU to command_length, so a short trailing fragment here would
// indicate a malformed encoder upstream rather than recoverable input.
func unmarshalTLVs(data []byte) []OptionalParameter {
	var params []OptionalParameter
	offset := 0
	for offset+4 <= len(data) {
		tag := binary.BigEndian.Uint16(data[offset : offset+2])
		length := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		if offset+int(length) > len(data) {
			break
		}
		value := make([]byte, length)
		copy(value, data[offset:offset+int(length)])
		offset += int(length)
		params = append(params, OptionalParameter{Tag: tag, Length: length, Value: value})
	}
	return params
}

func findTLV(params []OptionalParameter, tag uint16) (OptionalParameter, bool) {
	for _, p := range params {
		if p.Tag == tag {
			return p, true
		}
	}
	return OptionalParameter{}, false
}

// Address is a TON/NPI-qualified SME address (spec.md §3.1).
type Address struct {
	TON  uint8
	NPI  uint8
	Addr string
}

func (a *Address) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(a.TON)
	buf.WriteByte(a.NPI)
	if err := writeCOctetString(buf, a.Addr, MaxAddressLength); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Address) unmarshal(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, NewProtocolError("address truncated")
	}
	a.TON = data[0]
	a.NPI = data[1]
	addr, n, err := readCOctetString(data[2:], MaxAddressLength)
	if err != nil {
		return 0, err
	}
	a.Addr = addr
	return 2 + n, nil
}

func (a *Address) Unmarshal(data []byte) error {
	_, err := a.unmarshal(data)
	return err
}

// GenericNack is sent in reply to a PDU the receiver could not process
// at all (unknown command id, malformed header).
type GenericNack struct{}

func (g *GenericNack) Marshal() ([]byte, error)     { return nil, nil }
func (g *GenericNack) Unmarshal(data []byte) error  { return nil }
func (g *GenericNack) CommandID() uint32            { return CommandGenericNack }

// bindBody holds the fields shared by bind_transmitter, bind_receiver,
// and bind_transceiver (they differ only in command_id).
type bindBody struct {
	SystemID         string
	Password         string
	SystemType       string
	InterfaceVersion uint8
	AddrTON          uint8
	AddrNPI          uint8
	AddressRange     string
}

func (b *bindBody) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, b.SystemID, MaxSystemIDLength); err != nil {
		return nil, err
	}
	if err := writeCOctetString(buf, b.Password, MaxPasswordLength); err != nil {
		return nil, err
	}
	if err := writeCOctetString(buf, b.SystemType, MaxSystemTypeLength); err != nil {
		return nil, err
	}
	buf.WriteByte(b.InterfaceVersion)
	buf.WriteByte(b.AddrTON)
	buf.WriteByte(b.AddrNPI)
	if err := writeCOctetString(buf, b.AddressRange, MaxAddressRangeLength); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *bindBody) Unmarshal(data []byte) error {
	offset := 0
	for _, f := range []struct {
		dst    *string
		maxLen int
	}{
		{&b.SystemID, MaxSystemIDLength},
		{&b.Password, MaxPasswordLength},
		{&b.SystemType, MaxSystemTypeLength},
	} {
		v, n, err := readCOctetString(data[offset:], f.maxLen)
		if err != nil {
			return err
		}
		*f.dst = v
		offset += n
	}
	if offset+3 > len(data) {
		return NewProtocolError("bind request truncated before interface_version/addr_ton/addr_npi")
	}
	b.InterfaceVersion = data[offset]
	b.AddrTON = data[offset+1]
	b.AddrNPI = data[offset+2]
	offset += 3
	addrRange, _, err := readCOctetString(data[offset:], MaxAddressRangeLength)
	if err != nil {
		return err
	}
	b.AddressRange = addrRange
	return nil
}

type BindTransmitter struct{ bindBody }

func (b *BindTransmitter) CommandID() uint32 { return CommandBindTransmitter }

type BindReceiver struct{ bindBody }

func (b *BindReceiver) CommandID() uint32 { return CommandBindReceiver }

type BindTransceiver struct{ bindBody }

func (b *BindTransceiver) CommandID() uint32 { return CommandBindTransceiver }

// bindRespBody holds the single field common to every bind_*_resp.
type bindRespBody struct {
	SystemID string
}

func (b *bindRespBody) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, b.SystemID, MaxSystemIDLength); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *bindRespBody) Unmarshal(data []byte) error {
	if len(data) == 0 {
		b.SystemID = ""
		return nil
	}
	v, _, err := readCOctetString(data, MaxSystemIDLength)
	if err != nil {
		return err
	}
	b.SystemID = v
	return nil
}

type BindTransmitterResp struct{ bindRespBody }

func (b *BindTransmitterResp) CommandID() uint32 { return CommandBindTransmitterResp }

type BindReceiverResp struct{ bindRespBody }

func (b *BindReceiverResp) CommandID() uint32 { return CommandBindReceiverResp }

type BindTransceiverResp struct{ bindRespBody }

func (b *BindTransceiverResp) CommandID() uint32 { return CommandBindTransceiverResp }

// submitOrDeliver holds the fields shared by submit_sm and deliver_sm —
// the two PDUs SMPP v3.4 defines with an identical body layout.
type submitOrDeliver struct {
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

func (s *submitOrDeliver) marshal() ([]byte, error) {
	if len(s.ShortMessage) > MaxShortMessageLength {
		return nil, NewProtocolError("short_message length %d exceeds %d; use message_payload TLV instead", len(s.ShortMessage), MaxShortMessageLength)
	}
	if _, hasPayload := findTLV(s.OptionalParams, TagMessagePayload); hasPayload && len(s.ShortMessage) != 0 {
		return nil, NewProtocolError("short_message must be empty when message_payload TLV is present")
	}

	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, s.ServiceType, MaxServiceTypeLength); err != nil {
		return nil, err
	}
	buf.WriteByte(s.SourceAddrTON)
	buf.WriteByte(s.SourceAddrNPI)
	if err := writeCOctetString(buf, s.SourceAddr, MaxAddressLength); err != nil {
		return nil, err
	}
	buf.WriteByte(s.DestAddrTON)
	buf.WriteByte(s.DestAddrNPI)
	if err := writeCOctetString(buf, s.DestAddr, MaxAddressLength); err != nil {
		return nil, err
	}
	buf.WriteByte(s.EsmClass)
	buf.WriteByte(s.ProtocolID)
	buf.WriteByte(s.PriorityFlag)
	if err := writeCOctetString(buf, s.ScheduleDeliveryTime, MaxScheduleTimeLength); err != nil {
		return nil, err
	}
	if err := writeCOctetString(buf, s.ValidityPeriod, MaxScheduleTimeLength); err != nil {
		return nil, err
	}
	buf.WriteByte(s.RegisteredDelivery)
	buf.WriteByte(s.ReplaceIfPresentFlag)
	buf.WriteByte(s.DataCoding)
	buf.WriteByte(s.SMDefaultMsgID)
	buf.WriteByte(uint8(len(s.ShortMessage)))
	buf.Write(s.ShortMessage)
	marshalTLVs(buf, s.OptionalParams)
	return buf.Bytes(), nil
}

func (s *submitOrDeliver) unmarshal(data []byte) error {
	offset := 0
	for _, f := range []struct {
		dst    *string
		maxLen int
	}{{&s.ServiceType, MaxServiceTypeLength}} {
		v, n, err := readCOctetString(data[offset:], f.maxLen)
		if err != nil {
			return err
		}
		*f.dst = v
		offset += n
	}

	if offset+2 > len(data) {
		return NewProtocolError("truncated before source_addr_ton/npi")
	}
	s.SourceAddrTON, s.SourceAddrNPI = data[offset], data[offset+1]
	offset += 2
	v, n, err := readCOctetString(data[offset:], MaxAddressLength)
	if err != nil {
		return err
	}
	s.SourceAddr = v
	offset += n

	if offset+2 > len(data) {
		return NewProtocolError("truncated before dest_addr_ton/npi")
	}
	s.DestAddrTON, s.DestAddrNPI = data[offset], data[offset+1]
	offset += 2
	v, n, err = readCOctetString(data[offset:], MaxAddressLength)
	if err != nil {
		return err
	}
	s.DestAddr = v
	offset += n

	if offset+3 > len(data) {
		return NewProtocolError("truncated before esm_class/protocol_id/priority_flag")
	}
	s.EsmClass, s.ProtocolID, s.PriorityFlag = data[offset], data[offset+1], data[offset+2]
	offset += 3

	v, n, err = readCOctetString(data[offset:], MaxScheduleTimeLength)
	if err != nil {
		return err
	}
	s.ScheduleDeliveryTime = v
	offset += n
	v, n, err = readCOctetString(data[offset:], MaxScheduleTimeLength)
	if err != nil {
		return err
	}
	s.ValidityPeriod = v
	offset += n

	if offset+4 > len(data) {
		return NewProtocolError("truncated before registered_delivery/replace_if_present_flag/data_coding/sm_default_msg_id")
	}
	s.RegisteredDelivery = data[offset]
	s.ReplaceIfPresentFlag = data[offset+1]
	s.DataCoding = data[offset+2]
	s.SMDefaultMsgID = data[offset+3]
	offset += 4

	if offset >= len(data) {
		return NewProtocolError("truncated before sm_length")
	}
	smLength := int(data[offset])
	offset++
	if offset+smLength > len(data) {
		return NewProtocolError("short_message truncated: declared %d bytes", smLength)
	}
	s.ShortMessage = append([]byte(nil), data[offset:offset+smLength]...)
	offset += smLength

	s.OptionalParams = unmarshalTLVs(data[offset:])

	payload, hasPayload := findTLV(s.OptionalParams, TagMessagePayload)
	switch {
	case hasPayload && smLength != 0:
		return NewProtocolError("sm_length must be 0 when message_payload TLV is present")
	case hasPayload:
		s.ShortMessage = payload.Value
	}
	return nil
}

// SubmitSM is the submit_sm PDU: an ESME submitting a message to the SMSC.
type SubmitSM struct{ submitOrDeliver }

func (s *SubmitSM) Marshal() ([]byte, error)    { return s.marshal() }
func (s *SubmitSM) Unmarshal(data []byte) error { return s.unmarshal(data) }
func (s *SubmitSM) CommandID() uint32           { return CommandSubmitSM }

// SubmitSMResp is the submit_sm_resp PDU.
type SubmitSMResp struct {
	MessageID string
}

func (s *SubmitSMResp) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, s.MessageID, MaxMessageIDLength); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *SubmitSMResp) Unmarshal(data []byte) error {
	if len(data) == 0 {
		s.MessageID = ""
		return nil
	}
	v, _, err := readCOctetString(data, MaxMessageIDLength)
	if err != nil {
		return err
	}
	s.MessageID = v
	return nil
}

func (s *SubmitSMResp) CommandID() uint32 { return CommandSubmitSMResp }

// DeliverSM is the deliver_sm PDU: the SMSC delivering a message (or a
// delivery receipt, signalled via esm_class) to a bound receiver.
type DeliverSM struct{ submitOrDeliver }

func (d *DeliverSM) Marshal() ([]byte, error)    { return d.marshal() }
func (d *DeliverSM) Unmarshal(data []byte) error { return d.unmarshal(data) }
func (d *DeliverSM) CommandID() uint32           { return CommandDeliverSM }

// IsDeliveryReceipt reports whether this deliver_sm carries an SMSC
// delivery receipt rather than a regular mobile-terminated message.
func (d *DeliverSM) IsDeliveryReceipt() bool { return isDeliveryReceipt(d.EsmClass) }

// DeliverSMResp is the deliver_sm_resp PDU.
type DeliverSMResp struct {
	MessageID string
}

func (d *DeliverSMResp) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, d.MessageID, MaxMessageIDLength); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DeliverSMResp) Unmarshal(data []byte) error {
	if len(data) == 0 {
		d.MessageID = ""
		return nil
	}
	v, _, err := readCOctetString(data, MaxMessageIDLength)
	if err != nil {
		return err
	}
	d.MessageID = v
	return nil
}

func (d *DeliverSMResp) CommandID() uint32 { return CommandDeliverSMResp }

// EnquireLink is the zero-payload keep-alive PDU.
type EnquireLink struct{}

func (e *EnquireLink) Marshal() ([]byte, error)    { return nil, nil }
func (e *EnquireLink) Unmarshal(data []byte) error { return nil }
func (e *EnquireLink) CommandID() uint32           { return CommandEnquireLink }

// EnquireLinkResp is the zero-payload keep-alive reply.
type EnquireLinkResp struct{}

func (e *EnquireLinkResp) Marshal() ([]byte, error)    { return nil, nil }
func (e *EnquireLinkResp) Unmarshal(data []byte) error { return nil }
func (e *EnquireLinkResp) CommandID() uint32           { return CommandEnquireLinkResp }

// Unbind is a zero-payload request to end a bound session gracefully.
type Unbind struct{}

func (u *Unbind) Marshal() ([]byte, error)    { return nil, nil }
func (u *Unbind) Unmarshal(data []byte) error { return nil }
func (u *Unbind) CommandID() uint32           { return CommandUnbind }

// UnbindResp is the zero-payload reply to Unbind.
type UnbindResp struct{}

func (u *UnbindResp) Marshal() ([]byte, error)    { return nil, nil }
func (u *UnbindResp) Unmarshal(data []byte) error { return nil }
func (u *UnbindResp) CommandID() uint32           { return CommandUnbindResp }

// Outbind lets an SMSC invite an ESME to connect and bind. Per spec.md
// §9 Open Questions, this engine decodes it but defines no end-to-end
// path: there is no state-machine transition named for it.
type Outbind struct {
	SystemID string
	Password string
}

func (o *Outbind) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeCOctetString(buf, o.SystemID, MaxSystemIDLength); err != nil {
		return nil, err
	}
	if err := writeCOctetString(buf, o.Password, MaxPasswordLength); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Outbind) Unmarshal(data []byte) error {
	systemID, n, err := readCOctetString(data, MaxSystemIDLength)
	if err != nil {
		return err
	}
	password, _, err := readCOctetString(data[n:], MaxPasswordLength)
	if err != nil {
		return err
	}
	o.SystemID = systemID
	o.Password = password
	return nil
}

func (o *Outbind) CommandID() uint32 { return CommandOutbind }

// UnknownPDU preserves the raw body of a PDU whose command_id this
// engine does not recognize, so the session layer can still reply with
// generic_nack/ESME_RINVCMDID without losing the bytes (spec.md §4.1).
type UnknownPDU struct {
	OriginalCommandID uint32
	Raw               []byte
}

func (u *UnknownPDU) Marshal() ([]byte, error) { return u.Raw, nil }

func (u *UnknownPDU) Unmarshal(data []byte) error {
	u.Raw = append([]byte(nil), data...)
	return nil
}

func (u *UnknownPDU) CommandID() uint32 { return u.OriginalCommandID }
