package smpp

// SMPPVersion is the interface_version this engine advertises.
const SMPPVersion uint8 = 0x34

// Command IDs for the PDU set this engine implements (spec.md §3.1).
const (
	CommandGenericNack      uint32 = 0x80000000
	CommandBindReceiver     uint32 = 0x00000001
	CommandBindTransmitter  uint32 = 0x00000002
	CommandSubmitSM         uint32 = 0x00000004
	CommandDeliverSM        uint32 = 0x00000005
	CommandUnbind           uint32 = 0x00000006
	CommandBindTransceiver  uint32 = 0x00000009
	CommandOutbind          uint32 = 0x0000000B
	CommandEnquireLink      uint32 = 0x00000015

	CommandBindReceiverResp    uint32 = 0x80000001
	CommandBindTransmitterResp uint32 = 0x80000002
	CommandSubmitSMResp        uint32 = 0x80000004
	CommandDeliverSMResp       uint32 = 0x80000005
	CommandUnbindResp          uint32 = 0x80000006
	CommandBindTransceiverResp uint32 = 0x80000009
	CommandEnquireLinkResp     uint32 = 0x80000015
)

// responseIDFor returns the response command_id for a request
// command_id: the high bit set (spec.md §3.1).
func responseIDFor(requestID uint32) uint32 {
	return requestID | 0x80000000
}

// isResponseID reports whether a command_id marks a response PDU.
func isResponseID(id uint32) bool {
	return id&0x80000000 != 0
}

// Command status codes (spec.md §4.1).
const (
	StatusOK              uint32 = 0x00000000
	StatusInvMsgLen       uint32 = 0x00000001
	StatusInvCmdLen       uint32 = 0x00000002
	StatusInvCmdID        uint32 = 0x00000003
	StatusInvBndStatus    uint32 = 0x00000004
	StatusAlreadyBound    uint32 = 0x00000005
	StatusInvPrtFlg       uint32 = 0x00000006
	StatusInvRegDlvFlg    uint32 = 0x00000007
	StatusSysErr          uint32 = 0x00000008
	StatusInvSrcAdr       uint32 = 0x0000000A
	StatusInvDstAdr       uint32 = 0x0000000B
	StatusInvMsgID        uint32 = 0x0000000C
	StatusBindFail        uint32 = 0x0000000D
	StatusInvPaswd        uint32 = 0x0000000E
	StatusInvSysID        uint32 = 0x0000000F
	StatusThrottled       uint32 = 0x00000058
	StatusInvOptParStream uint32 = 0x000000C0
	StatusOptParNotAllwd  uint32 = 0x000000C1
	StatusInvParLen       uint32 = 0x000000C2
	StatusMissingOptParam uint32 = 0x000000C3
	StatusInvOptParamVal  uint32 = 0x000000C4
	StatusUnknownErr      uint32 = 0x000000FF
)

var statusNames = map[uint32]string{
	StatusOK:              "ESME_ROK",
	StatusInvMsgLen:       "ESME_RINVMSGLEN",
	StatusInvCmdLen:       "ESME_RINVCMDLEN",
	StatusInvCmdID:        "ESME_RINVCMDID",
	StatusInvBndStatus:    "ESME_RINVBNDSTS",
	StatusAlreadyBound:    "ESME_RALYBND",
	StatusInvPrtFlg:       "ESME_RINVPRTFLG",
	StatusInvRegDlvFlg:    "ESME_RINVREGDLVFLG",
	StatusSysErr:          "ESME_RSYSERR",
	StatusInvSrcAdr:       "ESME_RINVSRCADR",
	StatusInvDstAdr:       "ESME_RINVDSTADR",
	StatusInvMsgID:        "ESME_RINVMSGID",
	StatusBindFail:        "ESME_RBINDFAIL",
	StatusInvPaswd:        "ESME_RINVPASWD",
	StatusInvSysID:        "ESME_RINVSYSID",
	StatusThrottled:       "ESME_RTHROTTLED",
	StatusInvOptParStream: "ESME_RINVOPTPARSTREAM",
	StatusOptParNotAllwd:  "ESME_ROPTPARNOTALLWD",
	StatusInvParLen:       "ESME_RINVPARLEN",
	StatusMissingOptParam: "ESME_RMISSINGOPTPARAM",
	StatusInvOptParamVal:  "ESME_RINVOPTPARAMVAL",
	StatusUnknownErr:      "ESME_RUNKNOWNERR",
}

// StatusName returns the SMPP mnemonic for a command_status value, or
// "ESME_RUNKNOWNERR" if the value is not in the registry above.
func StatusName(status uint32) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return "ESME_RUNKNOWNERR"
}

// ESM class bits.
const (
	EsmClassDefault      uint8 = 0x00
	EsmClassDatagramMode uint8 = 0x01
	EsmClassForwardMode  uint8 = 0x02
	EsmClassStoreForward uint8 = 0x03
	EsmClassUDHI         uint8 = 0x40
	EsmClassReplyPath    uint8 = 0x80
)

// isDeliveryReceipt reports whether esm_class's message-type bits (5-2)
// mark a deliver_sm carrying an SMSC delivery receipt.
func isDeliveryReceipt(esmClass uint8) bool {
	return esmClass&0x3C == 0x04
}

// Data coding scheme (spec.md: "raw u8, the codec does not transcode").
const (
	DataCodingDefault  uint8 = 0x00
	DataCodingIA5      uint8 = 0x01
	DataCodingBinary   uint8 = 0x02
	DataCodingISO88591 uint8 = 0x03
	DataCodingUCS2     uint8 = 0x08
)

// TON (type of number).
const (
	TONUnknown          uint8 = 0x00
	TONInternational    uint8 = 0x01
	TONNational         uint8 = 0x02
	TONNetworkSpecific  uint8 = 0x03
	TONSubscriberNumber uint8 = 0x04
	TONAlphanumeric     uint8 = 0x05
	TONAbbreviated      uint8 = 0x06
)

// NPI (numbering plan indicator).
const (
	NPIUnknown    uint8 = 0x00
	NPIISDN       uint8 = 0x01
	NPIData       uint8 = 0x03
	NPITelex      uint8 = 0x04
	NPILandMobile uint8 = 0x06
	NPINational   uint8 = 0x08
	NPIPrivate    uint8 = 0x09
	NPIERMES      uint8 = 0x0A
	NPIIP         uint8 = 0x0E
	NPIWAP        uint8 = 0x12
)

// Registered delivery.
const (
	RegisteredDeliveryNone           uint8 = 0x00
	RegisteredDeliverySuccessFailure uint8 = 0x01
	RegisteredDeliveryFailure        uint8 = 0x02
	RegisteredDeliverySuccess        uint8 = 0x03
)

// Message state, carried in delivery receipts (deliver_sm with esm_class
// message-type bits set).
const (
	MessageStateEnroute       uint8 = 0x01
	MessageStateDelivered     uint8 = 0x02
	MessageStateExpired       uint8 = 0x03
	MessageStateDeleted       uint8 = 0x04
	MessageStateUndeliverable uint8 = 0x05
	MessageStateAccepted      uint8 = 0x06
	MessageStateUnknown       uint8 = 0x07
	MessageStateRejected      uint8 = 0x08
)

// Optional parameter (TLV) tags recognized by this engine (spec.md §3.2).
const (
	TagDestAddrSubunit      uint16 = 0x0005
	TagSourceAddrSubunit    uint16 = 0x000D
	TagReceiptedMessageID   uint16 = 0x001E
	TagUserMessageReference uint16 = 0x0204
	TagMessagePayload       uint16 = 0x0424
	TagMessageStateOption   uint16 = 0x0427
)

// Maximum field lengths, including the trailing NUL (spec.md §3.1).
const (
	MaxSystemIDLength     = 16
	MaxPasswordLength     = 9
	MaxSystemTypeLength   = 13
	MaxServiceTypeLength  = 6
	MaxAddressLength      = 21
	MaxAddressRangeLength = 41
	MaxMessageIDLength    = 65
	MaxScheduleTimeLength = 17
	MaxShortMessageLength = 254
)
