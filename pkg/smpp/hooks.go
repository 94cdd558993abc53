package smpp

import "context"

// ClientHooks lets a Client react to peer-initiated traffic without
// forcing every caller to implement every case (spec.md §9 "hooks as
// typed interfaces, not callback slots"). Embed ClientHooksBase to get
// no-op defaults and override only what matters.
type ClientHooks interface {
	// OnDeliverSM is invoked for every inbound deliver_sm, including
	// delivery receipts (check DeliverSM.IsDeliveryReceipt).
	OnDeliverSM(ctx context.Context, session *Session, pdu *DeliverSM) (*DeliverSMResp, error)

	// OnOutbind is invoked when the peer sends an outbind before any
	// bind is issued (spec.md §4.1: decode-only, no state transition).
	OnOutbind(ctx context.Context, session *Session, pdu *Outbind)

	// OnUnbind is invoked when the peer initiates an unbind.
	OnUnbind(ctx context.Context, session *Session)

	// OnClose is invoked once when the session tears down.
	OnClose(session *Session, err error)
}

// ClientHooksBase implements ClientHooks with no-op defaults; embed it
// in a caller's hook type to override only the methods it needs.
type ClientHooksBase struct{}

func (ClientHooksBase) OnDeliverSM(ctx context.Context, session *Session, pdu *DeliverSM) (*DeliverSMResp, error) {
	return &DeliverSMResp{}, nil
}
func (ClientHooksBase) OnOutbind(ctx context.Context, session *Session, pdu *Outbind) {}
func (ClientHooksBase) OnUnbind(ctx context.Context, session *Session)                {}
func (ClientHooksBase) OnClose(session *Session, err error)                           {}

// ServerHooks lets a Server react to bind requests and inbound
// submit_sm traffic. Embed ServerHooksBase for no-op defaults.
type ServerHooks interface {
	// Authenticate validates bind credentials; a non-nil error fails
	// the bind. A *BindError's Status is sent as is, *AuthenticationError
	// maps to StatusInvPaswd, *CapacityError to StatusSysErr, and any
	// other error to StatusBindFail.
	Authenticate(ctx context.Context, systemID, password, systemType string, bindType ConnectionState) error

	// OnSubmitSM handles an inbound submit_sm and returns the response
	// to send back (message_id populated on success).
	OnSubmitSM(ctx context.Context, session *Session, pdu *SubmitSM) (*SubmitSMResp, error)

	// OnBindSuccess is invoked after a session transitions into a
	// bound state.
	OnBindSuccess(ctx context.Context, session *Session)

	// OnUnbind is invoked when the peer initiates an unbind.
	OnUnbind(ctx context.Context, session *Session)

	// OnClose is invoked once when the session tears down.
	OnClose(session *Session, err error)
}

// ServerHooksBase implements ServerHooks with no-op/always-fail
// defaults; embed it and override what matters. The zero-value
// Authenticate rejects every bind, which is the safer default for a
// server that forgot to configure authentication.
type ServerHooksBase struct{}

func (ServerHooksBase) Authenticate(ctx context.Context, systemID, password, systemType string, bindType ConnectionState) error {
	return &AuthenticationError{SystemID: systemID}
}
func (ServerHooksBase) OnSubmitSM(ctx context.Context, session *Session, pdu *SubmitSM) (*SubmitSMResp, error) {
	return &SubmitSMResp{MessageID: ""}, nil
}
func (ServerHooksBase) OnBindSuccess(ctx context.Context, session *Session) {}
func (ServerHooksBase) OnUnbind(ctx context.Context, session *Session)      {}
func (ServerHooksBase) OnClose(session *Session, err error)                 {}
