package smpp

import (
	"context"
	"testing"
	"time"
)

// stubServerHooks lets each test control authentication and submit_sm
// outcomes without a real UserAuth implementation.
type stubServerHooks struct {
	ServerHooksBase
	authErr    error
	submitResp *SubmitSMResp
	submitErr  error
}

func (h *stubServerHooks) Authenticate(ctx context.Context, systemID, password, systemType string, bindType ConnectionState) error {
	return h.authErr
}

func (h *stubServerHooks) OnSubmitSM(ctx context.Context, session *Session, pdu *SubmitSM) (*SubmitSMResp, error) {
	if h.submitErr != nil {
		return nil, h.submitErr
	}
	if h.submitResp != nil {
		return h.submitResp, nil
	}
	return &SubmitSMResp{MessageID: "msg-1"}, nil
}

func newTestServerHandler(t *testing.T, hooks ServerHooks) (*serverSessionHandler, *Session, func()) {
	t.Helper()
	srv := NewServer(ServerConfig{}, hooks, noopLogger{}, nil)
	session, peer := newTestSession(RoleAcceptor)
	go session.writerLoop()
	handler := &serverSessionHandler{server: srv, session: session, sessionID: "sess-1"}
	return handler, session, func() { peer.Close() }
}

func TestServerHandleBindSuccessTransitionsSession(t *testing.T) {
	handler, session, cleanup := newTestServerHandler(t, &stubServerHooks{})
	defer cleanup()

	req := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{bindBody{SystemID: "client1", Password: "secret", InterfaceVersion: 0x34}},
	}
	body, respCmdID, status, err := handler.dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if respCmdID != CommandBindTransceiverResp || status != StatusOK {
		t.Fatalf("expected bind_transceiver_resp/OK, got cmd=0x%08X status=0x%08X", respCmdID, status)
	}
	resp, ok := body.(*BindTransceiverResp)
	if !ok || resp.SystemID != "client1" {
		t.Fatalf("expected resp system_id echoed, got %#v", body)
	}
	if session.State() != StateBoundTrx {
		t.Fatalf("expected session bound trx, got %v", session.State())
	}
}

func TestServerHandleBindAuthFailureReturnsBindErrorStatus(t *testing.T) {
	handler, session, cleanup := newTestServerHandler(t, &stubServerHooks{authErr: &BindError{Status: StatusInvPaswd}})
	defer cleanup()

	req := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransmitter, SequenceNum: 2},
		Body:   &BindTransmitter{bindBody{SystemID: "client1", Password: "wrong", InterfaceVersion: 0x34}},
	}
	_, _, status, err := handler.dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if status != StatusInvPaswd {
		t.Fatalf("expected ESME_RINVPASWD, got 0x%08X", status)
	}
	if session.State() != StateOpen {
		t.Fatalf("expected session to remain Open immediately after failed bind, got %v", session.State())
	}
}

// TestServerHandleBindAuthenticationErrorMapsToInvPaswd guards against
// the bug where every non-*BindError auth failure fell back to
// ESME_RBINDFAIL: ServerHooksAuth (internal/auth) and any other hook
// that rejects bad credentials with *AuthenticationError must still
// produce ESME_RINVPASWD on the wire (spec.md §4.5 pt 3, §7).
func TestServerHandleBindAuthenticationErrorMapsToInvPaswd(t *testing.T) {
	handler, _, cleanup := newTestServerHandler(t, &stubServerHooks{authErr: &AuthenticationError{SystemID: "client1", Reason: "bad password"}})
	defer cleanup()

	req := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{bindBody{SystemID: "client1", Password: "wrong", InterfaceVersion: 0x34}},
	}
	_, _, status, err := handler.dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if status != StatusInvPaswd {
		t.Fatalf("expected ESME_RINVPASWD for *AuthenticationError, got 0x%08X", status)
	}
}

func TestServerHandleBindCapacityErrorMapsToSysErr(t *testing.T) {
	handler, _, cleanup := newTestServerHandler(t, &stubServerHooks{authErr: &CapacityError{MaxConnections: 10}})
	defer cleanup()

	req := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{bindBody{SystemID: "client1", Password: "wrong", InterfaceVersion: 0x34}},
	}
	_, _, status, err := handler.dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if status != StatusSysErr {
		t.Fatalf("expected ESME_RSYSERR for *CapacityError, got 0x%08X", status)
	}
}

// TestServerHandleBindAuthFailureClosesSessionAfterGracePeriod exercises
// the spec.md §4.5 pt 3 "reply ... and close" behavior: the session
// must tear down shortly after an authentication rejection rather than
// idling open until bind_timeout.
func TestServerHandleBindAuthFailureClosesSessionAfterGracePeriod(t *testing.T) {
	handler, session, cleanup := newTestServerHandler(t, &stubServerHooks{authErr: &AuthenticationError{SystemID: "client1"}})
	defer cleanup()

	req := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{bindBody{SystemID: "client1", Password: "wrong", InterfaceVersion: 0x34}},
	}
	if _, _, status, _ := handler.dispatch(context.Background(), req); status != StatusInvPaswd {
		t.Fatalf("expected ESME_RINVPASWD, got 0x%08X", status)
	}

	deadline := time.After(2 * time.Second)
	for {
		if session.State() == StateClosed {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected session to close after an authentication failure")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServerHandleBindRejectsSecondBindAttempt(t *testing.T) {
	handler, _, cleanup := newTestServerHandler(t, &stubServerHooks{})
	defer cleanup()

	req := &PDU{
		Header: PDUHeader{CommandID: CommandBindReceiver, SequenceNum: 1},
		Body:   &BindReceiver{bindBody{SystemID: "client1", Password: "secret", InterfaceVersion: 0x34}},
	}
	if _, _, status, _ := handler.dispatch(context.Background(), req); status != StatusOK {
		t.Fatalf("expected first bind to succeed, got status 0x%08X", status)
	}
	if _, _, status, _ := handler.dispatch(context.Background(), req); status != StatusAlreadyBound {
		t.Fatalf("expected ESME_RALYBND on second bind, got 0x%08X", status)
	}
}

func TestServerHandleSubmitSMBeforeBindRejected(t *testing.T) {
	handler, _, cleanup := newTestServerHandler(t, &stubServerHooks{})
	defer cleanup()

	req := &PDU{Header: PDUHeader{CommandID: CommandSubmitSM, SequenceNum: 3}, Body: &SubmitSM{}}
	_, respCmdID, status, err := handler.dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if respCmdID != CommandSubmitSMResp || status != StatusInvBndStatus {
		t.Fatalf("expected submit_sm_resp/ESME_RINVBNDSTS, got cmd=0x%08X status=0x%08X", respCmdID, status)
	}
}

func TestServerHandleSubmitSMAfterBindSucceeds(t *testing.T) {
	handler, _, cleanup := newTestServerHandler(t, &stubServerHooks{})
	defer cleanup()

	bindReq := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{bindBody{SystemID: "client1", Password: "secret", InterfaceVersion: 0x34}},
	}
	if _, _, status, _ := handler.dispatch(context.Background(), bindReq); status != StatusOK {
		t.Fatalf("expected bind to succeed, got 0x%08X", status)
	}

	submitReq := &PDU{
		Header: PDUHeader{CommandID: CommandSubmitSM, SequenceNum: 2},
		Body:   &SubmitSM{},
	}
	body, respCmdID, status, err := handler.dispatch(context.Background(), submitReq)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if respCmdID != CommandSubmitSMResp || status != StatusOK {
		t.Fatalf("expected submit_sm_resp/OK, got cmd=0x%08X status=0x%08X", respCmdID, status)
	}
	resp, ok := body.(*SubmitSMResp)
	if !ok || resp.MessageID != "msg-1" {
		t.Fatalf("expected message_id from hooks, got %#v", body)
	}
}

func TestServerHandleSubmitSMHookErrorReturnsSysErr(t *testing.T) {
	handler, _, cleanup := newTestServerHandler(t, &stubServerHooks{submitErr: &ProtocolError{Reason: "boom"}})
	defer cleanup()

	bindReq := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransmitter, SequenceNum: 1},
		Body:   &BindTransmitter{bindBody{SystemID: "client1", Password: "secret", InterfaceVersion: 0x34}},
	}
	if _, _, status, _ := handler.dispatch(context.Background(), bindReq); status != StatusOK {
		t.Fatalf("expected bind to succeed, got 0x%08X", status)
	}

	submitReq := &PDU{Header: PDUHeader{CommandID: CommandSubmitSM, SequenceNum: 2}, Body: &SubmitSM{}}
	_, respCmdID, status, err := handler.dispatch(context.Background(), submitReq)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if respCmdID != CommandSubmitSMResp || status != StatusSysErr {
		t.Fatalf("expected submit_sm_resp/ESME_RSYSERR, got cmd=0x%08X status=0x%08X", respCmdID, status)
	}
}

func TestServerHandleUnbindTransitionsToUnbinding(t *testing.T) {
	handler, session, cleanup := newTestServerHandler(t, &stubServerHooks{})
	defer cleanup()

	bindReq := &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{bindBody{SystemID: "client1", Password: "secret", InterfaceVersion: 0x34}},
	}
	if _, _, status, _ := handler.dispatch(context.Background(), bindReq); status != StatusOK {
		t.Fatalf("expected bind to succeed, got 0x%08X", status)
	}

	unbindReq := &PDU{Header: PDUHeader{CommandID: CommandUnbind, SequenceNum: 2}, Body: &Unbind{}}
	_, respCmdID, status, err := handler.dispatch(context.Background(), unbindReq)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if respCmdID != CommandUnbindResp || status != StatusOK {
		t.Fatalf("expected unbind_resp/OK, got cmd=0x%08X status=0x%08X", respCmdID, status)
	}
	if session.State() != StateUnbinding {
		t.Fatalf("expected session state Unbinding, got %v", session.State())
	}
}

func TestServerDeliverSMReturnsNoSuchPeerWhenUnbound(t *testing.T) {
	srv := NewServer(ServerConfig{}, &stubServerHooks{}, noopLogger{}, nil)
	if _, err := srv.DeliverSM(context.Background(), "ghost", DeliverSMParams{}); err == nil {
		t.Fatal("expected NoSuchPeer for an unbound target system_id")
	} else if _, ok := err.(*NoSuchPeer); !ok {
		t.Fatalf("expected *NoSuchPeer, got %T: %v", err, err)
	}
}

func TestServerDeliverSMRoutesToBoundReceiver(t *testing.T) {
	srv := NewServer(ServerConfig{}, &stubServerHooks{}, noopLogger{}, nil)
	session, peer := newTestSession(RoleAcceptor)
	defer peer.Close()
	go session.Run(context.Background())
	defer session.Close(nil)

	session.transitionToBound(StateBoundRx)
	srv.registry.Add("sess-1", session)
	srv.registry.Bind("sess-1", "client1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		frame, err := ReadFrame(peer)
		if err != nil {
			t.Errorf("read deliver_sm frame: %v", err)
			return
		}
		req, err := NewDecoder().Decode(frame)
		if err != nil {
			t.Errorf("decode deliver_sm: %v", err)
			return
		}
		respFrame, err := NewEncoder().Encode(&PDU{
			Header: PDUHeader{CommandID: CommandDeliverSMResp, CommandStatus: StatusOK, SequenceNum: req.Header.SequenceNum},
			Body:   &DeliverSMResp{MessageID: "mt-1"},
		})
		if err != nil {
			t.Errorf("encode deliver_sm_resp: %v", err)
			return
		}
		if err := WriteFrame(peer, respFrame); err != nil {
			t.Errorf("write deliver_sm_resp: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	messageID, err := srv.DeliverSM(ctx, "client1", DeliverSMParams{SourceAddr: "999", DestAddr: "111", ShortMessage: []byte("hi")})
	if err != nil {
		t.Fatalf("DeliverSM: %v", err)
	}
	if messageID != "mt-1" {
		t.Fatalf("expected message_id mt-1, got %q", messageID)
	}
	<-done
}
