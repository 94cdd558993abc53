package smpp

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestClientBuildBindProducesTargetStatePerBindType(t *testing.T) {
	c := NewClient(ClientConfig{SystemID: "client1", Password: "secret"}, noopLogger{}, nil)

	cases := []struct {
		bindType BindType
		want     ConnectionState
	}{
		{BindTransmitterType, StateBoundTx},
		{BindReceiverType, StateBoundRx},
		{BindTransceiverType, StateBoundTrx},
	}
	for _, tc := range cases {
		body, target := c.buildBind(tc.bindType)
		if target != tc.want {
			t.Fatalf("bindType %v: expected target %v, got %v", tc.bindType, tc.want, target)
		}
		if body == nil {
			t.Fatalf("bindType %v: expected non-nil body", tc.bindType)
		}
	}
}

func TestClientBindWithoutConnectFails(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	if err := c.Bind(context.Background(), BindTransceiverType); err == nil {
		t.Fatal("expected error binding without a connected session")
	}
}

func TestClientSubmitSMRequiresBoundSession(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	if _, err := c.SubmitSM(context.Background(), SubmitSMParams{}); err == nil {
		t.Fatal("expected error submitting without a bound session")
	}
}

func TestClientSubmitSMRejectedOnReceiverOnlyBind(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	session, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	session.transitionToBound(StateBoundRx)
	c.session = session

	if _, err := c.SubmitSM(context.Background(), SubmitSMParams{}); err == nil {
		t.Fatal("expected submit_sm to be rejected on a receiver-only bind")
	}
}

func TestClientUnbindWithNilSessionReturnsError(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	if err := c.Unbind(context.Background()); err == nil {
		t.Fatal("expected error unbinding a client with no session")
	}
}

func TestClientCloseWithNilSessionIsNoop(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("expected Close on nil session to be a no-op, got %v", err)
	}
}

func TestClientStateReflectsUnderlyingSession(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	if c.State() != StateClosed {
		t.Fatalf("expected StateClosed before Connect, got %v", c.State())
	}

	session, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	c.session = session
	if c.State() != StateOpen {
		t.Fatalf("expected StateOpen once session is set, got %v", c.State())
	}
}

func TestClientDispatchInboundRoutesDeliverSMToHooks(t *testing.T) {
	received := make(chan *DeliverSM, 1)
	hooks := &recordingClientHooks{onDeliverSM: func(pdu *DeliverSM) { received <- pdu }}
	c := NewClient(ClientConfig{}, noopLogger{}, nil, WithClientHooks(hooks))
	session, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	c.session = session

	pdu := &DeliverSM{}
	pdu.SourceAddr = "12345"
	body, respCmdID, status, err := c.dispatchInbound(context.Background(), &PDU{
		Header: PDUHeader{CommandID: CommandDeliverSM, SequenceNum: 1},
		Body:   pdu,
	})
	if err != nil {
		t.Fatalf("dispatchInbound: %v", err)
	}
	if respCmdID != CommandDeliverSMResp || status != StatusOK {
		t.Fatalf("expected deliver_sm_resp/OK, got cmd=0x%08X status=0x%08X", respCmdID, status)
	}
	if _, ok := body.(*DeliverSMResp); !ok {
		t.Fatalf("expected *DeliverSMResp body, got %T", body)
	}

	select {
	case got := <-received:
		if got.SourceAddr != "12345" {
			t.Fatalf("expected source_addr passed through, got %q", got.SourceAddr)
		}
	default:
		t.Fatal("expected OnDeliverSM to be invoked")
	}
}

func TestClientDispatchInboundRejectsBindAttempt(t *testing.T) {
	c := NewClient(ClientConfig{}, noopLogger{}, nil)
	session, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	c.session = session

	_, _, _, err := c.dispatchInbound(context.Background(), &PDU{
		Header: PDUHeader{CommandID: CommandBindTransceiver, SequenceNum: 1},
		Body:   &BindTransceiver{},
	})
	if err == nil {
		t.Fatal("expected an ESME to reject a peer-initiated bind_transceiver")
	}
}

type recordingClientHooks struct {
	ClientHooksBase
	onDeliverSM func(pdu *DeliverSM)
}

func (h *recordingClientHooks) OnDeliverSM(ctx context.Context, session *Session, pdu *DeliverSM) (*DeliverSMResp, error) {
	if h.onDeliverSM != nil {
		h.onDeliverSM(pdu)
	}
	return &DeliverSMResp{}, nil
}

// TestClientConnectBindSubmitUnbindEndToEnd exercises the full
// Connect/Bind/SubmitSM/Unbind sequence against a real TCP listener
// standing in for the SMSC peer, confirming Client speaks the wire
// protocol a real server would expect.
func TestClientConnectBindSubmitUnbindEndToEnd(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < 3; i++ {
			frame, err := ReadFrame(conn)
			if err != nil {
				t.Errorf("read frame %d: %v", i, err)
				return
			}
			req, err := NewDecoder().Decode(frame)
			if err != nil {
				t.Errorf("decode frame %d: %v", i, err)
				return
			}

			var respBody PDUBody
			switch req.Body.(type) {
			case *BindTransceiver:
				respBody = &BindTransceiverResp{bindRespBody{SystemID: "smsc"}}
			case *SubmitSM:
				respBody = &SubmitSMResp{MessageID: "msg-xyz"}
			case *Unbind:
				respBody = &UnbindResp{}
			default:
				t.Errorf("unexpected request body %T", req.Body)
				return
			}

			respFrame, err := NewEncoder().Encode(&PDU{
				Header: PDUHeader{
					CommandID:     responseIDFor(req.Header.CommandID),
					CommandStatus: StatusOK,
					SequenceNum:   req.Header.SequenceNum,
				},
				Body: respBody,
			})
			if err != nil {
				t.Errorf("encode response %d: %v", i, err)
				return
			}
			if err := WriteFrame(conn, respFrame); err != nil {
				t.Errorf("write response %d: %v", i, err)
				return
			}
		}
	}()

	c := NewClient(ClientConfig{
		Host:           addr.IP.String(),
		Port:           addr.Port,
		SystemID:       "client1",
		Password:       "secret",
		ConnectTimeout: 2 * time.Second,
	}, noopLogger{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Bind(ctx, BindTransceiverType); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if c.State() != StateBoundTrx {
		t.Fatalf("expected StateBoundTrx after bind, got %v", c.State())
	}

	messageID, err := c.SubmitSM(ctx, SubmitSMParams{SourceAddr: "111", DestAddr: "222", ShortMessage: []byte("hi")})
	if err != nil {
		t.Fatalf("SubmitSM: %v", err)
	}
	if messageID != "msg-xyz" {
		t.Fatalf("expected message_id msg-xyz, got %q", messageID)
	}

	if err := c.Unbind(ctx); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if c.State() != StateClosed {
		t.Fatalf("expected StateClosed after unbind, got %v", c.State())
	}

	<-done
}
