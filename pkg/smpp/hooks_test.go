package smpp

import (
	"context"
	"testing"
)

func TestServerHooksBaseRejectsEveryBindByDefault(t *testing.T) {
	var base ServerHooksBase
	if err := base.Authenticate(context.Background(), "anyone", "pw", "SMPP", StateBoundTrx); err == nil {
		t.Fatal("expected ServerHooksBase.Authenticate to reject by default")
	}
}

func TestServerHooksBaseAcceptsSubmitSMByDefault(t *testing.T) {
	var base ServerHooksBase
	resp, err := base.OnSubmitSM(context.Background(), nil, &SubmitSM{})
	if err != nil {
		t.Fatalf("OnSubmitSM: %v", err)
	}
	if resp == nil || resp.MessageID != "" {
		t.Fatalf("expected empty message_id response, got %#v", resp)
	}
}

func TestClientHooksBaseDefaultsAreNoops(t *testing.T) {
	var base ClientHooksBase
	resp, err := base.OnDeliverSM(context.Background(), nil, &DeliverSM{})
	if err != nil || resp == nil {
		t.Fatalf("expected non-nil no-op DeliverSMResp, got resp=%#v err=%v", resp, err)
	}
	base.OnOutbind(context.Background(), nil, &Outbind{})
	base.OnUnbind(context.Background(), nil)
	base.OnClose(nil, nil)
}
