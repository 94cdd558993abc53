package smpp

import (
	"context"
	"testing"
	"time"
)

func TestSessionTransitionToBound(t *testing.T) {
	s, peer := newTestSession(RoleInitiator)
	defer peer.Close()

	if s.State() != StateOpen {
		t.Fatalf("expected initial state Open, got %v", s.State())
	}

	s.transitionToBound(StateBoundTrx)
	if s.State() != StateBoundTrx {
		t.Fatalf("expected BoundTrx, got %v", s.State())
	}
	if !s.State().IsBound() {
		t.Fatal("expected IsBound() true after transitioning to BoundTrx")
	}
}

func TestSessionNextSequenceWrapsPastMax(t *testing.T) {
	s, peer := newTestSession(RoleInitiator)
	defer peer.Close()

	s.nextSeq = 0x7FFFFFFF
	if got := s.nextSequence(); got != 1 {
		t.Fatalf("expected wraparound to 1, got %d", got)
	}
}

func TestSessionDispatchEnquireLinkRespondsOK(t *testing.T) {
	s, peer := newTestSession(RoleAcceptor)
	defer peer.Close()
	go s.writerLoop()
	defer s.Close(nil)

	req := &PDU{Header: PDUHeader{CommandID: CommandEnquireLink, SequenceNum: 5}, Body: &EnquireLink{}}
	if err := s.dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	frame, err := ReadFrame(peer)
	if err != nil {
		t.Fatalf("read response frame: %v", err)
	}
	resp, err := NewDecoder().Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Header.CommandID != CommandEnquireLinkResp {
		t.Fatalf("expected enquire_link_resp, got 0x%08X", resp.Header.CommandID)
	}
	if resp.Header.SequenceNum != 5 {
		t.Fatalf("expected sequence_number echoed as 5, got %d", resp.Header.SequenceNum)
	}
}

func TestSessionDispatchUnknownCommandSendsGenericNack(t *testing.T) {
	s, peer := newTestSession(RoleAcceptor)
	defer peer.Close()
	go s.writerLoop()
	defer s.Close(nil)

	req := &PDU{
		Header: PDUHeader{CommandID: 0x000000F0, SequenceNum: 9},
		Body:   &UnknownPDU{OriginalCommandID: 0x000000F0},
	}
	if err := s.dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	frame, err := ReadFrame(peer)
	if err != nil {
		t.Fatalf("read response frame: %v", err)
	}
	resp, err := NewDecoder().Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Header.CommandID != CommandGenericNack {
		t.Fatalf("expected generic_nack, got 0x%08X", resp.Header.CommandID)
	}
	if resp.Header.CommandStatus != StatusInvCmdID {
		t.Fatalf("expected ESME_RINVCMDID, got 0x%08X", resp.Header.CommandStatus)
	}
}

func TestSessionDispatchWithNoHandlerSendsSysErrNack(t *testing.T) {
	s, peer := newTestSession(RoleAcceptor)
	defer peer.Close()
	go s.writerLoop()
	defer s.Close(nil)

	req := &PDU{Header: PDUHeader{CommandID: CommandSubmitSM, SequenceNum: 3}, Body: &SubmitSM{}}
	if err := s.dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	frame, err := ReadFrame(peer)
	if err != nil {
		t.Fatalf("read response frame: %v", err)
	}
	resp, err := NewDecoder().Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Header.CommandID != CommandGenericNack || resp.Header.CommandStatus != StatusSysErr {
		t.Fatalf("expected generic_nack/ESME_RSYSERR, got command_id=0x%08X status=0x%08X",
			resp.Header.CommandID, resp.Header.CommandStatus)
	}
}

func TestSessionSendRequestResolvesOnMatchingResponse(t *testing.T) {
	s, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	go s.Run(context.Background())
	defer s.Close(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		frame, err := ReadFrame(peer)
		if err != nil {
			t.Errorf("read request frame: %v", err)
			return
		}
		req, err := NewDecoder().Decode(frame)
		if err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		respFrame, err := NewEncoder().Encode(&PDU{
			Header: PDUHeader{CommandID: CommandEnquireLinkResp, CommandStatus: StatusOK, SequenceNum: req.Header.SequenceNum},
			Body:   &EnquireLinkResp{},
		})
		if err != nil {
			t.Errorf("encode response: %v", err)
			return
		}
		if err := WriteFrame(peer, respFrame); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := s.SendRequest(ctx, &EnquireLink{})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if resp.Header.CommandID != CommandEnquireLinkResp {
		t.Fatalf("expected enquire_link_resp, got 0x%08X", resp.Header.CommandID)
	}
	<-done
}

func TestSessionSendRequestCancelledByContext(t *testing.T) {
	s, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	go s.writerLoop()
	defer s.Close(nil)

	// drain the request frame so writerLoop doesn't block, but never reply.
	go ReadFrame(peer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if _, err := s.SendRequest(ctx, &EnquireLink{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestSessionCloseIsIdempotentAndFlushesPending(t *testing.T) {
	s, peer := newTestSession(RoleInitiator)
	defer peer.Close()
	go s.writerLoop()

	go ReadFrame(peer) // drain the request so SendRequest's write doesn't block

	resultCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := s.SendRequest(ctx, &EnquireLink{})
		resultCh <- err
	}()

	time.Sleep(20 * time.Millisecond) // let SendRequest register its pending entry
	s.Close(nil)
	s.Close(nil) // must not panic or double-close closeCh

	select {
	case err := <-resultCh:
		if err == nil {
			t.Fatal("expected pending request to resolve with an error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pending request to be flushed by Close")
	}

	if s.State() != StateClosed {
		t.Fatalf("expected StateClosed after Close, got %v", s.State())
	}
}
