package smpp

import "testing"

func TestSessionRegistryAddGetRemove(t *testing.T) {
	r := NewSessionRegistry(noopLogger{})
	session, peer := newTestSession(RoleAcceptor)
	defer peer.Close()

	r.Add("sess-1", session)
	if got, ok := r.Get("sess-1"); !ok || got != session {
		t.Fatalf("expected registered session back, got %v ok=%v", got, ok)
	}
	if r.Count() != 1 {
		t.Fatalf("expected Count()=1, got %d", r.Count())
	}

	r.Remove("sess-1", "")
	if _, ok := r.Get("sess-1"); ok {
		t.Fatal("expected session gone after Remove")
	}
	if r.Count() != 0 {
		t.Fatalf("expected Count()=0 after Remove, got %d", r.Count())
	}
}

func TestSessionRegistryBindIndexesBySystemID(t *testing.T) {
	r := NewSessionRegistry(noopLogger{})
	session, peer := newTestSession(RoleAcceptor)
	defer peer.Close()

	r.Add("sess-1", session)
	r.Bind("sess-1", "client1")

	found := r.BySystemID("client1")
	if len(found) != 1 || found[0] != session {
		t.Fatalf("expected one bound session for client1, got %v", found)
	}

	r.Remove("sess-1", "client1")
	if found := r.BySystemID("client1"); len(found) != 0 {
		t.Fatalf("expected no sessions for client1 after Remove, got %v", found)
	}
}

func TestSessionRegistrySupportsMultipleBindsPerSystemID(t *testing.T) {
	r := NewSessionRegistry(noopLogger{})
	tx, peer1 := newTestSession(RoleAcceptor)
	defer peer1.Close()
	rx, peer2 := newTestSession(RoleAcceptor)
	defer peer2.Close()

	r.Add("tx", tx)
	r.Add("rx", rx)
	r.Bind("tx", "dual-client")
	r.Bind("rx", "dual-client")

	found := r.BySystemID("dual-client")
	if len(found) != 2 {
		t.Fatalf("expected two sessions bound for dual-client, got %d", len(found))
	}
}

func TestSessionRegistryAllReturnsSnapshot(t *testing.T) {
	r := NewSessionRegistry(noopLogger{})
	s1, p1 := newTestSession(RoleAcceptor)
	defer p1.Close()
	s2, p2 := newTestSession(RoleAcceptor)
	defer p2.Close()

	r.Add("a", s1)
	r.Add("b", s2)

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
}
