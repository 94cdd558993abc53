package auth

import (
	"context"
	"testing"

	"github.com/oarkflow/smpp-engine/pkg/smpp"
)

type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...interface{})           {}
func (noopLogger) Info(msg string, fields ...interface{})            {}
func (noopLogger) Warn(msg string, fields ...interface{})            {}
func (noopLogger) Error(msg string, fields ...interface{})           {}
func (noopLogger) Fatal(msg string, fields ...interface{})           {}
func (n noopLogger) WithFields(fields map[string]interface{}) smpp.Logger { return n }

func TestAuthenticateDefaultUserSucceeds(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	user, err := a.Authenticate(context.Background(), "test", "test", "SMPP")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.SystemID != "test" {
		t.Fatalf("expected system_id=test, got %q", user.SystemID)
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	if _, err := a.Authenticate(context.Background(), "test", "wrong-password", "SMPP"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	if _, err := a.Authenticate(context.Background(), "ghost", "anything", "SMPP"); err == nil {
		t.Fatal("expected error for unknown system_id")
	}
}

func TestAuthenticateRejectsInactiveUser(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	if err := a.UpdateUser(context.Background(), &smpp.User{SystemID: "test", Active: false}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), "test", "test", "SMPP"); err == nil {
		t.Fatal("expected error for inactive user")
	}
}

func TestServerHooksAuthRejectsBadCredentials(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	hooks := NewServerHooksAuth(a)
	err := hooks.Authenticate(context.Background(), "test", "wrong", "SMPP", smpp.StateBoundTrx)
	if err == nil {
		t.Fatal("expected authentication error for wrong password")
	}
}

func TestServerHooksAuthRejectsBindWithoutPermission(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	// Create a user with a bind_receiver-only permission set to exercise
	// the deliver-only path.
	if err := a.CreateUser(context.Background(), &smpp.User{
		SystemID: "rx-only",
		Password: "pw",
		Active:   true,
		Permissions: map[smpp.Operation]bool{
			smpp.OperationDeliver: true,
		},
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	hooks := NewServerHooksAuth(a)

	if err := hooks.Authenticate(context.Background(), "rx-only", "pw", "SMPP", smpp.StateBoundRx); err != nil {
		t.Fatalf("expected bind_receiver to succeed on deliver permission, got %v", err)
	}
	if err := hooks.Authenticate(context.Background(), "rx-only", "pw", "SMPP", smpp.StateBoundTx); err == nil {
		t.Fatal("expected bind_transmitter to fail without submit permission")
	}
}

func TestIsAuthorizedDefaultsFalseForUnknownOperation(t *testing.T) {
	a := NewDefaultUserAuth(noopLogger{})
	authorized, err := a.IsAuthorized(context.Background(), "test", smpp.Operation("made-up"))
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if authorized {
		t.Fatal("expected unknown operation to default to unauthorized")
	}
}
