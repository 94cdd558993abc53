package smpp

import "net"

// noopLogger discards every call; shared across tests that need a
// Logger but don't assert on log output.
type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...interface{})            {}
func (noopLogger) Info(msg string, fields ...interface{})             {}
func (noopLogger) Warn(msg string, fields ...interface{})             {}
func (noopLogger) Error(msg string, fields ...interface{})            {}
func (noopLogger) Fatal(msg string, fields ...interface{})            {}
func (n noopLogger) WithFields(fields map[string]interface{}) Logger  { return n }

// newTestSession builds a Session over an in-memory net.Pipe half and
// returns the other half as the peer, which the caller reads/writes as
// needed and closes.
func newTestSession(role Role) (*Session, net.Conn) {
	client, server := net.Pipe()
	s := NewSession(client, role, DefaultSessionConfig(), noopLogger{}, nil)
	return s, server
}
