package smpp

import (
	"context"
	"sync"
	"time"
)

// ShutdownCoordinator runs a Server's graceful-shutdown sequence
// (spec.md §4.6): stop accepting new connections, unbind every live
// session, wait up to a grace period for peers to close cleanly, then
// force-close whatever remains.
type ShutdownCoordinator struct {
	registry    *SessionRegistry
	logger      Logger
	gracePeriod time.Duration
}

// NewShutdownCoordinator builds a coordinator over registry with the
// given grace period (0 disables the wait step and force-closes
// immediately after requesting unbind).
func NewShutdownCoordinator(registry *SessionRegistry, logger Logger, gracePeriod time.Duration) *ShutdownCoordinator {
	return &ShutdownCoordinator{registry: registry, logger: logger, gracePeriod: gracePeriod}
}

// Shutdown executes the five-step sequence. The caller is responsible
// for step 1 (stop accepting) before invoking Shutdown; this only
// covers steps 2-5.
func (c *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	sessions := c.registry.All()
	if len(sessions) == 0 {
		return nil
	}

	c.logger.Info("shutdown: requesting unbind", "session_count", len(sessions))

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			c.requestUnbind(ctx, s)
		}(session)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	grace := c.gracePeriod
	if grace <= 0 {
		grace = 0
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("shutdown: grace period elapsed, force-closing stragglers")
	case <-ctx.Done():
		c.logger.Warn("shutdown: context cancelled, force-closing stragglers")
	}

	remaining := c.registry.All()
	for _, session := range remaining {
		session.Close(&TimeoutError{Operation: "graceful shutdown"})
	}
	if len(remaining) > 0 {
		c.logger.Info("shutdown: force-closed remaining sessions", "count", len(remaining))
	}
	return nil
}

// requestUnbind sends unbind and waits (bounded by the session's own
// response timeout) for the peer's unbind_resp before returning; any
// error just means Shutdown's force-close sweep will catch it.
func (c *ShutdownCoordinator) requestUnbind(ctx context.Context, session *Session) {
	if !session.State().IsBound() {
		session.Close(nil)
		return
	}
	session.setState(StateUnbinding)
	reqCtx, cancel := context.WithTimeout(ctx, session.cfg.ResponseTimeout)
	defer cancel()
	_, err := session.SendRequest(reqCtx, &Unbind{})
	if err != nil {
		c.logger.Debug("shutdown: unbind round-trip did not complete", "remote", session.RemoteAddr(), "error", err)
	}
	session.Close(nil)
}
