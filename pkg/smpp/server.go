package smpp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oarkflow/smpp-engine/internal/ratelimit"
	"github.com/oarkflow/smpp-engine/internal/version"
)

// Server is an SMSC-role SMPP peer: it accepts connections, authenticates
// bind attempts, and dispatches submit_sm traffic to ServerHooks
// (spec.md §1, §4 — "one implementation services both orientations").
type Server struct {
	cfg     ServerConfig
	hooks   ServerHooks
	logger  Logger
	metrics MetricsCollector

	registry  *SessionRegistry
	listener  net.Listener
	limiter   *ratelimit.TokenBucket
	negotiate *version.VersionNegotiator
	events    EventPublisher

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
	wg      sync.WaitGroup
}

// ServerOption configures optional Server behavior at construction.
type ServerOption func(*Server)

// WithAcceptRateLimit caps new-connection acceptance to ratePerSecond
// with a burst capacity, grounded on the teacher's unwired token
// bucket (spec.md carries no Non-goal against pacing an accept loop
// that already enforces MaxConnections).
func WithAcceptRateLimit(ratePerSecond float64, burst int64) ServerOption {
	return func(s *Server) { s.limiter = ratelimit.NewTokenBucket(burst, ratePerSecond) }
}

// WithEventPublisher wires a publisher that receives a ConnectionEvent
// for every accepted connection, successful bind and session close, and
// an SMSEvent for every successfully handled submit_sm (spec.md §9 Design Notes' session/server
// lifecycle fan-out, distinct from the embedder-facing ServerHooks).
func WithEventPublisher(publisher EventPublisher) ServerOption {
	return func(s *Server) { s.events = publisher }
}

// NewServer constructs a Server. cfg.MaxConnections, BindTimeout, and
// EnquireLinkTimeout govern accepted sessions.
func NewServer(cfg ServerConfig, hooks ServerHooks, logger Logger, metrics MetricsCollector, opts ...ServerOption) *Server {
	s := &Server{
		cfg:       cfg,
		hooks:     hooks,
		logger:    logger,
		metrics:   metrics,
		registry:  NewSessionRegistry(logger),
		negotiate: version.NewVersionNegotiator(version.SMPPVersion(SMPPVersion)),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds a TCP listener and begins accepting connections in the
// background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return NewProtocolError("server already running")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return &ConnectionError{Op: "listen " + addr, Err: err}
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server started", "address", addr)
	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Shutdown stops accepting connections and runs the graceful
// shutdown sequence (spec.md §4.6), waiting up to gracePeriod for
// live sessions to unbind before force-closing stragglers.
func (s *Server) Shutdown(ctx context.Context, gracePeriod time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return NewProtocolError("server not running")
	}
	s.running = false
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	close(s.doneCh)

	coordinator := NewShutdownCoordinator(s.registry, s.logger, gracePeriod)
	err := coordinator.Shutdown(ctx)
	s.wg.Wait()
	s.logger.Info("server stopped")
	return err
}

// Registry exposes the server's live session registry.
func (s *Server) Registry() *SessionRegistry { return s.registry }

// DeliverSM routes a server-originated deliver_sm to a session bound
// for receive under targetSystemID (spec.md §4.5: "routes to one bound
// session for the target id; fails with NoSuchPeer if none is bound
// for receive"). When a system_id holds more than one receive-capable
// bind, the first one found in the registry is used.
func (s *Server) DeliverSM(ctx context.Context, targetSystemID string, params DeliverSMParams) (string, error) {
	var target *Session
	for _, session := range s.registry.BySystemID(targetSystemID) {
		if state := session.State(); state == StateBoundRx || state == StateBoundTrx {
			target = session
			break
		}
	}
	if target == nil {
		return "", &NoSuchPeer{SystemID: targetSystemID}
	}

	resp, err := target.SendRequest(ctx, NewBuilder().BuildDeliverSM(params))
	if err != nil {
		return "", err
	}
	deliverResp, ok := resp.Body.(*DeliverSMResp)
	if !ok {
		return "", NewProtocolError("unexpected response body for deliver_sm: %T", resp.Body)
	}
	return deliverResp.MessageID, nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if tcpListener, ok := s.listener.(*net.TCPListener); ok {
			tcpListener.SetDeadline(time.Now().Add(time.Second))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.doneCh:
				return
			default:
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		select {
		case <-s.doneCh:
			conn.Close()
			return
		default:
		}

		if s.limiter != nil && !s.limiter.Allow() {
			conn.Close()
			continue
		}

		// spec.md §6: when max_connections is exceeded, accept, reply
		// ESME_RSYSERR, and close — refusing the accept outright would
		// leave the peer without a diagnosable wire response.
		if s.registry.Count() >= s.cfg.MaxConnections {
			s.logger.Warn("max_connections exceeded", "remote", conn.RemoteAddr().String())
			go s.rejectOverCapacity(conn)
			continue
		}

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// rejectOverCapacity completes just enough of a session to answer the
// peer's first PDU with ESME_RSYSERR before closing, per spec.md §6.
func (s *Server) rejectOverCapacity(conn net.Conn) {
	defer conn.Close()
	frame, err := ReadFrame(conn)
	if err != nil {
		return
	}
	decoder := NewDecoder()
	pdu, err := decoder.Decode(frame)
	if err != nil {
		return
	}
	encoder := NewEncoder()
	resp, err := encoder.Encode(&PDU{
		Header: PDUHeader{
			CommandID:     responseIDFor(pdu.Header.CommandID),
			CommandStatus: StatusSysErr,
			SequenceNum:   pdu.Header.SequenceNum,
		},
		Body: &GenericNack{},
	})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.Write(resp)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	scfg := DefaultSessionConfig()
	scfg.BindTimeout = s.cfg.BindTimeout
	scfg.ResponseTimeout = s.cfg.ReadTimeout
	if scfg.ResponseTimeout <= 0 {
		scfg.ResponseTimeout = DefaultSessionConfig().ResponseTimeout
	}
	scfg.EnquireLinkInterval = s.cfg.EnquireLinkTimeout
	if scfg.EnquireLinkInterval <= 0 {
		scfg.EnquireLinkInterval = DefaultSessionConfig().EnquireLinkInterval
	}

	session := NewSession(conn, RoleAcceptor, scfg, s.logger, s.metrics)
	id := NewSessionID()
	s.registry.Add(id, session)

	handler := &serverSessionHandler{server: s, session: session, sessionID: id}
	session.SetInboundHandler(handler.dispatch)
	session.SetTeardownHandler(func(err error) {
		s.registry.Remove(id, session.PeerSystemID)
		s.hooks.OnClose(session, err)
		s.publishConnectionEvent(EventTypeDisconnected, id, session, err)
	})

	s.logger.Debug("connection accepted", "remote", conn.RemoteAddr().String(), "session_id", id)
	if s.metrics != nil {
		s.metrics.IncCounter("smpp_server_connections_total", nil)
		s.metrics.SetGauge("smpp_server_active_sessions", float64(s.registry.Count()), nil)
	}
	s.publishConnectionEvent(EventTypeConnected, id, session, nil)

	bindCtx, cancel := context.WithTimeout(ctx, scfg.BindTimeout)
	go func() {
		defer cancel()
		<-bindCtx.Done()
		if session.State() == StateOpen {
			session.Close(&TimeoutError{Operation: "bind"})
		}
	}()

	session.Run(ctx)
	if s.metrics != nil {
		s.metrics.SetGauge("smpp_server_active_sessions", float64(s.registry.Count()), nil)
	}
}

func (s *Server) publishConnectionEvent(eventType EventType, sessionID string, session *Session, err error) {
	if s.events == nil {
		return
	}
	event := &ConnectionEvent{
		Type:       eventType,
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Session:    session,
		RemoteAddr: session.RemoteAddr(),
		Error:      err,
		Data:       make(map[string]interface{}),
	}
	if pubErr := s.events.PublishConnectionEvent(context.Background(), event); pubErr != nil {
		s.logger.Debug("event publish failed", "event_type", eventType, "error", pubErr)
	}
}

// bindFailureStatus maps a ServerHooks.Authenticate error to the
// command_status a bind_*_resp reports: a *BindError carries its own
// status verbatim, *AuthenticationError maps to ESME_RINVPASWD (spec.md
// §4.5 pt 3, §7), *CapacityError to ESME_RSYSERR, and anything else
// falls back to ESME_RBINDFAIL.
func bindFailureStatus(err error) uint32 {
	switch e := err.(type) {
	case *BindError:
		return e.Status
	case *AuthenticationError:
		return StatusInvPaswd
	case *CapacityError:
		return StatusSysErr
	default:
		return StatusBindFail
	}
}

// serverSessionHandler adapts ServerHooks to Session's InboundHandler,
// also owning the bind-specific state transitions that are generic
// across all three bind_* variants (spec.md §9's "handler per variant"
// dispatch, specialized per role).
type serverSessionHandler struct {
	server    *Server
	session   *Session
	sessionID string
}

func (h *serverSessionHandler) dispatch(ctx context.Context, pdu *PDU) (PDUBody, uint32, uint32, error) {
	switch body := pdu.Body.(type) {
	case *BindTransmitter:
		status, peerSystemID := h.handleBind(ctx, &body.bindBody, StateBoundTx)
		return &BindTransmitterResp{bindRespBody{SystemID: peerSystemID}}, CommandBindTransmitterResp, status, nil
	case *BindReceiver:
		status, peerSystemID := h.handleBind(ctx, &body.bindBody, StateBoundRx)
		return &BindReceiverResp{bindRespBody{SystemID: peerSystemID}}, CommandBindReceiverResp, status, nil
	case *BindTransceiver:
		status, peerSystemID := h.handleBind(ctx, &body.bindBody, StateBoundTrx)
		return &BindTransceiverResp{bindRespBody{SystemID: peerSystemID}}, CommandBindTransceiverResp, status, nil
	case *SubmitSM:
		return h.handleSubmitSM(ctx, body)
	case *Unbind:
		return h.handleUnbind(ctx)
	default:
		return nil, 0, 0, NewProtocolError("server does not accept inbound command_id 0x%08X", pdu.Header.CommandID)
	}
}

// handleBind runs the authentication/negotiation/state-transition
// sequence common to all three bind_* variants and returns the
// response status plus the system_id to echo back on success (empty
// on failure, per spec.md §4.1).
func (h *serverSessionHandler) handleBind(ctx context.Context, req *bindBody, target ConnectionState) (status uint32, peerSystemID string) {
	if h.session.State() != StateOpen {
		return StatusAlreadyBound, ""
	}

	negotiated, err := h.server.negotiate.Negotiate(version.SMPPVersion(req.InterfaceVersion))
	if err != nil {
		h.server.logger.Warn("interface_version not negotiable", "system_id", req.SystemID, "version", req.InterfaceVersion)
		return StatusInvCmdLen, ""
	}

	if err := h.server.hooks.Authenticate(ctx, req.SystemID, req.Password, req.SystemType, target); err != nil {
		status := bindFailureStatus(err)
		h.server.logger.Warn("bind authentication failed", "system_id", req.SystemID, "error", err)
		if h.server.metrics != nil {
			h.server.metrics.IncCounter("smpp_server_bind_failures_total", map[string]string{"system_id": req.SystemID})
		}
		// spec.md §4.5 pt 3: "reply ... and close" — give the writer
		// loop time to flush the failure response before tearing the
		// session down, instead of idling the peer until bind_timeout.
		go func(s *Session, closeErr error) {
			time.Sleep(100 * time.Millisecond)
			if s.State() == StateOpen {
				s.Close(closeErr)
			}
		}(h.session, err)
		return status, ""
	}

	h.session.PeerSystemID = req.SystemID
	h.session.PeerSystemType = req.SystemType
	h.session.InterfaceVersion = uint8(negotiated)
	h.session.transitionToBound(target)
	h.server.registry.Bind(h.sessionID, req.SystemID)

	h.server.logger.Info("bind succeeded", "system_id", req.SystemID, "state", target)
	if h.server.metrics != nil {
		h.server.metrics.IncCounter("smpp_server_binds_total", map[string]string{"system_id": req.SystemID, "result": "ok"})
	}
	h.server.hooks.OnBindSuccess(ctx, h.session)
	h.server.publishConnectionEvent(EventTypeBound, h.sessionID, h.session, nil)

	return StatusOK, req.SystemID
}

func (h *serverSessionHandler) handleSubmitSM(ctx context.Context, req *SubmitSM) (PDUBody, uint32, uint32, error) {
	if h.session.State() != StateBoundTx && h.session.State() != StateBoundTrx {
		return &SubmitSMResp{}, CommandSubmitSMResp, StatusInvBndStatus, nil
	}
	resp, err := h.server.hooks.OnSubmitSM(ctx, h.session, req)
	if err != nil {
		h.server.logger.Error("submit_sm handler failed", "error", err, "system_id", h.session.PeerSystemID)
		return &SubmitSMResp{}, CommandSubmitSMResp, StatusSysErr, nil
	}
	if resp == nil {
		resp = &SubmitSMResp{}
	}
	if h.server.metrics != nil {
		h.server.metrics.IncCounter("smpp_server_submit_sm_total", map[string]string{"system_id": h.session.PeerSystemID})
	}
	if h.server.events != nil {
		event := &SMSEvent{
			Type:       EventTypeSMSSubmitted,
			Timestamp:  time.Now(),
			MessageID:  resp.MessageID,
			Session:    h.session,
			SourceAddr: req.SourceAddr,
			DestAddr:   req.DestAddr,
			Data:       make(map[string]interface{}),
		}
		if pubErr := h.server.events.PublishSMSEvent(ctx, event); pubErr != nil {
			h.server.logger.Debug("event publish failed", "event_type", EventTypeSMSSubmitted, "error", pubErr)
		}
	}
	return resp, CommandSubmitSMResp, StatusOK, nil
}

func (h *serverSessionHandler) handleUnbind(ctx context.Context) (PDUBody, uint32, uint32, error) {
	h.server.hooks.OnUnbind(ctx, h.session)
	h.session.setState(StateUnbinding)
	return &UnbindResp{}, CommandUnbindResp, StatusOK, nil
}
