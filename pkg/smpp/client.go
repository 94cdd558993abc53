package smpp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/oarkflow/smpp-engine/internal/errorrecovery"
)

// BindType selects which of the three bind_* PDUs Client.Bind issues.
type BindType int

const (
	BindTransmitterType BindType = iota
	BindReceiverType
	BindTransceiverType
)

// Client is an ESME-role SMPP peer: it dials a server, binds, and
// drives submit_sm/enquire_link/unbind synchronously over a Session
// (spec.md §1, §4 — "one implementation services both orientations").
// Unlike the teacher's callback-driven Client, every outbound
// operation here blocks for its response, matching spec.md §8
// invariant 3 ("every request resolves to exactly one outcome").
type Client struct {
	cfg     ClientConfig
	logger  Logger
	metrics MetricsCollector
	hooks   ClientHooks
	retry   errorrecovery.RetryConfig
	events  EventPublisher

	session *Session
	runErr  chan error
}

// ClientOption configures optional Client behavior at construction.
type ClientOption func(*Client)

// WithClientHooks registers the hook implementation invoked for
// peer-initiated traffic (deliver_sm, outbind, unbind, close).
func WithClientHooks(hooks ClientHooks) ClientOption {
	return func(c *Client) { c.hooks = hooks }
}

// WithClientRetry overrides the reconnect/dial retry policy (default:
// no retries — a single dial attempt).
func WithClientRetry(retry errorrecovery.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = retry }
}

// WithClientEventPublisher wires a publisher that receives
// ConnectionEvent notifications for connect/bind/close, mirroring the
// Server's internal lifecycle fan-out (spec.md §9 Design Notes).
func WithClientEventPublisher(publisher EventPublisher) ClientOption {
	return func(c *Client) { c.events = publisher }
}

// NewClient constructs a Client. cfg.ConnectTimeout, SystemID,
// Password, SystemType, and EnquireLinkInterval govern Connect/Bind.
func NewClient(cfg ClientConfig, logger Logger, metrics MetricsCollector, opts ...ClientOption) *Client {
	c := &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		hooks:   ClientHooksBase{},
		retry:   errorrecovery.RetryConfig{MaxRetries: 0},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the configured host:port and starts the session's read
// loop in the background. It does not bind — call Bind afterward.
func (c *Client) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}

	var conn net.Conn
	result := errorrecovery.Retry(ctx, c.retry, func() error {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		return err
	})
	if result.Error != nil {
		return &ConnectionError{Op: "dial " + addr, Err: result.Error}
	}

	scfg := DefaultSessionConfig()
	scfg.EnquireLinkInterval = c.cfg.EnquireLinkInterval
	if scfg.EnquireLinkInterval <= 0 {
		scfg.EnquireLinkInterval = DefaultSessionConfig().EnquireLinkInterval
	}
	scfg.ResponseTimeout = c.cfg.ReadTimeout
	if scfg.ResponseTimeout <= 0 {
		scfg.ResponseTimeout = DefaultSessionConfig().ResponseTimeout
	}

	c.session = NewSession(conn, RoleInitiator, scfg, c.logger, c.metrics)
	c.session.SetInboundHandler(c.dispatchInbound)
	c.session.SetTeardownHandler(func(err error) {
		c.hooks.OnClose(c.session, err)
		c.publishConnectionEvent(EventTypeDisconnected, err)
	})

	c.runErr = make(chan error, 1)
	go func() { c.runErr <- c.session.Run(context.Background()) }()

	c.logger.Info("connected", "address", addr)
	if c.metrics != nil {
		c.metrics.IncCounter("smpp_client_connections_total", nil)
	}
	c.publishConnectionEvent(EventTypeConnected, nil)
	return nil
}

func (c *Client) publishConnectionEvent(eventType EventType, err error) {
	if c.events == nil {
		return
	}
	event := &ConnectionEvent{
		Type:       eventType,
		Timestamp:  time.Now(),
		Session:    c.session,
		RemoteAddr: c.session.RemoteAddr(),
		Error:      err,
		Data:       make(map[string]interface{}),
	}
	if pubErr := c.events.PublishConnectionEvent(context.Background(), event); pubErr != nil {
		c.logger.Debug("event publish failed", "event_type", eventType, "error", pubErr)
	}
}

// Bind sends the bind_* PDU matching bindType and blocks for the
// response (spec.md §3.3: Open -> BoundTx/BoundRx/BoundTrx).
func (c *Client) Bind(ctx context.Context, bindType BindType) error {
	if c.session == nil {
		return &InvalidState{Operation: "bind", State: StateClosed}
	}
	if c.session.State() != StateOpen {
		return &InvalidState{Operation: "bind", State: c.session.State()}
	}

	body, targetState := c.buildBind(bindType)
	resp, err := c.session.SendRequest(ctx, body)
	if err != nil {
		return err
	}

	c.session.transitionToBound(targetState)
	switch r := resp.Body.(type) {
	case *BindTransmitterResp:
		c.session.PeerSystemID = r.SystemID
	case *BindReceiverResp:
		c.session.PeerSystemID = r.SystemID
	case *BindTransceiverResp:
		c.session.PeerSystemID = r.SystemID
	}

	c.logger.Info("bound", "system_id", c.cfg.SystemID, "bind_type", bindType)
	if c.metrics != nil {
		c.metrics.IncCounter("smpp_client_binds_total", map[string]string{"result": "ok"})
	}
	c.publishConnectionEvent(EventTypeBound, nil)
	return nil
}

func (c *Client) buildBind(bindType BindType) (PDUBody, ConnectionState) {
	base := bindBody{
		SystemID:         c.cfg.SystemID,
		Password:         c.cfg.Password,
		SystemType:       c.cfg.SystemType,
		InterfaceVersion: SMPPVersion,
		AddrTON:          TONUnknown,
		AddrNPI:          NPIUnknown,
		AddressRange:     "",
	}
	switch bindType {
	case BindReceiverType:
		return &BindReceiver{base}, StateBoundRx
	case BindTransceiverType:
		return &BindTransceiver{base}, StateBoundTrx
	default:
		return &BindTransmitter{base}, StateBoundTx
	}
}

// SubmitSM sends a submit_sm and blocks for submit_sm_resp, returning
// the assigned message_id.
func (c *Client) SubmitSM(ctx context.Context, params SubmitSMParams) (string, error) {
	if c.session == nil || !c.session.State().IsBound() {
		return "", &InvalidState{Operation: "submit_sm", State: c.safeState()}
	}
	if c.session.State() == StateBoundRx {
		return "", &InvalidState{Operation: "submit_sm", State: StateBoundRx}
	}

	builder := NewBuilder()
	req := builder.BuildSubmitSM(params)
	resp, err := c.session.SendRequest(ctx, req)
	if err != nil {
		return "", err
	}
	submitResp, ok := resp.Body.(*SubmitSMResp)
	if !ok {
		return "", NewProtocolError("unexpected response body for submit_sm: %T", resp.Body)
	}
	return submitResp.MessageID, nil
}

// Unbind sends unbind and blocks for unbind_resp, then transitions the
// session to Closed (spec.md §3.3: BoundX -> Unbinding -> Closed).
func (c *Client) Unbind(ctx context.Context) error {
	if c.session == nil {
		return &InvalidState{Operation: "unbind", State: StateClosed}
	}
	c.session.setState(StateUnbinding)
	_, err := c.session.SendRequest(ctx, &Unbind{})
	c.session.Close(nil)
	return err
}

// Close forcibly tears the session down without an unbind handshake.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close(nil)
}

// State returns the underlying session's connection state.
func (c *Client) State() ConnectionState {
	return c.safeState()
}

func (c *Client) safeState() ConnectionState {
	if c.session == nil {
		return StateClosed
	}
	return c.session.State()
}

// dispatchInbound is the Session.InboundHandler wired in at Connect:
// it routes peer-initiated deliver_sm, outbind and unbind to ClientHooks
// (outbind gets no response). Any other command_id — an ESME never
// accepts bind_* or submit_sm from its peer — returns a ProtocolError,
// which Session.dispatch logs; no generic_nack or other response is sent.
func (c *Client) dispatchInbound(ctx context.Context, pdu *PDU) (PDUBody, uint32, uint32, error) {
	switch body := pdu.Body.(type) {
	case *DeliverSM:
		resp, err := c.hooks.OnDeliverSM(ctx, c.session, body)
		if err != nil {
			return nil, 0, 0, err
		}
		if resp == nil {
			resp = &DeliverSMResp{}
		}
		return resp, CommandDeliverSMResp, StatusOK, nil
	case *Outbind:
		c.hooks.OnOutbind(ctx, c.session, body)
		return nil, 0, 0, nil
	case *Unbind:
		c.hooks.OnUnbind(ctx, c.session)
		c.session.setState(StateUnbinding)
		return &UnbindResp{}, CommandUnbindResp, StatusOK, nil
	default:
		return nil, 0, 0, NewProtocolError("client does not accept inbound command_id 0x%08X", pdu.Header.CommandID)
	}
}
