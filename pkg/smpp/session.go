package smpp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/oarkflow/smpp-engine/internal/flowcontrol"
)

// Role distinguishes the two SMPP orientations a Session can serve,
// per spec.md §1: "one implementation services both orientations
// (initiator vs. acceptor) parameterized by role."
type Role int

const (
	RoleInitiator Role = iota // ESME: binds to a peer
	RoleAcceptor              // SMSC: accepts a bound peer
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "acceptor"
	}
	return "initiator"
}

// ConnectionState is the session's position in the bind/unbind
// lifecycle (spec.md §3.3, §4.3).
type ConnectionState int

const (
	StateClosed ConnectionState = iota
	StateOpen
	StateBoundTx
	StateBoundRx
	StateBoundTrx
	StateUnbinding
)

func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateBoundTx:
		return "BoundTx"
	case StateBoundRx:
		return "BoundRx"
	case StateBoundTrx:
		return "BoundTrx"
	case StateUnbinding:
		return "Unbinding"
	default:
		return "Unknown"
	}
}

// IsBound reports whether s is one of the three bound states.
func (s ConnectionState) IsBound() bool {
	return s == StateBoundTx || s == StateBoundRx || s == StateBoundTrx
}

// SessionConfig carries the timeouts and keep-alive cadence a Session
// enforces (spec.md §6 table, §4.3).
type SessionConfig struct {
	BindTimeout         time.Duration
	ResponseTimeout     time.Duration
	EnquireLinkInterval time.Duration
	MaxOutstanding      int // 0 disables the outstanding-request cap
}

// DefaultSessionConfig returns the option defaults from spec.md §6.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		BindTimeout:         30 * time.Second,
		ResponseTimeout:     30 * time.Second,
		EnquireLinkInterval: 60 * time.Second,
	}
}

type pendingRequest struct {
	responseCommandID uint32
	resultCh          chan requestResult
	timer             *time.Timer
}

type requestResult struct {
	pdu *PDU
	err error
}

// InboundHandler processes a request PDU the peer sent to this
// session. It returns the response body and command_id to send back
// (body nil to send nothing, e.g. outbind), the command_status to set
// on that response, and an error only for cases where no response
// should be attempted at all (malformed input, handler panic-recovery
// equivalents). A bind rejection is NOT an error here — it's a normal
// response with a non-zero status. This is the "handler per variant"
// of spec.md's Design Notes; Client and Server each supply one shaped
// around their own role's PDU set.
type InboundHandler func(ctx context.Context, pdu *PDU) (body PDUBody, respCommandID uint32, status uint32, err error)

// Session is the per-connection state machine shared by Client and
// Server: bind lifecycle, sequence-number allocation, request/response
// correlation, and keep-alive (spec.md §3.3, §4.3). It owns the
// connection's reader and writer halves so reads and writes never
// contend on a socket-level lock (spec.md §5, §9).
type Session struct {
	conn   net.Conn
	role   Role
	cfg    SessionConfig
	logger Logger
	metrics MetricsCollector
	window  *flowcontrol.SlidingWindow

	encoder *Encoder
	decoder *Decoder

	mu            sync.Mutex
	state         ConnectionState
	nextSeq       uint32
	pending       map[uint32]*pendingRequest
	lastActivityRx time.Time
	lastActivityTx time.Time

	PeerSystemID     string
	PeerSystemType   string
	InterfaceVersion uint8

	writeCh  chan []byte
	closeCh  chan struct{}
	closeErr error
	closeOnce sync.Once

	onInboundRequest InboundHandler
	onTeardown       func(err error)
}

// NewSession constructs a Session over an already-connected conn. The
// caller must call SetInboundHandler before Run if it wants to service
// peer-initiated requests (every role does in practice).
func NewSession(conn net.Conn, role Role, cfg SessionConfig, logger Logger, metrics MetricsCollector) *Session {
	s := &Session{
		conn:           conn,
		role:           role,
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		encoder:        NewEncoder(),
		decoder:        NewDecoder(),
		state:          StateOpen,
		pending:        make(map[uint32]*pendingRequest),
		lastActivityRx: time.Now(),
		lastActivityTx: time.Now(),
		writeCh:        make(chan []byte, 32),
		closeCh:        make(chan struct{}),
	}
	if cfg.MaxOutstanding > 0 {
		s.window = flowcontrol.NewSlidingWindow(flowcontrol.WindowConfig{
			MaxOutstanding: cfg.MaxOutstanding,
			WindowSize:     time.Hour,
			MaxRetries:     1,
			RetryDelay:     time.Millisecond,
		})
	}
	return s
}

// SetInboundHandler registers the callback invoked for every
// peer-originated request PDU.
func (s *Session) SetInboundHandler(h InboundHandler) { s.onInboundRequest = h }

// SetTeardownHandler registers a callback invoked exactly once when the
// session closes, with the terminating error (nil for a graceful close).
func (s *Session) SetTeardownHandler(h func(err error)) { s.onTeardown = h }

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// transitionToBound moves the session into the bound state matching
// which half of the connection was granted: Tx, Rx, or Trx.
func (s *Session) transitionToBound(state ConnectionState) {
	s.setState(state)
}

// nextSequence allocates the next outbound sequence number, wrapping
// from 0x7FFFFFFF back to 1 (spec.md §3.3, invariant 5). 0 is never
// allocated: it is reserved and invalid on the wire.
func (s *Session) nextSequence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	if s.nextSeq == 0 || s.nextSeq > 0x7FFFFFFF {
		s.nextSeq = 1
	}
	return s.nextSeq
}

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// LastActivityRx returns the timestamp of the most recently received PDU.
func (s *Session) LastActivityRx() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityRx
}

func (s *Session) markRx() {
	s.mu.Lock()
	s.lastActivityRx = time.Now()
	s.mu.Unlock()
}

func (s *Session) markTx() {
	s.mu.Lock()
	s.lastActivityTx = time.Now()
	s.mu.Unlock()
}

// SendRequest allocates a sequence number, writes req to the peer, and
// blocks until the matching response arrives, the per-request timeout
// elapses, ctx is cancelled, or the session tears down — exactly one of
// {response, Timeout, Cancelled, teardown error} resolves the call
// (spec.md §8 invariant 3).
func (s *Session) SendRequest(ctx context.Context, body PDUBody) (*PDU, error) {
	if s.window != nil {
		if err := s.window.Acquire(ctx); err != nil {
			return nil, &CapacityError{MaxConnections: s.cfg.MaxOutstanding}
		}
		defer s.window.Release()
	}

	seq := s.nextSequence()
	pdu := &PDU{
		Header: PDUHeader{CommandID: body.CommandID(), CommandStatus: StatusOK, SequenceNum: seq},
		Body:   body,
	}
	start := time.Now()

	pending := &pendingRequest{
		responseCommandID: responseIDFor(body.CommandID()),
		resultCh:           make(chan requestResult, 1),
	}

	s.mu.Lock()
	if _, exists := s.pending[seq]; exists {
		s.mu.Unlock()
		return nil, NewProtocolError("sequence_number %d already pending", seq)
	}
	s.pending[seq] = pending
	s.mu.Unlock()

	timeout := s.cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultSessionConfig().ResponseTimeout
	}
	pending.timer = time.AfterFunc(timeout, func() { s.expire(seq) })

	if err := s.writeFrame(pdu); err != nil {
		s.removePending(seq)
		pending.timer.Stop()
		return nil, err
	}

	select {
	case result := <-pending.resultCh:
		if s.metrics != nil {
			s.metrics.RecordDuration("smpp_pdu_round_trip", time.Since(start),
				map[string]string{"command_id": fmt.Sprintf("0x%08X", body.CommandID())})
		}
		return result.pdu, result.err
	case <-ctx.Done():
		s.removePending(seq)
		pending.timer.Stop()
		return nil, &CancelledError{Operation: fmt.Sprintf("sequence %d", seq)}
	case <-s.closeCh:
		return nil, s.terminatingError()
	}
}

func (s *Session) removePending(seq uint32) *pendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending[seq]
	delete(s.pending, seq)
	return p
}

func (s *Session) expire(seq uint32) {
	p := s.removePending(seq)
	if p == nil {
		return
	}
	select {
	case p.resultCh <- requestResult{err: &TimeoutError{Operation: fmt.Sprintf("sequence %d", seq)}}:
	default:
	}
}

func (s *Session) terminatingError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	return &ConnectionError{Op: "session", Err: io.ErrClosedPipe}
}

// SendResponse writes a response PDU copying sequence from the
// originating request, per spec.md §4.3 ("Acceptors copy the inbound
// request's sequence number onto its response").
func (s *Session) SendResponse(sequence uint32, responseCommandID uint32, status uint32, body PDUBody) error {
	pdu := &PDU{
		Header: PDUHeader{CommandID: responseCommandID, CommandStatus: status, SequenceNum: sequence},
		Body:   body,
	}
	return s.writeFrame(pdu)
}

// SendGenericNack replies to sequence with generic_nack and status,
// per spec.md §4.1 ("Unknown command_ids decode to a typed unknown
// variant ... the session layer can reply with generic_nack").
func (s *Session) SendGenericNack(sequence uint32, status uint32) error {
	return s.SendResponse(sequence, CommandGenericNack, status, &GenericNack{})
}

func (s *Session) writeFrame(pdu *PDU) error {
	frame, err := s.encoder.Encode(pdu)
	if err != nil {
		return err
	}
	select {
	case s.writeCh <- frame:
		s.markTx()
		return nil
	case <-s.closeCh:
		return s.terminatingError()
	}
}

// writerLoop serializes every outbound frame through a single FIFO
// channel so a session's writes never interleave partial PDUs on the
// wire even when multiple goroutines call SendRequest/SendResponse
// concurrently (spec.md §4.2, §5).
func (s *Session) writerLoop() {
	for {
		select {
		case frame := <-s.writeCh:
			if err := WriteFrame(s.conn, frame); err != nil {
				s.Close(&ConnectionError{Op: "write", Err: err})
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// Run drives the session's read loop until the connection closes or an
// unrecoverable protocol/frame/connection error occurs, returning the
// terminating error (nil on a graceful unbind-driven close). The
// caller is expected to run Run in its own goroutine.
func (s *Session) Run(ctx context.Context) error {
	go s.writerLoop()
	go s.keepAliveLoop()

	for {
		frame, err := ReadFrame(s.conn)
		if err != nil {
			if err == io.EOF {
				return s.Close(nil)
			}
			return s.Close(&ConnectionError{Op: "read", Err: err})
		}

		s.markRx()
		pdu, err := s.decoder.Decode(frame)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "error", err, "remote", s.RemoteAddr())
			if ferr, ok := err.(*FrameError); ok {
				return s.Close(ferr)
			}
			continue
		}

		if err := s.dispatch(ctx, pdu); err != nil {
			return s.Close(err)
		}

		select {
		case <-ctx.Done():
			return s.Close(ctx.Err())
		default:
		}
	}
}

// dispatch routes an inbound PDU to response correlation or to the
// role-specific InboundHandler, per spec.md §9 ("dispatch through a
// tagged-variant PDU plus a handler per variant").
func (s *Session) dispatch(ctx context.Context, pdu *PDU) error {
	if s.metrics != nil {
		s.metrics.IncCounter("smpp_pdu_total",
			map[string]string{"command_id": fmt.Sprintf("0x%08X", pdu.Header.CommandID), "direction": "in"})
	}
	if isResponseID(pdu.Header.CommandID) {
		return s.resolveResponse(pdu)
	}

	if unk, ok := pdu.Body.(*UnknownPDU); ok {
		s.logger.Debug("unknown command_id", "command_id", fmt.Sprintf("0x%08X", unk.OriginalCommandID))
		return s.SendGenericNack(pdu.Header.SequenceNum, StatusInvCmdID)
	}

	if pdu.Header.CommandID == CommandEnquireLink {
		return s.SendResponse(pdu.Header.SequenceNum, CommandEnquireLinkResp, StatusOK, &EnquireLinkResp{})
	}

	if s.onInboundRequest == nil {
		return s.SendGenericNack(pdu.Header.SequenceNum, StatusSysErr)
	}

	respBody, respCommandID, status, err := s.onInboundRequest(ctx, pdu)
	if err != nil {
		s.logger.Warn("inbound handler failed", "error", err, "command_id", fmt.Sprintf("0x%08X", pdu.Header.CommandID))
		return nil
	}
	if respBody == nil {
		return nil
	}
	return s.SendResponse(pdu.Header.SequenceNum, respCommandID, status, respBody)
}

func (s *Session) resolveResponse(pdu *PDU) error {
	s.mu.Lock()
	pending, exists := s.pending[pdu.Header.SequenceNum]
	s.mu.Unlock()

	if !exists {
		s.logger.Debug("response for unknown or expired sequence", "sequence", pdu.Header.SequenceNum)
		return nil
	}
	if pending.responseCommandID != pdu.Header.CommandID {
		return NewProtocolError("sequence %d: expected response command_id 0x%08X, got 0x%08X",
			pdu.Header.SequenceNum, pending.responseCommandID, pdu.Header.CommandID)
	}

	pending.timer.Stop()
	s.removePending(pdu.Header.SequenceNum)

	var err error
	if pdu.Header.CommandStatus != StatusOK && isBindResponseCommand(pdu.Header.CommandID) {
		err = &BindError{Status: pdu.Header.CommandStatus}
	}
	select {
	case pending.resultCh <- requestResult{pdu: pdu, err: err}:
	default:
	}
	return nil
}

func isBindResponseCommand(commandID uint32) bool {
	switch commandID {
	case CommandBindTransmitterResp, CommandBindReceiverResp, CommandBindTransceiverResp:
		return true
	default:
		return false
	}
}

// keepAliveLoop implements spec.md §4.3's enquire_link keep-alive: send
// enquire_link after an idle transmit period, and close the session if
// nothing has been received for 2x the interval.
func (s *Session) keepAliveLoop() {
	interval := s.cfg.EnquireLinkInterval
	if interval <= 0 {
		interval = DefaultSessionConfig().EnquireLinkInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			sinceRx := time.Since(s.lastActivityRx)
			sinceTx := time.Since(s.lastActivityTx)
			state := s.state
			s.mu.Unlock()

			if state == StateClosed {
				return
			}
			if sinceRx >= 2*interval {
				s.Close(&TimeoutError{Operation: "enquire_link keep-alive"})
				return
			}
			if sinceTx >= interval {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ResponseTimeout)
					defer cancel()
					_, _ = s.SendRequest(ctx, &EnquireLink{})
				}()
			}
		case <-s.closeCh:
			return
		}
	}
}

// Close tears the session down: flushes pending requests with err,
// closes the underlying connection, and transitions to Closed. It is
// idempotent and safe to call concurrently (spec.md §4.6).
func (s *Session) Close(err error) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeErr = err
		s.state = StateClosed
		pending := s.pending
		s.pending = make(map[uint32]*pendingRequest)
		s.mu.Unlock()

		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}

		for _, p := range pending {
			p.timer.Stop()
			terminating := err
			if terminating == nil {
				terminating = &ConnectionError{Op: "session", Err: io.EOF}
			}
			select {
			case p.resultCh <- requestResult{err: terminating}:
			default:
			}
		}

		if s.onTeardown != nil {
			s.onTeardown(err)
		}
	})
	return err
}
