// Package fixsession implements one authenticated FIX 5.0SP2-over-FIXT.1.1
// application link: HMAC logon, sequence-number discipline, heartbeats,
// resend handling, and reconnect with backoff. It depends on internal/fixcodec
// for wire framing and owns everything stateful on top of it.
package fixsession

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"truex-mm/internal/fixcodec"
)

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateLoggingOn
	stateLoggedOn
	stateDisconnecting
)

const (
	connectTimeout  = 10 * time.Second
	logonTimeout    = 10 * time.Second
	readChunkSize   = 4096
	maxDrainPerTick = 50
	cleanupInterval = 5 * time.Minute
)

// Session owns one TCP connection, its outbound/expected sequence counters,
// and its sent-store. It is single-writer on the socket: only the session
// goroutine itself calls conn.Write.
type Session struct {
	cfg      Config
	listener Listener
	logger   *slog.Logger

	connMu sync.Mutex
	conn   net.Conn

	stateMu sync.Mutex
	st      state

	outSeq      int
	expectedSeq int
	seqMu       sync.Mutex

	store *sentStore

	intentional bool
	intentMu    sync.Mutex

	lastHeartbeatRecv time.Time
	hbMu              sync.Mutex

	logonResult chan error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Session against cfg. listener receives lifecycle and
// message events; it must not be nil.
func New(cfg Config, listener Listener, logger *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:      cfg,
		listener: listener,
		logger:   logger.With("component", "fixsession", "target", cfg.TargetCompID),
		store:    newSentStore(cfg.MaxStoredMessages, cfg.MessageRetention),
	}
}

// Connect dials the counterparty, sends Logon, and resolves once a Logon
// response arrives (or fails per the failure taxonomy). Both sequence
// counters reset to 1 because Logon carries ResetSeqNumFlag=Y.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(stateConnecting)
	s.intentMu.Lock()
	s.intentional = false
	s.intentMu.Unlock()

	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		s.setState(stateDisconnected)
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.seqMu.Lock()
	s.outSeq = 1
	s.expectedSeq = 1
	s.seqMu.Unlock()
	s.store.clear()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.logonResult = make(chan error, 1)

	s.setState(stateLoggingOn)

	s.wg.Add(1)
	go s.readLoop(runCtx)

	if err := s.sendLogon(); err != nil {
		s.teardown(err)
		return err
	}

	select {
	case err := <-s.logonResult:
		if err != nil {
			s.teardown(err)
			return err
		}
	case <-time.After(logonTimeout):
		s.teardown(ErrLogonTimeout)
		return ErrLogonTimeout
	case <-ctx.Done():
		s.teardown(ctx.Err())
		return ctx.Err()
	}

	s.setState(stateLoggedOn)
	s.hbMu.Lock()
	s.lastHeartbeatRecv = time.Now()
	s.hbMu.Unlock()

	s.wg.Add(2)
	go s.heartbeatLoop(runCtx)
	go s.cleanupLoop(runCtx)

	if s.listener != nil {
		s.listener.OnLogon()
	}
	return nil
}

// Disconnect sends Logout if logged on, closes the socket, and marks the
// disconnect intentional so Run's reconnect supervisor does not retry.
func (s *Session) Disconnect() error {
	s.intentMu.Lock()
	s.intentional = true
	s.intentMu.Unlock()

	if s.getState() == stateLoggedOn {
		_, _ = s.sendMessage(fixcodec.MsgTypeLogout, fixcodec.NewFields(), nil)
	}
	s.teardown(nil)
	return nil
}

// SendApplicationMessage assigns the next outbound sequence number,
// serializes fields under msgType, stores the raw bytes for resend, and
// writes to the socket. Returns the assigned sequence number.
func (s *Session) SendApplicationMessage(msgType string, body *fixcodec.Fields) (int, error) {
	if s.getState() != stateLoggedOn {
		return 0, ErrNotConnected
	}
	return s.sendMessage(msgType, body, nil)
}

// SendApplicationMessageWithRawGroup behaves like SendApplicationMessage but
// appends a pre-framed raw repeating group (see fixcodec.EncodeWithRawGroup)
// — needed for messages like MarketDataRequest whose MDEntryType tag
// legitimately repeats and so cannot be represented in a Fields set.
func (s *Session) SendApplicationMessageWithRawGroup(msgType string, body *fixcodec.Fields, rawGroup []byte) (int, error) {
	if s.getState() != stateLoggedOn {
		return 0, ErrNotConnected
	}
	return s.sendMessage(msgType, body, rawGroup)
}

func (s *Session) sendMessage(msgType string, body *fixcodec.Fields, rawGroup []byte) (int, error) {
	s.seqMu.Lock()
	seq := s.outSeq
	s.outSeq++
	s.seqMu.Unlock()

	hdr := fixcodec.Header{
		MsgType:      msgType,
		SenderCompID: s.cfg.SenderCompID,
		TargetCompID: s.cfg.TargetCompID,
		MsgSeqNum:    seq,
		SendingTime:  time.Now().UTC().Format(fixcodec.FixTimeFormat),
	}

	raw, err := fixcodec.EncodeWithRawGroup(hdr, body, rawGroup)
	if err != nil {
		return 0, err
	}

	if err := s.writeRaw(raw); err != nil {
		return 0, err
	}

	s.store.put(sentEntry{seq: seq, header: hdr, body: body.Clone(), rawGroup: rawGroup, raw: raw, storedAt: time.Now()})
	if s.listener != nil {
		s.listener.OnSent(seq, raw)
	}
	return seq, nil
}

func (s *Session) writeRaw(raw []byte) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(raw); err != nil {
		s.handleDisconnect(fmt.Errorf("%w: %v", ErrWriteFailure, err))
		return ErrWriteFailure
	}
	return nil
}

func (s *Session) sendLogon() error {
	sendingTime := time.Now().UTC().Format(fixcodec.FixTimeFormat)
	seq := 1 // first message of a freshly reset session

	signature := ComputeLogonSignature(sendingTime, fixcodec.MsgTypeLogon, strconv.Itoa(seq),
		s.cfg.SenderCompID, s.cfg.TargetCompID, s.cfg.APIKey, s.cfg.APISecret)

	body := fixcodec.NewFields().
		Set(fixcodec.TagEncryptMethod, "0").
		Set(fixcodec.TagHeartBtInt, strconv.Itoa(int(s.cfg.HeartbeatInterval.Seconds()))).
		Set(fixcodec.TagResetSeqNumFlag, "Y").
		Set(fixcodec.TagUsername, s.cfg.APIKey).
		Set(fixcodec.TagRawDataSignature, signature)

	hdr := fixcodec.Header{
		MsgType:      fixcodec.MsgTypeLogon,
		SenderCompID: s.cfg.SenderCompID,
		TargetCompID: s.cfg.TargetCompID,
		MsgSeqNum:    seq,
		SendingTime:  sendingTime,
	}

	raw, err := fixcodec.Encode(hdr, body)
	if err != nil {
		return err
	}

	s.seqMu.Lock()
	s.outSeq = seq + 1
	s.seqMu.Unlock()

	if err := s.writeRaw(raw); err != nil {
		return err
	}
	s.store.put(sentEntry{seq: seq, header: hdr, body: body.Clone(), raw: raw, storedAt: time.Now()})
	return nil
}

func (s *Session) setState(st state) {
	s.stateMu.Lock()
	s.st = st
	s.stateMu.Unlock()
}

func (s *Session) getState() state {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.st
}

func (s *Session) isIntentional() bool {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()
	return s.intentional
}

// teardown closes the socket and stops timers. err is forwarded to the
// listener's OnDisconnect unless nil (intentional Disconnect).
func (s *Session) teardown(err error) {
	s.setState(stateDisconnecting)
	if s.cancel != nil {
		s.cancel()
	}
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.store.evictExpired(time.Now())
	s.setState(stateDisconnected)

	if err != nil && s.listener != nil {
		s.listener.OnDisconnect(err)
	}
}

// handleDisconnect is invoked from any goroutine that detects the
// connection is dead. It tears down state exactly once in practice;
// redundant calls are harmless since teardown is idempotent on a nil conn.
func (s *Session) handleDisconnect(err error) {
	if s.getState() == stateDisconnected {
		return
	}
	s.teardown(err)
}
