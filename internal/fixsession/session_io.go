package fixsession

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"truex-mm/internal/fixcodec"
)

// readLoop owns the rolling inbound buffer. It reads from the socket,
// extracts complete messages, and drains at most maxDrainPerTick per
// iteration so a burst cannot starve the heartbeat/cleanup goroutines.
func (s *Session) readLoop(ctx context.Context) {
	defer s.wg.Done()

	var buf []byte
	var pending [][]byte
	chunk := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if len(pending) == 0 {
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(2 * s.cfg.HeartbeatInterval))
			n, err := conn.Read(chunk)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.handleDisconnect(fmt.Errorf("read: %w", err))
				return
			}
			buf = append(buf, chunk[:n]...)

			var msgs [][]byte
			msgs, buf = fixcodec.ExtractMessages(buf)
			pending = append(pending, msgs...)
			if len(pending) == 0 {
				continue
			}
		}

		n := len(pending)
		if n > maxDrainPerTick {
			n = maxDrainPerTick
		}
		for i := 0; i < n; i++ {
			s.dispatchRaw(pending[i])
		}
		pending = pending[n:]
	}
}

// dispatchRaw parses one framed message and applies sequence discipline.
func (s *Session) dispatchRaw(raw []byte) {
	parsed, err := fixcodec.Parse(raw)
	if err != nil {
		s.logger.Warn("dropping malformed message", "error", err)
		return
	}

	seqStr, ok := parsed.Get(fixcodec.TagMsgSeqNum)
	if !ok {
		s.logger.Warn("message missing MsgSeqNum, dropping", "msgType", parsed.MsgType)
		return
	}
	seq, err := strconv.Atoi(seqStr)
	if err != nil {
		s.logger.Warn("non-numeric MsgSeqNum, dropping", "value", seqStr)
		return
	}

	s.seqMu.Lock()
	expected := s.expectedSeq
	switch {
	case seq == expected:
		s.expectedSeq = expected + 1
		s.seqMu.Unlock()
		s.handleInOrder(parsed)
	case seq < expected:
		s.seqMu.Unlock()
		s.logger.Debug("dropping duplicate inbound message", "seq", seq, "expected", expected)
	default:
		s.seqMu.Unlock()
		s.logger.Warn("sequence gap detected", "seq", seq, "expected", expected)
		s.sendResendRequest(expected, seq-1)
	}
}

func (s *Session) handleInOrder(parsed *fixcodec.ParsedMessage) {
	switch parsed.MsgType {
	case fixcodec.MsgTypeLogon:
		if s.getState() == stateLoggingOn {
			select {
			case s.logonResult <- nil:
			default:
			}
		}
	case fixcodec.MsgTypeHeartbeat:
		s.hbMu.Lock()
		s.lastHeartbeatRecv = time.Now()
		s.hbMu.Unlock()
	case fixcodec.MsgTypeTestRequest:
		s.hbMu.Lock()
		s.lastHeartbeatRecv = time.Now()
		s.hbMu.Unlock()
		testReqID, _ := parsed.Get(fixcodec.TagTestReqID)
		_, _ = s.sendMessage(fixcodec.MsgTypeHeartbeat, fixcodec.NewFields().Set(fixcodec.TagTestReqID, testReqID), nil)
	case fixcodec.MsgTypeResendRequest:
		s.handleResendRequest(parsed)
	case fixcodec.MsgTypeReject:
		refSeqStr, _ := parsed.Get(fixcodec.TagRefSeqNum)
		text, _ := parsed.Get(fixcodec.TagText)
		refSeq, _ := strconv.Atoi(refSeqStr)
		if s.getState() == stateLoggingOn {
			select {
			case s.logonResult <- fmt.Errorf("%w: %s", ErrLogonRejected, text):
			default:
			}
		}
		if s.listener != nil {
			s.listener.OnReject(refSeq, text)
		}
	case fixcodec.MsgTypeLogout:
		reason, _ := parsed.Get(fixcodec.TagText)
		if s.listener != nil {
			s.listener.OnLogout(reason)
		}
		if !s.isIntentional() {
			s.handleDisconnect(fmt.Errorf("logout received: %s", reason))
		}
	}

	if s.listener != nil {
		s.listener.OnMessage(parsed)
	}
}

// sendResendRequest emits a 35=2 with 7=begin, 16=end, per the gap-handling
// rule: the out-of-order message itself is never dispatched and expectedSeq
// is left unchanged so the resent copies re-enter in order.
func (s *Session) sendResendRequest(begin, end int) {
	body := fixcodec.NewFields().
		Set(fixcodec.TagBeginSeqNo, strconv.Itoa(begin)).
		Set(fixcodec.TagEndSeqNo, strconv.Itoa(end))
	if _, err := s.sendMessage(fixcodec.MsgTypeResendRequest, body, nil); err != nil {
		s.logger.Warn("failed to send resend request", "error", err)
	}
}

// handleResendRequest services an inbound 35=2: each requested sequence
// present in the sent-store is reconstructed with PossDupFlag=Y and a
// refreshed SendingTime (the original SendingTime, tag 122, is deliberately
// omitted), then rewritten to the socket preserving its original seq.
func (s *Session) handleResendRequest(parsed *fixcodec.ParsedMessage) {
	beginStr, _ := parsed.Get(fixcodec.TagBeginSeqNo)
	endStr, _ := parsed.Get(fixcodec.TagEndSeqNo)
	begin, err1 := strconv.Atoi(beginStr)
	end, err2 := strconv.Atoi(endStr)
	if err1 != nil || err2 != nil || begin < 1 {
		s.logger.Warn("invalid resend request range, ignoring", "begin", beginStr, "end", endStr)
		return
	}

	if end == 0 {
		s.seqMu.Lock()
		end = s.outSeq - 1
		s.seqMu.Unlock()
	}
	if end < begin {
		s.logger.Warn("invalid resend request range, ignoring", "begin", begin, "end", end)
		return
	}

	resent, skipped := 0, 0
	for seq := begin; seq <= end; seq++ {
		entry, ok := s.store.get(seq)
		if !ok {
			skipped++
			s.logger.Warn("resend requested seq not in sent-store, skipping", "seq", seq)
			continue
		}
		if err := s.resendEntry(entry); err != nil {
			s.logger.Warn("failed to rewrite resend entry", "seq", seq, "error", err)
			skipped++
			continue
		}
		resent++
	}

	requested := end - begin + 1
	if s.listener != nil {
		s.listener.OnResendCompleted(begin, end, resent, skipped, requested)
	}
}

func (s *Session) resendEntry(entry sentEntry) error {
	hdr := entry.header
	hdr.SendingTime = time.Now().UTC().Format(fixcodec.FixTimeFormat)

	body := entry.body.Clone().Set(fixcodec.TagPossDupFlag, "Y")

	raw, err := fixcodec.EncodeWithRawGroup(hdr, body, entry.rawGroup)
	if err != nil {
		return err
	}
	return s.writeRaw(raw)
}

// heartbeatLoop sends a Heartbeat every HeartbeatInterval and declares the
// session dead if no inbound heartbeat-class message arrived within
// 2×interval.
func (s *Session) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hbMu.Lock()
			last := s.lastHeartbeatRecv
			s.hbMu.Unlock()
			if time.Since(last) > 2*s.cfg.HeartbeatInterval {
				s.handleDisconnect(fmt.Errorf("fixsession: heartbeat timeout"))
				return
			}
			if _, err := s.sendMessage(fixcodec.MsgTypeHeartbeat, fixcodec.NewFields(), nil); err != nil {
				return
			}
		}
	}
}

// cleanupLoop evicts expired sent-store entries every cleanupInterval.
func (s *Session) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.evictExpired(time.Now())
		}
	}
}
