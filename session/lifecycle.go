package session

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/handlers"
	"github.com/wxcuop/pyfixmsg-plus/heartbeat"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
	"github.com/wxcuop/pyfixmsg-plus/store"
	"github.com/wxcuop/pyfixmsg-plus/transport"
)

// Start implements spec.md §4.7: drives the state machine from
// Disconnected and runs until the session reaches Disconnected again,
// mirroring the teacher's node.Run — callers that want a background
// session invoke Start on its own goroutine.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("session: already started")
	}
	e.started = true
	e.mu.Unlock()

	if e.IsInitiator() {
		return e.runInitiator()
	}
	return e.runAcceptor()
}

func (e *Engine) runInitiator() error {
	if _, err := e.sm.Apply(statemachine.EventStartInitiator); err != nil {
		return err
	}

	address := net.JoinHostPort(e.cfg.SocketConnectHost, strconv.Itoa(e.cfg.SocketConnectPort))
	attempts := 0
	for {
		conn, err := transport.Connect(e.streamLayer, address, e.cfg.DialTimeout)
		if err != nil {
			e.log.WithError(err).Warn("dial failed")
			if _, applyErr := e.sm.Apply(statemachine.EventConnectFailed); applyErr != nil {
				return applyErr
			}
			reconnectsTotal.WithLabelValues(e.id.String()).Inc()
			attempts++
			if e.cfg.ReconnectMaxAttempts > 0 && attempts >= e.cfg.ReconnectMaxAttempts {
				e.sm.Apply(statemachine.EventMaxRetriesReached)
				return err
			}
			select {
			case <-time.After(e.backoff.Next()):
			case <-e.stopCh:
				return nil
			}
			if _, applyErr := e.sm.Apply(statemachine.EventRetryAttempt); applyErr != nil {
				return applyErr
			}
			continue
		}

		e.setConn(conn)
		if _, err := e.sm.Apply(statemachine.EventConnected); err != nil {
			return err
		}
		// The heartbeat timers must be running before the first send:
		// sendMessage resets the scheduler, which blocks until its loop runs.
		go e.scheduler.Start()
		go e.monitor.Start()
		if err := e.sendLogon(); err != nil {
			e.scheduler.Shutdown()
			e.monitor.Shutdown()
			return err
		}
		go e.armLogonTimeout()
		break
	}

	return e.runSession()
}

func (e *Engine) runAcceptor() error {
	if _, err := e.sm.Apply(statemachine.EventStartAcceptor); err != nil {
		return err
	}
	conn, err := transport.Accept(e.streamLayer)
	if err != nil {
		return err
	}
	e.setConn(conn)
	go e.scheduler.Start()
	go e.monitor.Start()
	return e.runSession()
}

func (e *Engine) sendLogon() error {
	msg := e.NewOutbound(fix.MsgTypeLogon)
	msg.Set(fix.TagEncryptMethod, "0")
	msg.Set(fix.TagHeartBtInt, strconv.Itoa(int(e.cfg.HeartBtInt/time.Second)))
	if e.cfg.ResetSeqNumOnLogon {
		if err := e.ResetSequenceNumbers(); err != nil {
			return err
		}
		msg.Set(fix.TagResetSeqNumFlag, "Y")
	}
	return e.sendMessage(msg)
}

type inboundFrame struct {
	raw []byte
	err error
}

// runSession implements the main select loop: inbound frames, the
// outbound heartbeat schedule, the inbound liveness monitor, and shutdown,
// per spec.md §5's "Only: transport reads, transport writes, store reads,
// store writes, timer sleeps, the logoff-waiter" suspension points.
func (e *Engine) runSession() error {
	readCh := make(chan inboundFrame, 8)
	go func() {
		for {
			conn := e.getConn()
			if conn == nil {
				return
			}
			raw, err := conn.ReadMessage()
			readCh <- inboundFrame{raw: raw, err: err}
			if err != nil {
				return
			}
		}
	}()

	defer e.scheduler.Shutdown()
	defer e.monitor.Shutdown()

	for {
		select {
		case frame := <-readCh:
			if frame.err != nil {
				e.log.WithError(frame.err).Warn("transport read error")
				e.sm.Apply(statemachine.EventNetworkError)
				e.closeConn()
				return frame.err
			}
			if err := e.handleInbound(frame.raw); err != nil {
				e.log.WithError(err).Warn("inbound pipeline error")
				e.sm.Apply(statemachine.EventFatalError)
				e.closeConn()
				return err
			}
			if e.sm.Current() == statemachine.Disconnected {
				e.closeConn()
				return nil
			}

		case <-e.scheduler.Ticks():
			if statemachine.CanSend(e.sm.Current()) {
				_ = e.sendMessage(e.NewOutbound(fix.MsgTypeHeartbeat))
			}

		case <-e.monitor.Ticks():
			action, id := e.monitor.OnTick()
			switch action {
			case heartbeat.ActionSendTestRequest:
				tr := e.NewOutbound(fix.MsgTypeTestRequest)
				tr.Set(fix.TagTestReqID, id)
				_ = e.sendMessage(tr)
			case heartbeat.ActionTimeout:
				e.log.Warn("test request timed out; declaring peer dead")
				e.sm.Apply(statemachine.EventNetworkError)
				e.closeConn()
				return errors.New("session: heartbeat timeout")
			}

		case <-e.stopCh:
			e.closeConn()
			return nil
		}
	}
}

// handleInbound implements spec.md §4.7's inbound pipeline.
func (e *Engine) handleInbound(raw []byte) error {
	msg, err := e.codec.Decode(raw)
	if err != nil {
		reject := handlers.BuildReject(e, 0, 0, fix.RejectInvalidTagNumber, err.Error())
		return e.sendMessage(reject)
	}

	begin, _ := msg.Get(fix.TagBeginString)
	sender, _ := msg.Get(fix.TagSenderCompID)
	target, _ := msg.Get(fix.TagTargetCompID)
	if begin != e.id.BeginString || sender != e.id.TargetCompID || target != e.id.SenderCompID {
		logout := e.NewOutbound(fix.MsgTypeLogout)
		logout.Set(fix.TagText, "CompID/BeginString mismatch")
		_ = e.sendMessage(logout)
		e.sm.Apply(statemachine.EventFatalError)
		e.closeConn()
		return errors.New("session: comp id mismatch")
	}

	messagesInTotal.WithLabelValues(e.id.String()).Inc()
	e.monitor.OnInboundMessage()

	seq := msg.SeqNum()
	next := e.NextIncoming()
	bypassesGap := msg.MsgType() == fix.MsgTypeLogon ||
		msg.MsgType() == fix.MsgTypeSequenceReset ||
		msg.MsgType() == fix.MsgTypeLogout

	// A Logon carrying 141=Y resets the session regardless of whatever
	// nextIncoming the store had persisted from a prior cycle — it always
	// arrives as MsgSeqNum=1 and must be accepted as such, never judged
	// against the old counter (spec.md §3 invariant 2(a)).
	if rst, ok := msg.Get(fix.TagResetSeqNumFlag); msg.MsgType() == fix.MsgTypeLogon && ok && rst == "Y" && seq == 1 {
		if err := e.st.Store(e.id, seq, store.Inbound, raw, time.Now()); err != nil {
			return err
		}
		if err := e.dispatch(msg); err != nil {
			return err
		}
		return e.SetNextIncoming(2)
	}

	switch {
	case seq == next:
		if err := e.st.Store(e.id, seq, store.Inbound, raw, time.Now()); err != nil {
			return err
		}
		if err := e.dispatch(msg); err != nil {
			return err
		}
		if msg.MsgType() == fix.MsgTypeLogout && e.sm.Current() == statemachine.LogoutInProgress {
			go e.armLogoutGrace()
		}
		if e.NextIncoming() > next {
			// a SequenceReset already moved nextIncoming to its NewSeqNo
			return nil
		}
		return e.SetNextIncoming(next + 1)

	case seq > next:
		gapsDetectedTotal.WithLabelValues(e.id.String()).Inc()
		if err := e.st.Store(e.id, seq, store.Inbound, raw, time.Now()); err != nil {
			return err
		}
		if err := e.sendMessage(handlers.BuildResendRequest(e, next, seq-1)); err != nil {
			return err
		}
		if bypassesGap {
			if err := e.dispatch(msg); err != nil {
				return err
			}
			if e.NextIncoming() > seq {
				return nil
			}
			return e.SetNextIncoming(seq + 1)
		}
		return nil

	case msg.PossDup():
		if bypassesGap {
			return e.dispatch(msg)
		}
		return nil

	default:
		logout := e.NewOutbound(fix.MsgTypeLogout)
		logout.Set(fix.TagText, "MsgSeqNum too low")
		_ = e.sendMessage(logout)
		e.sm.Apply(statemachine.EventFatalError)
		e.closeConn()
		return errors.New("session: sequence number decrease without PossDup")
	}
}

// dispatch routes msg through the processor and translates the resulting
// handlers.Result into concrete actions, per spec.md §7's propagation rule.
// Logon additionally drives the state machine here since the same wire
// message means either "request" or "response" depending on role, and only
// this layer knows which state it arrived in.
func (e *Engine) dispatch(msg *fix.Message) error {
	res, err := e.proc.Dispatch(e, msg)
	if err != nil {
		return err
	}

	for _, resp := range res.Responses {
		if err := e.sendMessage(resp); err != nil {
			return err
		}
	}

	if msg.MsgType() == fix.MsgTypeLogon && res.Outcome == handlers.OutcomeContinue {
		switch e.sm.Current() {
		case statemachine.AwaitingLogon:
			e.sm.Apply(statemachine.EventLogonReceived)
		case statemachine.LogonInProgress:
			e.sm.Apply(statemachine.EventLogonAccepted)
			e.backoff.Reset()
		}
	}

	switch res.Outcome {
	case handlers.OutcomeRejectAndContinue:
		reject := handlers.BuildReject(e, msg.SeqNum(), res.RejectRefTag, res.RejectReason, res.RejectText)
		return e.sendMessage(reject)
	case handlers.OutcomeLogoutAndDisconnect:
		logout := e.NewOutbound(fix.MsgTypeLogout)
		if res.LogoutText != "" {
			logout.Set(fix.TagText, res.LogoutText)
		}
		_ = e.sendMessage(logout)
		e.sm.Apply(statemachine.EventFatalError)
		e.closeConn()
	case handlers.OutcomeForceDisconnect:
		e.sm.Apply(statemachine.EventNetworkError)
		e.closeConn()
	}
	return nil
}

// sendMessage implements spec.md §4.7's outbound pipeline: assign the next
// outgoing sequence number (unless the message already carries one, as a
// resend replay or gap-fill does), persist, then write. Persist happens
// before write so a message that reaches the peer always has a store
// record backing a future resend.
func (e *Engine) sendMessage(msg *fix.Message) error {
	var seq int
	if msg.Has(fix.TagMsgSeqNum) {
		seq, _ = msg.GetInt(fix.TagMsgSeqNum)
	} else {
		e.mu.Lock()
		seq = e.nextOutgoing
		e.nextOutgoing++
		e.mu.Unlock()
		msg.Set(fix.TagMsgSeqNum, strconv.Itoa(seq))
		if err := e.st.SetOutgoing(e.id, seq+1); err != nil {
			return err
		}
	}

	raw, err := e.codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := e.st.Store(e.id, seq, store.Outbound, raw, time.Now()); err != nil {
		return err
	}

	conn := e.getConn()
	if conn == nil {
		return errors.New("session: no active connection")
	}
	if err := conn.WriteMessage(raw); err != nil {
		return err
	}
	messagesOutTotal.WithLabelValues(e.id.String()).Inc()
	e.scheduler.OnOutboundSent()
	return nil
}

// Send implements spec.md §4.7's public `send(message)`: valid only in
// Active.
func (e *Engine) Send(msg *fix.Message) error {
	if !statemachine.CanSend(e.sm.Current()) {
		return &InvalidStateError{Operation: "send", State: e.sm.Current()}
	}
	if e.callbacks.ToApp != nil {
		if err := e.callbacks.ToApp(msg, e.id); err != nil {
			return err
		}
	}
	msg.Set(fix.TagBeginString, e.id.BeginString)
	msg.Set(fix.TagSenderCompID, e.id.SenderCompID)
	msg.Set(fix.TagTargetCompID, e.id.TargetCompID)
	msg.Set(fix.TagSendingTime, stampNow())
	return e.sendMessage(msg)
}

// RequestLogoff implements spec.md §4.7: send Logout, suspend on the
// logoff waiter for up to timeout, then disconnect regardless.
func (e *Engine) RequestLogoff(timeout time.Duration) error {
	logout := e.NewOutbound(fix.MsgTypeLogout)
	logout.Set(fix.TagText, "Operator requested logout")
	if _, err := e.sm.Apply(statemachine.EventLogoutRequested); err != nil {
		return err
	}
	if err := e.sendMessage(logout); err != nil {
		return err
	}

	select {
	case <-e.logoffCh:
	case <-time.After(timeout):
	}
	return e.Disconnect(true)
}

// Disconnect implements spec.md §4.7: close the transport; if graceful,
// first ensure Logout was sent.
func (e *Engine) Disconnect(graceful bool) error {
	if graceful && statemachine.CanSend(e.sm.Current()) {
		_ = e.sendMessage(e.NewOutbound(fix.MsgTypeLogout))
	}
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.closeConn()
	return nil
}

// armLogoutGrace implements spec.md §4.5's "transition LogoutInProgress →
// Disconnected after a grace period" rule for the side that received an
// unsolicited Logout: it already replied in-line, and no confirmation of
// its own reply is coming, so it closes unilaterally once LogoutTimeout
// elapses.
func (e *Engine) armLogoutGrace() {
	select {
	case <-time.After(e.cfg.LogoutTimeout):
		if e.sm.Current() == statemachine.LogoutInProgress {
			e.sm.Apply(statemachine.EventLogoutTimeout)
			e.closeConn()
		}
	case <-e.stopCh:
	}
}

// armLogonTimeout implements spec.md §5's "Logon response: 30s default"
// deadline: the initiator that sent its own Logon and is waiting in
// LogonInProgress gives up and disconnects if no response arrives in time,
// mirroring armLogoutGrace's unilateral-close shape.
func (e *Engine) armLogonTimeout() {
	select {
	case <-time.After(e.cfg.LogonTimeout):
		if e.sm.Current() == statemachine.LogonInProgress {
			e.log.Warn("logon response timed out")
			e.sm.Apply(statemachine.EventLogonTimeout)
			e.closeConn()
		}
	case <-e.stopCh:
	}
}

func (e *Engine) setConn(c *transport.FramedConn) {
	e.mu.Lock()
	e.conn = c
	e.mu.Unlock()
}

func (e *Engine) getConn() *transport.FramedConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}

func (e *Engine) closeConn() {
	e.mu.Lock()
	c := e.conn
	e.conn = nil
	e.mu.Unlock()
	if c != nil {
		c.Close()
	}
}
