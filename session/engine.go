package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/handlers"
	"github.com/wxcuop/pyfixmsg-plus/heartbeat"
	"github.com/wxcuop/pyfixmsg-plus/processor"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
	"github.com/wxcuop/pyfixmsg-plus/store"
	"github.com/wxcuop/pyfixmsg-plus/transport"
)

// Callbacks are the application-supplied hooks of spec.md §6.
type Callbacks struct {
	OnCreate         func(id fix.SessionID)
	OnLogon          func(id fix.SessionID)
	OnLogout         func(id fix.SessionID, reason string)
	OnMessageFromApp func(msg *fix.Message, id fix.SessionID)
	ToApp            func(msg *fix.Message, id fix.SessionID) error
}

// Engine is the top-level session coordinator (C7): it owns the store,
// state machine, heartbeat subsystem, processor, and transport, and drives
// the lifecycle spec.md §4.7 describes. Grounded on the teacher's
// node/node.go Node: one struct owning every subsystem, a control-timer
// pair, and a single Run loop.
type Engine struct {
	cfg       Config
	callbacks Callbacks
	codec     fix.Codec
	id        fix.SessionID

	st   store.Store
	sm   *statemachine.Machine
	proc *processor.Processor

	scheduler *heartbeat.Scheduler
	monitor   *heartbeat.Monitor

	streamLayer transport.StreamLayer
	backoff     *transport.ReconnectPolicy

	sinks []Sink
	log   *logrus.Entry

	mu           sync.Mutex
	conn         *transport.FramedConn
	nextIncoming int
	nextOutgoing int
	heartBtInt   time.Duration
	started      bool

	logoffCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs an Engine per spec.md §4.7's `create(config,
// applicationCallbacks) → Engine`: builds every subsystem and loads
// sequence state, but does not start I/O.
func New(cfg Config, callbacks Callbacks, codec fix.Codec, streamLayer transport.StreamLayer, sinks ...Sink) (*Engine, error) {
	registerMetrics()

	id := fix.SessionID{BeginString: cfg.BeginString, SenderCompID: cfg.SenderCompID, TargetCompID: cfg.TargetCompID}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	nextIn, err := st.NextIncoming(id)
	if err != nil {
		return nil, err
	}
	nextOut, err := st.NextOutgoing(id)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		callbacks:    callbacks,
		codec:        codec,
		id:           id,
		st:           st,
		streamLayer:  streamLayer,
		sinks:        sinks,
		log:          logger.WithFields(logrus.Fields{"begin_string": id.BeginString, "sender_comp_id": id.SenderCompID, "target_comp_id": id.TargetCompID}),
		nextIncoming: nextIn,
		nextOutgoing: nextOut,
		heartBtInt:   cfg.HeartBtInt,
		backoff:      transport.NewReconnectPolicy(cfg.ReconnectInterval, 30*time.Second),
		logoffCh:     make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
	e.sm = statemachine.New(e.onTransition)
	e.proc = processor.New(codec, e.deliverToApplication)
	e.scheduler = heartbeat.NewScheduler(cfg.HeartBtInt)
	e.monitor = heartbeat.NewMonitor(cfg.HeartBtInt, cfg.HeartBtInt/5)

	if callbacks.OnCreate != nil {
		callbacks.OnCreate(id)
	}
	return e, nil
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.MessageStoreType {
	case StoreFile:
		return store.NewFileStore(cfg.StorePath)
	case StoreSQLite:
		return store.NewSQLiteStore(cfg.StorePath)
	case StoreRedis:
		return store.NewRedisStore(cfg.RedisClient), nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// ID returns the session's identity triple.
func (e *Engine) ID() fix.SessionID { return e.id }

// IsInitiator implements handlers.Session.
func (e *Engine) IsInitiator() bool { return e.cfg.ConnectionType == Initiator }

// Store implements handlers.Session.
func (e *Engine) Store() store.Store { return e.st }

// StateMachine implements handlers.Session.
func (e *Engine) StateMachine() *statemachine.Machine { return e.sm }

func (e *Engine) NextIncoming() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextIncoming
}

func (e *Engine) NextOutgoing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextOutgoing
}

func (e *Engine) SetNextIncoming(n int) error {
	e.mu.Lock()
	e.nextIncoming = n
	e.mu.Unlock()
	return e.st.SetIncoming(e.id, n)
}

func (e *Engine) SetNextOutgoing(n int) error {
	e.mu.Lock()
	e.nextOutgoing = n
	e.mu.Unlock()
	return e.st.SetOutgoing(e.id, n)
}

func (e *Engine) ResetSequenceNumbers() error {
	e.mu.Lock()
	e.nextIncoming, e.nextOutgoing = 1, 1
	e.mu.Unlock()
	return e.st.ResetBoth(e.id)
}

func (e *Engine) HeartBtInt() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heartBtInt
}

func (e *Engine) SetHeartBtInt(d time.Duration) {
	e.mu.Lock()
	e.heartBtInt = d
	e.mu.Unlock()
}

func (e *Engine) ResetSeqNumOnLogon() bool { return e.cfg.ResetSeqNumOnLogon }

func (e *Engine) NewOutbound(msgType fix.MsgType) *fix.Message {
	m := fix.NewMessage()
	m.Set(fix.TagBeginString, e.id.BeginString)
	m.Set(fix.TagMsgType, string(msgType))
	m.Set(fix.TagSenderCompID, e.id.SenderCompID)
	m.Set(fix.TagTargetCompID, e.id.TargetCompID)
	m.Set(fix.TagSendingTime, stampNow())
	return m
}

func (e *Engine) NotifyLogoffWaiter() {
	select {
	case e.logoffCh <- struct{}{}:
	default:
	}
}

func (e *Engine) ClearTestRequest(id string) bool {
	if e.monitor == nil {
		return false
	}
	if e.monitor.Pending() != id {
		return false
	}
	e.monitor.OnInboundMessage()
	return true
}

func (e *Engine) Now() time.Time { return time.Now() }

func stampNow() string { return time.Now().UTC().Format("20060102-15:04:05.000") }

// deliverToApplication implements spec.md §4.5's "unknown application
// message types are forwarded to the application callback" rule.
func (e *Engine) deliverToApplication(_ handlers.Session, msg *fix.Message) (handlers.Result, error) {
	if e.callbacks.OnMessageFromApp != nil {
		e.callbacks.OnMessageFromApp(msg, e.id)
	}
	return handlers.Result{Outcome: handlers.OutcomeContinue}, nil
}

func (e *Engine) onTransition(from, to statemachine.State, cause statemachine.Event) {
	sessionStateGauge.WithLabelValues(e.id.String()).Set(float64(to))
	e.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String(), "event": string(cause)}).Info("session state transition")

	evt := Event{Session: e.id, From: from, To: to, Cause: cause, At: time.Now()}
	for _, sink := range e.sinks {
		sink.Publish(evt)
	}

	switch {
	case to == statemachine.Active && e.callbacks.OnLogon != nil:
		e.callbacks.OnLogon(e.id)
	case to == statemachine.Disconnected && e.callbacks.OnLogout != nil:
		e.callbacks.OnLogout(e.id, string(cause))
	}
}

// SetSequenceNumbers implements spec.md §4.7: valid only before Start.
func (e *Engine) SetSequenceNumbers(incoming, outgoing int) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return &InvalidStateError{Operation: "SetSequenceNumbers", State: e.sm.Current()}
	}
	e.nextIncoming, e.nextOutgoing = incoming, outgoing
	e.mu.Unlock()

	if err := e.st.SetIncoming(e.id, incoming); err != nil {
		return err
	}
	return e.st.SetOutgoing(e.id, outgoing)
}
