package fix

// Well-known FIX tag numbers used by the session layer. Application-level
// tags are opaque to this package; only the header/trailer and the seven
// administrative message bodies are named here.
const (
	TagBeginString     = 8
	TagBodyLength      = 9
	TagMsgType         = 35
	TagMsgSeqNum       = 34
	TagSenderCompID    = 49
	TagTargetCompID    = 56
	TagSendingTime     = 52
	TagCheckSum        = 10
	TagPossDupFlag     = 43
	TagOrigSendingTime = 122
	TagEncryptMethod   = 98
	TagHeartBtInt      = 108
	TagResetSeqNumFlag = 141
	TagTestReqID       = 112
	TagBeginSeqNo      = 7
	TagEndSeqNo        = 16
	TagNewSeqNo        = 36
	TagGapFillFlag     = 123
	TagRefSeqNum       = 45
	TagSessionRejReason = 373
	TagRefTagID        = 371
	TagText            = 58
)

// MsgType identifies the seven administrative message types handled by
// this session layer. Anything else is forwarded to the application.
type MsgType string

const (
	MsgTypeHeartbeat      MsgType = "0"
	MsgTypeTestRequest    MsgType = "1"
	MsgTypeResendRequest  MsgType = "2"
	MsgTypeReject         MsgType = "3"
	MsgTypeSequenceReset  MsgType = "4"
	MsgTypeLogout         MsgType = "5"
	MsgTypeLogon          MsgType = "A"
)

// SessionRejectReason mirrors the subset of tag 373 values this engine emits.
type SessionRejectReason int

const (
	RejectInvalidTagNumber       SessionRejectReason = 0
	RejectRequiredTagMissing     SessionRejectReason = 1
	RejectValueIncorrect         SessionRejectReason = 5
	RejectCompIDProblem          SessionRejectReason = 9
	RejectDecreasingSeqNum       SessionRejectReason = 11
)
