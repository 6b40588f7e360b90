package fix

// Well-known tag numbers used by the session layer (spec §4.7 admin
// handling) and the scenario fixtures in spec §8. Not a full data
// dictionary — spec.md Non-goals explicitly excludes that.
const (
	TagAccount         = 1
	TagBeginSeqNo      = 7
	TagBeginString     = 8
	TagBodyLength      = 9
	TagCheckSum        = 10
	TagEndSeqNo        = 16
	TagMsgSeqNum       = 34
	TagMsgType         = 35
	TagNewSeqNo        = 36
	TagPossDupFlag     = 43
	TagRefSeqNum       = 45
	TagSenderCompID    = 49
	TagSendingTime     = 52
	TagTargetCompID    = 56
	TagText            = 58
	TagHeartBtInt      = 108
	TagTestReqID       = 112
	TagOrigSendingTime = 122
	TagGapFillFlag     = 123
	TagResetSeqNumFlag = 141
)

// Admin message types (spec §4.7).
const (
	MsgTypeHeartbeat       = "0"
	MsgTypeTestRequest     = "1"
	MsgTypeResendRequest   = "2"
	MsgTypeReject          = "3"
	MsgTypeSequenceReset   = "4"
	MsgTypeLogout          = "5"
	MsgTypeLogon           = "A"
	MsgTypeNewOrderSingle       = "D"
	MsgTypeExecutionReport      = "8"
	MsgTypeOrderCancelRequest   = "F"
	MsgTypeOrderCancelReject    = "9"
	MsgTypeOrderCancelReplace   = "G"
)

// BeginString literals (spec §6).
const (
	BeginStringFIX42  = "FIX.4.2"
	BeginStringFIX44  = "FIX.4.4"
	BeginStringFIXT11 = "FIXT.1.1"
)
