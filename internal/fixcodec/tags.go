// Package fixcodec implements the wire-level concerns of FIX 5.0SP2 over
// FIXT.1.1: SOH framing, body-length/checksum computation, field ordering on
// encode, and tolerant tag-stream parsing on decode (including the
// repeating-group reconstruction the market-data messages need).
//
// Nothing here knows about sessions, sequence numbers, or sockets — see
// internal/fixsession for that layer. fixcodec is pure byte-in/byte-out.
package fixcodec

// Tag is a FIX tag number. Named constants below cover the messages listed
// in spec §6; anything else is addressed by its raw integer.
type Tag int

const (
	TagBeginString    Tag = 8
	TagBodyLength     Tag = 9
	TagCheckSum       Tag = 10
	TagBeginSeqNo     Tag = 7
	TagClOrdID        Tag = 11
	TagEndSeqNo       Tag = 16
	TagExecID         Tag = 17
	TagOrderQty       Tag = 38
	TagMsgSeqNum      Tag = 34
	TagMsgType        Tag = 35
	TagOrderID        Tag = 37
	TagOrdStatus      Tag = 39
	TagOrdType        Tag = 40
	TagOrigClOrdID    Tag = 41
	TagPossDupFlag    Tag = 43
	TagPrice          Tag = 44
	TagRefSeqNum      Tag = 45
	TagSenderCompID   Tag = 49
	TagSendingTime    Tag = 52
	TagSide           Tag = 54
	TagSymbol         Tag = 55
	TagTargetCompID   Tag = 56
	TagText           Tag = 58
	TagTimeInForce    Tag = 59
	TagLastPx         Tag = 31
	TagLastQty        Tag = 32
	TagEncryptMethod  Tag = 98
	TagOrigSendingTime Tag = 122
	TagHeartBtInt     Tag = 108
	TagTestReqID      Tag = 112
	TagResetSeqNumFlag Tag = 141
	TagNoRelatedSym   Tag = 146
	TagExecType       Tag = 150

	// Market data tags
	TagMDReqID              Tag = 262
	TagSubscriptionReqType  Tag = 263
	TagMarketDepth          Tag = 264
	TagNoMDEntryTypes       Tag = 267
	TagNoMDEntries          Tag = 268
	TagMDEntryType          Tag = 269
	TagMDEntryPx            Tag = 270
	TagMDEntrySize          Tag = 271
	TagMDUpdateAction       Tag = 279

	// Party / routing fields
	TagNoPartyIDs  Tag = 453
	TagPartyID     Tag = 448
	TagPartyIDSource Tag = 447
	TagPartyRole   Tag = 452

	// Coinbase-Prime-style HMAC logon fields, generalized for TrueX.
	TagUsername         Tag = 553
	TagRawDataSignature Tag = 554
	TagDefaultApplVerID Tag = 1137
)

// MsgType string constants (tag 35 values), per spec §6.
const (
	MsgTypeLogon                = "A"
	MsgTypeHeartbeat             = "0"
	MsgTypeTestRequest           = "1"
	MsgTypeResendRequest         = "2"
	MsgTypeReject                = "3"
	MsgTypeLogout                = "5"
	MsgTypeExecutionReport       = "8"
	MsgTypeMarketDataSnapshot    = "W"
	MsgTypeMarketDataIncremental = "X"
	MsgTypeNewOrderSingle        = "D"
	MsgTypeOrderCancelRequest    = "F"
	MsgTypeMarketDataRequest     = "V"
)

// Side values (tag 54).
const (
	SideBuyFIX  = "1"
	SideSellFIX = "2"
)

// OrdStatus values (tag 39).
const (
	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusCanceled        = "4"
	OrdStatusRejected        = "8"
)

// MDEntryType values (tag 269).
const (
	MDEntryTypeBid = "0"
	MDEntryTypeAsk = "1"
)

// MDUpdateAction values (tag 279).
const (
	MDUpdateActionNew    = "0"
	MDUpdateActionChange = "1"
	MDUpdateActionDelete = "2"
)

// SubscriptionRequestType values (tag 263).
const (
	SubscriptionSnapshotPlusUpdates = "1"
)

// BeginString is the FIXT.1.1 session-protocol begin string. Per spec §6
// this is wire-level even though the application protocol is FIX.5.0SP2
// (carried in tag 1137, Logon only).
const BeginString = "FIXT.1.1"

// DefaultApplVerID is sent only on Logon (tag 1137), per spec §4.1.
const DefaultApplVerID = "9" // FIX.5.0SP2

// FixTimeFormat is the Go reference-time layout for tags 52/122 (spec §6).
const FixTimeFormat = "20060102-15:04:05.000"

// SOH is the FIX tag delimiter, ASCII 0x01.
const SOH = byte(0x01)
