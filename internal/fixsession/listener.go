package fixsession

import "truex-mm/internal/fixcodec"

// Listener receives session lifecycle and application-message events. The
// session handles admin message types (Logon, Heartbeat, TestRequest,
// ResendRequest, Logout) internally; OnMessage is still invoked for every
// in-order message, admin or application, so a listener that only cares
// about one MsgType can filter on msg.MsgType.
type Listener interface {
	OnLogon()
	OnLogout(reason string)
	OnMessage(msg *fixcodec.ParsedMessage)
	OnSent(seq int, raw []byte)
	OnReject(refSeqNum int, text string)
	OnDisconnect(err error)
	OnResendCompleted(begin, end, resent, skipped, requested int)
}

// BaseListener implements Listener with no-ops; embed it to implement only
// the callbacks a particular component cares about.
type BaseListener struct{}

func (BaseListener) OnLogon()                            {}
func (BaseListener) OnLogout(reason string)               {}
func (BaseListener) OnMessage(*fixcodec.ParsedMessage)    {}
func (BaseListener) OnSent(seq int, raw []byte)           {}
func (BaseListener) OnReject(refSeqNum int, text string)  {}
func (BaseListener) OnDisconnect(err error)               {}
func (BaseListener) OnResendCompleted(begin, end, resent, skipped, requested int) {}
