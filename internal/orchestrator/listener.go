package orchestrator

import (
	"truex-mm/internal/fixcodec"
	"truex-mm/internal/fixsession"
	"truex-mm/internal/marketdata"
)

// oeListener bridges the order-entry fixsession.Session to the orchestrator:
// logon/disconnect update connection status, every in-order message is
// forwarded to the quote engine.
type oeListener struct {
	fixsession.BaseListener
	orch *Orchestrator
}

func (l *oeListener) OnLogon() {
	l.orch.onOELogon()
}

func (l *oeListener) OnDisconnect(err error) {
	l.orch.onOEDisconnect(err)
}

func (l *oeListener) OnMessage(msg *fixcodec.ParsedMessage) {
	l.orch.quoteEngine.OnMessage(msg)
}

func (l *oeListener) OnReject(refSeqNum int, text string) {
	l.orch.logger.Warn("order-entry session rejected message", "refSeqNum", refSeqNum, "text", text)
}

// mdListener wraps a marketdata.Feed so the orchestrator can (re-)subscribe
// on every successful logon, including reconnects, without the feed package
// needing any orchestrator-specific knowledge.
type mdListener struct {
	*marketdata.Feed
	orch *Orchestrator
}

func (l *mdListener) OnLogon() {
	l.orch.onMDLogon(l.Feed)
}

func (l *mdListener) OnDisconnect(err error) {
	l.orch.onMDDisconnect(err)
}
