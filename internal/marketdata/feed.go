package marketdata

import (
	"bytes"
	"fmt"
	"log/slog"

	"truex-mm/internal/fixcodec"
	"truex-mm/internal/fixsession"
)

const eventBufferSize = 256

// Sender is the narrow slice of fixsession.Session the feed needs: assign a
// sequence number, frame, and write one application message, with or
// without a pre-framed raw repeating group.
type Sender interface {
	SendApplicationMessage(msgType string, body *fixcodec.Fields) (int, error)
	SendApplicationMessageWithRawGroup(msgType string, body *fixcodec.Fields, rawGroup []byte) (int, error)
}

// BookChangeEvent is published after any book mutation. It carries only the
// symbol; read the new best bid/ask from Book.
type BookChangeEvent struct {
	Symbol string
}

// Feed subscribes to one symbol over a FIX market-data session and keeps a
// local Book in sync. It implements fixsession.Listener so it can be
// registered directly with a Session.
type Feed struct {
	fixsession.BaseListener

	symbol string
	sender Sender
	book   *Book
	logger *slog.Logger

	snapshotCh   chan struct{}
	updateCh     chan struct{}
	bookChangeCh chan BookChangeEvent
}

// New returns a Feed for symbol, writing subscribe/market-data requests
// through sender and maintaining its book.
func New(symbol string, sender Sender, logger *slog.Logger) *Feed {
	return &Feed{
		symbol:       symbol,
		sender:       sender,
		book:         NewBook(),
		logger:       logger.With("component", "marketdata", "symbol", symbol),
		snapshotCh:   make(chan struct{}, eventBufferSize),
		updateCh:     make(chan struct{}, eventBufferSize),
		bookChangeCh: make(chan BookChangeEvent, eventBufferSize),
	}
}

// Book returns the feed's local order book.
func (f *Feed) Book() *Book { return f.book }

// Snapshots returns a channel signaled each time a 35=W snapshot is applied.
func (f *Feed) Snapshots() <-chan struct{} { return f.snapshotCh }

// Updates returns a channel signaled each time a 35=X incremental is applied.
func (f *Feed) Updates() <-chan struct{} { return f.updateCh }

// BookChanges returns a channel signaled after every book mutation.
func (f *Feed) BookChanges() <-chan BookChangeEvent { return f.bookChangeCh }

// Subscribe sends a 35=V MarketDataRequest for f.symbol: snapshot plus
// updates, full book depth, both sides. The two 269 MDEntryType entries are
// a true repeating group and are written as two physical tag occurrences
// directly into the raw body, since a Fields set cannot hold a tag twice.
func (f *Feed) Subscribe(requestID string) error {
	body := fixcodec.NewFields().
		Set(fixcodec.TagMDReqID, requestID).
		Set(fixcodec.TagSubscriptionReqType, fixcodec.SubscriptionSnapshotPlusUpdates).
		Set(fixcodec.TagMarketDepth, "0").
		Set(fixcodec.TagNoMDEntryTypes, "2")

	var group bytes.Buffer
	writeRawField(&group, fixcodec.TagMDEntryType, fixcodec.MDEntryTypeBid)
	writeRawField(&group, fixcodec.TagMDEntryType, fixcodec.MDEntryTypeAsk)
	writeRawField(&group, fixcodec.TagNoRelatedSym, "1")
	writeRawField(&group, fixcodec.TagSymbol, f.symbol)

	_, err := f.sender.SendApplicationMessageWithRawGroup(fixcodec.MsgTypeMarketDataRequest, body, group.Bytes())
	return err
}

func writeRawField(buf *bytes.Buffer, tag fixcodec.Tag, value string) {
	fmt.Fprintf(buf, "%d=%s", int(tag), value)
	buf.WriteByte(fixcodec.SOH)
}

// OnMessage handles 35=W (snapshot) and 35=X (incremental); every other
// MsgType is ignored.
func (f *Feed) OnMessage(msg *fixcodec.ParsedMessage) {
	switch msg.MsgType {
	case fixcodec.MsgTypeMarketDataSnapshot:
		entries := parseMDEntries(msg.Raw)
		f.book.applySnapshot(entries)
		f.publish(f.snapshotCh)
	case fixcodec.MsgTypeMarketDataIncremental:
		entries := parseMDEntriesIncremental(msg.Raw)
		f.book.applyIncremental(entries)
		f.publish(f.updateCh)
	default:
		return
	}

	select {
	case f.bookChangeCh <- BookChangeEvent{Symbol: f.symbol}:
	default:
		f.logger.Warn("bookChange channel full, dropping event")
	}
}

func (f *Feed) publish(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
		f.logger.Warn("event channel full, dropping signal")
	}
}

// parseMDEntriesIncremental is parseMDEntries specialized for readability at
// call sites; the parser itself already handles both message shapes.
func parseMDEntriesIncremental(raw []fixcodec.Field) []groupEntry {
	return parseMDEntries(raw)
}
