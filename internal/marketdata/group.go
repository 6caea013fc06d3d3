package marketdata

import (
	"github.com/shopspring/decimal"

	"truex-mm/internal/fixcodec"
)

const (
	mdEntryTypeBid      = fixcodec.MDEntryTypeBid
	mdEntryTypeAsk       = fixcodec.MDEntryTypeAsk
	mdUpdateActionNew    = fixcodec.MDUpdateActionNew
	mdUpdateActionChange = fixcodec.MDUpdateActionChange
	mdUpdateActionDelete = fixcodec.MDUpdateActionDelete
)

// groupEntry is one reconstructed MDEntry (269/270/271[/279]).
type groupEntry struct {
	entryType string
	price     decimal.Decimal
	size      decimal.Decimal
	action    string // "" for snapshot entries, one of MDUpdateAction otherwise
}

// parseMDEntries walks the raw tag stream of a 35=W or 35=X message and
// reconstructs the NoMDEntries repeating group. It must walk raw fields,
// not the flattened map, because tag 269 legitimately repeats. A new 269
// while the current entry already has a type, or a new 279 while it already
// has an action, finalizes it and opens a new one, tolerating both
// "269-first" and "279-first" orderings.
func parseMDEntries(raw []fixcodec.Field) []groupEntry {
	var entries []groupEntry
	var cur *groupEntry

	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}

	for _, f := range raw {
		switch f.Tag {
		case fixcodec.TagMDEntryType:
			if cur != nil && cur.entryType != "" {
				flush()
			}
			if cur == nil {
				cur = &groupEntry{}
			}
			cur.entryType = f.Value
		case fixcodec.TagMDUpdateAction:
			if cur != nil && cur.action != "" {
				flush()
			}
			if cur == nil {
				cur = &groupEntry{}
			}
			cur.action = f.Value
		case fixcodec.TagMDEntryPx:
			if cur == nil {
				cur = &groupEntry{}
			}
			cur.price, _ = decimal.NewFromString(f.Value)
		case fixcodec.TagMDEntrySize:
			if cur == nil {
				cur = &groupEntry{}
			}
			cur.size, _ = decimal.NewFromString(f.Value)
		}
	}
	flush()
	return entries
}
