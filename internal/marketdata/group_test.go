package marketdata

import (
	"testing"

	"truex-mm/internal/fixcodec"
)

func TestParseMDEntriesSnapshotTypeFirst(t *testing.T) {
	t.Parallel()
	raw := []fixcodec.Field{
		{Tag: fixcodec.TagMDEntryType, Value: "0"},
		{Tag: fixcodec.TagMDEntryPx, Value: "100"},
		{Tag: fixcodec.TagMDEntrySize, Value: "1"},
		{Tag: fixcodec.TagMDEntryType, Value: "1"},
		{Tag: fixcodec.TagMDEntryPx, Value: "101"},
		{Tag: fixcodec.TagMDEntrySize, Value: "2"},
	}
	entries := parseMDEntries(raw)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].entryType != "0" || !entries[0].price.Equal(d("100")) {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[1].entryType != "1" || !entries[1].size.Equal(d("2")) {
		t.Fatalf("entry 1 = %+v", entries[1])
	}
}

func TestParseMDEntriesIncrementalActionFirst(t *testing.T) {
	t.Parallel()
	raw := []fixcodec.Field{
		{Tag: fixcodec.TagMDUpdateAction, Value: mdUpdateActionNew},
		{Tag: fixcodec.TagMDEntryType, Value: "0"},
		{Tag: fixcodec.TagMDEntryPx, Value: "100"},
		{Tag: fixcodec.TagMDEntrySize, Value: "1"},
		{Tag: fixcodec.TagMDUpdateAction, Value: mdUpdateActionDelete},
		{Tag: fixcodec.TagMDEntryType, Value: "1"},
		{Tag: fixcodec.TagMDEntryPx, Value: "101"},
	}
	entries := parseMDEntries(raw)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].action != mdUpdateActionNew || entries[1].action != mdUpdateActionDelete {
		t.Fatalf("actions not preserved: %+v", entries)
	}
}
