package opstatus

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/orchestrator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	status orchestrator.Status
	events chan orchestrator.LifecycleEvent
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan orchestrator.LifecycleEvent, 8)}
}

func (f *fakeProvider) GetStatus() orchestrator.Status             { return f.status }
func (f *fakeProvider) Events() <-chan orchestrator.LifecycleEvent { return f.events }

func newTestServer(t *testing.T, provider *fakeProvider) *Server {
	t.Helper()
	s := New(Config{Enabled: true, PollInterval: time.Hour}, provider, testLogger())
	go s.hub.run()
	go s.consumeLifecycleEvents()
	t.Cleanup(func() { close(s.done) })
	return s
}

func TestHandleSnapshotReturnsCurrentStatus(t *testing.T) {
	provider := newFakeProvider()
	provider.status = orchestrator.Status{
		Connected: true, LoggedOn: true, NetPosition: decimal.NewFromInt(5),
		ActiveOrderCount: 2,
	}
	s := newTestServer(t, provider)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	s.handleSnapshot(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.Connected || !snap.LoggedOn || snap.ActiveOrderCount != 2 {
		t.Errorf("snapshot = %+v, want connected/loggedOn true and 2 active orders", snap)
	}
	if !snap.NetPosition.Equal(decimal.NewFromInt(5)) {
		t.Errorf("NetPosition = %v, want 5", snap.NetPosition)
	}
}

func TestHandleEventsStreamsInitialSnapshotAndLifecycleEvents(t *testing.T) {
	provider := newFakeProvider()
	provider.status = orchestrator.Status{Connected: true}
	s := newTestServer(t, provider)

	srv := httptest.NewServer(http.HandlerFunc(s.handleEvents))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	first := readSSEFrame(t, reader)
	var firstEvt StreamEvent
	if err := json.Unmarshal([]byte(first), &firstEvt); err != nil {
		t.Fatalf("unmarshal first frame: %v", err)
	}
	if firstEvt.Type != "snapshot" {
		t.Fatalf("first event type = %q, want snapshot", firstEvt.Type)
	}

	provider.events <- orchestrator.LifecycleEvent{Type: "emergency", Reason: "position limit breached", At: time.Now()}

	second := readSSEFrame(t, reader)
	var secondEvt StreamEvent
	if err := json.Unmarshal([]byte(second), &secondEvt); err != nil {
		t.Fatalf("unmarshal second frame: %v", err)
	}
	if secondEvt.Type != "emergency" || secondEvt.Reason != "position limit breached" {
		t.Errorf("second event = %+v, want emergency with reason", secondEvt)
	}
}

func readSSEFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		line = strings.TrimPrefix(line, "data: ")
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return b.String()
		}
		b.WriteString(line)
	}
}
