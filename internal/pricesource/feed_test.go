package pricesource

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var upgrader = websocket.Upgrader{}

func TestSubscribePublishesFusedPriceUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		// drain the subscribe message
		conn.ReadMessage()
		conn.WriteJSON(map[string]interface{}{"bid": "99.5", "ask": "100.5", "confidence": 0.9})
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	u, _ := url.Parse(wsURL)

	f := New(Config{URL: u.String(), Symbol: "BTC-USD"}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := f.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case update := <-updates:
		if !update.Mid.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("mid = %s, want 100", update.Mid)
		}
		if update.Confidence != 0.9 {
			t.Fatalf("confidence = %v, want 0.9", update.Confidence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for price update")
	}

	f.Close()
}
