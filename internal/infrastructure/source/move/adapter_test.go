package move

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testOrderID = "0x8c0bdceee60a2841a04f19ecf4c0a5a4864d0d96d15f2c55e52e3dda19da647b"

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAdapter("aptos", "0xVaultAccount", server.URL, time.Second, zap.NewNop())
}

func TestAdapter_HeadPosition(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		want := "/v1/accounts/0xvaultaccount/events/deposit/head"
		if r.URL.Path != want {
			t.Errorf("expected path %s, got %s", want, r.URL.Path)
		}
		fmt.Fprint(w, `{"head_sequence": "1042"}`)
	})

	head, err := adapter.HeadPosition(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head != 1042 {
		t.Errorf("expected head 1042, got %d", head)
	}
}

func TestAdapter_FetchEvents(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("start"); got != "10" {
			t.Errorf("expected start=10, got %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("expected limit=3, got %s", got)
		}
		fmt.Fprintf(w, `[
			{
				"sequence_number": "10",
				"version": "88412",
				"guid": {"creation_number": "4"},
				"data": {"order_id": "%s", "payer": "0xPayer", "amount": "1000000"},
				"timestamp": "1750000000000000"
			},
			{
				"sequence_number": "11",
				"version": "88413",
				"guid": {"creation_number": "4"},
				"data": {"order_id": "not-hex", "payer": "0xPayer", "amount": "5"},
				"timestamp": "1750000000000001"
			}
		]`, testOrderID)
	})

	events, err := adapter.FetchEvents(context.Background(), 10, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The malformed second event is skipped, not fatal
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.OrderID != testOrderID {
		t.Errorf("expected order id %s, got %s", testOrderID, ev.OrderID)
	}
	if ev.Amount != "1000000" {
		t.Errorf("expected amount 1000000, got %s", ev.Amount)
	}
	if ev.Position != 10 || ev.EventIndex != 10 {
		t.Errorf("expected position/index 10, got %d/%d", ev.Position, ev.EventIndex)
	}
	if ev.TxID != "88412" {
		t.Errorf("expected tx id 88412, got %s", ev.TxID)
	}
	if ev.Payer != "0xpayer" {
		t.Errorf("expected lowercased payer, got %s", ev.Payer)
	}
	if !ev.Timestamp.Equal(time.UnixMicro(1750000000000000).UTC()) {
		t.Errorf("unexpected timestamp %v", ev.Timestamp)
	}
}

func TestAdapter_FetchEvents_DropsOutOfRange(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[
			{
				"sequence_number": "9",
				"version": "88411",
				"guid": {"creation_number": "4"},
				"data": {"order_id": "%s", "payer": "0xp", "amount": "7"},
				"timestamp": "1750000000000000"
			}
		]`, testOrderID)
	})

	events, err := adapter.FetchEvents(context.Background(), 10, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected out-of-range event dropped, got %d", len(events))
	}
}

func TestAdapter_FetchEvents_ServerError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	if _, err := adapter.FetchEvents(context.Background(), 1, 2); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestAdapter_FetchEvents_EmptyRange(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty range")
	})

	events, err := adapter.FetchEvents(context.Background(), 5, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events != nil {
		t.Errorf("expected nil, got %v", events)
	}
}
