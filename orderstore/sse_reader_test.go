package orderstore

import (
	"io"
	"strings"
	"testing"
)

func TestSSEReader_BasicEvent(t *testing.T) {
	r := NewSSEReader(strings.NewReader("event: order-created\ndata: {\"id\":\"o1\"}\n\n"))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Event != "order-created" {
		t.Errorf("event = %q, want %q", ev.Event, "order-created")
	}
	if ev.Data != `{"id":"o1"}` {
		t.Errorf("data = %q", ev.Data)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSSEReader_MultiLineData(t *testing.T) {
	r := NewSSEReader(strings.NewReader("event: multi\ndata: line1\ndata: line2\n\n"))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Data != "line1\nline2" {
		t.Errorf("data = %q, want %q", ev.Data, "line1\nline2")
	}
}

func TestSSEReader_CommentBetweenEvents(t *testing.T) {
	r := NewSSEReader(strings.NewReader(": keepalive\n\nevent: test\ndata: value\n: inside\n\n"))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Event != "comment" || ev.Data != "keepalive" {
		t.Errorf("got %+v, want comment keepalive", ev)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Event != "test" || ev.Data != "value" {
		t.Errorf("got %+v, want test/value", ev)
	}
}

func TestSSEReader_IDAndTrailingEvent(t *testing.T) {
	r := NewSSEReader(strings.NewReader("id: 42\nevent: last\ndata: x"))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID != "42" || ev.Event != "last" || ev.Data != "x" {
		t.Errorf("got %+v", ev)
	}
}

func TestDecodeSSE(t *testing.T) {
	ev, ok := decodeSSE(SSERawEvent{Event: "order-status-changed", Data: `{"id":"o1","status":"ready"}`})
	if !ok || ev.Kind != StatusChanged || ev.Order.ID != "o1" {
		t.Errorf("got %+v ok=%v", ev, ok)
	}
	if _, ok := decodeSSE(SSERawEvent{Event: "order-created", Data: "not json"}); ok {
		t.Error("bad payload should be dropped")
	}
	if _, ok := decodeSSE(SSERawEvent{Event: "order-created", Data: `{}`}); ok {
		t.Error("order without id should be dropped")
	}
	if ev, ok := decodeSSE(SSERawEvent{Event: "comment"}); !ok || ev.Kind != Keepalive {
		t.Error("comment should be a keepalive")
	}
	if _, ok := decodeSSE(SSERawEvent{Event: "menu-updated"}); ok {
		t.Error("unknown events should be dropped")
	}
}
