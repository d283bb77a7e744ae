package bus

import (
	"context"
	"testing"
	"time"
)

func TestNewMessageBus_MinBuffer(t *testing.T) {
	b := NewMessageBus(0)
	if cap(b.Inbound) != 1 || cap(b.Outbound) != 1 {
		t.Errorf("caps = %d/%d, want 1/1", cap(b.Inbound), cap(b.Outbound))
	}
}

func TestInboundMessage_IsText(t *testing.T) {
	m := InboundMessage{Content: "hi"}
	if !m.IsText() {
		t.Error("message without metadata should be text")
	}
	m.Metadata = map[string]any{MetaNonText: true}
	if m.IsText() {
		t.Error("non-text flag ignored")
	}
}

func TestDispatchOutbound_RoutesByChannel(t *testing.T) {
	b := NewMessageBus(10)
	got := make(chan OutboundMessage, 2)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) { got <- msg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "other", Content: "dropped"}
	b.Outbound <- OutboundMessage{Channel: "telegram", Content: "first"}
	b.Outbound <- OutboundMessage{Channel: "telegram", Content: "second"}

	for _, want := range []string{"first", "second"} {
		select {
		case msg := <-got:
			if msg.Content != want {
				t.Errorf("content = %q, want %q", msg.Content, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestDispatchOutbound_StopsOnCancel(t *testing.T) {
	b := NewMessageBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.DispatchOutbound(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DispatchOutbound did not return after cancel")
	}
}

func TestFlushOutbound(t *testing.T) {
	b := NewMessageBus(10)
	var got []string
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) { got = append(got, msg.Content) })

	if n := b.FlushOutbound(); n != 0 {
		t.Errorf("empty flush = %d, want 0", n)
	}

	b.Outbound <- OutboundMessage{Channel: "telegram", Content: "first"}
	b.Outbound <- OutboundMessage{Channel: "other", Content: "dropped"}
	b.Outbound <- OutboundMessage{Channel: "telegram", Content: "second"}

	if n := b.FlushOutbound(); n != 3 {
		t.Errorf("flushed %d, want 3", n)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("delivered %v, want [first second]", got)
	}
	if len(b.Outbound) != 0 {
		t.Errorf("queue not empty: %d", len(b.Outbound))
	}
}
