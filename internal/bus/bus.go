package bus

import (
	"context"
	"log"
	"sync"
)

// MessageBus decouples channels from the dispatch loop.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
	}
}

// SubscribeOutbound registers the sender for one channel name. A later call
// for the same name replaces the previous handler.
func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

// DispatchOutbound delivers outbound messages in order until ctx is done.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.deliver(msg)
		case <-ctx.Done():
			return
		}
	}
}

// FlushOutbound delivers whatever is queued right now and returns how many
// messages it took off the queue.
func (b *MessageBus) FlushOutbound() int {
	n := 0
	for {
		select {
		case msg := <-b.Outbound:
			b.deliver(msg)
			n++
		default:
			return n
		}
	}
}

func (b *MessageBus) deliver(msg OutboundMessage) {
	b.mu.RLock()
	fn, ok := b.subscribers[msg.Channel]
	b.mu.RUnlock()
	if !ok {
		log.Printf("[bus] no subscriber for channel %q, dropping message", msg.Channel)
		return
	}
	fn(msg)
}
