package events

import "sync"

// Fanout replicates one event stream to every subscriber. Subscribers
// that fall behind lose individual events, never the stream; the
// source is never blocked by a slow consumer.
type Fanout struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

// NewFanout creates a Fanout with no subscribers.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe returns a channel that receives every event published after
// the call. The channel closes when the source stream ends. Subscribing
// after the stream ended returns a closed channel.
func (f *Fanout) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	ch := make(chan Event, buffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, ch)
	return ch
}

// Run copies src to every subscriber until src closes, then closes all
// subscriber channels. Run it in its own goroutine; it returns when the
// source stream ends.
func (f *Fanout) Run(src <-chan Event) {
	for event := range src {
		f.mu.Lock()
		for _, ch := range f.subs {
			select {
			case ch <- event:
			default:
			}
		}
		f.mu.Unlock()
	}

	f.mu.Lock()
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
	f.mu.Unlock()
}
