package events

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldmarshal/brigade/internal/logging"
)

// DefaultBufferSize is the emitter buffer used when callers pass zero.
const DefaultBufferSize = 256

// Emitter fans events out to one subscriber over a buffered channel.
// Emit never blocks a phase for long: a full buffer is retried briefly
// and then the event is dropped and counted.
type Emitter struct {
	events  chan Event
	dropped atomic.Uint64
	log     zerolog.Logger
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Emitter{
		events: make(chan Event, bufferSize),
		log:    logging.Component("events"),
	}
}

// Emit sends an event, stamping the time if unset. When the buffer is
// full it waits briefly for the subscriber to drain, then drops.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.dropped.Add(1)
		if count%10 == 1 {
			e.log.Warn().Uint64("dropped", count).Str("type", string(event.Type)).Msg("event buffer full")
		}
	}
}

// DroppedCount returns how many events have been dropped so far.
func (e *Emitter) DroppedCount() uint64 {
	return e.dropped.Load()
}

// Events returns the read side of the stream.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close ends the stream. Call only after every emitting phase is done.
func (e *Emitter) Close() {
	close(e.events)
}
