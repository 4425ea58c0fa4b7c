package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/simshield/simshield-server/internal/models"
)

// EventWriter drains engine events into a Store without blocking the
// emitter. Listener notification happens inside the engine's tick loop, so
// the write path must never stall it; a full queue drops the event.
type EventWriter struct {
	store Store
	queue chan *models.SimulationEvent
	done  chan struct{}
}

// NewEventWriter starts the drain goroutine
func NewEventWriter(store Store, buffer int) *EventWriter {
	if buffer <= 0 {
		buffer = 256
	}
	w := &EventWriter{
		store: store,
		queue: make(chan *models.SimulationEvent, buffer),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue accepts an event for archiving; never blocks
func (w *EventWriter) Enqueue(event *models.SimulationEvent) {
	select {
	case w.queue <- event:
	default:
		log.Debug().
			Str("event_type", string(event.Type)).
			Msg("Event archive queue full, dropping event")
	}
}

// Stop flushes queued events and stops the writer
func (w *EventWriter) Stop() {
	close(w.queue)
	<-w.done
}

func (w *EventWriter) run() {
	defer close(w.done)

	for event := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.store.InsertEvent(ctx, event); err != nil {
			log.Error().Err(err).Msg("Failed to archive simulation event")
		}
		cancel()
	}
}
