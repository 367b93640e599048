package thread

import (
	"context"

	"github.com/rs/zerolog"

	"taskdeck/api/internal/realtime"
)

// Updates is the subset of a realtime subscription the bridge consumes.
// *realtime.Channel satisfies it.
type Updates interface {
	Updates() <-chan realtime.Update
}

// Bridge reconciles one thread's push-channel notifications into its Store.
// Events are applied strictly in delivery order from a single goroutine.
type Bridge struct {
	store     *Store
	directory Directory
	channel   Updates
	log       zerolog.Logger
}

func NewBridge(s *Store, dir Directory, channel Updates, log zerolog.Logger) *Bridge {
	return &Bridge{
		store:     s,
		directory: dir,
		channel:   channel,
		log:       log.With().Str("thread", s.ThreadID()).Logger(),
	}
}

// Run performs the initial authoritative load and then applies channel
// updates until ctx is cancelled or the channel closes. A failed initial load
// leaves prior state untouched; the store stays in its errored state until a
// reconnect-triggered reload (or an explicit retry) succeeds.
func (b *Bridge) Run(ctx context.Context) {
	if err := b.store.Load(ctx, b.directory); err != nil {
		b.log.Error().Err(err).Msg("bridge: initial load failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-b.channel.Updates():
			if !ok {
				return
			}
			b.apply(ctx, u)
		}
	}
}

func (b *Bridge) apply(ctx context.Context, u realtime.Update) {
	if u.Status != 0 {
		b.applyStatus(ctx, u.Status)
		return
	}
	if u.Event == nil {
		return
	}
	ev := *u.Event

	// The transport's per-thread routing is advisory; membership is
	// re-validated here before any event touches the store.
	if ev.ThreadID != b.store.ThreadID() {
		b.log.Warn().Str("event_thread", ev.ThreadID).Msg("bridge: foreign-thread event rejected")
		return
	}

	switch ev.Type {
	case realtime.EventInsert:
		b.applyInsert(ctx, ev)
	case realtime.EventUpdate:
		b.store.applyRemoteUpdate(*ev.New)
	case realtime.EventDelete:
		b.store.applyRemoteDelete(ev.Old.ID)
	}
}

// applyStatus reloads on every healthy subscription transition after the
// first load has completed. The initial connection's confirmation usually
// precedes the load and is deliberately ignored; the gate exists so a
// reconnect after a drop recovers missed events within one reload cycle.
func (b *Bridge) applyStatus(ctx context.Context, status realtime.Status) {
	switch status {
	case realtime.StatusSubscribed:
		if !b.store.Loaded() {
			return
		}
		if err := b.store.Load(ctx, b.directory); err != nil {
			b.log.Error().Err(err).Msg("bridge: reload after resubscribe failed")
		}
	case realtime.StatusDisconnected:
		b.log.Warn().Msg("bridge: push channel disconnected")
	}
}

func (b *Bridge) applyInsert(ctx context.Context, ev realtime.Event) {
	record := *ev.New
	if !b.store.consumeSelfOriginated(record.ID) {
		return
	}
	// Only genuine remote inserts pay for author hydration.
	b.store.applyRemoteInsert(b.store.view(ctx, record, b.directory))
}
