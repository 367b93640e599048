package realtime

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Status int

const (
	// StatusSubscribed fires every time the underlying channel reaches a
	// healthy subscribed state, including after an automatic reconnect.
	StatusSubscribed Status = iota + 1
	StatusDisconnected
)

// Update is one item from a subscription: a change event or a status
// transition, never both.
type Update struct {
	Status Status
	Event  *Event
}

// Channel is a live subscription to comment change notifications.
type Channel struct {
	pubsub  *redis.PubSub
	updates chan Update
	log     zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// Subscribe opens a channel nominally scoped to one thread. The scoping is a
// routing convenience only; consumers still re-validate thread membership on
// every event.
func Subscribe(ctx context.Context, client *redis.Client, threadID string, log zerolog.Logger) *Channel {
	return run(ctx, client.Subscribe(ctx, ChannelFor(threadID)), log)
}

// SubscribeAll opens an unfiltered channel observing every thread.
func SubscribeAll(ctx context.Context, client *redis.Client, log zerolog.Logger) *Channel {
	return run(ctx, client.PSubscribe(ctx, ChannelPattern), log)
}

func run(ctx context.Context, pubsub *redis.PubSub, log zerolog.Logger) *Channel {
	ctx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		pubsub:  pubsub,
		updates: make(chan Update, 64),
		log:     log,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go ch.receive(ctx)
	return ch
}

// Updates delivers events in transport order, interleaved with status
// transitions. The channel closes when the subscription is torn down.
func (ch *Channel) Updates() <-chan Update {
	return ch.updates
}

// Close detaches the subscription. In-flight notifications are dropped.
func (ch *Channel) Close() error {
	ch.cancel()
	err := ch.pubsub.Close()
	<-ch.done
	return err
}

func (ch *Channel) receive(ctx context.Context) {
	defer close(ch.done)
	defer close(ch.updates)

	healthy := false
	for {
		msg, err := ch.pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if healthy {
				healthy = false
				ch.emit(ctx, Update{Status: StatusDisconnected})
			}
			// go-redis re-dials and re-subscribes on the next Receive; the
			// fresh subscription confirmation becomes our reconnect signal.
			select {
			case <-time.After(250 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" || m.Kind == "psubscribe" {
				healthy = true
				ch.emit(ctx, Update{Status: StatusSubscribed})
			}
		case *redis.Message:
			ev, err := ParseEvent([]byte(m.Payload))
			if err != nil {
				ch.log.Warn().Err(err).Str("channel", m.Channel).Msg("realtime: dropping malformed event")
				continue
			}
			ch.emit(ctx, Update{Event: &ev})
		}
	}
}

func (ch *Channel) emit(ctx context.Context, u Update) {
	select {
	case ch.updates <- u:
	case <-ctx.Done():
	}
}
