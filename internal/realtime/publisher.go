package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskdeck/api/internal/store"
)

const channelPrefix = "comments."

// ChannelFor returns the pub/sub channel carrying one thread's events.
func ChannelFor(threadID string) string {
	return channelPrefix + threadID
}

// ChannelPattern matches every thread's channel; the activity feed subscribes
// to it to observe inserts anywhere.
const ChannelPattern = channelPrefix + "*"

// Publisher fans comment mutations out over Redis pub/sub. It satisfies
// store.EventPublisher; publish failures are logged and swallowed so a flaky
// broker never fails a durable write.
type Publisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPublisher(client *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

func (p *Publisher) CommentInserted(ctx context.Context, c store.Comment) {
	p.publish(ctx, Event{Type: EventInsert, ThreadID: c.ThreadID, New: &c})
}

func (p *Publisher) CommentUpdated(ctx context.Context, c store.Comment) {
	p.publish(ctx, Event{Type: EventUpdate, ThreadID: c.ThreadID, New: &c})
}

func (p *Publisher) CommentDeleted(ctx context.Context, c store.Comment) {
	p.publish(ctx, Event{Type: EventDelete, ThreadID: c.ThreadID, Old: &c})
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	data, err := Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("thread", ev.ThreadID).Msg("realtime: marshal event")
		return
	}
	if err := p.client.Publish(ctx, ChannelFor(ev.ThreadID), data).Err(); err != nil {
		p.log.Error().Err(err).Str("thread", ev.ThreadID).Msg("realtime: publish event")
	}
}
