// Package bus implements the single fanout path shared by the live
// session handler and the request gateway: append to the store, then
// deliver to every connected subscriber regardless of channel.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/super3/nilo.chat-sub000/internal/metrics"
	"github.com/super3/nilo.chat-sub000/internal/models"
)

// defaultBuffer is the per-subscriber delivery buffer. Delivery is
// fire-and-forget: a subscriber that cannot keep up loses events and
// catches up through the next history replay.
const defaultBuffer = 64

// Appender is the slice of the data store the bus needs.
type Appender interface {
	AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// Bus is the shared publish/broadcast service. Channel membership
// governs only history replay; live delivery is global so clients can
// keep unread counters for channels they are not viewing.
type Bus struct {
	store  Appender
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]chan models.Message
}

// New creates a Bus backed by the given store.
func New(store Appender, logger zerolog.Logger) *Bus {
	return &Bus{
		store:  store,
		logger: logger,
		subs:   make(map[string]chan models.Message),
	}
}

// Subscribe registers a subscriber and returns its delivery channel.
// A second Subscribe with the same id replaces the first.
func (b *Bus) Subscribe(id string) <-chan models.Message {
	ch := make(chan models.Message, defaultBuffer)
	b.mu.Lock()
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	b.subs[id] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of connected subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type publishOptions struct {
	exclude string
}

// PublishOption customizes a single Publish call.
type PublishOption func(*publishOptions)

// WithExclude skips delivery to one subscriber. Used for username
// change notifications, which the renaming session already knows.
func WithExclude(id string) PublishOption {
	return func(o *publishOptions) { o.exclude = id }
}

// Publish appends the message to the store and delivers the stored
// result to every subscriber. The append is the single serialization
// point: store insertion order is the message order. A storage failure
// is returned to the caller and nothing is delivered.
func (b *Bus) Publish(ctx context.Context, msg *models.Message, opts ...PublishOption) (*models.Message, error) {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}

	stored, err := b.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		if id == o.exclude {
			continue
		}
		select {
		case ch <- *stored:
		default:
			// Fire-and-forget: drop rather than block the publisher.
			metrics.FanoutDropped.Inc()
			b.logger.Warn().
				Str("subscriber", id).
				Str("channel", stored.Channel).
				Msg("fanout buffer full, dropping delivery")
		}
	}
	return stored, nil
}
