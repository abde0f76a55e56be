package notifications

import (
	"context"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes feed events into Redis channels so every server
// instance can fan them out to its own connected clients.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishFeedEvent announces a change to a post's comment set.
func (n *Notifier) PublishFeedEvent(ctx context.Context, postID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, FeedChannel(postID), payload).Err()
}

// StartFeedSubscriber subscribes to the pattern `feed:post:*` and calls
// onMessage for each incoming event. onMessage receives channel and payload.
func (n *Notifier) StartFeedSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "feed:post:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in FeedSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// FeedChannel derives the Redis channel name for a post's comment feed.
func FeedChannel(postID uint) string {
	return "feed:post:" + strconv.FormatUint(uint64(postID), 10)
}
