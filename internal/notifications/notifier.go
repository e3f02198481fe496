// Package notifications delivers moderation events to live websocket
// subscribers. Delivery is best-effort: a subscriber that is offline when an
// event fires does not receive it later, only an unread counter bump.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"

	"gatehouse/internal/cache"
	"gatehouse/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	staffChannel     = "notifications:staff"
	broadcastChannel = "notifications:broadcast"
	userChannelNS    = "notifications:user:"
)

// envelope is the wire form relayed between replicas over Redis pub/sub.
// Origin identifies the publishing hub so a replica can skip events it
// already delivered locally.
type envelope struct {
	Origin string                   `json:"origin"`
	Target models.TargetSelector    `json:"target"`
	Event  models.NotificationEvent `json:"event"`
}

// Notifier publishes notification envelopes into Redis channels and relays
// them back to interested hubs. All methods are no-ops without Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishEnvelope sends an envelope to the channel its target resolves to.
func (n *Notifier) PublishEnvelope(ctx context.Context, env envelope) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return n.rdb.Publish(ctx, channelFor(env.Target, env.Event.AuthorID), payload).Err()
}

// StartRelay subscribes to all notification channels and calls onMessage for
// each incoming payload. The subscription closes when ctx is cancelled.
func (n *Notifier) StartRelay(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelNS+"*", staffChannel, broadcastChannel)
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
							log.Printf("PANIC in notification relay: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// IncrementUnread bumps the missed-notification counter for an offline user.
func (n *Notifier) IncrementUnread(ctx context.Context, userID uint) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Incr(ctx, cache.UnreadKey(userID)).Err()
}

// UnreadCount returns the number of notifications the user missed while offline.
func (n *Notifier) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if n.rdb == nil {
		return 0, nil
	}
	count, err := n.rdb.Get(ctx, cache.UnreadKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// ClearUnread resets the missed-notification counter, typically when the user
// reconnects and re-fetches their review state.
func (n *Notifier) ClearUnread(ctx context.Context, userID uint) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Del(ctx, cache.UnreadKey(userID)).Err()
}

func channelFor(target models.TargetSelector, authorID uint) string {
	switch target {
	case models.TargetAuthorOnly:
		return UserChannel(authorID)
	case models.TargetModeratorsAndAdmins:
		return staffChannel
	default:
		return broadcastChannel
	}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelNS + strconv.FormatUint(uint64(userID), 10)
}
