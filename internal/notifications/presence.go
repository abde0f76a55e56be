package notifications

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	presenceRoomsKey       = "presence:rooms"
	presenceRoomKeyPrefix  = "presence:room:"
	presenceSeenKeyPrefix  = "presence:last_seen:"
	defaultPresenceTTL     = 30 * time.Second
	defaultPresenceReapGap = 60 * time.Second
)

// PresenceTrackerConfig controls liveness and cleanup behavior.
type PresenceTrackerConfig struct {
	TTL            time.Duration
	ReaperInterval time.Duration
}

// PresenceTracker records who is currently viewing a room. Liveness is
// driven entirely by client heartbeats: each heartbeat refreshes a
// per-viewer key with a TTL, and a viewer whose key has expired is no
// longer live. Membership sets carry no TTL of their own, so stale
// entries are reaped lazily on reads and by a background loop.
type PresenceTracker struct {
	rdb *redis.Client

	ttl            time.Duration
	reaperInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceTracker creates a tracker over the given Redis client.
func NewPresenceTracker(rdb *redis.Client, cfg PresenceTrackerConfig) *PresenceTracker {
	t := &PresenceTracker{
		rdb:            rdb,
		ttl:            defaultPresenceTTL,
		reaperInterval: defaultPresenceReapGap,
		stopCh:         make(chan struct{}),
	}
	if cfg.TTL > 0 {
		t.ttl = cfg.TTL
	}
	if cfg.ReaperInterval > 0 {
		t.reaperInterval = cfg.ReaperInterval
	}
	return t
}

// Heartbeat upserts the viewer into the room and refreshes their
// liveness window. A repeated heartbeat for the same viewer only pushes
// the expiry forward.
func (t *PresenceTracker) Heartbeat(ctx context.Context, room string, userID uint) error {
	if t.rdb == nil {
		return nil
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := t.rdb.SAdd(ctx, roomKey(room), uid).Err(); err != nil {
		return err
	}
	if err := t.rdb.SAdd(ctx, presenceRoomsKey, room).Err(); err != nil {
		return err
	}
	return t.rdb.SetEx(ctx, seenKey(room, userID), strconv.FormatInt(time.Now().Unix(), 10), t.ttl).Err()
}

// ListViewers returns the live viewers of a room, ascending by user ID.
// Members whose liveness key expired are dropped from the room set on
// the way out.
func (t *PresenceTracker) ListViewers(ctx context.Context, room string) ([]uint, error) {
	if t.rdb == nil {
		return nil, nil
	}

	members, err := t.rdb.SMembers(ctx, roomKey(room)).Result()
	if err != nil {
		return nil, err
	}

	viewers := make([]uint, 0, len(members))
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			_ = t.rdb.SRem(ctx, roomKey(room), raw).Err()
			continue
		}
		userID := uint(id64)
		exists, existsErr := t.rdb.Exists(ctx, seenKey(room, userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists == 0 {
			// Heartbeats stopped; reap the member in passing.
			_ = t.rdb.SRem(ctx, roomKey(room), raw).Err()
			continue
		}
		viewers = append(viewers, userID)
	}

	sort.Slice(viewers, func(i, j int) bool { return viewers[i] < viewers[j] })
	observability.PresenceViewers.WithLabelValues(room).Set(float64(len(viewers)))
	return viewers, nil
}

// Leave removes a viewer from a room without waiting for expiry.
func (t *PresenceTracker) Leave(ctx context.Context, room string, userID uint) error {
	if t.rdb == nil {
		return nil
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := t.rdb.SRem(ctx, roomKey(room), uid).Err(); err != nil {
		return err
	}
	return t.rdb.Del(ctx, seenKey(room, userID)).Err()
}

// StartReaper launches the background loop that prunes rooms nobody
// reads from, so abandoned membership sets do not linger forever.
func (t *PresenceTracker) StartReaper(ctx context.Context) {
	if t.rdb == nil || t.reaperInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(t.reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.reapOnce(ctx)
			}
		}
	}()
}

// reapOnce performs one cleanup pass over every known room.
func (t *PresenceTracker) reapOnce(ctx context.Context) {
	rooms, err := t.rdb.SMembers(ctx, presenceRoomsKey).Result()
	if err != nil {
		return
	}
	for _, room := range rooms {
		viewers, listErr := t.ListViewers(ctx, room)
		if listErr != nil {
			log.Printf("presence reap failed for room %s: %v", room, listErr)
			continue
		}
		if len(viewers) == 0 {
			_ = t.rdb.Del(ctx, roomKey(room)).Err()
			_ = t.rdb.SRem(ctx, presenceRoomsKey, room).Err()
		}
	}
}

// Stop terminates the reaper loop.
func (t *PresenceTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func roomKey(room string) string {
	return presenceRoomKeyPrefix + room
}

func seenKey(room string, userID uint) string {
	return presenceSeenKeyPrefix + room + ":" + strconv.FormatUint(uint64(userID), 10)
}
