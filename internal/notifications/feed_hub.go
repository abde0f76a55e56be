package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max feed connections per post room.
	maxConnsPerRoom = 500
	// Max total feed connections.
	maxTotalConns = 10000
)

// CommentLoader fetches the full comment set for a post, oldest first.
type CommentLoader func(ctx context.Context, postID uint) ([]*models.Comment, error)

// FeedMessage is one update pushed to a feed client. Comment updates
// always carry the complete set for the post; clients replace their
// local state wholesale instead of merging deltas.
type FeedMessage struct {
	Type     string            `json:"type"` // "comments", "logged_out", "error"
	PostID   uint              `json:"post_id,omitempty"`
	Comments []*models.Comment `json:"comments,omitempty"`
}

// FeedHub manages live comment feeds, one room per post. Joining a room
// delivers a snapshot immediately; every change to the post's comments
// re-delivers the full ordered set to the whole room.
type FeedHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*Client]struct{}
	totalConns int

	loadComments CommentLoader
	notifier     *Notifier

	shutdown chan struct{}
}

// Name returns a human-readable identifier for this hub.
func (h *FeedHub) Name() string { return "feed hub" }

// NewFeedHub creates a hub that serves comment sets from loadComments
// and fans out change notifications published through notifier.
func NewFeedHub(loadComments CommentLoader, notifier *Notifier) *FeedHub {
	return &FeedHub{
		rooms:        make(map[uint]map[*Client]struct{}),
		loadComments: loadComments,
		notifier:     notifier,
		shutdown:     make(chan struct{}),
	}
}

// Register joins a connection to a post's feed room and immediately
// sends the current comment snapshot. Anonymous viewers (userID zero)
// get the logged-out display state instead and never join the room, so
// comment updates only flow to authenticated connections.
func (h *FeedHub) Register(ctx context.Context, postID, userID uint, conn *websocket.Conn) (*Client, error) {
	if userID == 0 {
		client := NewClient(h, conn, 0)
		client.Room = postID
		client.TrySend(LoggedOutMessage())
		return client, nil
	}

	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	room, ok := h.rooms[postID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[postID] = room
	}
	if len(room) >= maxConnsPerRoom {
		h.mu.Unlock()
		return nil, errors.New("room connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.Room = postID
	room[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.FeedRoomConnections.WithLabelValues(roomLabel(postID)).Inc()

	if msg, err := h.snapshot(ctx, postID); err == nil {
		client.TrySend(msg)
	} else {
		log.Printf("FeedHub: snapshot for post %d failed: %v", postID, err)
		client.TrySend(mustMarshal(FeedMessage{Type: "error", PostID: postID}))
	}

	return client, nil
}

// UnregisterClient removes a connection from its room.
func (h *FeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if room, ok := h.rooms[client.Room]; ok {
		if _, exists := room[client]; exists {
			delete(room, client)
			h.totalConns--
			removed = true
		}
		if len(room) == 0 {
			delete(h.rooms, client.Room)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.FeedRoomConnections.WithLabelValues(roomLabel(client.Room)).Dec()
	}
}

// NotifyChanged announces that a post's comment set changed. The fanout
// happens on whichever instance is subscribed, so multi-instance
// deployments stay consistent.
func (h *FeedHub) NotifyChanged(ctx context.Context, postID uint) {
	if h.notifier == nil {
		h.rebroadcast(ctx, postID)
		return
	}
	if err := h.notifier.PublishFeedEvent(ctx, postID, "comments_changed"); err != nil {
		log.Printf("FeedHub: publish for post %d failed: %v", postID, err)
		// Degrade to local-only fanout so connected clients still update.
		h.rebroadcast(ctx, postID)
	}
}

// StartWiring subscribes to feed change events and rebroadcasts the
// affected post's full comment set.
func (h *FeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartFeedSubscriber(ctx, func(channel, _ string) {
		var postID uint
		if _, err := fmt.Sscanf(channel, "feed:post:%d", &postID); err != nil {
			log.Printf("invalid feed channel: %s", channel)
			return
		}
		h.rebroadcast(ctx, postID)
	})
}

// rebroadcast reloads the full comment set and sends it to the room.
func (h *FeedHub) rebroadcast(ctx context.Context, postID uint) {
	h.mu.RLock()
	empty := len(h.rooms[postID]) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	msg, err := h.snapshot(ctx, postID)
	if err != nil {
		log.Printf("FeedHub: reload for post %d failed: %v", postID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[postID] {
		client.TrySend(msg)
	}
}

func (h *FeedHub) snapshot(ctx context.Context, postID uint) ([]byte, error) {
	comments, err := h.loadComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return json.Marshal(FeedMessage{Type: "comments", PostID: postID, Comments: comments})
}

// RoomSize reports the number of connections in a post's room.
func (h *FeedHub) RoomSize(postID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[postID])
}

// Shutdown gracefully closes all feed connections.
func (h *FeedHub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	h.mu.Lock()
	defer h.mu.Unlock()
	for postID, room := range h.rooms {
		for client := range room {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for post %d feed: %v", postID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close feed websocket for post %d: %v", postID, err)
			}
		}
	}
	h.rooms = make(map[uint]map[*Client]struct{})
	h.totalConns = 0

	return nil
}

// LoggedOutMessage is the payload sent to anonymous viewers instead of
// a comment feed. It is a display state, not an error.
func LoggedOutMessage() []byte {
	return []byte(`{"type":"logged_out"}`)
}

func roomLabel(postID uint) string {
	return "post:" + strconv.FormatUint(uint64(postID), 10)
}

func mustMarshal(m FeedMessage) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return b
}
