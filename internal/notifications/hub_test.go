package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func receive(t *testing.T, c *Client) models.NotificationEvent {
	t.Helper()
	select {
	case raw := <-c.Send:
		var event models.NotificationEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(testEventuallyTimeout):
		t.Fatal("expected a notification, got none")
		return models.NotificationEvent{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected delivery: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_AuthorOnlyReachesJustTheAuthor(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	author, err := hub.Register(1, models.RoleMember, nil)
	require.NoError(t, err)
	authorPhone, err := hub.Register(1, models.RoleMember, nil)
	require.NoError(t, err)
	bystander, err := hub.Register(2, models.RoleMember, nil)
	require.NoError(t, err)

	hub.Publish(context.Background(), models.NotificationEvent{
		Type:     models.NotifyPostApproved,
		PostID:   42,
		AuthorID: 1,
		Target:   models.TargetAuthorOnly,
	})

	for _, c := range []*Client{author, authorPhone} {
		event := receive(t, c)
		assert.Equal(t, models.NotifyPostApproved, event.Type)
		assert.Equal(t, uint(42), event.PostID)
	}
	assertSilent(t, bystander)
}

func TestHub_ModeratorsAndAdminsExcludesMembers(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	member, err := hub.Register(1, models.RoleMember, nil)
	require.NoError(t, err)
	moderator, err := hub.Register(2, models.RoleModerator, nil)
	require.NoError(t, err)
	admin, err := hub.Register(3, models.RoleAdmin, nil)
	require.NoError(t, err)

	hub.Publish(context.Background(), models.NotificationEvent{
		Type:     models.NotifyViolationFlagged,
		AuthorID: 1,
		Target:   models.TargetModeratorsAndAdmins,
		Payload:  map[string]any{"severity": "critical"},
	})

	for _, c := range []*Client{moderator, admin} {
		event := receive(t, c)
		assert.Equal(t, models.NotifyViolationFlagged, event.Type)
	}
	assertSilent(t, member)
}

func TestHub_BroadcastReachesEveryRole(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	member, err := hub.Register(1, models.RoleMember, nil)
	require.NoError(t, err)
	moderator, err := hub.Register(2, models.RoleModerator, nil)
	require.NoError(t, err)

	hub.Publish(context.Background(), models.NotificationEvent{
		Type:   models.NotifyPostApproved,
		Target: models.TargetBroadcast,
	})

	receive(t, member)
	receive(t, moderator)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	client, err := hub.Register(5, models.RoleMember, nil)
	require.NoError(t, err)

	hub.UnregisterClient(client)
	hub.UnregisterClient(client)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Zero(t, hub.totalConns)
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(9, models.RoleMember, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(9, models.RoleMember, nil)
	assert.Error(t, err)
}

// Two hubs sharing Redis relay events to each other exactly once: the
// publishing hub delivers locally and skips its own relayed envelope.
func TestHub_RelayAcrossReplicasWithoutDoubleDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdbA.Close() }()
	rdbB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdbB.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA := NewHub(rdbA)
	defer func() { _ = hubA.Shutdown(context.Background()) }()
	hubB := NewHub(rdbB)
	defer func() { _ = hubB.Shutdown(context.Background()) }()

	require.NoError(t, hubA.StartWiring(ctx, NewNotifier(rdbA)))
	require.NoError(t, hubB.StartWiring(ctx, NewNotifier(rdbB)))

	localClient, err := hubA.Register(7, models.RoleMember, nil)
	require.NoError(t, err)
	remoteClient, err := hubB.Register(7, models.RoleMember, nil)
	require.NoError(t, err)

	hubA.Publish(ctx, models.NotificationEvent{
		Type:     models.NotifyPostRejected,
		PostID:   8,
		AuthorID: 7,
		Target:   models.TargetAuthorOnly,
	})

	event := receive(t, remoteClient)
	assert.Equal(t, models.NotifyPostRejected, event.Type)

	receive(t, localClient)
	assertSilent(t, localClient)
}

func TestHub_OfflineAuthorGetsUnreadBump(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(rdb)
	defer func() { _ = hub.Shutdown(context.Background()) }()
	notifier := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, notifier))

	hub.Publish(ctx, models.NotificationEvent{
		Type:     models.NotifyPostApproved,
		PostID:   3,
		AuthorID: 77,
		Target:   models.TargetAuthorOnly,
	})

	count, err := notifier.UnreadCount(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, notifier.ClearUnread(ctx, 77))
	count, err = notifier.UnreadCount(ctx, 77)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	clientA, err := hub.Register(10, models.RoleMember, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	_, err = hub.Register(10, models.RoleMember, nil)
	assert.NoError(t, err)

	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[10]
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, hub.IsOnline(10))

	_ = hub.Shutdown(context.Background())
}

func TestHub_MultiConnectionLastDisconnectTriggersOfflineOnce(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	clientA, err := hub.Register(15, models.RoleModerator, nil)
	assert.NoError(t, err)
	clientB, err := hub.Register(15, models.RoleModerator, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[15]
	}, 30*testPollInterval, testPollInterval)

	hub.UnregisterClient(clientB)
	assert.Eventually(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[15]
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, hub.IsOnline(15))

	_ = hub.Shutdown(context.Background())
}

func TestHub_ReaperRemovesStalePresence(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	ctx := context.Background()
	assert.NoError(t, rdb.SAdd(ctx, cache.OnlineUsersKey, "44").Err())

	hub.presence.reapOnce(ctx)

	isMember, err := rdb.SIsMember(ctx, cache.OnlineUsersKey, "44").Result()
	assert.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, int32(1), atomic.LoadInt32(&offlineCount))

	_ = hub.Shutdown(context.Background())
}
