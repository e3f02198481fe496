package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	PostKeyPrefix     = "post:%d"
	CheckKeyPrefix    = "check:%s"
	UnreadKeyPrefix   = "unread:%d"
	OnlineUsersKey    = "online_users"
	LastSeenKeyPrefix = "last_seen:%d"
)

const (
	UserTTL     = 5 * time.Minute
	PostTTL     = 30 * time.Minute
	LastSeenTTL = 24 * time.Hour
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// CheckKey is the shared cache entry for a content fingerprint.
func CheckKey(fingerprint string) string {
	return fmt.Sprintf(CheckKeyPrefix, fingerprint)
}

func UnreadKey(userID uint) string {
	return fmt.Sprintf(UnreadKeyPrefix, userID)
}

func LastSeenKey(userID uint) string {
	return fmt.Sprintf(LastSeenKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
