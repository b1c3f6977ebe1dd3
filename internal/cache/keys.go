package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	UsernameKeyPrefix = "user:name:%s"
	PostKeyPrefix     = "post:%d"
)

const (
	UserTTL = 5 * time.Minute
	// Posts embed their author, so keep this short
	PostTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UsernameKey(username string) string {
	return fmt.Sprintf(UsernameKeyPrefix, username)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if rdb := GetClient(); rdb != nil && len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint, usernames ...string) {
	keys := []string{UserKey(userID)}
	for _, name := range usernames {
		keys = append(keys, UsernameKey(name))
	}
	Invalidate(ctx, keys...)
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
