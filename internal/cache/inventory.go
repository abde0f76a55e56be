package cache

import (
	"context"
	"fmt"
	"time"
)

// PostsListTag is the invalidation tag covering every cached post listing.
// Publishing or deleting a post invalidates the whole tag.
const PostsListTag = "blog-posts"

const (
	UserKeyPrefix     = "user:%d"
	PostKeyPrefix     = "post:%d"
	PostsListPrefix   = "posts:list:%d:%d"
	CommentsKeyPrefix = "post:%d:comments"
)

const (
	UserTTL     = 5 * time.Minute
	PostTTL     = 30 * time.Minute
	ListTTL     = 2 * time.Minute
	CommentsTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PostsListKey(limit, offset int) string {
	return fmt.Sprintf(PostsListPrefix, limit, offset)
}

func CommentsKey(postID uint) string {
	return fmt.Sprintf(CommentsKeyPrefix, postID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePostsList drops every key registered under the posts list tag.
func InvalidatePostsList(ctx context.Context) {
	InvalidateTag(ctx, PostsListTag)
}

func InvalidateComments(ctx context.Context, postID uint) {
	Invalidate(ctx, CommentsKey(postID))
}
