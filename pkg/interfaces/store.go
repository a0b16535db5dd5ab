package interfaces

import (
	"context"

	"courier/pkg/types"
)

// Directory resolves a user ID to its current identity attributes. It is the
// single source of role truth: both the HTTP authorization middleware and the
// role-filtered dispatcher agree on what "role" means by reading through it.
type Directory interface {
	// Lookup returns the identity for userID, or ErrUserNotFound if the
	// user no longer exists (e.g. deleted after connecting).
	Lookup(ctx context.Context, userID string) (*types.Identity, error)
}

// UserStore handles persistence for user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	UpdateUser(ctx context.Context, user *types.User) error
	DeleteUser(ctx context.Context, userID string) error
}

// PostStore handles persistence for posts.
type PostStore interface {
	CreatePost(ctx context.Context, post *types.Post) error
	GetPost(ctx context.Context, postID string) (*types.Post, error)
	ListPosts(ctx context.Context) ([]*types.Post, error)
	ListPostsByAuthor(ctx context.Context, authorID string) ([]*types.Post, error)
	UpdatePost(ctx context.Context, post *types.Post) error
	DeletePost(ctx context.Context, postID string) error
}

// MessageStore handles persistence for direct messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, message *types.Message) error
	ListConversation(ctx context.Context, userID, peerID string) ([]*types.Message, error)
}

// Store aggregates every persistence concern the application wires together.
type Store interface {
	Directory
	UserStore
	PostStore
	MessageStore

	// HealthCheck verifies connectivity within the context deadline.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the underlying database.
	Close() error
}
