package types

import (
	"time"
)

// Roles assigned to users. Every token claim and every users table row
// carries exactly one of these.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated principal extracted from a verified token:
// the user's ID plus the role that was current when the token was signed.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// User is a registered account. Password holds the bcrypt hash and is never
// serialized in API responses.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Post is a user-authored content item.
type Post struct {
	ID        string    `json:"id" db:"id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Message is a direct message between two users.
type Message struct {
	ID         string    `json:"id" db:"id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	ReceiverID string    `json:"receiver_id" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Envelope is the uniform wrapper applied to every outbound notification
// frame. Broadcast, targeted, and role-filtered deliveries all serialize
// identically, so a client cannot tell them apart except by content.
type Envelope struct {
	Notification string `json:"notification"`
}

// Welcome is the single frame sent to a client immediately after a
// successful handshake, before any notifications.
type Welcome struct {
	Message string `json:"message"`
}

// WelcomeText is the payload of the Welcome frame.
const WelcomeText = "Welcome to the WebSocket server!"
