package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	// SQLite driver, referenced only through the connection string.
	_ "github.com/mattn/go-sqlite3"

	"courier/pkg/interfaces"
	"courier/pkg/types"
)

// schema is applied on startup. CREATE IF NOT EXISTS keeps restarts cheap.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT 'user',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	receiver_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
`

// Manager is the SQLite-backed store for users, posts, and messages. Reads
// go straight to the pooled connection; writes funnel through a single
// goroutine because SQLite tolerates exactly one writer at a time.
type Manager struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	operation func(*sql.DB) error
	result    chan error
}

// Compile-time check that Manager satisfies the full store contract.
var _ interfaces.Store = (*Manager)(nil)

// NewManager opens (or creates) the database at path and applies the schema.
func NewManager(path string, timeout time.Duration) (*Manager, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(timeout)
	db.SetConnMaxIdleTime(timeout / 3)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	m := &Manager{
		db:       db,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

// writeLoop serializes all writes. A failed write is retried once; SQLite
// busy errors are usually transient.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeCh:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("database write failed, retrying: %v", err)
				time.Sleep(500 * time.Millisecond)
				err = op.operation(m.db)
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	op := writeOp{operation: operation, result: make(chan error, 1)}

	select {
	case m.writeCh <- op:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- users ------------------------------------------------------------------

// CreateUser inserts a new user. The email column is unique; a duplicate
// maps to interfaces.ErrDuplicateEmail.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name, email, password, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.Password, user.Role, user.CreatedAt)
		if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
			return interfaces.ErrDuplicateEmail
		}
		return err
	})
}

// GetUser returns the user with the given ID.
func (m *Manager) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, email, password, role, created_at FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail returns the user registered under email. Used by login.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, email, password, role, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by creation time.
func (m *Manager) ListUsers(ctx context.Context) ([]*types.User, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, name, email, password, role, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser updates the mutable fields of a user record.
func (m *Manager) UpdateUser(ctx context.Context, user *types.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE users SET name = ?, email = ?, role = ? WHERE id = ?`,
			user.Name, user.Email, user.Role, user.ID)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return interfaces.ErrDuplicateEmail
			}
			return err
		}
		return requireRowAffected(res, interfaces.ErrUserNotFound)
	})
}

// DeleteUser removes a user and, via foreign keys, their posts and messages.
func (m *Manager) DeleteUser(ctx context.Context, userID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
		if err != nil {
			return err
		}
		return requireRowAffected(res, interfaces.ErrUserNotFound)
	})
}

// Lookup implements interfaces.Directory: it resolves a user ID to its
// current identity attributes. The dispatcher calls this during
// role-filtered fan-out; the answer must agree with what the authorization
// middleware would conclude for the same user.
func (m *Manager) Lookup(ctx context.Context, userID string) (*types.Identity, error) {
	var identity types.Identity
	err := m.db.QueryRowContext(ctx,
		`SELECT id, role FROM users WHERE id = ?`, userID).Scan(&identity.ID, &identity.Role)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	return &identity, nil
}

// --- posts ------------------------------------------------------------------

// CreatePost inserts a new post.
func (m *Manager) CreatePost(ctx context.Context, post *types.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO posts (id, author_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			post.ID, post.AuthorID, post.Title, post.Content, post.CreatedAt)
		return err
	})
}

// GetPost returns the post with the given ID.
func (m *Manager) GetPost(ctx context.Context, postID string) (*types.Post, error) {
	var post types.Post
	err := m.db.QueryRowContext(ctx,
		`SELECT id, author_id, title, content, created_at FROM posts WHERE id = ?`, postID).
		Scan(&post.ID, &post.AuthorID, &post.Title, &post.Content, &post.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", postID, err)
	}
	return &post, nil
}

// ListPosts returns all posts, newest first.
func (m *Manager) ListPosts(ctx context.Context) ([]*types.Post, error) {
	return m.queryPosts(ctx,
		`SELECT id, author_id, title, content, created_at FROM posts ORDER BY created_at DESC`)
}

// ListPostsByAuthor returns one author's posts, newest first.
func (m *Manager) ListPostsByAuthor(ctx context.Context, authorID string) ([]*types.Post, error) {
	return m.queryPosts(ctx,
		`SELECT id, author_id, title, content, created_at FROM posts WHERE author_id = ? ORDER BY created_at DESC`,
		authorID)
}

// UpdatePost updates a post's title and content.
func (m *Manager) UpdatePost(ctx context.Context, post *types.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE posts SET title = ?, content = ? WHERE id = ?`,
			post.Title, post.Content, post.ID)
		if err != nil {
			return err
		}
		return requireRowAffected(res, interfaces.ErrPostNotFound)
	})
}

// DeletePost removes a post.
func (m *Manager) DeletePost(ctx context.Context, postID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postID)
		if err != nil {
			return err
		}
		return requireRowAffected(res, interfaces.ErrPostNotFound)
	})
}

// --- messages ---------------------------------------------------------------

// CreateMessage inserts a direct message.
func (m *Manager) CreateMessage(ctx context.Context, message *types.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO messages (id, sender_id, receiver_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			message.ID, message.SenderID, message.ReceiverID, message.Content, message.CreatedAt)
		return err
	})
}

// ListConversation returns all messages exchanged between two users in
// chronological order.
func (m *Manager) ListConversation(ctx context.Context, userID, peerID string) ([]*types.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, created_at FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY created_at`,
		userID, peerID, peerID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer rows.Close()

	var messages []*types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// --- lifecycle --------------------------------------------------------------

// HealthCheck verifies database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close stops the writer goroutine and closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()
	return m.db.Close()
}

// --- helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*types.User, error) {
	var user types.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (m *Manager) queryPosts(ctx context.Context, query string, args ...any) ([]*types.Post, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []*types.Post
	for rows.Next() {
		var post types.Post
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Title, &post.Content, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
