package types

import (
	"regexp"
	"strings"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements:
// 1-50 characters, alphanumeric plus underscore and hyphen.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRole reports whether role is one of the defined roles.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// IsValidEmail performs a minimal structural check. Real address
// verification belongs to a confirmation mail flow, not here.
func IsValidEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// Validate ensures a user record is storable.
func (u *User) Validate() error {
	if !IsValidUserID(u.ID) {
		return ErrInvalidUserID
	}
	if u.Name == "" || len(u.Name) > 200 {
		return ErrInvalidName
	}
	if !IsValidEmail(u.Email) {
		return ErrInvalidEmail
	}
	if !IsValidRole(u.Role) {
		return ErrInvalidRole
	}
	return nil
}

// Validate ensures a post is storable.
func (p *Post) Validate() error {
	if !IsValidUserID(p.AuthorID) {
		return ErrInvalidUserID
	}
	if p.Title == "" || len(p.Title) > 200 {
		return ErrInvalidTitle
	}
	if len(p.Content) > 65536 {
		return ErrContentTooLarge
	}
	return nil
}

// Validate ensures a message is storable.
func (m *Message) Validate() error {
	if !IsValidUserID(m.SenderID) || !IsValidUserID(m.ReceiverID) {
		return ErrInvalidUserID
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	if len(m.Content) > 65536 {
		return ErrContentTooLarge
	}
	return nil
}
