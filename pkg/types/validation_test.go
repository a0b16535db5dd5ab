package types

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validUser() *User {
	return &User{
		ID:        "user-1",
		Name:      "Alice",
		Email:     "alice@example.com",
		Password:  "hashed",
		Role:      RoleUser,
		CreatedAt: time.Now(),
	}
}

func TestIsValidUserID(t *testing.T) {
	valid := []string{"user1", "a", "user_name-42", strings.Repeat("x", 50)}
	for _, id := range valid {
		if !IsValidUserID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{"", "user 1", "user@1", "user/1", strings.Repeat("x", 51)}
	for _, id := range invalid {
		if IsValidUserID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole(RoleUser) || !IsValidRole(RoleAdmin) {
		t.Error("expected built-in roles to be valid")
	}
	for _, role := range []string{"", "root", "Administrator"} {
		if IsValidRole(role) {
			t.Errorf("expected role %q to be invalid", role)
		}
	}
}

func TestUserValidate(t *testing.T) {
	if err := validUser().Validate(); err != nil {
		t.Errorf("expected valid user, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*User)
		want   error
	}{
		{"empty id", func(u *User) { u.ID = "" }, ErrInvalidUserID},
		{"empty name", func(u *User) { u.Name = "" }, ErrInvalidName},
		{"bad email", func(u *User) { u.Email = "not-an-email" }, ErrInvalidEmail},
		{"bad role", func(u *User) { u.Role = "root" }, ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := validUser()
			tc.mutate(user)
			if err := user.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPostValidate(t *testing.T) {
	post := &Post{ID: "p1", AuthorID: "user-1", Title: "Hello", Content: "body"}
	if err := post.Validate(); err != nil {
		t.Errorf("expected valid post, got %v", err)
	}

	post.Title = ""
	if err := post.Validate(); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestMessageValidateContentBounds(t *testing.T) {
	msg := &Message{ID: "m1", SenderID: "a", ReceiverID: "b", Content: "hi"}
	if err := msg.Validate(); err != nil {
		t.Errorf("expected valid message, got %v", err)
	}

	msg.Content = ""
	if err := msg.Validate(); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}

	msg.Content = strings.Repeat("x", 64*1024+1)
	if err := msg.Validate(); !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("expected ErrContentTooLarge, got %v", err)
	}
}
