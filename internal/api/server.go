package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"courier/internal/auth"
	"courier/pkg/interfaces"
	"courier/pkg/types"
)

// Dispatcher is the trigger surface the HTTP side uses to push
// notifications. Calls return as soon as the in-memory fan-out completes;
// no delivery acknowledgement is awaited.
type Dispatcher interface {
	Broadcast(message string) int
	Notify(userID, message string) bool
	NotifyByRole(ctx context.Context, role, message string) int
}

// Registry exposes the connection count for the health endpoint.
type Registry interface {
	Count() int
}

// Server is the HTTP API layer: routing, JSON serialization, and
// authorization gates. Business state lives in the store and the registry.
type Server struct {
	store      interfaces.Store
	dispatcher Dispatcher
	registry   Registry
	verifier   *auth.Verifier
	router     *http.ServeMux
}

// NewServer wires the API routes around the given collaborators.
func NewServer(store interfaces.Store, dispatcher Dispatcher, registry Registry, verifier *auth.Verifier) *Server {
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		registry:   registry,
		verifier:   verifier,
		router:     http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	mw := auth.NewMiddleware(s.verifier)

	public := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(h))
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(mw.Authenticate(h)))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(mw.RequireRole(types.RoleAdmin, h)))
	}

	s.router.Handle("/auth/register", public(s.handleRegister))
	s.router.Handle("/auth/login", public(s.handleLogin))
	s.router.Handle("/users", authed(s.handleUsers))
	s.router.Handle("/users/", authed(s.handleUserByID))
	s.router.Handle("/posts", authed(s.handlePosts))
	s.router.Handle("/posts/", authed(s.handlePostByID))
	s.router.Handle("/messages", authed(s.handleMessages))
	s.router.Handle("/messages/", authed(s.handleConversation))
	s.router.Handle("/broadcast", public(s.handleBroadcast))
	s.router.Handle("/admin/register", admin(s.handleAdminRegister))
	s.router.Handle("/admin/notify/role/", admin(s.handleNotifyRole))
	s.router.Handle("/admin/notify/", admin(s.handleNotifyUser))
	s.router.Handle("/admin/dashboard", admin(s.handleDashboard))
	s.router.Handle("/health", public(s.healthCheck))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/response shapes.

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

type updateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type sendMessageResponse struct {
	Message  *types.Message `json:"message"`
	Notified bool           `json:"notified"`
}

type notifyRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// --- auth -------------------------------------------------------------------

// handleRegister creates a user account. Public registration always gets
// the "user" role; admins are minted through /admin/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	req.Role = types.RoleUser

	user, err := s.createUser(r.Context(), req)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(user)
}

// handleLogin verifies credentials and issues a signed token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		s.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		s.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.verifier.Sign(user)
	if err != nil {
		s.sendError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(loginResponse{Token: token, User: user})
}

func (s *Server) createUser(ctx context.Context, req registerRequest) (*types.User, error) {
	if len(req.Password) < 8 {
		return nil, types.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if req.Role == "" {
		req.Role = types.RoleUser
	}

	user := &types.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hash),
		Role:      req.Role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// --- users ------------------------------------------------------------------

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(users)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	userID := pathSuffix(r.URL.Path, "/users/")
	if userID == "" {
		s.sendError(w, "User ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.store.GetUser(r.Context(), userID)
		if err != nil {
			s.sendStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(user)

	case http.MethodPut:
		if !s.requireSelfOrAdmin(w, r, userID) {
			return
		}
		var req updateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		user, err := s.store.GetUser(r.Context(), userID)
		if err != nil {
			s.sendStoreError(w, err)
			return
		}
		user.Name = req.Name
		user.Email = req.Email
		if err := s.store.UpdateUser(r.Context(), user); err != nil {
			s.sendStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(user)

	case http.MethodDelete:
		if !s.requireSelfOrAdmin(w, r, userID) {
			return
		}
		if err := s.store.DeleteUser(r.Context(), userID); err != nil {
			s.sendStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "User deleted"})

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- posts ------------------------------------------------------------------

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		identity, ok := auth.IdentityFrom(r.Context())
		if !ok {
			s.sendError(w, "Unauthenticated", http.StatusUnauthorized)
			return
		}
		var req postRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		post := &types.Post{
			ID:        uuid.NewString(),
			AuthorID:  identity.ID,
			Title:     req.Title,
			Content:   req.Content,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreatePost(r.Context(), post); err != nil {
			s.sendStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(post)

	case http.MethodGet:
		var (
			posts []*types.Post
			err   error
		)
		if author := r.URL.Query().Get("author"); author != "" {
			posts, err = s.store.ListPostsByAuthor(r.Context(), author)
		} else {
			posts, err = s.store.ListPosts(r.Context())
		}
		if err != nil {
			s.sendError(w, "Failed to list posts", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(posts)

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePostByID(w http.ResponseWriter, r *http.Request) {
	postID := pathSuffix(r.URL.Path, "/posts/")
	if postID == "" {
		s.sendError(w, "Post ID required", http.StatusBadRequest)
		return
	}

	post, err := s.store.GetPost(r.Context(), postID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(post)

	case http.MethodPut:
		if !s.requireSelfOrAdmin(w, r, post.AuthorID) {
			return
		}
		var req postRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		post.Title = req.Title
		post.Content = req.Content
		if err := s.store.UpdatePost(r.Context(), post); err != nil {
			s.sendStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(post)

	case http.MethodDelete:
		if !s.requireSelfOrAdmin(w, r, post.AuthorID) {
			return
		}
		if err := s.store.DeletePost(r.Context(), postID); err != nil {
			s.sendStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Post deleted"})

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- messages ---------------------------------------------------------------

// handleMessages stores a direct message and pushes a best-effort real-time
// notification to the receiver. An offline receiver is reported, not failed.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.sendError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// The receiver must exist; a dangling receiver ID would otherwise be
	// accepted and silently undeliverable forever.
	if _, err := s.store.GetUser(r.Context(), req.ReceiverID); err != nil {
		s.sendStoreError(w, err)
		return
	}

	message := &types.Message{
		ID:         uuid.NewString(),
		SenderID:   identity.ID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateMessage(r.Context(), message); err != nil {
		s.sendStoreError(w, err)
		return
	}

	notified := s.dispatcher.Notify(req.ReceiverID,
		fmt.Sprintf("New message from %s: %s", identity.ID, req.Content))

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sendMessageResponse{Message: message, Notified: notified})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.sendError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	peerID := pathSuffix(r.URL.Path, "/messages/")
	if peerID == "" {
		s.sendError(w, "Peer ID required", http.StatusBadRequest)
		return
	}

	messages, err := s.store.ListConversation(r.Context(), identity.ID, peerID)
	if err != nil {
		s.sendError(w, "Failed to list conversation", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(messages)
}

// --- notification triggers --------------------------------------------------

// handleBroadcast pushes a message to every connected client.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" {
		s.sendError(w, "Message is required", http.StatusBadRequest)
		return
	}

	delivered := s.dispatcher.Broadcast(message)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "Broadcast sent",
		"message":   message,
		"delivered": delivered,
	})
}

// handleNotifyUser pushes a message to one user's live connection.
func (s *Server) handleNotifyUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := pathSuffix(r.URL.Path, "/admin/notify/")
	if userID == "" {
		s.sendError(w, "User ID required", http.StatusBadRequest)
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.sendError(w, "Message is required", http.StatusBadRequest)
		return
	}

	delivered := s.dispatcher.Notify(userID, req.Message)
	_ = json.NewEncoder(w).Encode(map[string]any{"delivered": delivered})
}

// handleNotifyRole pushes a message to every live connection whose user
// currently holds the given role.
func (s *Server) handleNotifyRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	role := pathSuffix(r.URL.Path, "/admin/notify/role/")
	if role == "" {
		s.sendError(w, "Role required", http.StatusBadRequest)
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.sendError(w, "Message is required", http.StatusBadRequest)
		return
	}

	delivered := s.dispatcher.NotifyByRole(r.Context(), role, req.Message)
	_ = json.NewEncoder(w).Encode(map[string]any{"delivered": delivered})
}

// --- admin ------------------------------------------------------------------

// handleAdminRegister creates a user with an explicit role.
func (s *Server) handleAdminRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.createUser(r.Context(), req)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.sendError(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}
	posts, err := s.store.ListPosts(r.Context())
	if err != nil {
		s.sendError(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"users":       len(users),
		"posts":       len(posts),
		"connections": s.registry.Count(),
	})
}

// --- health -----------------------------------------------------------------

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = err.Error()
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"database":    dbStatus,
		"connections": s.registry.Count(),
	})
}

// --- helpers ----------------------------------------------------------------

// requireSelfOrAdmin allows the owner of a resource or an admin through.
func (s *Server) requireSelfOrAdmin(w http.ResponseWriter, r *http.Request, ownerID string) bool {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.sendError(w, "Unauthenticated", http.StatusUnauthorized)
		return false
	}
	if identity.ID != ownerID && identity.Role != types.RoleAdmin {
		s.sendError(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrUserNotFound), errors.Is(err, interfaces.ErrPostNotFound):
		s.sendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, interfaces.ErrDuplicateEmail):
		s.sendError(w, err.Error(), http.StatusConflict)
	case isValidationError(err):
		s.sendError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("store error: %v", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		types.ErrInvalidUserID, types.ErrInvalidName, types.ErrInvalidEmail,
		types.ErrInvalidRole, types.ErrInvalidTitle, types.ErrEmptyContent,
		types.ErrContentTooLarge, types.ErrWeakPassword,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// pathSuffix extracts the first path segment after prefix.
func pathSuffix(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return ""
	}
	return strings.Split(rest, "/")[0]
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
