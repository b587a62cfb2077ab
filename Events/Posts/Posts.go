package posts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
	AuthService "campusnet/Services/Auth"
	Utils "campusnet/Utils"
)

// UserDirectory is the slice of the users store the posts controller needs
// for author checks and population.
type UserDirectory interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*Users.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Users.Summary, error)
}

// Controller serves the post and feed endpoints.
type Controller struct {
	store Store
	users UserDirectory
	auth  *AuthService.Service
}

func NewController(store Store, users UserDirectory, auth *AuthService.Service) *Controller {
	return &Controller{store: store, users: users, auth: auth}
}

// Handle sets up the routes for post endpoints.
func (c *Controller) Handle(r chi.Router) {
	r.Use(c.auth.RequireAuth)
	r.Post("/", c.CreatePost)
	r.Get("/feed", c.GetFeed)
	r.Get("/user/{id}", c.GetUserPosts)
	r.Post("/{id}/like", c.ToggleLike)
	r.Post("/{id}/comment", c.AddComment)
	r.Delete("/{id}", c.DeletePost)
}

// CreatePostRequest represents the post creation payload. Any author field a
// client sends is ignored; the author is always the authenticated identity.
type CreatePostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image"`
}

// CreatePost stores a new post authored by the caller.
func (c *Controller) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("CreatePost: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var input CreatePostRequest
	if err := json.Unmarshal(body, &input); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		Utils.SendError(w, http.StatusBadRequest, "Post content is required")
		return
	}
	if len(content) > MaxContentLength {
		Utils.SendError(w, http.StatusBadRequest, "Post content is too long (max 1000 chars)")
		return
	}

	var image *string
	if trimmed := strings.TrimSpace(input.Image); trimmed != "" {
		if len(trimmed) > MaxImageLength {
			Utils.SendError(w, http.StatusBadRequest, "Image URL is too long")
			return
		}
		image = &trimmed
	}

	if _, err := c.users.FindByID(ctx, identity.UserID); err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Author not found")
		} else {
			log.Printf("CreatePost: failed to fetch author: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	post := &Post{Author: identity.UserID, Content: content, Image: image}
	if err := c.store.Insert(ctx, post); err != nil {
		log.Printf("CreatePost: failed to insert post: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	c.respondWithPost(ctx, w, http.StatusCreated, post)
}

// GetFeed returns posts by the caller and everyone they follow, newest
// first, with cursor pagination.
func (c *Controller) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := c.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("GetFeed: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	authors := append([]primitive.ObjectID{user.ID}, user.Following...)
	c.respondWithPage(ctx, w, r, authors)
}

// GetUserPosts returns a single author's posts with the same cursor
// contract as the feed.
func (c *Controller) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := AuthService.IdentityFrom(ctx); !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	authorID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	c.respondWithPage(ctx, w, r, []primitive.ObjectID{authorID})
}

func (c *Controller) respondWithPage(ctx context.Context, w http.ResponseWriter, r *http.Request, authors []primitive.ObjectID) {
	limit := Utils.ParseLimit(r.URL.Query().Get("limit"), DefaultFeedLimit, MaxFeedLimit)
	cursor := Utils.ParseCursor(r.URL.Query().Get("cursor"))

	fetched, err := c.store.FindPage(ctx, authors, cursor, limit+1)
	if err != nil {
		log.Printf("GetFeed: failed to fetch posts: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	items := fetched
	if len(fetched) > limit {
		items = fetched[:limit]
	}

	responses, err := c.populate(ctx, items)
	if err != nil {
		log.Printf("GetFeed: failed to populate posts: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	pageInfo := Utils.PageInfo{}
	if len(items) > 0 {
		pageInfo = Utils.BuildPageInfo(len(fetched), limit, items[len(items)-1].CreatedAt)
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"items":    responses,
		"pageInfo": pageInfo,
	})
}

// ToggleLike flips the caller's like on a post.
func (c *Controller) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	post, err := c.store.ToggleLike(ctx, postID, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Post not found")
		} else {
			log.Printf("ToggleLike: failed to toggle like: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	c.respondWithPost(ctx, w, http.StatusOK, post)
}

// CommentRequest represents the comment payload.
type CommentRequest struct {
	Text string `json:"text"`
}

// AddComment appends a comment to a post.
func (c *Controller) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("AddComment: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var input CommentRequest
	if err := json.Unmarshal(body, &input); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		Utils.SendError(w, http.StatusBadRequest, "Comment cannot be empty")
		return
	}
	if len(text) > MaxCommentLength {
		Utils.SendError(w, http.StatusBadRequest, "Comment is too long (max 500 chars)")
		return
	}

	comment := Comment{
		ID:        primitive.NewObjectID(),
		Author:    identity.UserID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	post, err := c.store.AddComment(ctx, postID, comment)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Post not found")
		} else {
			log.Printf("AddComment: failed to add comment: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	c.respondWithPost(ctx, w, http.StatusCreated, post)
}

// DeletePost removes a post. Only the author may delete it; there is no
// soft delete.
func (c *Controller) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	post, err := c.store.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Post not found")
		} else {
			log.Printf("DeletePost: failed to fetch post: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	if post.Author != identity.UserID {
		Utils.SendError(w, http.StatusForbidden, "You can only delete your own posts")
		return
	}

	if err := c.store.Delete(ctx, postID); err != nil {
		log.Printf("DeletePost: failed to delete post: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) respondWithPost(ctx context.Context, w http.ResponseWriter, status int, post *Post) {
	responses, err := c.populate(ctx, []Post{*post})
	if err != nil {
		log.Printf("respondWithPost: failed to populate post: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}
	Utils.SendJSON(w, status, responses[0])
}

func (c *Controller) populate(ctx context.Context, batch []Post) ([]Response, error) {
	summaries, err := c.users.Summaries(ctx, authorIDs(batch))
	if err != nil {
		return nil, err
	}
	responses := make([]Response, 0, len(batch))
	for i := range batch {
		responses = append(responses, buildResponse(&batch[i], summaries))
	}
	return responses, nil
}
