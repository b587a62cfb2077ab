package stories

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
	AuthService "campusnet/Services/Auth"
	Utils "campusnet/Utils"
)

// UserDirectory is the slice of the users store the stories controller
// needs for author checks and population.
type UserDirectory interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*Users.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Users.Summary, error)
}

// Controller serves the ephemeral-story endpoints.
type Controller struct {
	store Store
	users UserDirectory
	auth  *AuthService.Service
}

func NewController(store Store, users UserDirectory, auth *AuthService.Service) *Controller {
	return &Controller{store: store, users: users, auth: auth}
}

// Handle sets up the routes for story endpoints.
func (c *Controller) Handle(r chi.Router) {
	r.Use(c.auth.RequireAuth)
	r.Get("/", c.GetActiveStories)
	r.Post("/", c.CreateStory)
	r.Get("/user/{id}", c.GetUserStories)
	r.Post("/{id}/view", c.MarkStoryViewed)
	r.Delete("/{id}", c.DeleteStory)
}

// CreateStoryRequest represents the story creation payload.
type CreateStoryRequest struct {
	Content string `json:"content"`
	Image   string `json:"image"`
}

// CreateStory stores a new story that expires 24 hours after creation.
func (c *Controller) CreateStory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("CreateStory: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var input CreateStoryRequest
	if err := json.Unmarshal(body, &input); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(input.Content)
	var image *string
	if trimmed := strings.TrimSpace(input.Image); trimmed != "" {
		image = &trimmed
	}

	if content == "" && image == nil {
		Utils.SendError(w, http.StatusBadRequest, "Story must contain text or image")
		return
	}
	if len(content) > MaxContentLength {
		Utils.SendError(w, http.StatusBadRequest, "Story text is too long (max 220 chars)")
		return
	}
	if image != nil && len(*image) > MaxImageLength {
		Utils.SendError(w, http.StatusBadRequest, "Image URL is too long")
		return
	}

	if _, err := c.users.FindByID(ctx, identity.UserID); err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Author not found")
		} else {
			log.Printf("CreateStory: failed to fetch author: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	story := &Story{Author: identity.UserID, Content: content, Image: image}
	if err := c.store.Insert(ctx, story); err != nil {
		log.Printf("CreateStory: failed to insert story: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	c.respondWithStory(ctx, w, http.StatusCreated, story, identity.UserID)
}

// GetActiveStories lists every unexpired story, newest first, annotated
// with whether the caller has viewed each one.
func (c *Controller) GetActiveStories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := Utils.ParseLimit(r.URL.Query().Get("limit"), DefaultListLimit, MaxListLimit)

	results, err := c.store.FindActive(ctx, limit)
	if err != nil {
		log.Printf("GetActiveStories: failed to fetch stories: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	c.respondWithItems(ctx, w, results, identity.UserID)
}

// GetUserStories lists one author's unexpired stories without a limit cap.
func (c *Controller) GetUserStories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	authorID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	results, err := c.store.FindActiveByAuthor(ctx, authorID)
	if err != nil {
		log.Printf("GetUserStories: failed to fetch stories: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	c.respondWithItems(ctx, w, results, identity.UserID)
}

// MarkStoryViewed records that the caller has seen a story. Marking is
// idempotent; an expired or missing story yields 404.
func (c *Controller) MarkStoryViewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid story id")
		return
	}

	story, err := c.store.MarkViewed(ctx, storyID, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Story not found or expired")
		} else {
			log.Printf("MarkStoryViewed: failed to mark story viewed: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	c.respondWithStory(ctx, w, http.StatusOK, story, identity.UserID)
}

// DeleteStory removes a story. Only the author may delete it.
func (c *Controller) DeleteStory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	storyID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid story id")
		return
	}

	story, err := c.store.FindByID(ctx, storyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "Story not found")
		} else {
			log.Printf("DeleteStory: failed to fetch story: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	if story.Author != identity.UserID {
		Utils.SendError(w, http.StatusForbidden, "You can only delete your own stories")
		return
	}

	if err := c.store.Delete(ctx, storyID); err != nil {
		log.Printf("DeleteStory: failed to delete story: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) respondWithStory(ctx context.Context, w http.ResponseWriter, status int, story *Story, viewerID primitive.ObjectID) {
	summaries, err := c.users.Summaries(ctx, []primitive.ObjectID{story.Author})
	if err != nil {
		log.Printf("respondWithStory: failed to populate author: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}
	Utils.SendJSON(w, status, map[string]interface{}{
		"story": buildResponse(story, viewerID, summaries),
	})
}

func (c *Controller) respondWithItems(ctx context.Context, w http.ResponseWriter, results []Story, viewerID primitive.ObjectID) {
	ids := make([]primitive.ObjectID, 0, len(results))
	seen := make(map[primitive.ObjectID]bool)
	for i := range results {
		if !seen[results[i].Author] {
			seen[results[i].Author] = true
			ids = append(ids, results[i].Author)
		}
	}

	summaries, err := c.users.Summaries(ctx, ids)
	if err != nil {
		log.Printf("GetActiveStories: failed to populate authors: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	items := make([]Response, 0, len(results))
	for i := range results {
		items = append(items, buildResponse(&results[i], viewerID, summaries))
	}
	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}
