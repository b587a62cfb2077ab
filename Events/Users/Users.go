package users

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	AuthService "campusnet/Services/Auth"
	Storage "campusnet/Services/Storage"
	Utils "campusnet/Utils"
)

// Controller serves the user profile and social-graph endpoints.
type Controller struct {
	store   Store
	storage *Storage.Storage
	auth    *AuthService.Service
}

func NewController(store Store, storage *Storage.Storage, auth *AuthService.Service) *Controller {
	return &Controller{store: store, storage: storage, auth: auth}
}

// Handle sets up the routes for user endpoints.
func (c *Controller) Handle(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(c.auth.RequireAuth)
		r.Get("/me", c.GetMyProfile)
		r.Patch("/me", c.UpdateMyProfile)
		r.Post("/me/photo", c.UploadMyPhoto)
		r.Get("/search", c.SearchUsers)
		r.Post("/{id}/follow", c.ToggleFollow)
	})
	r.Group(func(r chi.Router) {
		// Profiles are readable without a token; a token only adds the
		// viewer-relative isFollowing flag.
		r.Use(c.auth.OptionalAuth)
		r.Get("/{id}", c.GetUserProfile)
	})
}

// GetMyProfile retrieves the authenticated user's own profile.
func (c *Controller) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := c.store.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("GetMyProfile: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"user": BuildProfile(&identity.UserID, user),
	})
}

// UpdateMyProfile applies an allow-listed profile update. The whole payload
// is validated before anything is written; there are no partial updates.
func (c *Controller) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("UpdateMyProfile: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var update ProfileUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.isEmpty() {
		Utils.SendError(w, http.StatusBadRequest, "No valid profile fields to update")
		return
	}
	if err := SanitizeProfileUpdate(&update); err != nil {
		Utils.SendError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.store.UpdateProfile(ctx, identity.UserID, update)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("UpdateMyProfile: failed to update user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"user": BuildProfile(&identity.UserID, user),
	})
}

// UploadMyPhoto stores an uploaded profile photo and points profilePicture
// at its public URL. The previous photo is unlinked best-effort when it
// lived in the uploads directory.
func (c *Controller) UploadMyPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, Storage.MaxPhotoBytes+64*1024)
	if err := r.ParseMultipartForm(Storage.MaxPhotoBytes); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Image must be less than 2MB")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Photo file is required")
		return
	}
	defer file.Close()

	if header.Size > Storage.MaxPhotoBytes {
		Utils.SendError(w, http.StatusBadRequest, "Image must be less than 2MB")
		return
	}

	user, err := c.store.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("UploadMyPhoto: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	filename, err := c.storage.SavePhoto(file, header)
	if err != nil {
		if errors.Is(err, Storage.ErrNotAnImage) {
			Utils.SendError(w, http.StatusBadRequest, err.Error())
		} else {
			log.Printf("UploadMyPhoto: failed to save photo: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	previous := ""
	if user.ProfilePicture != nil {
		previous = Storage.ExtractUploadFilename(*user.ProfilePicture)
	}

	updated, err := c.store.SetProfilePicture(ctx, identity.UserID, Storage.PublicURL(r, filename))
	if err != nil {
		log.Printf("UploadMyPhoto: failed to update profile picture: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if err := c.storage.Remove(previous); err != nil {
		log.Printf("UploadMyPhoto: failed to delete previous photo: %v", err)
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"user": BuildProfile(&identity.UserID, updated),
	})
}

// GetUserProfile retrieves a public profile by id.
func (c *Controller) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	user, err := c.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("GetUserProfile: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	var viewerID *primitive.ObjectID
	if identity, ok := AuthService.IdentityFrom(ctx); ok {
		viewerID = &identity.UserID
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"user": BuildProfile(viewerID, user),
	})
}

// SearchUsers runs a case-insensitive substring search over names, email,
// university, and major. Without a query it lists everyone except the
// viewer.
func (c *Controller) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := Utils.ParseLimit(r.URL.Query().Get("limit"), DefaultSearchLimit, MaxSearchLimit)
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	viewer, err := c.store.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("SearchUsers: failed to fetch viewer: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	results, err := c.store.Search(ctx, identity.UserID, q, limit)
	if err != nil {
		log.Printf("SearchUsers: failed to search users: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	followingSet := make(map[primitive.ObjectID]bool, len(viewer.Following))
	for _, id := range viewer.Following {
		followingSet[id] = true
	}

	items := make([]Profile, 0, len(results))
	for i := range results {
		user := &results[i]
		items = append(items, Profile{
			User:           *user,
			FollowersCount: len(user.Followers),
			FollowingCount: len(user.Following),
			IsFollowing:    followingSet[user.ID],
		})
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// ToggleFollow flips the follow relation between the viewer and the target.
// Both sides of the relation are updated as a pair; the toggle is
// idempotent in each direction.
func (c *Controller) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		Utils.SendError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if targetID == identity.UserID {
		Utils.SendError(w, http.StatusBadRequest, "You cannot follow yourself")
		return
	}

	viewer, err := c.store.FindByID(ctx, identity.UserID)
	if err == nil {
		_, err = c.store.FindByID(ctx, targetID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("ToggleFollow: failed to fetch users: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	alreadyFollowing := false
	for _, id := range viewer.Following {
		if id == targetID {
			alreadyFollowing = true
			break
		}
	}

	if err := c.store.SetFollow(ctx, identity.UserID, targetID, !alreadyFollowing); err != nil {
		log.Printf("ToggleFollow: failed to toggle follow: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	refreshed, err := c.store.FindByID(ctx, targetID)
	if err != nil {
		log.Printf("ToggleFollow: failed to refetch target: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"isFollowing":    !alreadyFollowing,
		"followersCount": len(refreshed.Followers),
	})
}
