package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	AuthService "campusnet/Services/Auth"
	Storage "campusnet/Services/Storage"
)

// fakeStore keeps users in memory and mirrors the set semantics of the
// real store.
type fakeStore struct {
	users map[primitive.ObjectID]*User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[primitive.ObjectID]*User)}
}

func (f *fakeStore) add(user *User) *User {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) Insert(ctx context.Context, user *User) error {
	f.add(user)
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	assign := func(target *string, value *string) {
		if value != nil {
			*target = *value
		}
	}
	assign(&user.FirstName, update.FirstName)
	assign(&user.LastName, update.LastName)
	assign(&user.Status, update.Status)
	assign(&user.Bio, update.Bio)
	assign(&user.University, update.University)
	assign(&user.Major, update.Major)
	if update.ProfilePicture != nil {
		picture := *update.ProfilePicture
		user.ProfilePicture = &picture
	}
	user.UpdatedAt = time.Now().UTC()
	copied := *user
	return &copied, nil
}

func (f *fakeStore) SetProfilePicture(ctx context.Context, id primitive.ObjectID, url string) (*User, error) {
	return f.UpdateProfile(ctx, id, ProfileUpdate{ProfilePicture: &url})
}

func (f *fakeStore) Search(ctx context.Context, viewerID primitive.ObjectID, q string, limit int) ([]User, error) {
	q = strings.ToLower(q)
	var results []User
	for _, user := range f.users {
		if user.ID == viewerID {
			continue
		}
		haystack := strings.ToLower(user.FirstName + " " + user.LastName + " " + user.Email + " " + user.University + " " + user.Major)
		if q == "" || strings.Contains(haystack, q) {
			results = append(results, *user)
		}
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (f *fakeStore) SetFollow(ctx context.Context, viewerID, targetID primitive.ObjectID, follow bool) error {
	viewer, ok := f.users[viewerID]
	if !ok {
		return ErrNotFound
	}
	target, ok := f.users[targetID]
	if !ok {
		return ErrNotFound
	}
	viewer.Following = toggleMember(viewer.Following, targetID, follow)
	target.Followers = toggleMember(target.Followers, viewerID, follow)
	return nil
}

func toggleMember(set []primitive.ObjectID, id primitive.ObjectID, add bool) []primitive.ObjectID {
	filtered := set[:0]
	for _, member := range set {
		if member != id {
			filtered = append(filtered, member)
		}
	}
	if add {
		filtered = append(filtered, id)
	}
	return filtered
}

func (f *fakeStore) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Summary, error) {
	summaries := make(map[primitive.ObjectID]Summary, len(ids))
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			summaries[id] = user.Summary()
		}
	}
	return summaries, nil
}

func newTestServer(t *testing.T) (*fakeStore, *AuthService.Service, http.Handler) {
	t.Helper()
	store := newFakeStore()
	service := AuthService.New("test-secret-0123456789abcdef", time.Hour)
	uploads, err := Storage.New(t.TempDir())
	require.NoError(t, err)
	controller := NewController(store, uploads, service)

	router := chi.NewRouter()
	router.Route("/api/users", controller.Handle)
	return store, service, router
}

func authedRequest(t *testing.T, service *AuthService.Service, user *User, method, path string, payload interface{}) *http.Request {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	token, err := service.GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestToggleFollow(t *testing.T) {
	store, service, handler := newTestServer(t)
	alice := store.add(&User{FirstName: "Alice", Email: "alice@example.com", Role: "student"})
	bob := store.add(&User{FirstName: "Bob", Email: "bob@example.com", Role: "student"})

	follow := func() map[string]interface{} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, service, alice, "POST", "/api/users/"+bob.ID.Hex()+"/follow", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	first := follow()
	assert.Equal(t, true, first["isFollowing"])
	assert.Equal(t, float64(1), first["followersCount"])
	assert.Equal(t, []primitive.ObjectID{bob.ID}, store.users[alice.ID].Following)
	assert.Equal(t, []primitive.ObjectID{alice.ID}, store.users[bob.ID].Followers)

	second := follow()
	assert.Equal(t, false, second["isFollowing"])
	assert.Equal(t, float64(0), second["followersCount"])
	assert.Empty(t, store.users[alice.ID].Following)
	assert.Empty(t, store.users[bob.ID].Followers)
}

func TestToggleFollowRejectsSelf(t *testing.T) {
	store, service, handler := newTestServer(t)
	alice := store.add(&User{FirstName: "Alice", Email: "alice@example.com", Role: "student"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, service, alice, "POST", "/api/users/"+alice.ID.Hex()+"/follow", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "You cannot follow yourself")
}

func TestToggleFollowUnknownTarget(t *testing.T) {
	store, service, handler := newTestServer(t)
	alice := store.add(&User{FirstName: "Alice", Email: "alice@example.com", Role: "student"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, service, alice, "POST", "/api/users/"+primitive.NewObjectID().Hex()+"/follow", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found")
}

func TestUpdateMyProfile(t *testing.T) {
	store, service, handler := newTestServer(t)
	alice := store.add(&User{FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Role: "student"})

	t.Run("applies present fields only", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, service, alice, "PATCH", "/api/users/me", map[string]string{
			"bio":    "  Compilers and coffee ",
			"status": "studying",
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		updated := store.users[alice.ID]
		assert.Equal(t, "Compilers and coffee", updated.Bio)
		assert.Equal(t, "studying", updated.Status)
		assert.Equal(t, "Alice", updated.FirstName, "absent fields stay untouched")
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, service, alice, "PATCH", "/api/users/me", map[string]string{}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "No valid profile fields to update")
	})

	t.Run("one invalid field rejects the whole update", func(t *testing.T) {
		before := *store.users[alice.ID]
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, service, alice, "PATCH", "/api/users/me", map[string]string{
			"status": "fine",
			"bio":    strings.Repeat("x", MaxBioLength+1),
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Bio is too long")
		assert.Equal(t, before.Status, store.users[alice.ID].Status, "nothing may be written on failure")
	})

	t.Run("rejects blank first name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, service, alice, "PATCH", "/api/users/me", map[string]string{
			"firstName": "   ",
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "First name cannot be empty")
	})
}

func TestGetUserProfile(t *testing.T) {
	store, service, handler := newTestServer(t)
	alice := store.add(&User{FirstName: "Alice", Email: "alice@example.com", Role: "student"})
	bob := store.add(&User{FirstName: "Bob", Email: "bob@example.com", Role: "student"})
	require.NoError(t, store.SetFollow(context.Background(), alice.ID, bob.ID, true))

	t.Run("invalid id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/users/not-an-id", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid user id")
	})

	t.Run("anonymous viewer never follows", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/users/"+bob.ID.Hex(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			User Profile `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.User.IsFollowing)
		assert.Equal(t, 1, body.User.FollowersCount)
	})

	t.Run("authenticated viewer sees isFollowing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, service, alice, "GET", "/api/users/"+bob.ID.Hex(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			User Profile `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.User.IsFollowing)
	})
}

func TestSearchUsers(t *testing.T) {
	store, service, handler := newTestServer(t)
	alice := store.add(&User{FirstName: "Alice", Email: "alice@example.com", Role: "student", University: "MIT"})
	bob := store.add(&User{FirstName: "Bob", Email: "bob@example.com", Role: "student", University: "MIT"})
	store.add(&User{FirstName: "Carol", Email: "carol@example.com", Role: "student", University: "Stanford"})
	require.NoError(t, store.SetFollow(context.Background(), alice.ID, bob.ID, true))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, service, alice, "GET", "/api/users/search?q=mit", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Items []Profile `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1, "the viewer is excluded from results")
	assert.Equal(t, bob.ID, body.Items[0].ID)
	assert.True(t, body.Items[0].IsFollowing)
}
