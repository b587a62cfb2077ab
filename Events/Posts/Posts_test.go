package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
	AuthService "campusnet/Services/Auth"
	Utils "campusnet/Utils"
)

// fakeStore keeps posts in memory with the same ordering and cursor
// semantics as the real store.
type fakeStore struct {
	posts map[primitive.ObjectID]*Post
}

func newFakeStore() *fakeStore {
	return &fakeStore{posts: make(map[primitive.ObjectID]*Post)}
}

func (f *fakeStore) Insert(ctx context.Context, post *Post) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	post.UpdatedAt = post.CreatedAt
	post.normalize()
	copied := *post
	f.posts[post.ID] = &copied
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *post
	return &copied, nil
}

func (f *fakeStore) FindPage(ctx context.Context, authors []primitive.ObjectID, before *time.Time, limit int) ([]Post, error) {
	allowed := make(map[primitive.ObjectID]bool, len(authors))
	for _, id := range authors {
		allowed[id] = true
	}

	var results []Post
	for _, post := range f.posts {
		if !allowed[post.Author] {
			continue
		}
		if before != nil && !post.CreatedAt.Before(*before) {
			continue
		}
		results = append(results, *post)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeStore) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	liked := false
	filtered := post.Likes[:0]
	for _, id := range post.Likes {
		if id == userID {
			liked = true
			continue
		}
		filtered = append(filtered, id)
	}
	post.Likes = filtered
	if !liked {
		post.Likes = append(post.Likes, userID)
	}
	copied := *post
	return &copied, nil
}

func (f *fakeStore) AddComment(ctx context.Context, postID primitive.ObjectID, comment Comment) (*Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	post.Comments = append(post.Comments, comment)
	post.UpdatedAt = time.Now().UTC()
	copied := *post
	return &copied, nil
}

func (f *fakeStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	delete(f.posts, id)
	return nil
}

// fakeDirectory satisfies UserDirectory over a fixed user set.
type fakeDirectory struct {
	users map[primitive.ObjectID]*Users.User
}

func (f *fakeDirectory) FindByID(ctx context.Context, id primitive.ObjectID) (*Users.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, Users.ErrNotFound
	}
	return user, nil
}

func (f *fakeDirectory) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Users.Summary, error) {
	summaries := make(map[primitive.ObjectID]Users.Summary, len(ids))
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			summaries[id] = user.Summary()
		}
	}
	return summaries, nil
}

type testEnv struct {
	store   *fakeStore
	users   *fakeDirectory
	service *AuthService.Service
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	directory := &fakeDirectory{users: make(map[primitive.ObjectID]*Users.User)}
	service := AuthService.New("test-secret-0123456789abcdef", time.Hour)
	controller := NewController(store, directory, service)

	router := chi.NewRouter()
	router.Route("/api/posts", controller.Handle)
	return &testEnv{store: store, users: directory, service: service, handler: router}
}

func (env *testEnv) addUser(firstName string) *Users.User {
	user := &Users.User{
		ID:        primitive.NewObjectID(),
		FirstName: firstName,
		Role:      "student",
		Followers: []primitive.ObjectID{},
		Following: []primitive.ObjectID{},
	}
	env.users.users[user.ID] = user
	return user
}

func (env *testEnv) do(t *testing.T, user *Users.User, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	token, err := env.service.GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")

	rec := env.do(t, alice, "POST", "/api/posts/", map[string]string{
		"content": "  hello campus  ",
		"author":  primitive.NewObjectID().Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello campus", body.Content)
	assert.Equal(t, alice.ID, body.Author.ID, "author comes from the token, never the payload")
	assert.NotNil(t, body.Likes)
	assert.NotNil(t, body.Comments)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")

	t.Run("empty content", func(t *testing.T) {
		rec := env.do(t, alice, "POST", "/api/posts/", map[string]string{"content": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Post content is required")
	})

	t.Run("content too long", func(t *testing.T) {
		rec := env.do(t, alice, "POST", "/api/posts/", map[string]string{
			"content": strings.Repeat("x", MaxContentLength+1),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Post content is too long (max 1000 chars)")
	})
}

func TestToggleLikeInvolution(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")
	bob := env.addUser("Bob")

	post := &Post{Author: alice.ID, Content: "likeable"}
	require.NoError(t, env.store.Insert(context.Background(), post))

	path := "/api/posts/" + post.ID.Hex() + "/like"

	first := env.do(t, bob, "POST", path, nil)
	require.Equal(t, http.StatusOK, first.Code)
	var liked Response
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &liked))
	assert.Equal(t, []primitive.ObjectID{bob.ID}, liked.Likes)

	second := env.do(t, bob, "POST", path, nil)
	require.Equal(t, http.StatusOK, second.Code)
	var unliked Response
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &unliked))
	assert.Empty(t, unliked.Likes, "a second toggle restores the original state")
}

func TestToggleLikeUnknownPost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")

	rec := env.do(t, alice, "POST", "/api/posts/"+primitive.NewObjectID().Hex()+"/like", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post not found")
}

func TestAddComment(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")
	bob := env.addUser("Bob")

	post := &Post{Author: alice.ID, Content: "discuss"}
	require.NoError(t, env.store.Insert(context.Background(), post))

	rec := env.do(t, bob, "POST", "/api/posts/"+post.ID.Hex()+"/comment", map[string]string{"text": "nice one"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "nice one", body.Comments[0].Text)
	assert.Equal(t, bob.ID, body.Comments[0].Author.ID)
	assert.False(t, body.Comments[0].ID.IsZero(), "comments carry their own ids")

	t.Run("too long", func(t *testing.T) {
		rec := env.do(t, bob, "POST", "/api/posts/"+post.ID.Hex()+"/comment", map[string]string{
			"text": strings.Repeat("x", MaxCommentLength+1),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Comment is too long (max 500 chars)")
	})
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")
	bob := env.addUser("Bob")

	post := &Post{Author: alice.ID, Content: "mine"}
	require.NoError(t, env.store.Insert(context.Background(), post))

	t.Run("non-author is forbidden", func(t *testing.T) {
		rec := env.do(t, bob, "DELETE", "/api/posts/"+post.ID.Hex(), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "You can only delete your own posts")
	})

	t.Run("author deletes with empty 204", func(t *testing.T) {
		rec := env.do(t, alice, "DELETE", "/api/posts/"+post.ID.Hex(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.Bytes())

		again := env.do(t, alice, "DELETE", "/api/posts/"+post.ID.Hex(), nil)
		assert.Equal(t, http.StatusNotFound, again.Code)
	})
}

func TestFeedPagination(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")
	bob := env.addUser("Bob")
	carol := env.addUser("Carol")
	alice.Following = []primitive.ObjectID{bob.ID}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		author := alice.ID
		if i%2 == 0 {
			author = bob.ID
		}
		post := &Post{Author: author, Content: fmt.Sprintf("post %d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, env.store.Insert(context.Background(), post))
	}
	// Not followed, must never appear in the feed.
	require.NoError(t, env.store.Insert(context.Background(), &Post{
		Author: carol.ID, Content: "invisible", CreatedAt: base.Add(time.Hour),
	}))

	type page struct {
		Items    []Response     `json:"items"`
		PageInfo Utils.PageInfo `json:"pageInfo"`
	}

	fetch := func(path string) page {
		rec := env.do(t, alice, "GET", path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body page
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	first := fetch("/api/posts/feed?limit=3")
	require.Len(t, first.Items, 3)
	assert.True(t, first.PageInfo.HasMore)
	require.NotNil(t, first.PageInfo.NextCursor)
	assert.Equal(t, "post 4", first.Items[0].Content, "newest first")

	second := fetch("/api/posts/feed?limit=3&cursor=" + *first.PageInfo.NextCursor)
	require.Len(t, second.Items, 2)
	assert.False(t, second.PageInfo.HasMore)
	assert.Nil(t, second.PageInfo.NextCursor)

	seen := make(map[primitive.ObjectID]bool)
	for _, item := range append(first.Items, second.Items...) {
		assert.False(t, seen[item.ID], "pages must not overlap")
		seen[item.ID] = true
		assert.NotEqual(t, carol.ID, item.Author.ID)
	}
	assert.Len(t, seen, 5, "pages must not leave gaps")
}

func TestGetUserPostsInvalidID(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser("Alice")

	rec := env.do(t, alice, "GET", "/api/posts/user/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid user id")
}
