package posts

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
)

// Validation limits for post content.
const (
	MaxContentLength = 1000
	MaxImageLength   = 2048
	MaxCommentLength = 500

	DefaultFeedLimit = 20
	MaxFeedLimit     = 50
)

// Post is the stored post document. Likes are a user-id set; comments keep
// insertion order.
type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	Author    primitive.ObjectID   `bson:"author"`
	Content   string               `bson:"content"`
	Image     *string              `bson:"image"`
	Likes     []primitive.ObjectID `bson:"likes"`
	Comments  []Comment            `bson:"comments"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id"`
	Author    primitive.ObjectID `bson:"author"`
	Text      string             `bson:"text"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Response is the wire shape of a post with author references populated.
type Response struct {
	ID        primitive.ObjectID   `json:"_id"`
	Author    Users.Summary        `json:"author"`
	Content   string               `json:"content"`
	Image     *string              `json:"image"`
	Likes     []primitive.ObjectID `json:"likes"`
	Comments  []CommentResponse    `json:"comments"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type CommentResponse struct {
	ID        primitive.ObjectID `json:"_id"`
	Author    Users.Summary      `json:"author"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (p *Post) normalize() {
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

// buildResponse maps a stored post onto the wire shape using the given
// summary lookup.
func buildResponse(p *Post, summaries map[primitive.ObjectID]Users.Summary) Response {
	comments := make([]CommentResponse, 0, len(p.Comments))
	for _, comment := range p.Comments {
		comments = append(comments, CommentResponse{
			ID:        comment.ID,
			Author:    summaries[comment.Author],
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		})
	}
	return Response{
		ID:        p.ID,
		Author:    summaries[p.Author],
		Content:   p.Content,
		Image:     p.Image,
		Likes:     p.Likes,
		Comments:  comments,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// authorIDs collects every user id a batch of posts references, post
// authors and comment authors alike.
func authorIDs(batch []Post) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for i := range batch {
		add(batch[i].Author)
		for _, comment := range batch[i].Comments {
			add(comment.Author)
		}
	}
	return ids
}
