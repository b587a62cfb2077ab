package stories

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
)

// Validation limits for stories.
const (
	MaxContentLength = 220
	MaxImageLength   = 2048

	DefaultListLimit = 40
	MaxListLimit     = 100

	Lifetime = 24 * time.Hour
)

// Story is the stored story document. Stories expire Lifetime after
// creation; the TTL index removes them physically, reads filter on
// expiresAt.
type Story struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	Author    primitive.ObjectID   `bson:"author"`
	Content   string               `bson:"content"`
	Image     *string              `bson:"image"`
	Viewers   []primitive.ObjectID `bson:"viewers"`
	ExpiresAt time.Time            `bson:"expiresAt"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

// Response is the wire shape of a story annotated for the viewer.
type Response struct {
	ID           primitive.ObjectID   `json:"_id"`
	Author       Users.Summary        `json:"author"`
	Content      string               `json:"content"`
	Image        *string              `json:"image"`
	Viewers      []primitive.ObjectID `json:"viewers"`
	ExpiresAt    time.Time            `json:"expiresAt"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Viewed       bool                 `json:"viewed"`
	ViewersCount int                  `json:"viewersCount"`
}

func (s *Story) normalize() {
	if s.Viewers == nil {
		s.Viewers = []primitive.ObjectID{}
	}
}

func buildResponse(s *Story, viewerID primitive.ObjectID, summaries map[primitive.ObjectID]Users.Summary) Response {
	viewed := false
	for _, id := range s.Viewers {
		if id == viewerID {
			viewed = true
			break
		}
	}
	return Response{
		ID:           s.ID,
		Author:       summaries[s.Author],
		Content:      s.Content,
		Image:        s.Image,
		Viewers:      s.Viewers,
		ExpiresAt:    s.ExpiresAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Viewed:       viewed,
		ViewersCount: len(s.Viewers),
	}
}
