package users

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the stored user document. The password hash never leaves the
// server: it is excluded from every JSON response.
type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	FirstName      string               `bson:"firstName" json:"firstName"`
	LastName       string               `bson:"lastName" json:"lastName"`
	Email          string               `bson:"email" json:"email"`
	Role           string               `bson:"role" json:"role"`
	Password       string               `bson:"password" json:"-"`
	ProfilePicture *string              `bson:"profilePicture" json:"profilePicture"`
	Status         string               `bson:"status" json:"status"`
	Bio            string               `bson:"bio" json:"bio"`
	University     string               `bson:"university" json:"university"`
	Major          string               `bson:"major" json:"major"`
	Followers      []primitive.ObjectID `bson:"followers" json:"followers"`
	Following      []primitive.ObjectID `bson:"following" json:"following"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Summary is the public subset embedded wherever a user reference is
// populated in a response.
type Summary struct {
	ID             primitive.ObjectID `bson:"_id" json:"_id"`
	FirstName      string             `bson:"firstName" json:"firstName"`
	LastName       string             `bson:"lastName" json:"lastName"`
	ProfilePicture *string            `bson:"profilePicture" json:"profilePicture"`
	Status         string             `bson:"status" json:"status"`
}

// Profile is a user plus the social-graph annotations every profile read
// carries.
type Profile struct {
	User
	FollowersCount int  `json:"followersCount"`
	FollowingCount int  `json:"followingCount"`
	IsFollowing    bool `json:"isFollowing"`
}

// Summary returns the populated-reference view of the user.
func (u *User) Summary() Summary {
	return Summary{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
		Status:         u.Status,
	}
}

// BuildProfile annotates a user with follower counts and whether the viewer
// follows them. A nil viewer (unauthenticated read) never follows anyone.
func BuildProfile(viewerID *primitive.ObjectID, u *User) Profile {
	isFollowing := false
	if viewerID != nil {
		for _, id := range u.Followers {
			if id == *viewerID {
				isFollowing = true
				break
			}
		}
	}
	return Profile{
		User:           *u,
		FollowersCount: len(u.Followers),
		FollowingCount: len(u.Following),
		IsFollowing:    isFollowing,
	}
}

func (u *User) normalize() {
	if u.Followers == nil {
		u.Followers = []primitive.ObjectID{}
	}
	if u.Following == nil {
		u.Following = []primitive.ObjectID{}
	}
}
