package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxBioLength bounds a profile bio, in runes.
const MaxBioLength = 500

// SocialLinks are the profile links a user may publish.
type SocialLinks struct {
	YouTube   string `bson:"youtube,omitempty" json:"youtube,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
	Website   string `bson:"website,omitempty" json:"website,omitempty"`
}

// SocialLinkKeys lists the accepted keys of a socialLinks object.
var SocialLinkKeys = []string{"youtube", "twitter", "instagram", "website"}

// User is an account that can upload, like and comment on videos.
type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username       string               `bson:"username" json:"username"`
	Email          string               `bson:"email" json:"email"`    // Should be unique
	PasswordHash   string               `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Bio            string               `bson:"bio" json:"bio"`
	ProfilePicture string               `bson:"profilePicture" json:"profilePicture"`
	Subscribers    int64                `bson:"subscribers" json:"subscribers"`
	SubscribedTo   []primitive.ObjectID `bson:"subscribedTo" json:"subscribedTo"`
	WatchLater     []primitive.ObjectID `bson:"watchLater" json:"watchLater"`
	SocialLinks    SocialLinks          `bson:"socialLinks" json:"socialLinks"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// PublicUser is the profile other users may see: no email, no lists.
type PublicUser struct {
	ID             primitive.ObjectID `json:"id"`
	Username       string             `json:"username"`
	Bio            string             `json:"bio"`
	ProfilePicture string             `json:"profilePicture"`
	Subscribers    int64              `json:"subscribers"`
	SocialLinks    SocialLinks        `json:"socialLinks"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
		Subscribers:    u.Subscribers,
		SocialLinks:    u.SocialLinks,
		CreatedAt:      u.CreatedAt,
	}
}

// IsSubscribedTo reports whether channelID is in SubscribedTo.
func (u *User) IsSubscribedTo(channelID primitive.ObjectID) bool {
	return containsID(u.SubscribedTo, channelID)
}

// HasInWatchLater reports whether videoID is in WatchLater.
func (u *User) HasInWatchLater(videoID primitive.ObjectID) bool {
	return containsID(u.WatchLater, videoID)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
