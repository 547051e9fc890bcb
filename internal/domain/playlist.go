package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxPlaylistNameLength        = 100
	MaxPlaylistDescriptionLength = 500
)

// Playlist is an ordered, owner-curated list of videos.
type Playlist struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	OwnerID     primitive.ObjectID `bson:"userId" json:"userId"`
	Videos      []PlaylistEntry    `bson:"videos" json:"videos"`
	IsPublic    bool               `bson:"isPublic" json:"isPublic"`
	Thumbnail   string             `bson:"thumbnail" json:"thumbnail"`
	Tags        []string           `bson:"tags" json:"tags"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PlaylistEntry records when a video was added.
type PlaylistEntry struct {
	VideoID primitive.ObjectID `bson:"videoId" json:"videoId"`
	AddedAt time.Time          `bson:"addedAt" json:"addedAt"`
}

// Contains reports whether videoID is already in the playlist.
func (p *Playlist) Contains(videoID primitive.ObjectID) bool {
	for _, e := range p.Videos {
		if e.VideoID == videoID {
			return true
		}
	}
	return false
}

func (p *Playlist) IsOwnedBy(userID primitive.ObjectID) bool {
	return p.OwnerID == userID
}
