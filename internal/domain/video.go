// internal/domain/video.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category classifies a video. Unknown values are rejected at admission.
type Category string

const (
	CategoryGaming        Category = "gaming"
	CategoryMusic         Category = "music"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryOther         Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryGaming,
	CategoryMusic,
	CategoryEducation,
	CategoryEntertainment,
	CategorySports,
	CategoryOther,
}

// ParseCategory maps a raw form value to a Category. An empty value maps to
// CategoryOther; anything not in Categories reports ok == false.
func ParseCategory(raw string) (Category, bool) {
	if raw == "" {
		return CategoryOther, true
	}
	for _, c := range Categories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

// DefaultDescription is stored when the uploader leaves the description blank.
const DefaultDescription = "No description provided"

// Video is the canonical record of an uploaded asset. It is only ever created
// after the remote object exists, so URL, ThumbnailURL and PublicID are never empty.
type Video struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title        string               `bson:"title" json:"title"`
	Description  string               `bson:"description" json:"description"`
	Category     Category             `bson:"category" json:"category"`
	URL          string               `bson:"url" json:"url"`
	ThumbnailURL string               `bson:"thumbnail" json:"thumbnail"`
	PublicID     string               `bson:"publicId" json:"publicId"`
	SourceKey    string               `bson:"sourceKey" json:"-"`
	Duration     float64              `bson:"duration" json:"duration"`
	Width        int                  `bson:"width,omitempty" json:"width,omitempty"`
	Height       int                  `bson:"height,omitempty" json:"height,omitempty"`
	Format       string               `bson:"format,omitempty" json:"format,omitempty"`
	Size         int64                `bson:"size,omitempty" json:"size,omitempty"`
	OwnerID      primitive.ObjectID   `bson:"userId" json:"userId"`
	Views        int64                `bson:"views" json:"views"`
	LikedBy      []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments     []Comment            `bson:"comments" json:"comments"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Comment is an entry in a video's append-only (remove by author) comment list.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	AuthorID  primitive.ObjectID `bson:"userId" json:"userId"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// MaxCommentLength bounds comment text, in runes.
const MaxCommentLength = 1000

// IsLikedBy reports whether userID is in LikedBy.
func (v *Video) IsLikedBy(userID primitive.ObjectID) bool {
	for _, id := range v.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOwnedBy reports whether userID uploaded the video.
func (v *Video) IsOwnedBy(userID primitive.ObjectID) bool {
	return v.OwnerID == userID
}
