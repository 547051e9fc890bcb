package repository

import (
	"alcyxob/navistream/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrInvalidInput = RepositoryError("invalid input")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// VideoSort selects the ordering used by VideoRepository.List.
type VideoSort string

const (
	SortNewest     VideoSort = "newest"
	SortOldest     VideoSort = "oldest"
	SortMostViewed VideoSort = "mostViewed"
	SortMostLiked  VideoSort = "mostLiked"
	SortTrending   VideoSort = "trending" // views desc, then likes desc
)

// VideoFilter narrows a video listing. Zero values mean "no constraint".
type VideoFilter struct {
	Category domain.Category
	OwnerID  primitive.ObjectID
	LikedBy  primitive.ObjectID
	// Query matches title or description, case-insensitively, as a literal substring.
	Query string
	// IDs restricts the listing to these videos.
	IDs   []primitive.ObjectID
	Sort  VideoSort
	Limit int64
}

// VideoUpdate carries the owner-editable fields; nil pointers are left untouched.
type VideoUpdate struct {
	Title       *string
	Description *string
	Category    *domain.Category
}

// ProfileUpdate carries the user-editable profile fields. SocialLinks is
// merged key by key into the stored links; keys are domain.SocialLinkKeys.
type ProfileUpdate struct {
	Username    *string
	Bio         *string
	SocialLinks map[string]string
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// UpdateProfile returns ErrDuplicate when the new username is taken.
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*domain.User, error)

	// ToggleSubscription flips channelID in the user's subscribedTo set and
	// reports the resulting state.
	ToggleSubscription(ctx context.Context, id, channelID primitive.ObjectID) (subscribed bool, err error)
	// AddSubscribers adjusts a channel's subscriber count by delta and returns the new count.
	AddSubscribers(ctx context.Context, id primitive.ObjectID, delta int64) (int64, error)
	// ToggleWatchLater flips videoID in the user's watch-later list and returns the list.
	ToggleWatchLater(ctx context.Context, id, videoID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// PlaylistRepository stores playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *domain.Playlist) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Playlist, error)
	// ListByOwner returns the owner's playlists, newest first.
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Playlist, error)
	// AddVideo appends entry to an owner's playlist. It returns ErrDuplicate
	// when the video is already present and ErrNotFound when the playlist
	// does not exist or belongs to someone else.
	AddVideo(ctx context.Context, id, ownerID primitive.ObjectID, entry domain.PlaylistEntry) error
}

// VideoRepository defines the interface for interacting with video records.
// Every mutating call is a single atomic document update keyed by id.
type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Video, error)
	List(ctx context.Context, filter VideoFilter) ([]domain.Video, error)
	ExistsByPublicID(ctx context.Context, publicID string) (bool, error)
	Update(ctx context.Context, id, ownerID primitive.ObjectID, update VideoUpdate) (*domain.Video, error)
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error

	IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, error)
	// ToggleLike adds userID to the like set if absent, removes it otherwise,
	// and returns the resulting state.
	ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (liked bool, likes int, err error)
	AddComment(ctx context.Context, id primitive.ObjectID, comment domain.Comment) error
	// RemoveComment deletes the comment only when authorID wrote it.
	RemoveComment(ctx context.Context, id, commentID, authorID primitive.ObjectID) error
}
