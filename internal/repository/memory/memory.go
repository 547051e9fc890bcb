// Package memory provides process-local repositories for development mode and tests.
package memory

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VideoRepository is a mutex-guarded map of videos. Returned values are copies.
type VideoRepository struct {
	mu     sync.RWMutex
	videos map[primitive.ObjectID]*domain.Video

	// FailCreate, when set, is returned by Create.
	FailCreate error
}

var _ repository.VideoRepository = (*VideoRepository)(nil)

// NewVideoRepository returns an empty repository.
func NewVideoRepository() *VideoRepository {
	return &VideoRepository{videos: make(map[primitive.ObjectID]*domain.Video)}
}

func (r *VideoRepository) Create(_ context.Context, video *domain.Video) (primitive.ObjectID, error) {
	if r.FailCreate != nil {
		return primitive.NilObjectID, r.FailCreate
	}
	if video.OwnerID == primitive.NilObjectID || video.URL == "" || video.ThumbnailURL == "" || video.PublicID == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.videos {
		if v.PublicID == video.PublicID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}

	video.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	if video.LikedBy == nil {
		video.LikedBy = []primitive.ObjectID{}
	}
	if video.Comments == nil {
		video.Comments = []domain.Comment{}
	}
	r.videos[video.ID] = clone(video)
	return video.ID, nil
}

func (r *VideoRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(v), nil
}

func (r *VideoRepository) List(_ context.Context, filter repository.VideoFilter) ([]domain.Video, error) {
	r.mu.RLock()
	out := []domain.Video{}
	for _, v := range r.videos {
		if filter.Category != "" && v.Category != filter.Category {
			continue
		}
		if filter.OwnerID != primitive.NilObjectID && v.OwnerID != filter.OwnerID {
			continue
		}
		if filter.LikedBy != primitive.NilObjectID && !v.IsLikedBy(filter.LikedBy) {
			continue
		}
		if filter.Query != "" && !matchesQuery(v, filter.Query) {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, v.ID) {
			continue
		}
		out = append(out, *clone(v))
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.Sort {
		case repository.SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case repository.SortMostViewed:
			return a.Views > b.Views
		case repository.SortMostLiked:
			return len(a.LikedBy) > len(b.LikedBy)
		case repository.SortTrending:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
			return len(a.LikedBy) > len(b.LikedBy)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	limit := int(filter.Limit)
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *VideoRepository) ExistsByPublicID(_ context.Context, publicID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.videos {
		if v.PublicID == publicID {
			return true, nil
		}
	}
	return false, nil
}

func (r *VideoRepository) Update(_ context.Context, id, ownerID primitive.ObjectID, update repository.VideoUpdate) (*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok || v.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	if update.Title != nil {
		v.Title = *update.Title
	}
	if update.Description != nil {
		v.Description = *update.Description
	}
	if update.Category != nil {
		v.Category = *update.Category
	}
	v.UpdatedAt = time.Now().UTC()
	return clone(v), nil
}

func (r *VideoRepository) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok || v.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.videos, id)
	return nil
}

func (r *VideoRepository) IncrementViews(_ context.Context, id primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	v.Views++
	return v.Views, nil
}

func (r *VideoRepository) ToggleLike(_ context.Context, id, userID primitive.ObjectID) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return false, 0, repository.ErrNotFound
	}
	for i, liker := range v.LikedBy {
		if liker == userID {
			v.LikedBy = append(v.LikedBy[:i:i], v.LikedBy[i+1:]...)
			return false, len(v.LikedBy), nil
		}
	}
	v.LikedBy = append(v.LikedBy, userID)
	return true, len(v.LikedBy), nil
}

func (r *VideoRepository) AddComment(_ context.Context, id primitive.ObjectID, comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return repository.ErrNotFound
	}
	v.Comments = append(v.Comments, comment)
	return nil
}

func (r *VideoRepository) RemoveComment(_ context.Context, id, commentID, authorID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return repository.ErrNotFound
	}
	for i, c := range v.Comments {
		if c.ID == commentID && c.AuthorID == authorID {
			v.Comments = append(v.Comments[:i:i], v.Comments[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// Len returns the number of stored videos.
func (r *VideoRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.videos)
}

func matchesQuery(v *domain.Video, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(v.Title), q) || strings.Contains(strings.ToLower(v.Description), q)
}

func clone(v *domain.Video) *domain.Video {
	c := *v
	c.LikedBy = append([]primitive.ObjectID{}, v.LikedBy...)
	c.Comments = append([]domain.Comment{}, v.Comments...)
	return &c
}

// UserRepository keeps users keyed by id with a lower-cased email index.
type UserRepository struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]domain.User
	byEmail map[string]primitive.ObjectID
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[primitive.ObjectID]domain.User),
		byEmail: make(map[string]primitive.ObjectID),
	}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Username == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	email := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = email
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SubscribedTo == nil {
		user.SubscribedTo = []primitive.ObjectID{}
	}
	if user.WatchLater == nil {
		user.WatchLater = []primitive.ObjectID{}
	}
	r.users[user.ID] = cloneUser(*user)
	r.byEmail[email] = user.ID
	return user.ID, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := cloneUser(r.users[id])
	return &u, nil
}

func (r *UserRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Username != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Username == *update.Username {
				return nil, repository.ErrDuplicate
			}
		}
		u.Username = *update.Username
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	for key, link := range update.SocialLinks {
		switch key {
		case "youtube":
			u.SocialLinks.YouTube = link
		case "twitter":
			u.SocialLinks.Twitter = link
		case "instagram":
			u.SocialLinks.Instagram = link
		case "website":
			u.SocialLinks.Website = link
		}
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	out := cloneUser(u)
	return &out, nil
}

func (r *UserRepository) ToggleSubscription(_ context.Context, id, channelID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	var subscribed bool
	u.SubscribedTo, subscribed = toggleID(u.SubscribedTo, channelID)
	r.users[id] = u
	return subscribed, nil
}

func (r *UserRepository) AddSubscribers(_ context.Context, id primitive.ObjectID, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.Subscribers = max(0, u.Subscribers+delta)
	r.users[id] = u
	return u.Subscribers, nil
}

func (r *UserRepository) ToggleWatchLater(_ context.Context, id, videoID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.WatchLater, _ = toggleID(u.WatchLater, videoID)
	r.users[id] = u
	return slices.Clone(u.WatchLater), nil
}

// toggleID removes id from ids if present, appends it otherwise. The input
// slice is never modified in place.
func toggleID(ids []primitive.ObjectID, id primitive.ObjectID) ([]primitive.ObjectID, bool) {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1), false
	}
	return append(slices.Clone(ids), id), true
}

func cloneUser(u domain.User) domain.User {
	u.SubscribedTo = slices.Clone(u.SubscribedTo)
	u.WatchLater = slices.Clone(u.WatchLater)
	return u
}

// PlaylistRepository is a mutex-guarded map of playlists.
type PlaylistRepository struct {
	mu        sync.RWMutex
	playlists map[primitive.ObjectID]*domain.Playlist
}

var _ repository.PlaylistRepository = (*PlaylistRepository)(nil)

func NewPlaylistRepository() *PlaylistRepository {
	return &PlaylistRepository{playlists: make(map[primitive.ObjectID]*domain.Playlist)}
}

func (r *PlaylistRepository) Create(_ context.Context, playlist *domain.Playlist) (primitive.ObjectID, error) {
	if playlist.OwnerID == primitive.NilObjectID || playlist.Name == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	playlist.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now
	if playlist.Videos == nil {
		playlist.Videos = []domain.PlaylistEntry{}
	}
	if playlist.Tags == nil {
		playlist.Tags = []string{}
	}
	r.playlists[playlist.ID] = clonePlaylist(playlist)
	return playlist.ID, nil
}

func (r *PlaylistRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Playlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.playlists[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePlaylist(p), nil
}

func (r *PlaylistRepository) ListByOwner(_ context.Context, ownerID primitive.ObjectID) ([]domain.Playlist, error) {
	r.mu.RLock()
	out := []domain.Playlist{}
	for _, p := range r.playlists {
		if p.OwnerID == ownerID {
			out = append(out, *clonePlaylist(p))
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PlaylistRepository) AddVideo(_ context.Context, id, ownerID primitive.ObjectID, entry domain.PlaylistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	if p.Contains(entry.VideoID) {
		return repository.ErrDuplicate
	}
	p.Videos = append(p.Videos, entry)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func clonePlaylist(p *domain.Playlist) *domain.Playlist {
	c := *p
	c.Videos = slices.Clone(p.Videos)
	c.Tags = slices.Clone(p.Tags)
	return &c
}
