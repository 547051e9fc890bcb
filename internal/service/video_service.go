package service

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"alcyxob/navistream/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrVideoNotFound   = errors.New("video not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrForbidden       = errors.New("not allowed to modify this resource")
	ErrEmptyComment    = errors.New("comment text is required")
	ErrCommentTooLong  = fmt.Errorf("comment cannot exceed %d characters", domain.MaxCommentLength)
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidSort     = errors.New("invalid sort")
	ErrEmptyTitle      = errors.New("title cannot be empty")
)

const (
	listLimit           = 50
	trendingLimit       = 20
	recommendationLimit = 10
)

// DerivativeKeys lists the derivative object keys stored for a publicID.
type DerivativeKeys interface {
	DerivativeKeys(publicID string) []string
}

// --- Service Interface ---
type VideoService interface {
	// Browsing
	List(ctx context.Context, category, sort string) ([]domain.Video, error)
	Trending(ctx context.Context) ([]domain.Video, error)
	Search(ctx context.Context, query, category string) ([]domain.Video, error)
	Recommendations(ctx context.Context, category string) ([]domain.Video, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Video, error)
	ListLikedBy(ctx context.Context, userID primitive.ObjectID) ([]domain.Video, error)
	Get(ctx context.Context, id primitive.ObjectID) (*domain.Video, error)

	// Engagement
	RecordView(ctx context.Context, id primitive.ObjectID) (int64, error)
	ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (liked bool, likes int, err error)
	AddComment(ctx context.Context, id, userID primitive.ObjectID, text string) (*domain.Comment, error)
	RemoveComment(ctx context.Context, id, commentID, userID primitive.ObjectID) error

	// Owner actions
	Update(ctx context.Context, id, userID primitive.ObjectID, update repository.VideoUpdate) (*domain.Video, error)
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
}

// --- Service Implementation ---

// videoService implements VideoService on top of the video repository and the object store.
type videoService struct {
	videos      repository.VideoRepository
	store       storage.FileStorage
	derivatives DerivativeKeys
	log         zerolog.Logger
}

func NewVideoService(videos repository.VideoRepository, store storage.FileStorage, derivatives DerivativeKeys, logger zerolog.Logger) VideoService {
	return &videoService{
		videos:      videos,
		store:       store,
		derivatives: derivatives,
		log:         logger.With().Str("component", "video_service").Logger(),
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrVideoNotFound
	}
	return err
}

// === Browsing ===

// parseCategoryFilter maps a query value to a filter category; "" and "all" mean any.
func parseCategoryFilter(category string) (domain.Category, error) {
	if category == "" || category == "all" {
		return "", nil
	}
	c, ok := domain.ParseCategory(category)
	if !ok {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func (s *videoService) List(ctx context.Context, category, sort string) ([]domain.Video, error) {
	c, err := parseCategoryFilter(category)
	if err != nil {
		return nil, err
	}
	filter := repository.VideoFilter{Category: c, Limit: listLimit, Sort: repository.SortNewest}
	switch repository.VideoSort(sort) {
	case "":
	case repository.SortNewest, repository.SortOldest, repository.SortMostViewed, repository.SortMostLiked:
		filter.Sort = repository.VideoSort(sort)
	default:
		return nil, ErrInvalidSort
	}
	return s.videos.List(ctx, filter)
}

func (s *videoService) Trending(ctx context.Context) ([]domain.Video, error) {
	return s.videos.List(ctx, repository.VideoFilter{Sort: repository.SortTrending, Limit: trendingLimit})
}

// Search matches query literally against title and description, newest first.
// An empty query lists everything in the category.
func (s *videoService) Search(ctx context.Context, query, category string) ([]domain.Video, error) {
	c, err := parseCategoryFilter(category)
	if err != nil {
		return nil, err
	}
	return s.videos.List(ctx, repository.VideoFilter{
		Query:    strings.TrimSpace(query),
		Category: c,
		Sort:     repository.SortNewest,
		Limit:    listLimit,
	})
}

// Recommendations returns the most viewed videos, optionally within a category.
func (s *videoService) Recommendations(ctx context.Context, category string) ([]domain.Video, error) {
	c, err := parseCategoryFilter(category)
	if err != nil {
		return nil, err
	}
	return s.videos.List(ctx, repository.VideoFilter{
		Category: c,
		Sort:     repository.SortMostViewed,
		Limit:    recommendationLimit,
	})
}

func (s *videoService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Video, error) {
	return s.videos.List(ctx, repository.VideoFilter{OwnerID: ownerID, Sort: repository.SortNewest})
}

func (s *videoService) ListLikedBy(ctx context.Context, userID primitive.ObjectID) ([]domain.Video, error) {
	return s.videos.List(ctx, repository.VideoFilter{LikedBy: userID, Sort: repository.SortNewest})
}

func (s *videoService) Get(ctx context.Context, id primitive.ObjectID) (*domain.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	return v, mapNotFound(err)
}

// === Engagement ===

func (s *videoService) RecordView(ctx context.Context, id primitive.ObjectID) (int64, error) {
	views, err := s.videos.IncrementViews(ctx, id)
	return views, mapNotFound(err)
}

func (s *videoService) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (bool, int, error) {
	liked, likes, err := s.videos.ToggleLike(ctx, id, userID)
	return liked, likes, mapNotFound(err)
}

func (s *videoService) AddComment(ctx context.Context, id, userID primitive.ObjectID, text string) (*domain.Comment, error) {
	// 1. Validate text; length is counted in runes, not bytes
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > domain.MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	// 2. Build the comment; the id is assigned here so the response can carry it
	comment := domain.Comment{
		ID:        primitive.NewObjectID(),
		AuthorID:  userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.videos.AddComment(ctx, id, comment); err != nil {
		return nil, mapNotFound(err)
	}
	return &comment, nil
}

// RemoveComment deletes a comment. Only its author may remove it.
func (s *videoService) RemoveComment(ctx context.Context, id, commentID, userID primitive.ObjectID) error {
	// Load the video to tell "no such comment" apart from "not yours"
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	var found *domain.Comment
	for i := range video.Comments {
		if video.Comments[i].ID == commentID {
			found = &video.Comments[i]
			break
		}
	}
	if found == nil {
		return ErrCommentNotFound
	}
	if found.AuthorID != userID {
		return ErrForbidden
	}
	if err := s.videos.RemoveComment(ctx, id, commentID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}

// === Owner Actions ===

func (s *videoService) Update(ctx context.Context, id, userID primitive.ObjectID, update repository.VideoUpdate) (*domain.Video, error) {
	if update.Title != nil {
		t := strings.TrimSpace(*update.Title)
		if t == "" {
			return nil, ErrEmptyTitle
		}
		update.Title = &t
	}
	if update.Category != nil {
		c, ok := domain.ParseCategory(string(*update.Category))
		if !ok {
			return nil, ErrInvalidCategory
		}
		update.Category = &c
	}
	// Ownership is checked first so a stranger gets 403, not 404; the
	// repository update is owner-scoped as well.
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return nil, err
	}
	v, err := s.videos.Update(ctx, id, userID, update)
	return v, mapNotFound(err)
}

// Delete removes the record first, then the remote objects. A remote object
// that cannot be deleted is logged as orphaned for the reconcile job to
// collect; the caller still sees success because the video is gone.
func (s *videoService) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if !video.IsOwnedBy(userID) {
		return ErrForbidden
	}

	// Owner-scoped delete: a concurrent ownership change cannot slip through.
	if err := s.videos.Delete(ctx, id, userID); err != nil {
		return mapNotFound(err)
	}

	keys := []string{}
	if video.SourceKey != "" {
		keys = append(keys, video.SourceKey)
	}
	if s.derivatives != nil {
		keys = append(keys, s.derivatives.DerivativeKeys(video.PublicID)...)
	}
	for _, key := range keys {
		err := s.store.DeleteObject(ctx, key)
		if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		s.log.Error().
			Err(err).
			Str("event", "orphaned_remote_asset").
			Str("public_id", video.PublicID).
			Str("key", key).
			Msg("remote object left behind after video delete")
	}

	s.log.Info().Str("video_id", id.Hex()).Str("public_id", video.PublicID).Msg("video deleted")
	return nil
}

func (s *videoService) checkOwner(ctx context.Context, id, userID primitive.ObjectID) error {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if !video.IsOwnedBy(userID) {
		return ErrForbidden
	}
	return nil
}
