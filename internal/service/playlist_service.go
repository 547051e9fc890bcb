package service

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlaylistNotFound    = errors.New("playlist not found")
	ErrEmptyPlaylistName   = errors.New("playlist name is required")
	ErrPlaylistNameTooLong = fmt.Errorf("playlist name cannot exceed %d characters", domain.MaxPlaylistNameLength)
	ErrPlaylistDescTooLong = fmt.Errorf("playlist description cannot exceed %d characters", domain.MaxPlaylistDescriptionLength)
	ErrVideoAlreadyInList  = errors.New("video already in playlist")
)

// --- Service Interface ---
type PlaylistService interface {
	Create(ctx context.Context, ownerID primitive.ObjectID, name, description string, isPublic bool) (*domain.Playlist, error)
	ListMine(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Playlist, error)
	AddVideo(ctx context.Context, playlistID, userID, videoID primitive.ObjectID) error
}

// --- Service Implementation ---

type playlistService struct {
	playlists repository.PlaylistRepository
	videos    repository.VideoRepository
}

func NewPlaylistService(playlists repository.PlaylistRepository, videos repository.VideoRepository) PlaylistService {
	return &playlistService{playlists: playlists, videos: videos}
}

func (s *playlistService) Create(ctx context.Context, ownerID primitive.ObjectID, name, description string, isPublic bool) (*domain.Playlist, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	switch {
	case name == "":
		return nil, ErrEmptyPlaylistName
	case utf8.RuneCountInString(name) > domain.MaxPlaylistNameLength:
		return nil, ErrPlaylistNameTooLong
	case utf8.RuneCountInString(description) > domain.MaxPlaylistDescriptionLength:
		return nil, ErrPlaylistDescTooLong
	}

	playlist := &domain.Playlist{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		IsPublic:    isPublic,
	}
	if _, err := s.playlists.Create(ctx, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

func (s *playlistService) ListMine(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Playlist, error) {
	return s.playlists.ListByOwner(ctx, ownerID)
}

// AddVideo appends an existing video to one of the caller's playlists.
func (s *playlistService) AddVideo(ctx context.Context, playlistID, userID, videoID primitive.ObjectID) error {
	// 1. Playlist must exist and belong to the caller
	playlist, err := s.playlists.GetByID(ctx, playlistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlaylistNotFound
		}
		return err
	}
	if !playlist.IsOwnedBy(userID) {
		return ErrForbidden
	}

	// 2. Video must exist
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return mapNotFound(err)
	}

	// 3. Append; the repository rejects duplicates atomically
	err = s.playlists.AddVideo(ctx, playlistID, userID, domain.PlaylistEntry{VideoID: videoID, AddedAt: time.Now().UTC()})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return ErrVideoAlreadyInList
	case errors.Is(err, repository.ErrNotFound):
		return ErrPlaylistNotFound
	}
	return err
}
